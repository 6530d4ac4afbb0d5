package workspace

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
)

// DecodeJSON is json.Unmarshal with numbers kept as json.Number, so integers
// beyond float64 precision survive a round trip.
func DecodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("invalid character after top-level value")
	}
	return nil
}

// CanonicalJSON encodes v as compact JSON with object keys sorted at every
// level, so equal documents always produce equal bytes.
func CanonicalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := DecodeJSON(data, &generic); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeCanonical appends the canonical form of a decoded JSON value.
func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeScalar(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return writeScalar(buf, val)
	}
	return nil
}

func writeScalar(buf *bytes.Buffer, v any) error {
	if n, ok := v.(json.Number); ok {
		return writeNumber(buf, n)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}

// writeNumber writes integer literals exactly and every other number in
// float64's shortest form, so 3, 3.0 and 3e0 share one encoding.
func writeNumber(buf *bytes.Buffer, n json.Number) error {
	if i, err := n.Int64(); err == nil {
		buf.WriteString(strconv.FormatInt(i, 10))
		return nil
	}
	if isIntegerLiteral(string(n)) {
		buf.WriteString(string(n))
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return err
	}
	return writeScalar(buf, f)
}

func isIntegerLiteral(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// normalize makes a nil document compare equal to an empty one.
func normalize(snap Snapshot) Snapshot {
	if snap.Decisions == nil {
		snap.Decisions = map[string]any{}
	}
	if snap.Evaluations == nil {
		snap.Evaluations = map[string]any{}
	}
	return snap
}

// SnapshotsEqual compares two snapshots by their canonical encodings, so
// key order and numeric representation do not matter.
func SnapshotsEqual(a, b Snapshot) bool {
	ea, errA := CanonicalJSON(normalize(a))
	eb, errB := CanonicalJSON(normalize(b))
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ea, eb)
}
