package kv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gocid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"
)

// objectStore keeps immutable values on disk, one file per value, named by
// the value's CID. Identical values are stored once.
type objectStore struct {
	dir string
}

func newObjectStore(dir string) (*objectStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create objects dir: %w", err)
	}
	return &objectStore{dir: dir}, nil
}

// computeCID computes a CIDv1 (raw codec, SHA2-256) for data.
func computeCID(data []byte) (gocid.Cid, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return gocid.Undef, fmt.Errorf("multihash: %w", err)
	}
	return gocid.NewCidV1(gocid.Raw, mh), nil
}

// cidName returns the base32lower encoding of a CID, used both as object
// filename and as ref content.
func cidName(c gocid.Cid) string {
	encoded, _ := multibase.Encode(multibase.Base32, c.Bytes())
	return encoded
}

// parseCIDName is the inverse of cidName.
func parseCIDName(s string) (gocid.Cid, error) {
	_, raw, err := multibase.Decode(s)
	if err != nil {
		return gocid.Undef, fmt.Errorf("decode CID: %w", err)
	}
	return gocid.Cast(raw)
}

func (s *objectStore) path(c gocid.Cid) string {
	return filepath.Join(s.dir, cidName(c))
}

// put stores data and returns its CID. Storing an existing value only
// refreshes its modification time, which restarts its compaction grace.
func (s *objectStore) put(data []byte) (gocid.Cid, error) {
	c, err := computeCID(data)
	if err != nil {
		return gocid.Undef, err
	}
	path := s.path(c)
	if _, err := os.Stat(path); err == nil {
		now := time.Now()
		if err := os.Chtimes(path, now, now); err != nil {
			return gocid.Undef, fmt.Errorf("touch object: %w", err)
		}
		return c, nil
	}
	if err := writeAtomic(path, data, 0644); err != nil {
		return gocid.Undef, fmt.Errorf("write object: %w", err)
	}
	return c, nil
}

func (s *objectStore) get(c gocid.Cid) ([]byte, error) {
	data, err := os.ReadFile(s.path(c))
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", c, err)
	}
	return data, nil
}

// list returns the names of every stored object.
func (s *objectStore) list() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || e.Name()[0] == '.' {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (s *objectStore) modTime(name string) (time.Time, error) {
	info, err := os.Stat(filepath.Join(s.dir, name))
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func (s *objectStore) remove(name string) error {
	err := os.Remove(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
