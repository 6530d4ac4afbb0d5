package kv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gocid "github.com/ipfs/go-cid"
)

// refStore maps keys to object CIDs. Each ref is a file in the refs
// directory whose content is the base32 CID. Filenames encode colons as
// double underscores.
type refStore struct {
	dir string
}

func newRefStore(dir string) (*refStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create refs dir: %w", err)
	}
	return &refStore{dir: dir}, nil
}

func refFilename(key string) string {
	return strings.ReplaceAll(key, ":", "__")
}

func refKeyFromFilename(name string) string {
	return strings.ReplaceAll(name, "__", ":")
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "__") || key[0] == '.' {
		return fmt.Errorf("kv: invalid key %q", key)
	}
	return nil
}

func (r *refStore) set(key string, c gocid.Cid) error {
	return writeAtomic(filepath.Join(r.dir, refFilename(key)), []byte(cidName(c)+"\n"), 0644)
}

func (r *refStore) get(key string) (gocid.Cid, error) {
	data, err := os.ReadFile(filepath.Join(r.dir, refFilename(key)))
	if errors.Is(err, os.ErrNotExist) {
		return gocid.Undef, ErrNotFound
	}
	if err != nil {
		return gocid.Undef, fmt.Errorf("read ref %s: %w", key, err)
	}
	return parseCIDName(strings.TrimSpace(string(data)))
}

func (r *refStore) delete(key string) error {
	err := os.Remove(filepath.Join(r.dir, refFilename(key)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (r *refStore) list() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		keys = append(keys, refKeyFromFilename(e.Name()))
	}
	return keys, nil
}
