package kv

import (
	"fmt"
	"os"
	"path/filepath"
)

// writeAtomic replaces path with data. The data goes to a hidden tempfile
// next to path, is synced with its final mode, and is renamed over path; a
// failure at any step removes the tempfile and leaves path as it was.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", filepath.Base(path), err)
	}
	if err := fill(f, data, perm); err != nil {
		os.Remove(f.Name())
		return err
	}
	if err := os.Rename(f.Name(), path); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// fill writes, syncs and closes f. f is closed on every path.
func fill(f *os.File, data []byte, perm os.FileMode) error {
	_, err := f.Write(data)
	if err == nil {
		err = f.Chmod(perm)
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write temp %s: %w", filepath.Base(f.Name()), err)
	}
	return nil
}
