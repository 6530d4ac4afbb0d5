package kv

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileStore is a Store on the local filesystem. Values are immutable
// CID-addressed objects; keys are ref files pointing at them, so a put is an
// object write followed by an atomic ref swap.
type FileStore struct {
	mu      sync.Mutex
	objects *objectStore
	refs    *refStore

	// Grace protects recently written objects from Compact. Another process
	// may have stored an object whose ref it has not written yet.
	Grace time.Duration
}

// DefaultCompactGrace is the Grace of a newly opened FileStore.
const DefaultCompactGrace = time.Minute

// OpenFileStore opens or creates a FileStore rooted at dir.
func OpenFileStore(dir string) (*FileStore, error) {
	objects, err := newObjectStore(filepath.Join(dir, "objects"))
	if err != nil {
		return nil, err
	}
	refs, err := newRefStore(filepath.Join(dir, "refs"))
	if err != nil {
		return nil, err
	}
	return &FileStore{objects: objects, refs: refs, Grace: DefaultCompactGrace}, nil
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.refs.get(key)
	if err != nil {
		return nil, err
	}
	return s.objects.get(c)
}

func (s *FileStore) Put(_ context.Context, key string, data []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.objects.put(data)
	if err != nil {
		return fmt.Errorf("store value: %w", err)
	}
	if err := s.refs.set(key, c); err != nil {
		return fmt.Errorf("set ref: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs.delete(key)
}

func (s *FileStore) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys, err := s.refs.list()
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// Compact deletes every object no ref points at and that is older than
// Grace, and returns how many were removed. Unreadable refs keep nothing
// alive.
func (s *FileStore) Compact(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.refs.list()
	if err != nil {
		return 0, err
	}
	live := make(map[string]bool, len(keys))
	for _, key := range keys {
		c, err := s.refs.get(key)
		if err != nil {
			continue
		}
		live[cidName(c)] = true
	}

	names, err := s.objects.list()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-s.Grace)
	removed := 0
	for _, name := range names {
		if live[name] {
			continue
		}
		written, err := s.objects.modTime(name)
		if err != nil || written.After(cutoff) {
			continue
		}
		if err := s.objects.remove(name); err != nil {
			return removed, fmt.Errorf("remove object %s: %w", name, err)
		}
		removed++
	}
	return removed, nil
}

func (s *FileStore) Close() error { return nil }
