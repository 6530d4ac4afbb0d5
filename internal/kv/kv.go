// Package kv is the key/value substrate workspace documents and overlay
// documents are persisted in.
package kv

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

// ErrNotFound is returned by Get for a key that was never written or was
// deleted.
var ErrNotFound = errors.New("kv: key not found")

// Store loads and saves opaque values by string key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFiles  = "files"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open creates the store for a backend rooted at dir.
func Open(backend, dir string) (Store, error) {
	switch backend {
	case BackendFiles, "":
		return OpenFileStore(filepath.Join(dir, ".mxws"))
	case BackendSQLite:
		return OpenSQLite(filepath.Join(dir, ".mxws", "workspace.sqlite"))
	case BackendMemory:
		return NewMemStore(), nil
	default:
		return nil, fmt.Errorf("kv: unknown backend %q", backend)
	}
}

// WorkspaceKey is the key of a tab's workspace document.
func WorkspaceKey(tab string) string { return "workspace:" + tab }

// DecisionsKey is the key of a tab's decisions overlay document.
func DecisionsKey(tab string) string { return "decisions:" + tab }

// EvaluationsKey is the key of a tab's evaluations overlay document.
func EvaluationsKey(tab string) string { return "evaluations:" + tab }
