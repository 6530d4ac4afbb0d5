// Package overlay stores the live decisions/evaluations documents of a tab.
package overlay

import (
	"context"
	"errors"
	"fmt"

	"github.com/systemshift/memex-workspace/internal/bus"
	"github.com/systemshift/memex-workspace/internal/kv"
	"github.com/systemshift/memex-workspace/internal/workspace"
)

// Doc names one of the two overlay documents.
type Doc string

const (
	Decisions   Doc = "decisions"
	Evaluations Doc = "evaluations"
)

// ParseDoc validates a document name.
func ParseDoc(s string) (Doc, error) {
	switch Doc(s) {
	case Decisions, Evaluations:
		return Doc(s), nil
	}
	return "", fmt.Errorf("overlay: unknown document %q", s)
}

// Store reads and writes a tab's overlay documents in a kv.Store.
type Store struct {
	kv  kv.Store
	tab string
	bus *bus.Bus
}

// New creates an overlay store. b may be nil, in which case edits are not
// announced.
func New(store kv.Store, tab string, b *bus.Bus) *Store {
	return &Store{kv: store, tab: tab, bus: b}
}

func (s *Store) key(doc Doc) string {
	if doc == Decisions {
		return kv.DecisionsKey(s.tab)
	}
	return kv.EvaluationsKey(s.tab)
}

func (s *Store) readDoc(ctx context.Context, doc Doc) (map[string]any, error) {
	data, err := s.kv.Get(ctx, s.key(doc))
	if errors.Is(err, kv.ErrNotFound) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", doc, err)
	}
	m := map[string]any{}
	if len(data) == 0 {
		return m, nil
	}
	if err := workspace.DecodeJSON(data, &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", doc, err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func (s *Store) writeDoc(ctx context.Context, doc Doc, m map[string]any) error {
	if m == nil {
		m = map[string]any{}
	}
	data, err := workspace.CanonicalJSON(m)
	if err != nil {
		return fmt.Errorf("encode %s: %w", doc, err)
	}
	if err := s.kv.Put(ctx, s.key(doc), data); err != nil {
		return fmt.Errorf("write %s: %w", doc, err)
	}
	return nil
}

// Read returns both documents. Missing documents read as empty.
func (s *Store) Read(ctx context.Context) (workspace.Snapshot, error) {
	decisions, err := s.readDoc(ctx, Decisions)
	if err != nil {
		return workspace.Snapshot{}, err
	}
	evaluations, err := s.readDoc(ctx, Evaluations)
	if err != nil {
		return workspace.Snapshot{}, err
	}
	return workspace.Snapshot{Decisions: decisions, Evaluations: evaluations}, nil
}

// Write replaces both documents. It publishes nothing; whoever overwrites
// the overlay announces the reload.
func (s *Store) Write(ctx context.Context, snap workspace.Snapshot) error {
	if err := s.writeDoc(ctx, Decisions, snap.Decisions); err != nil {
		return err
	}
	return s.writeDoc(ctx, Evaluations, snap.Evaluations)
}

// Set stores value under key in one document and announces the edit.
func (s *Store) Set(ctx context.Context, doc Doc, key string, value any) error {
	return s.edit(ctx, doc, func(m map[string]any) { m[key] = value })
}

// Unset removes key from one document and announces the edit.
func (s *Store) Unset(ctx context.Context, doc Doc, key string) error {
	return s.edit(ctx, doc, func(m map[string]any) { delete(m, key) })
}

func (s *Store) edit(ctx context.Context, doc Doc, fn func(map[string]any)) error {
	if _, err := ParseDoc(string(doc)); err != nil {
		return err
	}
	m, err := s.readDoc(ctx, doc)
	if err != nil {
		return err
	}
	fn(m)
	if err := s.writeDoc(ctx, doc, m); err != nil {
		return err
	}
	if s.bus != nil {
		s.bus.Publish(bus.NewEvent(s.tab, bus.OverlayChanged))
	}
	return nil
}
