package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// State is the root aggregate: every branch and commit of one workspace.
// It is loaded and persisted as a whole.
type State struct {
	Version         int                `json:"version"`
	CurrentBranchID string             `json:"currentBranchId"`
	Branches        map[string]Branch  `json:"branches"`
	Commits         map[string]*Commit `json:"commits"`
}

var errMalformed = errors.New("malformed workspace document")

// Bootstrap returns a fresh state holding one empty "Initial" commit and the
// main branch pointing at it.
func Bootstrap(now time.Time) *State {
	s := &State{
		Version:  Version,
		Branches: make(map[string]Branch),
		Commits:  make(map[string]*Commit),
	}
	root := s.AddCommit("", initialMessage, EmptySnapshot(), now)
	s.Branches[MainBranchID] = Branch{
		ID:           MainBranchID,
		Name:         MainBranchID,
		HeadCommitID: root,
		CreatedAt:    now.UTC(),
	}
	s.CurrentBranchID = MainBranchID
	return s
}

// Decode parses a persisted workspace document. A document with the wrong
// version, missing tables, or no main branch is rejected; an unknown current
// branch is repaired to main.
func Decode(data []byte) (*State, error) {
	var s State
	if err := DecodeJSON(data, &s); err != nil {
		return nil, fmt.Errorf("decode workspace: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if _, ok := s.Branches[s.CurrentBranchID]; !ok {
		s.CurrentBranchID = MainBranchID
	}
	for id, c := range s.Commits {
		if c == nil {
			delete(s.Commits, id)
			continue
		}
		if c.ID == "" {
			c.ID = id
		}
	}
	for id, b := range s.Branches {
		if b.ID == "" {
			b.ID = id
			s.Branches[id] = b
		}
	}
	return &s, nil
}

// Encode serializes the state as a workspace document.
func (s *State) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode workspace: %w", err)
	}
	return data, nil
}

// Validate reports whether the state has the shape every engine operation
// relies on.
func (s *State) Validate() error {
	if s.Version != Version {
		return fmt.Errorf("%w: version %d", errMalformed, s.Version)
	}
	if s.Branches == nil || s.Commits == nil {
		return fmt.Errorf("%w: missing branches or commits", errMalformed)
	}
	if _, ok := s.Branches[MainBranchID]; !ok {
		return fmt.Errorf("%w: no main branch", errMalformed)
	}
	return nil
}

// Clone returns a copy whose maps can be mutated without affecting s.
// Commits are immutable and therefore shared.
func (s *State) Clone() *State {
	c := &State{
		Version:         s.Version,
		CurrentBranchID: s.CurrentBranchID,
		Branches:        make(map[string]Branch, len(s.Branches)),
		Commits:         make(map[string]*Commit, len(s.Commits)),
	}
	for id, b := range s.Branches {
		c.Branches[id] = b
	}
	for id, cm := range s.Commits {
		c.Commits[id] = cm
	}
	return c
}

// AddCommit stores a new commit and returns its id.
func (s *State) AddCommit(parentID, message string, snap Snapshot, now time.Time) string {
	id := uuid.NewString()
	s.Commits[id] = &Commit{
		ID:        id,
		ParentID:  parentID,
		CreatedAt: now.UTC(),
		Message:   message,
		Snapshot:  snap,
	}
	return id
}

// AddBranch stores a new branch and returns its id, which never collides
// with an existing branch or with main.
func (s *State) AddBranch(name, headCommitID string, origin ForkOrigin, now time.Time) string {
	id := uuid.NewString()
	for {
		if _, taken := s.Branches[id]; !taken && id != MainBranchID {
			break
		}
		id = uuid.NewString()
	}
	s.Branches[id] = Branch{
		ID:                 id,
		Name:               name,
		HeadCommitID:       headCommitID,
		CreatedAt:          now.UTC(),
		ForkOriginCommitID: origin.CommitID,
		ForkOriginBranchID: origin.BranchID,
	}
	return id
}

// Current returns the checked-out branch.
func (s *State) Current() Branch {
	return s.Branches[s.CurrentBranchID]
}

// Head returns the head commit of a branch, or nil if the branch or its
// head commit is missing.
func (s *State) Head(branchID string) *Commit {
	b, ok := s.Branches[branchID]
	if !ok {
		return nil
	}
	return s.Commits[b.HeadCommitID]
}

// FindBranch resolves a branch by id, falling back to an exact name match.
// When several branches share a name the oldest wins.
func (s *State) FindBranch(ref string) (Branch, bool) {
	if b, ok := s.Branches[ref]; ok {
		return b, true
	}
	ref = strings.TrimSpace(ref)
	for _, b := range s.SortedBranches() {
		if b.Name == ref {
			return b, true
		}
	}
	return Branch{}, false
}

// SortedBranches returns main first, then every other branch by creation
// time, ties broken by id.
func (s *State) SortedBranches() []Branch {
	out := make([]Branch, 0, len(s.Branches))
	for _, b := range s.Branches {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.ID == MainBranchID) != (b.ID == MainBranchID) {
			return a.ID == MainBranchID
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}
