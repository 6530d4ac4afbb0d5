package fuse

import (
	"context"
	"encoding/json"
	"log"
	"strconv"

	"github.com/systemshift/memex-workspace/internal/graph"
	"github.com/systemshift/memex-workspace/internal/workspace"
)

const maxLogEntries = 64

// view renders file contents from a freshly reloaded state on every read.
type view struct {
	src      Source
	maxDepth int
}

// branchInfo is the JSON form of branches/<id>.
type branchInfo struct {
	workspace.Branch
	Current    bool   `json:"current"`
	ForkOrigin string `json:"forkOrigin,omitempty"`
	Guessed    bool   `json:"forkOriginGuessed,omitempty"`
}

// state reloads the source and returns its state. A failed reload serves
// the last state read.
func (v *view) state() *workspace.State {
	if err := v.src.Reload(context.Background()); err != nil {
		log.Printf("mxws: reload warning: %v", err)
	}
	return v.src.State()
}

func (v *view) graph() []byte {
	return []byte(graph.Project(v.state(), v.maxDepth).Script)
}

func (v *view) current() []byte {
	return []byte(v.state().CurrentBranchID + "\n")
}

func (v *view) branchIDs() []string {
	branches := v.state().SortedBranches()
	ids := make([]string, len(branches))
	for i, b := range branches {
		ids[i] = b.ID
	}
	return ids
}

func (v *view) branch(id string) ([]byte, bool) {
	s := v.state()
	b, ok := s.Branches[id]
	if !ok {
		return nil, false
	}
	info := branchInfo{Branch: b, Current: id == s.CurrentBranchID}
	if origin, ok := workspace.ResolveForkOrigin(s, b, v.depth()); ok {
		info.ForkOrigin = origin
		info.Guessed = b.ForkOriginCommitID == ""
	}
	data, _ := json.MarshalIndent(info, "", "  ")
	return append(data, '\n'), true
}

// history returns the current branch's commits, newest first.
func (v *view) history(n int) []*workspace.Commit {
	s := v.state()
	return workspace.Log(s, s.Current().HeadCommitID, n)
}

func (v *view) head() []byte {
	commits := v.history(1)
	if len(commits) == 0 {
		return []byte("(none)\n")
	}
	return []byte(commits[0].ID + "\n")
}

func (v *view) logEntry(name string) ([]byte, bool) {
	idx, err := strconv.Atoi(name)
	if err != nil || idx < 0 || idx >= maxLogEntries {
		return nil, false
	}
	commits := v.history(idx + 1)
	if idx >= len(commits) {
		return nil, false
	}
	data, _ := json.MarshalIndent(commits[idx], "", "  ")
	return append(data, '\n'), true
}

func (v *view) depth() int {
	if v.maxDepth <= 0 {
		return graph.DefaultMaxDepth
	}
	return v.maxDepth
}
