// Package graph projects a workspace into a layered, depth-bounded graph
// description for display, together with the tables a caller needs to map
// clicks on the drawing back to commits and branches.
package graph

import (
	"github.com/systemshift/memex-workspace/internal/workspace"
)

// DefaultMaxDepth is used when Project is given a non-positive depth.
const DefaultMaxDepth = 30

// BranchRef identifies the branch behind a display identifier.
type BranchRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Projection is the renderable view of a workspace.
type Projection struct {
	Instructions []Instruction
	Script       string

	Labels       map[string]string // label -> full commit message
	LabelCommits map[string]string // label -> commit id
	CommitLabels map[string]string // commit id -> label

	Branches     map[string]BranchRef // display identifier -> branch
	BranchIdents map[string]string    // branch id -> display identifier

	// Active is the identifier of the current branch, or main when the
	// current branch is not part of the drawing.
	Active string

	// Dangling lists branches with no drawn fork point or drawn ancestor of
	// it; they are drawn under the oldest visible main commit.
	Dangling []string
}

// frame is one branch being emitted on the worklist.
type frame struct {
	ident   string
	commits []*workspace.Commit
	next    int
	pending []string // branch ids forking from the commit just emitted
}

// Project builds the projection of s showing at most maxDepth commits of
// main and of each other branch.
func Project(s *workspace.State, maxDepth int) *Projection {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	p := &Projection{
		Labels:       make(map[string]string),
		LabelCommits: make(map[string]string),
		CommitLabels: make(map[string]string),
		Branches:     make(map[string]BranchRef),
		BranchIdents: make(map[string]string),
		Active:       mainIdent,
	}

	mainChain := oldestFirst(workspace.Log(s, s.Branches[workspace.MainBranchID].HeadCommitID, maxDepth))
	onMain := make(map[string]bool, len(mainChain))
	for _, c := range mainChain {
		onMain[c.ID] = true
	}
	oldest := ""
	if len(mainChain) > 0 {
		oldest = mainChain[0].ID
	}

	var others []workspace.Branch
	for _, b := range s.SortedBranches() {
		if b.ID != workspace.MainBranchID {
			others = append(others, b)
		}
	}

	segments := make(map[string][]*workspace.Commit, len(others))
	attach := make(map[string]string, len(others))
	for _, b := range others {
		seg, at, ok := segment(s, b, onMain, maxDepth)
		segments[b.ID] = seg
		if ok {
			attach[b.ID] = at
		}
	}

	visible := make(map[string]bool, len(onMain))
	for id := range onMain {
		visible[id] = true
	}
	for _, seg := range segments {
		for _, c := range seg {
			visible[c.ID] = true
		}
	}

	// A recorded fork point that is not drawn (its branch was deleted, its
	// commits kept alive by this one) is bridged to the nearest drawn
	// ancestor, and the commits in between are drawn on this branch.
	for _, b := range others {
		at, ok := attach[b.ID]
		if !ok || visible[at] {
			continue
		}
		ext, to, found := bridge(s, at, visible, maxDepth)
		if !found {
			continue
		}
		segments[b.ID] = append(ext, segments[b.ID]...)
		for _, c := range ext {
			visible[c.ID] = true
		}
		attach[b.ID] = to
	}

	dangling := make(map[string]bool)
	children := make(map[string][]string)
	for _, b := range others {
		at, ok := attach[b.ID]
		if !ok || !visible[at] {
			dangling[b.ID] = true
			at = oldest
			attach[b.ID] = at
		}
		children[at] = append(children[at], b.ID)
	}

	// A branch attached to a commit of a branch that is itself never drawn
	// (a provenance cycle in corrupted data) is re-homed under main.
	for {
		reached := reachableBranches(mainChain, segments, children)
		moved := false
		for _, b := range others {
			if reached[b.ID] {
				continue
			}
			removeChild(children, attach[b.ID], b.ID)
			dangling[b.ID] = true
			attach[b.ID] = oldest
			children[oldest] = append(children[oldest], b.ID)
			moved = true
			break
		}
		if !moved {
			break
		}
	}
	for _, b := range others {
		if dangling[b.ID] {
			p.Dangling = append(p.Dangling, b.ID)
		}
	}

	p.emit(s, mainChain, segments, children)
	if ident, ok := p.BranchIdents[s.CurrentBranchID]; ok {
		p.Active = ident
	}
	p.Script = FormatScript(p.Instructions)
	return p
}

// emit walks main and every attached branch depth-first with an explicit
// stack, appending instructions and filling the label and identifier tables.
func (p *Projection) emit(s *workspace.State, mainChain []*workspace.Commit, segments map[string][]*workspace.Commit, children map[string][]string) {
	labels := newLabeler()
	idents := newIdentAllocator()

	mainBranch := s.Branches[workspace.MainBranchID]
	p.Branches[mainIdent] = BranchRef{ID: mainBranch.ID, Title: mainBranch.Name}
	p.BranchIdents[mainBranch.ID] = mainIdent

	emittedCommit := make(map[string]bool)
	emittedBranch := make(map[string]bool)

	p.Instructions = append(p.Instructions, Instruction{Op: StartGraph})
	stack := []*frame{{ident: mainIdent, commits: mainChain, pending: children[""]}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]

		if len(top.pending) > 0 {
			id := top.pending[0]
			top.pending = top.pending[1:]
			if emittedBranch[id] {
				continue
			}
			emittedBranch[id] = true
			b := s.Branches[id]
			ident := idents.next(b.Name)
			p.Branches[ident] = BranchRef{ID: b.ID, Title: b.Name}
			p.BranchIdents[b.ID] = ident
			p.Instructions = append(p.Instructions, Instruction{Op: StartBranch, Arg: ident})
			stack = append(stack, &frame{ident: ident, commits: segments[id]})
			continue
		}

		if top.next < len(top.commits) {
			c := top.commits[top.next]
			top.next++
			if emittedCommit[c.ID] {
				continue
			}
			emittedCommit[c.ID] = true
			label := labels.next(c.Message)
			p.Labels[label] = c.Message
			p.LabelCommits[label] = c.ID
			p.CommitLabels[c.ID] = label
			p.Instructions = append(p.Instructions, Instruction{Op: AddCommit, Arg: label})
			top.pending = children[c.ID]
			continue
		}

		stack = stack[:len(stack)-1]
		if len(stack) > 0 {
			p.Instructions = append(p.Instructions, Instruction{Op: SwitchTo, Arg: stack[len(stack)-1].ident})
		}
	}
}

// segment returns the commits a branch owns (oldest first): its chain from
// the head back to, but excluding, its fork point. The walk also stops on
// reaching a visible main commit, which then serves as the fork point. ok
// is false when neither was reached within maxDepth.
func segment(s *workspace.State, b workspace.Branch, onMain map[string]bool, maxDepth int) ([]*workspace.Commit, string, bool) {
	fork, known := workspace.ResolveForkOrigin(s, b, maxDepth)

	var seg []*workspace.Commit
	visited := make(map[string]bool)
	id := b.HeadCommitID
	for depth := 0; id != ""; depth++ {
		if (known && id == fork) || onMain[id] {
			return oldestFirst(seg), id, true
		}
		if depth >= maxDepth || visited[id] {
			break
		}
		visited[id] = true
		c, ok := s.Commits[id]
		if !ok {
			break
		}
		seg = append(seg, c)
		id = c.ParentID
	}
	return oldestFirst(seg), "", false
}

// bridge walks up from a commit that is not drawn to the nearest drawn
// ancestor within maxDepth steps, returning the commits in between (oldest
// first, including from) and that ancestor.
func bridge(s *workspace.State, from string, visible map[string]bool, maxDepth int) ([]*workspace.Commit, string, bool) {
	var ext []*workspace.Commit
	seen := make(map[string]bool)
	id := from
	for depth := 0; id != "" && depth <= maxDepth; depth++ {
		if visible[id] {
			return oldestFirst(ext), id, true
		}
		if seen[id] {
			break
		}
		seen[id] = true
		c, ok := s.Commits[id]
		if !ok {
			break
		}
		ext = append(ext, c)
		id = c.ParentID
	}
	return nil, "", false
}

// reachableBranches reports which branches the emission walk starting at
// main would reach.
func reachableBranches(mainChain []*workspace.Commit, segments map[string][]*workspace.Commit, children map[string][]string) map[string]bool {
	reached := make(map[string]bool)
	queue := append([]string{""}, commitIDs(mainChain)...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, b := range children[id] {
			if reached[b] {
				continue
			}
			reached[b] = true
			queue = append(queue, commitIDs(segments[b])...)
		}
	}
	return reached
}

func removeChild(children map[string][]string, at, branchID string) {
	list := children[at]
	for i, id := range list {
		if id == branchID {
			children[at] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

func commitIDs(commits []*workspace.Commit) []string {
	ids := make([]string, len(commits))
	for i, c := range commits {
		ids[i] = c.ID
	}
	return ids
}

func oldestFirst(commits []*workspace.Commit) []*workspace.Commit {
	out := make([]*workspace.Commit, len(commits))
	for i, c := range commits {
		out[len(commits)-1-i] = c
	}
	return out
}
