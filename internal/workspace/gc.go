package workspace

// walkBudget bounds a single parent-chain walk. A well-formed chain can never
// be longer than the number of commits in the store.
func walkBudget(s *State) int {
	return len(s.Commits) + 1
}

// Reachable returns the ids of every commit reachable from some branch head
// by following parent pointers.
func Reachable(s *State) map[string]bool {
	reachable := make(map[string]bool, len(s.Commits))
	budget := walkBudget(s)
	for _, b := range s.Branches {
		id := b.HeadCommitID
		for steps := 0; id != "" && steps < budget; steps++ {
			if reachable[id] {
				break
			}
			c, ok := s.Commits[id]
			if !ok {
				break
			}
			reachable[id] = true
			id = c.ParentID
		}
	}
	return reachable
}

// Prune returns a copy of s whose commit table holds only reachable commits.
// Branches are untouched. Prune never modifies s.
func Prune(s *State) *State {
	reachable := Reachable(s)
	out := s.Clone()
	for id := range out.Commits {
		if !reachable[id] {
			delete(out.Commits, id)
		}
	}
	return out
}
