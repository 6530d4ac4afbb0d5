package workspace

// Log walks the parent chain from a commit, returning up to n commits
// (newest first). The walk stops early at a missing parent or a repeated id.
func Log(s *State, commitID string, n int) []*Commit {
	var commits []*Commit
	visited := make(map[string]bool)
	current := commitID
	for i := 0; i < n && current != ""; i++ {
		if visited[current] {
			break
		}
		visited[current] = true
		commit, ok := s.Commits[current]
		if !ok {
			break
		}
		commits = append(commits, commit)
		current = commit.ParentID
	}
	return commits
}
