package workspace

import "time"

// ResolveForkOrigin returns the commit a branch was forked from.
//
// Branches that recorded their provenance answer directly. Legacy branches
// without it are resolved by walking up to maxDepth commits of the branch's
// own chain and taking the commit created closest to the branch itself; the
// fork point is that commit's parent. Ties keep the first commit found in
// chain order. The answer is a best guess and can be wrong when several
// commits share a timestamp.
func ResolveForkOrigin(s *State, b Branch, maxDepth int) (string, bool) {
	if b.ForkOriginCommitID != "" {
		return b.ForkOriginCommitID, true
	}
	if b.ID == MainBranchID {
		return "", false
	}

	var (
		best     *Commit
		bestDist time.Duration
	)
	visited := make(map[string]bool)
	id := b.HeadCommitID
	for depth := 0; id != "" && depth < maxDepth; depth++ {
		if visited[id] {
			break
		}
		visited[id] = true
		c, ok := s.Commits[id]
		if !ok {
			break
		}
		dist := c.CreatedAt.Sub(b.CreatedAt)
		if dist < 0 {
			dist = -dist
		}
		if best == nil || dist < bestDist {
			best, bestDist = c, dist
		}
		id = c.ParentID
	}
	if best == nil || best.ParentID == "" {
		return "", false
	}
	return best.ParentID, true
}
