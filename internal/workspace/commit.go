package workspace

import "time"

const (
	// Version is the only workspace document version this package reads or writes.
	Version = 1

	// MainBranchID is the reserved, permanent branch.
	MainBranchID = "main"

	initialMessage    = "Initial"
	checkpointMessage = "Checkpoint"
)

// Snapshot is the committed form of the live overlay: the two JSON documents
// a user edits, captured verbatim.
type Snapshot struct {
	Decisions   map[string]any `json:"decisions"`
	Evaluations map[string]any `json:"evaluations"`
}

// EmptySnapshot returns a snapshot with both documents present but empty.
func EmptySnapshot() Snapshot {
	return Snapshot{
		Decisions:   map[string]any{},
		Evaluations: map[string]any{},
	}
}

// Commit is an immutable record of a snapshot and its parent.
// Commits are shared by pointer between state clones and must never be mutated.
type Commit struct {
	ID        string    `json:"id"`
	ParentID  string    `json:"parentId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Message   string    `json:"message"`
	Snapshot  Snapshot  `json:"snapshot"`
}

// Branch is a named, mutable pointer to a head commit.
type Branch struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	HeadCommitID       string    `json:"headCommitId"`
	CreatedAt          time.Time `json:"createdAt"`
	ForkOriginCommitID string    `json:"forkOriginCommitId,omitempty"`
	ForkOriginBranchID string    `json:"forkOriginBranchId,omitempty"`
}

// ForkOrigin is the provenance recorded when a branch is forked.
type ForkOrigin struct {
	CommitID string
	BranchID string
}
