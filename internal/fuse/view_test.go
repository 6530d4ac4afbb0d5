package fuse

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systemshift/memex-workspace/internal/kv"
	"github.com/systemshift/memex-workspace/internal/overlay"
	"github.com/systemshift/memex-workspace/internal/workspace"
)

type fixedSource struct {
	s *workspace.State
}

func (f fixedSource) Reload(context.Context) error { return nil }

func (f fixedSource) State() *workspace.State { return f.s.Clone() }

func newView(t *testing.T) (*view, *workspace.State, string) {
	t.Helper()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	s := workspace.Bootstrap(now)
	root := s.Branches[workspace.MainBranchID].HeadCommitID
	c1 := s.AddCommit(root, "c1", workspace.EmptySnapshot(), now.Add(time.Minute))
	feat := s.AddBranch("feat", c1, workspace.ForkOrigin{CommitID: root, BranchID: workspace.MainBranchID}, now.Add(time.Minute))
	s.CurrentBranchID = feat
	return &view{src: fixedSource{s}}, s, feat
}

func TestView_GraphAndCurrent(t *testing.T) {
	v, _, feat := newView(t)

	assert.True(t, strings.HasPrefix(string(v.graph()), "gitGraph\n"))
	assert.Contains(t, string(v.graph()), "branch feat")
	assert.Equal(t, feat+"\n", string(v.current()))
}

func TestView_Branches(t *testing.T) {
	v, _, feat := newView(t)

	assert.Equal(t, []string{workspace.MainBranchID, feat}, v.branchIDs())

	data, ok := v.branch(feat)
	require.True(t, ok)
	var info map[string]any
	require.NoError(t, json.Unmarshal(data, &info))
	assert.Equal(t, "feat", info["name"])
	assert.Equal(t, true, info["current"])
	assert.NotContains(t, info, "forkOriginGuessed")

	_, ok = v.branch("missing")
	assert.False(t, ok)
}

func TestView_LegacyBranchOriginIsMarkedGuessed(t *testing.T) {
	v, s, _ := newView(t)
	root := s.Branches[workspace.MainBranchID].HeadCommitID
	c := s.AddCommit(root, "x", workspace.EmptySnapshot(), time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	legacy := s.AddBranch("legacy", c, workspace.ForkOrigin{}, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))

	data, ok := v.branch(legacy)
	require.True(t, ok)
	var info map[string]any
	require.NoError(t, json.Unmarshal(data, &info))
	assert.Equal(t, root, info["forkOrigin"])
	assert.Equal(t, true, info["forkOriginGuessed"])
}

func TestView_Log(t *testing.T) {
	v, s, feat := newView(t)
	head := s.Branches[feat].HeadCommitID

	assert.Equal(t, head+"\n", string(v.head()))

	data, ok := v.logEntry("0")
	require.True(t, ok)
	var c workspace.Commit
	require.NoError(t, json.Unmarshal(data, &c))
	assert.Equal(t, "c1", c.Message)

	data, ok = v.logEntry("1")
	require.True(t, ok)
	require.NoError(t, json.Unmarshal(data, &c))
	assert.Equal(t, "Initial", c.Message)

	for _, name := range []string{"2", "-1", "HEAD", "64", "x"} {
		_, ok := v.logEntry(name)
		assert.False(t, ok, name)
	}
}

func openEngine(t *testing.T, store kv.Store) *workspace.Engine {
	t.Helper()
	e, err := workspace.Open(context.Background(), workspace.Options{
		Tab:     "t",
		Storage: store,
		Overlay: overlay.New(store, "t", nil),
	})
	require.NoError(t, err)
	return e
}

func TestView_SeesWritesFromAnotherEngine(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemStore()
	mounted := openEngine(t, store)
	v := &view{src: mounted}
	require.Len(t, v.history(maxLogEntries), 1)

	writer := openEngine(t, store)
	snap := workspace.Snapshot{Decisions: map[string]any{"db": "postgres"}}
	id, ok := writer.CommitToCurrent(ctx, snap, "pick db")
	require.True(t, ok)
	feat, ok, err := writer.ForkAndCommit(ctx, "feat", workspace.Snapshot{Decisions: map[string]any{"db": "mysql"}}, "")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, feat+"\n", string(v.current()))
	commits := v.history(maxLogEntries)
	require.Len(t, commits, 3)
	assert.Equal(t, id, commits[1].ID)
	assert.Contains(t, v.branchIDs(), feat)
	assert.Contains(t, string(v.graph()), "branch feat")
}
