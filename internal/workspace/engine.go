package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/systemshift/memex-workspace/internal/bus"
	"github.com/systemshift/memex-workspace/internal/kv"
)

// Storage is the key/value substrate the workspace document is persisted in.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// Overlay is the live, editable working set a workspace commits from and
// checks out into.
type Overlay interface {
	Read(ctx context.Context) (Snapshot, error)
	Write(ctx context.Context, snap Snapshot) error
}

// Publisher emits change notifications.
type Publisher interface {
	Publish(ev bus.Event)
}

// Subscriber delivers change notifications for a topic until cancelled.
type Subscriber interface {
	Subscribe(topic string, fn func(bus.Event)) (cancel func())
}

// Options configures an Engine.
type Options struct {
	Tab     string // topic and key scope; defaults to "default"
	Key     string // document key; defaults to kv.WorkspaceKey(Tab)
	Storage Storage
	Overlay Overlay
	Bus     Publisher // optional
	Logger  *slog.Logger
	Now     func() time.Time
}

// Engine owns one workspace and applies every operation on it as a single
// state transform followed by one persistence write.
type Engine struct {
	tab     string
	key     string
	storage Storage
	overlay Overlay
	bus     Publisher
	log     *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	state *State
	live  Snapshot
	seen  *bus.Dedup
}

// Open loads the workspace document for opts.Tab, bootstrapping a fresh
// workspace when the document is missing or malformed, and reads the live
// overlay.
func Open(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Storage == nil || opts.Overlay == nil {
		return nil, errors.New("workspace: storage and overlay are required")
	}
	e := &Engine{
		tab:     opts.Tab,
		key:     opts.Key,
		storage: opts.Storage,
		overlay: opts.Overlay,
		bus:     opts.Bus,
		log:     opts.Logger,
		now:     opts.Now,
		seen:    bus.NewDedup(256),
	}
	if e.tab == "" {
		e.tab = "default"
	}
	if e.key == "" {
		e.key = kv.WorkspaceKey(e.tab)
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}

	e.mu.Lock()
	s, err := e.load(ctx)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.state = s
	e.mu.Unlock()

	if err := e.Refresh(ctx); err != nil {
		e.mu.Lock()
		e.live = EmptySnapshot()
		e.mu.Unlock()
	}
	return e, nil
}

// load reads the persisted document. A missing or undecodable document is
// replaced by a fresh bootstrap state, which is written back. Any other read
// failure is returned and leaves the stored document alone.
func (e *Engine) load(ctx context.Context) (*State, error) {
	data, err := e.storage.Get(ctx, e.key)
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("load workspace %s: %w", e.key, err)
	default:
		s, derr := Decode(data)
		if derr == nil {
			return s, nil
		}
		e.log.Warn("workspace: bootstrapping over malformed document", "tab", e.tab, "key", e.key, "err", derr)
	}
	s := Bootstrap(e.now())
	e.state = s
	e.persistLocked(ctx)
	return s, nil
}

// Reload re-reads the persisted document, picking up writes made by other
// processes, and refreshes the live overlay. A missing or malformed document
// keeps the state already held.
func (e *Engine) Reload(ctx context.Context) error {
	e.mu.Lock()
	data, err := e.storage.Get(ctx, e.key)
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		e.mu.Unlock()
		return fmt.Errorf("reload workspace %s: %w", e.key, err)
	default:
		if s, derr := Decode(data); derr == nil {
			e.state = s
		} else {
			e.log.Warn("workspace: ignoring malformed document on reload", "tab", e.tab, "key", e.key, "err", derr)
		}
	}
	e.mu.Unlock()
	return e.Refresh(ctx)
}

// persistLocked writes the whole state. Failures are logged and never undo
// the operation that triggered the write.
func (e *Engine) persistLocked(ctx context.Context) {
	data, err := e.state.Encode()
	if err != nil {
		e.log.Warn("workspace: persist failed", "tab", e.tab, "err", err)
		return
	}
	if err := e.storage.Put(ctx, e.key, data); err != nil {
		e.log.Warn("workspace: persist failed", "tab", e.tab, "key", e.key, "err", err)
	}
}

func (e *Engine) notifyReload() {
	if e.bus == nil {
		return
	}
	e.bus.Publish(bus.NewEvent(e.tab, bus.Reload))
}

// copySnapshot detaches a snapshot from any maps the caller still holds.
func copySnapshot(snap Snapshot) Snapshot {
	snap = normalize(snap)
	data, err := json.Marshal(snap)
	if err != nil {
		return snap
	}
	var out Snapshot
	if err := DecodeJSON(data, &out); err != nil {
		return snap
	}
	return normalize(out)
}

func headSnapshot(s *State, branchID string) Snapshot {
	if c := s.Head(branchID); c != nil {
		return copySnapshot(c.Snapshot)
	}
	return EmptySnapshot()
}

// Tab returns the tab this engine is scoped to.
func (e *Engine) Tab() string {
	return e.tab
}

// State returns a copy of the current workspace state.
func (e *Engine) State() *State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// CurrentBranch returns the checked-out branch.
func (e *Engine) CurrentBranch() Branch {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Current()
}

// Live returns the most recently read overlay snapshot.
func (e *Engine) Live() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copySnapshot(e.live)
}

// IsDirty reports whether snap differs from the current branch's head.
func (e *Engine) IsDirty(snap Snapshot) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isDirtyLocked(snap)
}

// Dirty reports whether the live overlay differs from the current head.
func (e *Engine) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isDirtyLocked(e.live)
}

func (e *Engine) isDirtyLocked(snap Snapshot) bool {
	head := e.state.Head(e.state.CurrentBranchID)
	if head == nil {
		return true
	}
	return !SnapshotsEqual(snap, head.Snapshot)
}

// Refresh re-reads the overlay into the cached live snapshot.
func (e *Engine) Refresh(ctx context.Context) error {
	snap, err := e.overlay.Read(ctx)
	if err != nil {
		e.log.Warn("workspace: overlay read failed", "tab", e.tab, "err", err)
		return fmt.Errorf("read overlay: %w", err)
	}
	e.mu.Lock()
	e.live = copySnapshot(snap)
	e.mu.Unlock()
	return nil
}

// Attach subscribes the engine to overlay notifications for its tab. Every
// distinct overlay-changed or reload event triggers a synchronous Refresh;
// redelivered events are ignored.
func (e *Engine) Attach(sub Subscriber) (cancel func()) {
	return sub.Subscribe(e.tab, func(ev bus.Event) {
		if ev.Kind != bus.OverlayChanged && ev.Kind != bus.Reload {
			return
		}
		if e.seen.Seen(ev.ID) {
			return
		}
		_ = e.Refresh(context.Background())
	})
}

// CommitToCurrent records snap on the current branch. It is a no-op when
// snap equals the current head; the returned bool reports whether a commit
// was made.
func (e *Engine) CommitToCurrent(ctx context.Context, snap Snapshot, message string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isDirtyLocked(snap) {
		return "", false
	}
	if strings.TrimSpace(message) == "" {
		message = checkpointMessage
	}

	next := e.state.Clone()
	cur := next.Current()
	id := next.AddCommit(cur.HeadCommitID, message, copySnapshot(snap), e.now())
	cur.HeadCommitID = id
	next.Branches[cur.ID] = cur

	e.state = next
	e.persistLocked(ctx)
	return id, true
}

// ForkAndCommit creates a branch off the current head whose first commit
// records snap, then switches to it. It is a no-op when name is blank or snap
// equals the current head. An overlay write failure leaves the workspace
// unchanged.
func (e *Engine) ForkAndCommit(ctx context.Context, name string, snap Snapshot, message string) (string, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false, nil
	}

	e.mu.Lock()
	if !e.isDirtyLocked(snap) {
		e.mu.Unlock()
		return "", false, nil
	}
	if strings.TrimSpace(message) == "" {
		message = "Work on " + name
	}

	now := e.now()
	snap = copySnapshot(snap)
	next := e.state.Clone()
	cur := next.Current()
	commitID := next.AddCommit(cur.HeadCommitID, message, snap, now)
	branchID := next.AddBranch(name, commitID, ForkOrigin{CommitID: cur.HeadCommitID, BranchID: cur.ID}, now)
	next.CurrentBranchID = branchID

	if err := e.overlay.Write(ctx, snap); err != nil {
		e.mu.Unlock()
		return "", false, fmt.Errorf("write overlay: %w", err)
	}
	e.state = next
	e.live = copySnapshot(snap)
	e.persistLocked(ctx)
	e.mu.Unlock()

	e.notifyReload()
	return branchID, true, nil
}

// Checkout loads a branch's head into the overlay and makes it current.
// ref may be a branch id or name; an unknown branch is a no-op.
func (e *Engine) Checkout(ctx context.Context, ref string) (bool, error) {
	e.mu.Lock()
	b, ok := e.state.FindBranch(ref)
	if !ok {
		e.mu.Unlock()
		return false, nil
	}

	snap := headSnapshot(e.state, b.ID)
	if err := e.overlay.Write(ctx, snap); err != nil {
		e.mu.Unlock()
		return false, fmt.Errorf("write overlay: %w", err)
	}
	next := e.state.Clone()
	next.CurrentBranchID = b.ID

	e.state = next
	e.live = snap
	e.persistLocked(ctx)
	e.mu.Unlock()

	e.notifyReload()
	return true, nil
}

// DeleteBranch removes a branch, prunes commits no other branch reaches, and
// checks out the branch it was forked from (main if that is gone). main can
// never be deleted; unknown branches are a no-op.
func (e *Engine) DeleteBranch(ctx context.Context, ref string) (bool, error) {
	e.mu.Lock()
	b, ok := e.state.FindBranch(ref)
	if !ok || b.ID == MainBranchID {
		e.mu.Unlock()
		return false, nil
	}

	fallback := MainBranchID
	if origin := b.ForkOriginBranchID; origin != "" && origin != b.ID {
		if _, exists := e.state.Branches[origin]; exists {
			fallback = origin
		}
	}

	next := e.state.Clone()
	delete(next.Branches, b.ID)
	next = Prune(next)
	next.CurrentBranchID = fallback

	snap := headSnapshot(next, fallback)
	if err := e.overlay.Write(ctx, snap); err != nil {
		e.mu.Unlock()
		return false, fmt.Errorf("write overlay: %w", err)
	}
	e.state = next
	e.live = snap
	e.persistLocked(ctx)
	e.mu.Unlock()

	e.notifyReload()
	return true, nil
}

// Compact prunes unreachable commits and persists the result if anything
// was removed. It returns the number of commits removed.
func (e *Engine) Compact(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := Prune(e.state)
	removed := len(e.state.Commits) - len(next.Commits)
	if removed == 0 {
		return 0, nil
	}
	e.state = next
	e.persistLocked(ctx)
	return removed, nil
}

// Log returns up to n commits of a branch, newest first.
func (e *Engine) Log(ref string, n int) []*Commit {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.state.FindBranch(ref)
	if !ok {
		return nil
	}
	return Log(e.state, b.HeadCommitID, n)
}

// ForkOrigin returns the commit a branch was forked from, recovering it
// heuristically for branches that never recorded one.
func (e *Engine) ForkOrigin(ref string, maxDepth int) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.state.FindBranch(ref)
	if !ok {
		return "", false
	}
	return ResolveForkOrigin(e.state, b, maxDepth)
}
