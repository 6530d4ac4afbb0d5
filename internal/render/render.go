// Package render turns graph scripts into drawings and binds the drawing's
// commit and branch selections back to a projection.
package render

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/systemshift/memex-workspace/internal/graph"
)

// Drawing is a rendered graph.
type Drawing struct {
	Lines   []string
	Commits map[string]int // commit label -> line index
	Lanes   map[string]int // branch identifier -> column
}

// Renderer draws a graph script. It may be slow or fail.
type Renderer interface {
	Render(ctx context.Context, script string) (*Drawing, error)
}

// Handlers receive the user's selections on a view.
type Handlers struct {
	SelectCommit func(commitID, message string)
	SwitchBranch func(branchID string)
}

// View is the result of showing a projection: either a drawing or, when the
// renderer failed, the raw script as a diagnostic fallback.
type View struct {
	Drawing  *Drawing
	Fallback string
	Err      error

	projection *graph.Projection
	handlers   Handlers
}

// Show renders p with r, giving up after timeout (no limit when zero).
// Renderer errors and panics never escape; they produce a fallback view.
func Show(ctx context.Context, r Renderer, p *graph.Projection, h Handlers, timeout time.Duration) *View {
	v := &View{projection: p, handlers: h}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		d   *Drawing
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- result{err: fmt.Errorf("renderer panic: %v", rec)}
			}
		}()
		d, err := r.Render(ctx, p.Script)
		done <- result{d: d, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil && res.d == nil {
			res.err = fmt.Errorf("renderer returned no drawing")
		}
		v.Drawing, v.Err = res.d, res.err
	case <-ctx.Done():
		v.Err = fmt.Errorf("render: %w", ctx.Err())
	}
	if v.Err != nil {
		v.Drawing = nil
		v.Fallback = p.Script
	}
	return v
}

// Text returns the drawing, or the fallback script.
func (v *View) Text() string {
	if v.Drawing == nil {
		return v.Fallback
	}
	return strings.Join(v.Drawing.Lines, "\n") + "\n"
}

// Hover returns the full commit message behind a label.
func (v *View) Hover(label string) (string, bool) {
	msg, ok := v.projection.Labels[label]
	return msg, ok
}

// SelectCommit dispatches a click on a commit label.
func (v *View) SelectCommit(label string) bool {
	id, ok := v.projection.LabelCommits[label]
	if !ok {
		return false
	}
	if v.handlers.SelectCommit != nil {
		v.handlers.SelectCommit(id, v.projection.Labels[label])
	}
	return true
}

// SwitchBranch dispatches a click on a branch identifier.
func (v *View) SwitchBranch(ident string) bool {
	ref, ok := v.projection.Branches[ident]
	if !ok {
		return false
	}
	if v.handlers.SwitchBranch != nil {
		v.handlers.SwitchBranch(ref.ID)
	}
	return true
}
