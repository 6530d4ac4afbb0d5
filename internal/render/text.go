package render

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/systemshift/memex-workspace/internal/graph"
)

type glyphSet struct {
	commit, lane, fork, blank string
}

var (
	glyphsOnce sync.Once
	glyphs     glyphSet
)

// initGlyphs runs once per process, however many renderers exist.
func initGlyphs(ascii bool) {
	glyphsOnce.Do(func() {
		if ascii {
			glyphs = glyphSet{commit: "*", lane: "|", fork: "\\", blank: " "}
			return
		}
		glyphs = glyphSet{commit: "●", lane: "│", fork: "╮", blank: " "}
	})
}

// TextRenderer draws one column per branch, one line per commit.
type TextRenderer struct {
	// Unicode selects box-drawing glyphs. Only the first renderer to draw
	// in a process decides.
	Unicode bool
}

// Render implements Renderer.
func (t *TextRenderer) Render(ctx context.Context, script string) (*Drawing, error) {
	initGlyphs(!t.Unicode)
	ins, err := graph.ParseScript(script)
	if err != nil {
		return nil, err
	}

	d := &Drawing{
		Commits: make(map[string]int),
		Lanes:   map[string]int{"main": 0},
	}
	current := 0
	row := func(mark int, glyph, text string) {
		cols := make([]string, len(d.Lanes))
		for i := range cols {
			cols[i] = glyphs.lane
		}
		if mark >= 0 {
			cols[mark] = glyph
		}
		d.Lines = append(d.Lines, strings.Join(cols, " ")+text)
	}

	for _, in := range ins {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch in.Op {
		case graph.StartGraph:
		case graph.AddCommit:
			d.Commits[in.Arg] = len(d.Lines)
			row(current, glyphs.commit, "  "+in.Arg)
		case graph.StartBranch:
			if _, ok := d.Lanes[in.Arg]; ok {
				return nil, fmt.Errorf("render: branch %q started twice", in.Arg)
			}
			d.Lanes[in.Arg] = len(d.Lanes)
			current = d.Lanes[in.Arg]
			row(current, glyphs.fork, "  ("+in.Arg+")")
		case graph.SwitchTo:
			lane, ok := d.Lanes[in.Arg]
			if !ok {
				return nil, fmt.Errorf("render: switch to unknown branch %q", in.Arg)
			}
			current = lane
		}
	}
	return d, nil
}
