package graph

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
)

// ErrBadScript is returned by ParseScript for text it cannot decode.
var ErrBadScript = errors.New("graph: bad script")

// Op is one graph-description instruction.
type Op int

const (
	StartGraph Op = iota
	AddCommit
	StartBranch
	SwitchTo
)

func (o Op) String() string {
	switch o {
	case StartGraph:
		return "start-graph"
	case AddCommit:
		return "add-commit"
	case StartBranch:
		return "start-branch"
	case SwitchTo:
		return "switch-to"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Instruction is an Op with its argument: a commit label for AddCommit, a
// branch identifier for StartBranch and SwitchTo.
type Instruction struct {
	Op  Op
	Arg string
}

func (in Instruction) String() string {
	if in.Op == StartGraph {
		return in.Op.String()
	}
	return fmt.Sprintf("%s(%s)", in.Op, in.Arg)
}

// FormatScript renders instructions in the gitGraph text dialect.
func FormatScript(ins []Instruction) string {
	var b strings.Builder
	for _, in := range ins {
		switch in.Op {
		case StartGraph:
			b.WriteString("gitGraph\n")
		case AddCommit:
			fmt.Fprintf(&b, "  commit id: \"%s\"\n", in.Arg)
		case StartBranch:
			fmt.Fprintf(&b, "  branch %s\n", in.Arg)
		case SwitchTo:
			fmt.Fprintf(&b, "  checkout %s\n", in.Arg)
		}
	}
	return b.String()
}

// ParseScript decodes gitGraph text produced by FormatScript.
func ParseScript(text string) ([]Instruction, error) {
	var ins []Instruction
	sc := bufio.NewScanner(strings.NewReader(text))
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		switch {
		case s == "":
			continue
		case s == "gitGraph":
			ins = append(ins, Instruction{Op: StartGraph})
		case strings.HasPrefix(s, "commit id: "):
			arg := strings.TrimPrefix(s, "commit id: ")
			if len(arg) < 2 || arg[0] != '"' || arg[len(arg)-1] != '"' {
				return nil, fmt.Errorf("%w: line %d: unquoted commit id", ErrBadScript, line)
			}
			ins = append(ins, Instruction{Op: AddCommit, Arg: arg[1 : len(arg)-1]})
		case strings.HasPrefix(s, "branch "):
			ins = append(ins, Instruction{Op: StartBranch, Arg: strings.TrimSpace(s[len("branch "):])})
		case strings.HasPrefix(s, "checkout "):
			ins = append(ins, Instruction{Op: SwitchTo, Arg: strings.TrimSpace(s[len("checkout "):])})
		default:
			return nil, fmt.Errorf("%w: line %d: %q", ErrBadScript, line, s)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(ins) == 0 || ins[0].Op != StartGraph {
		return nil, fmt.Errorf("%w: missing gitGraph header", ErrBadScript)
	}
	return ins, nil
}
