package graph

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	maxLabelRunes = 32
	ellipsis      = "..."
	mainIdent     = "main"
)

// labeler hands out short, unique commit labels.
type labeler struct {
	used map[string]bool
}

func newLabeler() *labeler {
	return &labeler{used: make(map[string]bool)}
}

// shortLabel flattens whitespace, drops quotes the script cannot carry, and
// truncates to maxLabelRunes.
func shortLabel(message string) string {
	s := strings.Join(strings.Fields(message), " ")
	s = strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' {
			return '\''
		}
		return r
	}, s)
	if s == "" {
		s = "commit"
	}
	if utf8.RuneCountInString(s) > maxLabelRunes {
		runes := []rune(s)
		s = strings.TrimSpace(string(runes[:maxLabelRunes-len(ellipsis)])) + ellipsis
	}
	return s
}

// next returns "X", then "X (2)", "X (3)", ... for repeated messages.
func (l *labeler) next(message string) string {
	base := shortLabel(message)
	label := base
	for n := 2; l.used[label]; n++ {
		label = fmt.Sprintf("%s (%d)", base, n)
	}
	l.used[label] = true
	return label
}

// identAllocator hands out branch identifiers safe for the script: lowercase
// letters, digits, '_' and '-'. main is always reserved.
type identAllocator struct {
	used map[string]bool
}

func newIdentAllocator() *identAllocator {
	return &identAllocator{used: map[string]bool{mainIdent: true}}
}

// sanitizeIdent lowercases name and collapses every run of other characters
// into a single '_', trimming them from both ends.
func sanitizeIdent(name string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	s := b.String()
	if s == "" {
		s = "branch"
	}
	return s
}

func (a *identAllocator) next(name string) string {
	base := sanitizeIdent(name)
	ident := base
	for n := 2; a.used[ident]; n++ {
		ident = fmt.Sprintf("%s_%d", base, n)
	}
	a.used[ident] = true
	return ident
}
