package textdiff

import (
	"strings"

	"github.com/aymanbagabas/go-udiff"
	"github.com/pmezard/go-difflib/difflib"
)

// LineKind is the role of a line within a hunk.
type LineKind int

const (
	Context LineKind = iota
	Added
	Removed
)

func (k LineKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "context"
	}
}

// Line is a single line of a hunk. Text excludes the line terminator;
// NoNewline marks a final line that had none.
type Line struct {
	Kind      LineKind
	Text      string
	NoNewline bool
}

// Hunk is a contiguous block of the diff. Starts are 1-based.
type Hunk struct {
	OriginalStart   int
	OriginalLength  int
	RewrittenStart  int
	RewrittenLength int
	Lines           []Line
}

// HasChanges reports whether the hunk holds any added or removed line.
func (h Hunk) HasChanges() bool {
	for _, l := range h.Lines {
		if l.Kind != Context {
			return true
		}
	}
	return false
}

// Counts returns the number of added and removed lines in the hunk.
func (h Hunk) Counts() (added, removed int) {
	for _, l := range h.Lines {
		switch l.Kind {
		case Added:
			added++
		case Removed:
			removed++
		}
	}
	return added, removed
}

// Correlate diffs original against rewritten line by line.
func Correlate(original, rewritten string) []Hunk {
	a := SplitLines(original)
	b := SplitLines(rewritten)

	m := difflib.NewMatcherWithJunk(a, b, false, nil)
	ops := m.GetOpCodes()

	hunks := make([]Hunk, 0, len(ops))
	for _, op := range ops {
		h := Hunk{
			OriginalStart:   op.I1 + 1,
			OriginalLength:  op.I2 - op.I1,
			RewrittenStart:  op.J1 + 1,
			RewrittenLength: op.J2 - op.J1,
		}
		switch op.Tag {
		case 'e':
			h.Lines = appendLines(h.Lines, Context, a[op.I1:op.I2])
		case 'd':
			h.Lines = appendLines(h.Lines, Removed, a[op.I1:op.I2])
		case 'i':
			h.Lines = appendLines(h.Lines, Added, b[op.J1:op.J2])
		case 'r':
			h.Lines = appendLines(h.Lines, Removed, a[op.I1:op.I2])
			h.Lines = appendLines(h.Lines, Added, b[op.J1:op.J2])
		}
		if len(h.Lines) > 0 {
			hunks = append(hunks, h)
		}
	}
	return hunks
}

// SplitLines splits s after every "\n". A final line without terminator is
// kept as its own element; an empty string yields no lines.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func appendLines(dst []Line, kind LineKind, raw []string) []Line {
	for _, r := range raw {
		text := strings.TrimSuffix(r, "\n")
		dst = append(dst, Line{
			Kind:      kind,
			Text:      text,
			NoNewline: len(text) == len(r),
		})
	}
	return dst
}

// Unified renders a unified patch between original and rewritten, labelled
// a/path and b/path. Identical inputs render as "".
func Unified(path, original, rewritten string) string {
	return udiff.Unified("a/"+path, "b/"+path, original, rewritten)
}
