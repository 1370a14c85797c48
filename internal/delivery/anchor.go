package delivery

import (
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/dshills/scribe/internal/host"
	"github.com/dshills/scribe/internal/suggest"
	"github.com/dshills/scribe/internal/textdiff"
)

// Anchor is where a comment sits on the pull request head.
type Anchor struct {
	Path string
	Line int
}

// placement is a suggestion resolved to host coordinates.
type placement struct {
	Anchor
	StartLine int
	Text      string
	WholeFile bool
}

// place maps a suggestion onto the original lines it replaces. A pure
// insertion is widened to include a neighbouring original line so it can
// be expressed as a replacement. ok is false when no original line exists.
func place(s suggest.CommitSuggestion) (placement, bool) {
	orig := textdiff.SplitLines(s.OriginalContent)
	line := func(n int) string { return strings.TrimSuffix(orig[n-1], "\n") }

	p := placement{Anchor: Anchor{Path: s.FilePath}, WholeFile: s.WholeFile}
	r := s.Replaces
	switch {
	case r.Count > 0:
		if r.Start < 1 || r.Start+r.Count-1 > len(orig) {
			return p, false
		}
		p.StartLine, p.Line, p.Text = r.Start, r.Start+r.Count-1, s.SuggestionText
	case r.Start >= 1 && r.Start <= len(orig):
		p.StartLine, p.Line = r.Start, r.Start
		p.Text = line(r.Start) + "\n" + s.SuggestionText
	case r.Start == 0 && len(orig) > 0:
		p.StartLine, p.Line = 1, 1
		p.Text = s.SuggestionText + "\n" + line(1)
	default:
		return p, false
	}
	return p, true
}

// patchIndex records, per file, the head-side line ranges covered by the
// pull request's patch.
type patchIndex map[string][][2]int

func newPatchIndex(files []host.PullRequestFile) (patchIndex, error) {
	idx := patchIndex{}
	for _, f := range files {
		if f.Patch == "" || f.Status == "removed" {
			continue
		}
		header := "diff --git a/" + f.Filename + " b/" + f.Filename + "\n--- a/" + f.Filename + "\n+++ b/" + f.Filename + "\n"
		parsed, _, err := gitdiff.Parse(strings.NewReader(header + strings.TrimSuffix(f.Patch, "\n") + "\n"))
		if err != nil {
			return nil, err
		}
		for _, pf := range parsed {
			for _, frag := range pf.TextFragments {
				if frag.NewLines == 0 {
					continue
				}
				start := int(frag.NewPosition)
				idx[f.Filename] = append(idx[f.Filename], [2]int{start, start + int(frag.NewLines) - 1})
			}
		}
	}
	return idx, nil
}

// commentable reports whether start..end lies within one hunk of path.
func (idx patchIndex) commentable(path string, start, end int) bool {
	for _, r := range idx[path] {
		if r[0] <= start && end <= r[1] {
			return true
		}
	}
	return false
}
