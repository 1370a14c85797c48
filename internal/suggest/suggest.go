package suggest

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/dshills/scribe/internal/review"
	"github.com/dshills/scribe/internal/textdiff"
)

// LineRange is an inclusive 1-based span of lines. Count is zero for a pure
// insertion, in which case Start is the line the insertion follows.
type LineRange struct {
	Start int `json:"start"`
	Count int `json:"count"`
}

// CommitSuggestion is one proposed replacement for a file.
type CommitSuggestion struct {
	FilePath         string    `json:"filePath"`
	OriginalContent  string    `json:"-"`
	RewrittenContent string    `json:"-"`
	Diff             string    `json:"diff,omitempty"`
	LineNumber       int       `json:"lineNumber"`
	SuggestionText   string    `json:"suggestionText"`
	Replaces         LineRange `json:"replaces"`
	WholeFile        bool      `json:"wholeFile,omitempty"`
}

// Synthesizer builds suggestions from document pairs.
type Synthesizer struct {
	log zerolog.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithLogger sets the logger used for skipped-hunk warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Synthesizer) { s.log = l }
}

// New creates a Synthesizer.
func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize returns the suggestions for one file, in document order.
func (s *Synthesizer) Synthesize(path, original, rewritten string) []CommitSuggestion {
	if strings.TrimSpace(original) == strings.TrimSpace(rewritten) {
		return nil
	}
	out := s.fromHunks(path, original, rewritten, textdiff.Correlate(original, rewritten))
	if len(out) == 0 {
		return out
	}
	patch := textdiff.Unified(path, original, rewritten)
	for i := range out {
		out[i].Diff = patch
	}
	return out
}

// SynthesizeAll runs Synthesize over every result, skipping results without
// a rewrite.
func (s *Synthesizer) SynthesizeAll(results []review.AnalysisResult) []CommitSuggestion {
	var out []CommitSuggestion
	for _, r := range results {
		if !r.HasRewrite() {
			continue
		}
		out = append(out, s.Synthesize(r.FilePath, r.OriginalContent, r.RewrittenContent)...)
	}
	return out
}

func (s *Synthesizer) fromHunks(path, original, rewritten string, hunks []textdiff.Hunk) []CommitSuggestion {
	var (
		out     []CommitSuggestion
		line    int // current line in the rewritten document
		changed bool
	)

	for _, h := range hunks {
		if !h.HasChanges() {
			line += len(h.Lines)
			continue
		}
		changed = true

		var (
			run      []string
			runStart int
			removed  int
		)
		origLine := h.OriginalStart
		flush := func() {
			if len(run) == 0 {
				return
			}
			out = append(out, CommitSuggestion{
				FilePath:         path,
				OriginalContent:  original,
				RewrittenContent: rewritten,
				LineNumber:       runStart,
				SuggestionText:   strings.Join(run, "\n"),
				Replaces:         replacedRange(origLine, removed),
			})
			run = nil
		}

		for _, l := range h.Lines {
			switch l.Kind {
			case textdiff.Context:
				flush()
				line++
			case textdiff.Removed:
				flush()
				removed++
			case textdiff.Added:
				line++
				if len(run) == 0 {
					runStart = line
				}
				run = append(run, l.Text)
			}
		}
		flush()

		if added, rem := h.Counts(); added == 0 {
			s.log.Warn().
				Str("path", path).
				Int("line", h.OriginalStart).
				Int("removed", rem).
				Msg("skipping remove-only hunk: it cannot be expressed as a line suggestion")
		}
	}

	if !changed && len(out) == 0 {
		// Trimmed texts differ but no line changed: anchor the whole rewrite.
		out = append(out, CommitSuggestion{
			FilePath:         path,
			OriginalContent:  original,
			RewrittenContent: rewritten,
			LineNumber:       1,
			SuggestionText:   strings.TrimSuffix(rewritten, "\n"),
			Replaces:         LineRange{Start: 1, Count: len(textdiff.SplitLines(original))},
			WholeFile:        true,
		})
	}
	return out
}

func replacedRange(start, removed int) LineRange {
	if removed == 0 {
		return LineRange{Start: start - 1, Count: 0}
	}
	return LineRange{Start: start, Count: removed}
}
