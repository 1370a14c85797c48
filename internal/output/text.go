package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dshills/scribe/internal/host"
	"github.com/dshills/scribe/internal/review"
	"github.com/dshills/scribe/internal/suggest"
	"github.com/dshills/scribe/internal/workflow"
)

// TextWriter outputs a human-readable text report.
type TextWriter struct{}

func (t *TextWriter) Write(w io.Writer, o *workflow.Outcome) error {
	ew := &errWriter{w: w}

	if o.Target.Owner != "" {
		ew.printf("Scribe - %s%s\n", targetLabel(o.Target), runLabel(o.RunID))
	} else {
		ew.printf("Scribe - local preview\n")
	}
	ew.println(strings.Repeat("─", 60))
	ew.printf("Files: %d analyzed, %d rewritten", o.Summary.Files, o.Summary.Rewritten)
	if o.Summary.Files > 0 {
		ew.printf(" | mean quality %.1f | lowest %.0f (%s)",
			o.Summary.MeanQuality, o.Summary.LowestQuality, o.Summary.LowestFilePath)
	}
	ew.println("")
	ew.println(strings.Repeat("─", 60))

	if len(o.Results) > 0 {
		ew.println("\nScores")
		for _, r := range o.Results {
			ew.printf("  %-40s %s%s\n", r.FilePath, scoreLine(r.Scores), rewriteMark(r))
		}
	}

	ew.printf("\nSuggestions: %d\n", len(o.Suggestions))
	for _, s := range o.Suggestions {
		ew.printf("  %s:%d  %s\n", s.FilePath, s.LineNumber, describeSuggestion(s))
		for _, line := range strings.Split(s.SuggestionText, "\n") {
			ew.printf("    + %s\n", line)
		}
	}

	if d := o.Delivery; d != nil {
		ew.printf("\nDelivery: %s (%d created, %d updated, %d skipped, %d dropped, %d failed)\n",
			d.State, d.Created, d.Updated, d.Skipped, d.Dropped, d.Failed)
		if d.PendingSubmitted > 0 {
			ew.printf("  submitted %d pending review(s) left by an earlier run\n", d.PendingSubmitted)
		}
	}

	if r := o.Rewrite; r != nil {
		switch {
		case r.Branch.Name == "":
			ew.println("\nRewrite: nothing to rewrite")
		case r.PullRequest != nil:
			ew.printf("\nRewrite: %s -> #%d %s (%d written, %d unchanged)\n",
				r.Branch.Name, r.PullRequest.Number, r.PullRequest.URL, r.FilesWritten, r.FilesUnchanged)
		default:
			ew.printf("\nRewrite: %s (%d written, no pull request)\n", r.Branch.Name, r.FilesWritten)
		}
	}

	if s := o.Sweep; s != nil {
		ew.printf("\nSweep: %d deleted, %d kept, %d failed\n", len(s.Deleted), s.Kept, s.Failed)
		for _, name := range s.Deleted {
			ew.printf("  - %s\n", name)
		}
	}

	if len(o.Errors) > 0 {
		ew.println("\nErrors")
		for _, e := range o.Errors {
			for i, line := range wrapText(e.Message, 70) {
				if i == 0 {
					ew.printf("  [%s] %s: %s\n", e.Step, e.Kind, line)
					continue
				}
				ew.printf("      %s\n", line)
			}
		}
	}

	return ew.err
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func targetLabel(t host.Target) string {
	if t.Number == 0 {
		return t.Owner + "/" + t.Repo
	}
	return t.String()
}

func runLabel(id string) string {
	if id == "" {
		return ""
	}
	return " (run " + id + ")"
}

func scoreLine(s review.Scores) string {
	return fmt.Sprintf("Q %3.0f  C %3.0f  G %3.0f  S %3.0f  T %3.0f",
		s.Quality, s.Clarity, s.Grammar, s.Consistency, s.Tone)
}

func rewriteMark(r review.AnalysisResult) string {
	if r.HasRewrite() {
		return "  rewritten"
	}
	return ""
}

func describeSuggestion(s suggest.CommitSuggestion) string {
	switch {
	case s.WholeFile:
		return "whole file"
	case s.Replaces.Count == 0:
		return fmt.Sprintf("insert after line %d", s.Replaces.Start)
	case s.Replaces.Count == 1:
		return fmt.Sprintf("replaces line %d", s.Replaces.Start)
	default:
		return fmt.Sprintf("replaces lines %d-%d", s.Replaces.Start, s.Replaces.Start+s.Replaces.Count-1)
	}
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	words := strings.Fields(text)
	var current strings.Builder
	for _, word := range words {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
