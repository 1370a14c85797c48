package output

import (
	"io"
	"strings"

	"github.com/dshills/scribe/internal/workflow"
)

// MarkdownWriter outputs a PR-comment-friendly markdown report.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, o *workflow.Outcome) error {
	ew := &errWriter{w: w}

	if o.Target.Owner != "" {
		ew.printf("## Scribe - %s\n\n", targetLabel(o.Target))
	} else {
		ew.printf("## Scribe\n\n")
	}

	if len(o.Results) == 0 && len(o.Suggestions) == 0 && o.Sweep == nil {
		ew.println("No documents analyzed.")
		return ew.err
	}

	if len(o.Results) > 0 {
		writeScoreTable(ew, o)
	}
	writeSuggestions(ew, o)
	writeSteps(ew, o)
	return ew.err
}

func writeScoreTable(ew *errWriter, o *workflow.Outcome) {
	ew.println("| File | Quality | Clarity | Grammar | Consistency | Tone | Rewritten |")
	ew.println("|------|---------|---------|---------|-------------|------|-----------|")
	for _, r := range o.Results {
		rewritten := ""
		if r.HasRewrite() {
			rewritten = ":pencil2:"
		}
		ew.printf("| `%s` | %.0f | %.0f | %.0f | %.0f | %.0f | %s |\n",
			mdEscape(r.FilePath), r.Scores.Quality, r.Scores.Clarity, r.Scores.Grammar,
			r.Scores.Consistency, r.Scores.Tone, rewritten)
	}
	ew.printf("\n**Mean quality:** %.1f  \n**Suggestions:** %d\n\n", o.Summary.MeanQuality, len(o.Suggestions))
}

func writeSuggestions(ew *errWriter, o *workflow.Outcome) {
	if len(o.Suggestions) > 0 {
		ew.printf("<details>\n<summary>Suggestions (%d)</summary>\n\n", len(o.Suggestions))
		for _, s := range o.Suggestions {
			ew.printf("**`%s:%d`** %s\n\n", s.FilePath, s.LineNumber, describeSuggestion(s))
			fence := "```"
			for strings.Contains(s.SuggestionText, fence) {
				fence += "`"
			}
			ew.printf("%s\n%s\n%s\n\n", fence, s.SuggestionText, fence)
		}
		ew.println("</details>\n")
	}
}

func writeSteps(ew *errWriter, o *workflow.Outcome) {
	if d := o.Delivery; d != nil {
		ew.printf("- **Inline suggestions:** %s (%d created, %d updated, %d skipped, %d dropped)\n",
			d.State, d.Created, d.Updated, d.Skipped, d.Dropped)
	}
	if r := o.Rewrite; r != nil && r.PullRequest != nil {
		ew.printf("- **Rewrite:** [#%d](%s) on `%s`\n", r.PullRequest.Number, r.PullRequest.URL, r.Branch.Name)
	}
	if s := o.Sweep; s != nil && len(s.Deleted) > 0 {
		ew.printf("- **Sweep:** deleted %d stale rewrite branch(es)\n", len(s.Deleted))
	}
	for _, e := range o.Errors {
		ew.printf("- :warning: **%s** (%s): %s\n", e.Step, e.Kind, e.Message)
	}
}

func mdEscape(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
