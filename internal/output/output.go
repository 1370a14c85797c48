package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dshills/scribe/internal/workflow"
)

// Writer renders an outcome in one format.
type Writer interface {
	Write(w io.Writer, outcome *workflow.Outcome) error
}

// GetWriter returns the writer for format. An empty format is text.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "text", "":
		return &TextWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	case "markdown", "md":
		return &MarkdownWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteReport renders outcome into the file at outPath. The report is
// written next to outPath and renamed over it, so readers never observe a
// partial report.
func WriteReport(outcome *workflow.Outcome, format, outPath string) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(outPath), "."+filepath.Base(outPath)+".*")
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	werr := writer.Write(tmp, outcome)
	if err := errors.Join(werr, tmp.Close()); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing report: %w", err)
	}
	if err := os.Rename(tmp.Name(), outPath); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// StepSummary appends the markdown report to the GitHub Actions job summary
// when GITHUB_STEP_SUMMARY is set. It reports whether a summary was written.
func StepSummary(outcome *workflow.Outcome) (bool, error) {
	path := os.Getenv("GITHUB_STEP_SUMMARY")
	if path == "" {
		return false, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("opening step summary: %w", err)
	}
	werr := (&MarkdownWriter{}).Write(f, outcome)
	if err := errors.Join(werr, f.Close()); err != nil {
		return false, fmt.Errorf("writing step summary: %w", err)
	}
	return true, nil
}
