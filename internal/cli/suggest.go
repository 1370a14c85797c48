package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/scribe/internal/suggest"
	"github.com/dshills/scribe/internal/workflow"
)

var flagSuggestPath string

var suggestCmd = &cobra.Command{
	Use:   "suggest <original> <rewritten>",
	Short: "Preview the inline suggestions for a rewritten file",
	Long: "Compare a document with its rewrite locally and print the suggestions " +
		"scribe would post, without contacting GitHub or an LLM provider.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			fail(err)
			return nil
		}
		log := newLogger(os.Stderr, cfg.LogLevel)

		original, err := os.ReadFile(args[0])
		if err != nil {
			fail(usagef("reading original: %v", err))
			return nil
		}
		rewritten, err := os.ReadFile(args[1])
		if err != nil {
			fail(usagef("reading rewrite: %v", err))
			return nil
		}
		path := flagSuggestPath
		if path == "" {
			path = args[0]
		}

		synth := suggest.New(suggest.WithLogger(log))
		outcome := workflow.Outcome{
			Suggestions: synth.Synthesize(path, string(original), string(rewritten)),
		}
		if err := writeOutcome(cmd, &outcome, cfg.Format); err != nil {
			fail(fmt.Errorf("writing output: %w", err))
		}
		return nil
	},
}

func init() {
	suggestCmd.Flags().StringVar(&flagSuggestPath, "path", "", "Repository path to report (default: the original file argument)")
}
