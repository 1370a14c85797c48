package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/scribe/internal/host"
	"github.com/dshills/scribe/internal/sweep"
	"github.com/dshills/scribe/internal/workflow"
)

var flagRetentionDays int

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete rewrite branches older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]any{}
		if flagRetentionDays > 0 {
			overrides["sweep.retention_days"] = flagRetentionDays
		}
		cfg, err := loadConfig(overrides)
		if err != nil {
			fail(err)
			return nil
		}
		log := newLogger(os.Stderr, cfg.LogLevel)

		owner, repo, err := resolveRepo(cmd.Context(), flagRepo)
		if err != nil {
			fail(err)
			return nil
		}
		gh, err := newGitHubClient(cfg, log)
		if err != nil {
			fail(err)
			return nil
		}

		res := sweep.New(gh, sweep.WithPrefix(cfg.Rewrite.BranchPrefix), sweep.WithLogger(log)).
			Sweep(cmd.Context(), owner, repo, retentionDays(cfg.Sweep.RetentionDays))
		outcome := workflow.Outcome{Target: host.Target{Owner: owner, Repo: repo}, Sweep: &res}
		if err := writeOutcome(cmd, &outcome, cfg.Format); err != nil {
			fail(fmt.Errorf("writing output: %w", err))
			return nil
		}
		if res.Failed > 0 {
			exitCode = ExitDegraded
		}
		return nil
	},
}

func init() {
	sweepCmd.Flags().StringVar(&flagRepo, "repo", "", "Repository as owner/repo (auto-detected from origin if omitted)")
	sweepCmd.Flags().IntVar(&flagRetentionDays, "retention-days", 0, "Delete rewrite branches whose head is older than this many days")
}
