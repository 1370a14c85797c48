package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/scribe/internal/cache"
	"github.com/dshills/scribe/internal/config"
	"github.com/dshills/scribe/internal/delivery"
	"github.com/dshills/scribe/internal/engine"
	"github.com/dshills/scribe/internal/gitctx"
	"github.com/dshills/scribe/internal/github"
	"github.com/dshills/scribe/internal/host"
	"github.com/dshills/scribe/internal/output"
	"github.com/dshills/scribe/internal/providers"
	"github.com/dshills/scribe/internal/redact"
	"github.com/dshills/scribe/internal/retry"
	"github.com/dshills/scribe/internal/review"
	"github.com/dshills/scribe/internal/rewrite"
	"github.com/dshills/scribe/internal/sweep"
	"github.com/dshills/scribe/internal/workflow"
)

// pr flags
var (
	flagRepo        string
	flagProvider    string
	flagModel       string
	flagDialect     string
	flagTone        string
	flagStyleGuide  string
	flagPaths       string
	flagExclude     string
	flagFailUnder   float64
	flagNoSuggest   bool
	flagNoRewrite   bool
	flagNoSweep     bool
	flagNoCache     bool
	flagDryRun      bool
	flagMaxComments int
)

func buildOverrides() map[string]any {
	m := make(map[string]any)
	if flagProvider != "" {
		m["provider"] = flagProvider
	}
	if flagModel != "" {
		m["model"] = flagModel
	}
	if flagDialect != "" {
		m["dialect"] = flagDialect
	}
	if flagTone != "" {
		m["tone"] = flagTone
	}
	if flagStyleGuide != "" {
		m["style_guide"] = flagStyleGuide
	}
	if flagPaths != "" {
		m["include"] = splitComma(flagPaths)
	}
	if flagFailUnder > 0 {
		m["fail_under"] = flagFailUnder
	}
	if flagMaxComments > 0 {
		m["suggestions.max_comments"] = flagMaxComments
	}
	if flagNoSuggest {
		m["suggestions.enabled"] = false
	}
	if flagNoRewrite {
		m["rewrite.enabled"] = false
	}
	if flagNoSweep {
		m["sweep.enabled"] = false
	}
	if flagNoCache {
		m["cache.enabled"] = false
	}
	return m
}

var prCmd = &cobra.Command{
	Use:   "pr [number]",
	Short: "Review the documents changed in a pull request",
	Long: "Score and rewrite the documents changed in a GitHub pull request, post the " +
		"rewrites as inline suggestions, sync the rewrite branch and sweep stale ones.\n\n" +
		"Inside a GitHub Actions pull_request run the number defaults to the run's pull request.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := pullNumber(args)
		if err != nil {
			fail(err)
			return nil
		}

		cfg, err := loadConfig(buildOverrides())
		if err != nil {
			fail(err)
			return nil
		}
		if flagExclude != "" {
			cfg.Exclude = append(cfg.Exclude, splitComma(flagExclude)...)
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
		completer, err := providers.New(cmd.Context(), cfg.Provider, cfg.Model)
		if err != nil {
			fail(err)
			return nil
		}
		runner, err := buildRunner(cfg, gh, completer, log, flagDryRun)
		if err != nil {
			fail(err)
			return nil
		}

		ctx := cmd.Context()
		pr, err := gh.GetPullRequest(ctx, owner, repo, number)
		if err != nil {
			fail(err)
			return nil
		}
		t := host.Target{
			Owner:   owner,
			Repo:    repo,
			Number:  number,
			HeadRef: pr.HeadRef,
			HeadSHA: pr.HeadSHA,
			BaseRef: pr.BaseRef,
		}

		outcome, err := runner.RunPullRequest(ctx, t)
		if err != nil {
			fail(err)
			return nil
		}
		if err := writeOutcome(cmd, &outcome, cfg.Format); err != nil {
			fail(fmt.Errorf("writing output: %w", err))
			return nil
		}
		if ok, err := output.StepSummary(&outcome); err != nil {
			log.Warn().Err(err).Msg("cannot write job summary")
		} else if ok {
			log.Debug().Msg("job summary written")
		}
		exitCode = outcomeExitCode(outcome, cfg.FailUnder)
		return nil
	},
}

func init() {
	f := prCmd.Flags()
	f.StringVar(&flagRepo, "repo", "", "Repository as owner/repo (auto-detected from origin if omitted)")
	f.StringVar(&flagProvider, "provider", "", "LLM provider (anthropic, openai, gemini, ollama)")
	f.StringVar(&flagModel, "model", "", "Model name")
	f.StringVar(&flagDialect, "dialect", "", "Target dialect, e.g. en-US or en-GB")
	f.StringVar(&flagTone, "tone", "", "Target tone, e.g. neutral, formal, friendly")
	f.StringVar(&flagStyleGuide, "style-guide", "", "Style guide JSON file")
	f.StringVar(&flagPaths, "paths", "", "Include file path globs (comma-separated)")
	f.StringVar(&flagExclude, "exclude", "", "Additional exclude globs (comma-separated)")
	f.Float64Var(&flagFailUnder, "fail-under", 0, "Exit 1 when any document scores below this quality")
	f.IntVar(&flagMaxComments, "max-comments", 0, "Maximum inline suggestions per review (1-100)")
	f.BoolVar(&flagNoSuggest, "no-suggestions", false, "Do not post inline suggestions")
	f.BoolVar(&flagNoRewrite, "no-rewrite", false, "Do not sync the rewrite branch")
	f.BoolVar(&flagNoSweep, "no-sweep", false, "Do not delete stale rewrite branches")
	f.BoolVar(&flagNoCache, "no-cache", false, "Bypass the response cache")
	f.BoolVar(&flagDryRun, "dry-run", false, "Analyze and report without writing to GitHub")
}

func pullNumber(args []string) (int, error) {
	if len(args) == 0 {
		if n := github.PullNumberFromEnv(); n > 0 {
			return n, nil
		}
		return 0, usagef("missing pull request number")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 0, usagef("invalid pull request number %q", args[0])
	}
	return n, nil
}

// resolveRepo parses slug or detects the repository of the current run.
func resolveRepo(ctx context.Context, slug string) (string, string, error) {
	if slug != "" {
		r, err := github.ParseRepo(slug)
		if err != nil {
			return "", "", usagef("%v", err)
		}
		return r.Owner, r.Name, nil
	}
	r, err := github.DetectRepo(ctx)
	if err != nil {
		return "", "", usagef("%v; use --repo owner/repo", err)
	}
	return r.Owner, r.Name, nil
}

func newGitHubClient(cfg config.Config, log zerolog.Logger) (*github.Client, error) {
	policy := retry.DefaultPolicy()
	policy.MaxRetries = cfg.GitHub.MaxRetries
	return github.NewClient(
		github.WithAPIURL(cfg.GitHub.APIURL),
		github.WithRateLimit(cfg.GitHub.RequestsPerSecond),
		github.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.GitHub.TimeoutSeconds) * time.Second}),
		github.WithRetryPolicy(policy),
		github.WithLogger(log),
	)
}

// buildRunner assembles the workflow for cfg. dryRun leaves out every step
// that writes to the host.
func buildRunner(cfg config.Config, platform host.Platform, completer providers.Completer, log zerolog.Logger, dryRun bool) (*workflow.Runner, error) {
	guide, err := review.LoadStyleGuide(cfg.StyleGuide)
	if err != nil {
		return nil, usagef("%v", err)
	}
	var c *cache.Cache
	if cfg.Cache.Enabled {
		if c, err = cache.Open(cfg.Cache.Dir, cacheTTL(cfg)); err != nil {
			return nil, fmt.Errorf("opening cache: %w", err)
		}
	}
	analyzer := engine.New(completer,
		engine.WithCache(c, cfg.Model),
		engine.WithLogger(log),
		engine.WithPrivacy(redact.Policy{Paths: cfg.Privacy.RedactPaths, Secrets: cfg.Privacy.RedactSecrets}),
	)

	opts := []workflow.Option{
		workflow.WithLogger(log),
		workflow.WithSource(platform, gitctx.Filter{Include: cfg.Include, Exclude: cfg.Exclude, MaxBytes: cfg.MaxFileBytes}),
		workflow.WithAnalyzer(analyzer, review.Options{
			Dialect:    cfg.Dialect,
			Tone:       cfg.Tone,
			StyleGuide: cfg.StyleGuide,
			Guide:      guide,
		}),
	}
	if dryRun {
		log.Info().Msg("dry run: no suggestions, rewrite branch or sweep")
		return workflow.New(opts...), nil
	}
	if cfg.Suggestions.Enabled {
		opts = append(opts, workflow.WithDelivery(delivery.New(platform,
			delivery.WithLogger(log),
			delivery.WithLogin(cfg.GitHub.Login),
			delivery.WithConcurrency(cfg.Suggestions.Concurrency),
			delivery.WithMaxComments(cfg.Suggestions.MaxComments),
			delivery.WithMaxBatches(cfg.Suggestions.MaxBatches),
		)))
	}
	if cfg.Rewrite.Enabled {
		opts = append(opts, workflow.WithRewrite(rewrite.New(platform,
			rewrite.WithPrefix(cfg.Rewrite.BranchPrefix),
			rewrite.WithLogger(log),
		)))
	}
	if cfg.Sweep.Enabled {
		opts = append(opts, workflow.WithSweeper(sweep.New(platform,
			sweep.WithPrefix(cfg.Rewrite.BranchPrefix),
			sweep.WithLogger(log),
		), retentionDays(cfg.Sweep.RetentionDays)))
	}
	return workflow.New(opts...), nil
}

func retentionDays(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}

// outcomeExitCode maps a finished run to its exit code. Degradation wins
// over the quality gate.
func outcomeExitCode(o workflow.Outcome, failUnder float64) int {
	switch {
	case o.Degraded():
		return ExitDegraded
	case review.BelowThreshold(o.Results, failUnder):
		return ExitBelowThreshold
	default:
		return ExitSuccess
	}
}

func writeOutcome(cmd *cobra.Command, o *workflow.Outcome, format string) error {
	if flagOut != "" {
		return output.WriteReport(o, format, flagOut)
	}
	w, err := output.GetWriter(format)
	if err != nil {
		return err
	}
	return w.Write(cmd.OutOrStdout(), o)
}
