package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dshills/scribe/internal/delivery"
	"github.com/dshills/scribe/internal/gitctx"
	"github.com/dshills/scribe/internal/host"
	"github.com/dshills/scribe/internal/review"
	"github.com/dshills/scribe/internal/rewrite"
	"github.com/dshills/scribe/internal/suggest"
	"github.com/dshills/scribe/internal/sweep"
)

// Step names used in StepError.
const (
	StepSuggestions = "suggestions"
	StepRewrite     = "rewrite"
	StepSweep       = "sweep"
)

// StepError records a remote step that did not complete.
type StepError struct {
	Step    string `json:"step"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Outcome is the report of one run.
type Outcome struct {
	RunID       string                     `json:"runId"`
	Target      host.Target                `json:"target"`
	StartedAt   time.Time                  `json:"startedAt"`
	FinishedAt  time.Time                  `json:"finishedAt"`
	Summary     review.Summary             `json:"summary"`
	Results     []review.AnalysisResult    `json:"results"`
	Suggestions []suggest.CommitSuggestion `json:"suggestions"`
	Delivery    *delivery.Outcome          `json:"delivery,omitempty"`
	Rewrite     *rewrite.Result            `json:"rewrite,omitempty"`
	Sweep       *sweep.Result              `json:"sweep,omitempty"`
	Errors      []StepError                `json:"errors,omitempty"`
}

// Degraded reports whether any remote step failed.
func (o Outcome) Degraded() bool {
	return len(o.Errors) > 0
}

// Runner drives a run. Remote steps without a configured component are
// skipped.
type Runner struct {
	source    gitctx.Source
	filter    gitctx.Filter
	analyzer  review.Analyzer
	opts      review.Options
	synth     *suggest.Synthesizer
	delivery  *delivery.Manager
	rewrite   *rewrite.Manager
	sweeper   *sweep.Sweeper
	retention time.Duration
	log       zerolog.Logger
	now       func() time.Time
	newID     func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithSource sets where pull request documents are read from.
func WithSource(src gitctx.Source, f gitctx.Filter) Option {
	return func(r *Runner) {
		r.source = src
		r.filter = f
	}
}

// WithAnalyzer sets the scoring engine and its options.
func WithAnalyzer(a review.Analyzer, opts review.Options) Option {
	return func(r *Runner) {
		r.analyzer = a
		r.opts = opts
	}
}

// WithSynthesizer replaces the default suggestion synthesizer.
func WithSynthesizer(s *suggest.Synthesizer) Option {
	return func(r *Runner) { r.synth = s }
}

// WithDelivery enables inline suggestions.
func WithDelivery(m *delivery.Manager) Option {
	return func(r *Runner) { r.delivery = m }
}

// WithRewrite enables the rewrite branch.
func WithRewrite(m *rewrite.Manager) Option {
	return func(r *Runner) { r.rewrite = m }
}

// WithSweeper enables the retention sweep.
func WithSweeper(s *sweep.Sweeper, retention time.Duration) Option {
	return func(r *Runner) {
		r.sweeper = s
		r.retention = retention
	}
}

// WithLogger sets the runner logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{log: zerolog.Nop(), now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(r)
	}
	if r.synth == nil {
		r.synth = suggest.New(suggest.WithLogger(r.log))
	}
	return r
}

// ErrNotConfigured is returned by RunPullRequest without a source and analyzer.
var ErrNotConfigured = errors.New("workflow: source and analyzer are required")

// RunPullRequest collects the documents of t, analyzes them and runs the
// remote steps. Only collection and analysis failures are returned.
func (r *Runner) RunPullRequest(ctx context.Context, t host.Target) (Outcome, error) {
	if r.source == nil || r.analyzer == nil {
		return Outcome{}, ErrNotConfigured
	}
	docs, err := gitctx.PullRequestDocuments(ctx, r.source, t, r.filter, r.log)
	if err != nil {
		return Outcome{}, err
	}
	r.log.Info().Str("target", t.String()).Int("count", len(docs)).Msg("analyzing documents")

	results, err := r.analyzer.Analyze(ctx, docs, r.opts)
	if err != nil {
		return Outcome{}, fmt.Errorf("analyzing %s: %w", t, err)
	}
	return r.Run(ctx, t, results), nil
}

// Run synthesizes suggestions from results and runs the enabled remote
// steps against t. Files without a rewrite make no remote calls.
func (r *Runner) Run(ctx context.Context, t host.Target, results []review.AnalysisResult) Outcome {
	out := Outcome{
		RunID:     r.newID(),
		Target:    t,
		StartedAt: r.now(),
		Summary:   review.Summarize(results),
		Results:   results,
	}
	log := r.log.With().Str("run", out.RunID).Str("target", t.String()).Logger()

	out.Suggestions = r.synth.SynthesizeAll(results)
	if out.Suggestions == nil {
		out.Suggestions = []suggest.CommitSuggestion{}
	}

	if r.delivery != nil {
		d, err := r.delivery.Deliver(ctx, t, out.Suggestions)
		out.Delivery = &d
		r.record(&out, log, StepSuggestions, err)
	}

	if r.rewrite != nil {
		res, err := r.rewrite.Sync(ctx, t, results)
		out.Rewrite = &res
		r.record(&out, log, StepRewrite, err)
	}

	switch {
	case r.sweeper == nil:
	case len(out.Suggestions) == 0 && out.Summary.Rewritten == 0:
		log.Debug().Msg("nothing rewritten; skipping branch sweep")
	default:
		res := r.sweeper.Sweep(ctx, t.Owner, t.Repo, r.retention)
		out.Sweep = &res
	}

	out.FinishedAt = r.now()
	log.Info().
		Int("files", out.Summary.Files).
		Int("suggestions", len(out.Suggestions)).
		Bool("degraded", out.Degraded()).
		Msg("run finished")
	return out
}

func (r *Runner) record(out *Outcome, log zerolog.Logger, step string, err error) {
	if err == nil {
		return
	}
	kind := host.KindOf(err)
	log.Warn().Err(err).Str("step", step).Str("kind", kind.String()).Msg("step failed")
	out.Errors = append(out.Errors, StepError{Step: step, Kind: kind.String(), Message: err.Error()})
}
