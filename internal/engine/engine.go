package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/scribe/internal/cache"
	"github.com/dshills/scribe/internal/providers"
	"github.com/dshills/scribe/internal/redact"
	"github.com/dshills/scribe/internal/review"
)

const (
	defaultConcurrency = 4
	maxTokens          = 8192
)

// rawResult is the JSON object returned by the engine.
type rawResult struct {
	Rewritten *string `json:"rewritten"`
	Scores    review.Scores `json:"scores"`
}

var _ review.Analyzer = (*Engine)(nil)

// Engine implements review.Analyzer on top of a provider.
type Engine struct {
	provider    providers.Completer
	model       string
	cache       *cache.Cache
	log         zerolog.Logger
	concurrency int
	privacy     redact.Policy
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache enables response caching. model is part of the cache key; a
// nil cache disables caching.
func WithCache(c *cache.Cache, model string) Option {
	return func(e *Engine) {
		e.cache = c
		e.model = model
	}
}

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithConcurrency bounds the number of in-flight provider calls.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithPrivacy keeps documents the policy withholds away from the provider.
func WithPrivacy(p redact.Policy) Option {
	return func(e *Engine) { e.privacy = p }
}

// New creates an Engine backed by p.
func New(p providers.Completer, opts ...Option) *Engine {
	e := &Engine{
		provider:    p,
		log:         zerolog.Nop(),
		concurrency: defaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze scores and rewrites docs. Results follow input order; documents
// held back by the privacy policy are omitted. The first provider failure
// cancels the remaining work.
func (e *Engine) Analyze(ctx context.Context, docs []review.Document, opts review.Options) ([]review.AnalysisResult, error) {
	if len(docs) == 0 {
		return []review.AnalysisResult{}, nil
	}

	results := make([]*review.AnalysisResult, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, doc := range docs {
		if !e.admit(doc) {
			continue
		}
		g.Go(func() error {
			r, err := e.analyzeOne(gctx, doc, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", doc.Path, err)
			}
			results[i] = &r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]review.AnalysisResult, 0, len(docs))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (e *Engine) admit(doc review.Document) bool {
	reason := e.privacy.Withhold(doc.Path, doc.Content)
	if reason != "" {
		e.log.Warn().Str("path", doc.Path).Str("reason", reason).Msg("document withheld from engine")
	}
	return reason == ""
}

func (e *Engine) analyzeOne(ctx context.Context, doc review.Document, opts review.Options) (review.AnalysisResult, error) {
	sys, user := review.SystemPrompt(), review.BuildUserPrompt(doc, opts)
	key := cache.Key{
		Provider: e.provider.Name(),
		Model:    e.model,
		Inputs:   []string{opts.Dialect, opts.Tone, opts.StyleGuide, opts.Guide.PromptSection(), doc.Path, doc.Content},
	}

	if cached, ok := e.cache.Get(key); ok {
		if raw, err := parseResult(cached); err == nil {
			e.log.Debug().Str("path", doc.Path).Msg("cache hit")
			return e.toResult(doc, raw), nil
		}
	}

	resp, err := e.provider.Complete(ctx, providers.Request{
		SystemPrompt: sys,
		UserPrompt:   user,
		MaxTokens:    maxTokens,
		JSON:         true,
	})
	if err != nil {
		return review.AnalysisResult{}, fmt.Errorf("engine call: %w", err)
	}

	content := resp.Content
	raw, err := parseResult(content)
	if err != nil {
		e.log.Debug().Str("path", doc.Path).Err(err).Msg("invalid engine response, attempting repair")
		resp2, err2 := e.provider.Complete(ctx, providers.Request{
			SystemPrompt: sys,
			UserPrompt:   repairPrompt(err, content),
			MaxTokens:    maxTokens,
			JSON:         true,
		})
		if err2 != nil {
			return review.AnalysisResult{}, fmt.Errorf("repair pass failed: %w (original error: %w)", err2, err)
		}
		content = resp2.Content
		raw, err = parseResult(content)
		if err != nil {
			return review.AnalysisResult{}, fmt.Errorf("response validation failed after repair: %w", err)
		}
	}

	if err := e.cache.Put(key, content); err != nil {
		e.log.Warn().Err(err).Str("path", doc.Path).Msg("cache write failed")
	}
	return e.toResult(doc, raw), nil
}

func (e *Engine) toResult(doc review.Document, raw rawResult) review.AnalysisResult {
	return review.AnalysisResult{
		FilePath:         doc.Path,
		OriginalContent:  doc.Content,
		RewrittenContent: *raw.Rewritten,
		Scores:           raw.Scores,
		Timestamp:        e.now().UTC(),
	}
}

func parseResult(content string) (rawResult, error) {
	content = strings.TrimSpace(content)

	// Strip markdown code fences if present
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		end := len(lines)
		if end >= 2 && strings.TrimSpace(lines[end-1]) == "```" {
			end--
		}
		content = strings.Join(lines[1:end], "\n")
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return raw, fmt.Errorf("invalid JSON object: %w", err)
	}
	if raw.Rewritten == nil {
		return raw, errors.New(`missing "rewritten" field`)
	}
	if err := validateScores(raw.Scores); err != nil {
		return raw, err
	}
	return raw, nil
}

func validateScores(s review.Scores) error {
	for name, v := range map[string]float64{
		"quality":     s.Quality,
		"clarity":     s.Clarity,
		"grammar":     s.Grammar,
		"consistency": s.Consistency,
		"tone":        s.Tone,
	} {
		if math.IsNaN(v) || v < 0 || v > 100 {
			return fmt.Errorf("score %s out of range: %v", name, v)
		}
	}
	return nil
}

func repairPrompt(cause error, previous string) string {
	return fmt.Sprintf(
		"Your previous response was not valid JSON. The error was: %s\n\nPlease fix it and respond with ONLY the JSON object.\n\nYour previous response was:\n%s",
		cause.Error(), previous,
	)
}
