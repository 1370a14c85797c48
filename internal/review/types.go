package review

import (
	"context"
	"strings"
	"time"
)

// Analyzer turns documents into analysis results. Zero documents yield an
// empty result without contacting the engine.
type Analyzer interface {
	Analyze(ctx context.Context, docs []Document, opts Options) ([]AnalysisResult, error)
}

// Document is one file submitted for analysis.
type Document struct {
	Path    string
	Content string
}

// Options controls how the engine rewrites a document.
type Options struct {
	Dialect    string      `json:"dialect,omitempty"`
	Tone       string      `json:"tone,omitempty"`
	StyleGuide string      `json:"styleGuide,omitempty"`
	Guide      *StyleGuide `json:"-"`
}

// Scores are 0-100 quality measurements for a document.
type Scores struct {
	Quality     float64 `json:"quality"`
	Clarity     float64 `json:"clarity"`
	Grammar     float64 `json:"grammar"`
	Consistency float64 `json:"consistency"`
	Tone        float64 `json:"tone"`
}

// AnalysisResult is the engine's verdict on a single document.
type AnalysisResult struct {
	FilePath         string    `json:"filePath"`
	OriginalContent  string    `json:"-"`
	RewrittenContent string    `json:"-"`
	Scores           Scores    `json:"scores"`
	Timestamp        time.Time `json:"timestamp"`
}

// HasRewrite reports whether the engine proposed a change beyond
// surrounding whitespace.
func (r AnalysisResult) HasRewrite() bool {
	if r.RewrittenContent == "" {
		return false
	}
	return strings.TrimSpace(r.RewrittenContent) != strings.TrimSpace(r.OriginalContent)
}

// Summary aggregates scores over a run.
type Summary struct {
	Files          int     `json:"files"`
	Rewritten      int     `json:"rewritten"`
	MeanQuality    float64 `json:"meanQuality"`
	LowestQuality  float64 `json:"lowestQuality"`
	LowestFilePath string  `json:"lowestFilePath,omitempty"`
}

// Summarize computes a Summary from results.
func Summarize(results []AnalysisResult) Summary {
	var s Summary
	if len(results) == 0 {
		return s
	}
	var total float64
	s.LowestQuality = results[0].Scores.Quality
	s.LowestFilePath = results[0].FilePath
	for _, r := range results {
		s.Files++
		if r.HasRewrite() {
			s.Rewritten++
		}
		total += r.Scores.Quality
		if r.Scores.Quality < s.LowestQuality {
			s.LowestQuality = r.Scores.Quality
			s.LowestFilePath = r.FilePath
		}
	}
	s.MeanQuality = total / float64(s.Files)
	return s
}

// BelowThreshold returns true if any result's quality is under threshold.
// A threshold of zero or less disables the check.
func BelowThreshold(results []AnalysisResult, threshold float64) bool {
	if threshold <= 0 {
		return false
	}
	for _, r := range results {
		if r.Scores.Quality < threshold {
			return true
		}
	}
	return false
}
