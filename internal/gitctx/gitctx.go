package gitctx

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/scribe/internal/host"
	"github.com/dshills/scribe/internal/review"
)

// DefaultMaxFileBytes is the per-file size limit when Filter.MaxBytes is zero.
const DefaultMaxFileBytes = 1 << 20 // 1MB

// fetchConcurrency bounds parallel file reads.
const fetchConcurrency = 4

// Filter selects which changed files are analyzed.
type Filter struct {
	Include  []string
	Exclude  []string
	MaxBytes int
}

// Allows reports whether path passes the include and exclude patterns.
// An empty include list admits every path.
func (f Filter) Allows(path string) bool {
	if len(f.Include) > 0 && !MatchesAny(path, f.Include) {
		return false
	}
	return !MatchesAny(path, f.Exclude)
}

func (f Filter) maxBytes() int {
	if f.MaxBytes <= 0 {
		return DefaultMaxFileBytes
	}
	return f.MaxBytes
}

// MatchesAny returns true if the path matches any of the given glob patterns.
// A leading "**/" matches at any depth and a trailing "/**" matches
// everything below a directory.
func MatchesAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		if dir, ok := strings.CutSuffix(pattern, "/**"); ok {
			clean, anywhere := strings.CutPrefix(dir, "**/")
			if strings.HasPrefix(path, clean+"/") || anywhere && strings.Contains(path, "/"+clean+"/") {
				return true
			}
		}
		clean := strings.TrimPrefix(pattern, "**/")
		if clean != pattern {
			matched, err = filepath.Match(clean, filepath.Base(path))
			if err == nil && matched {
				return true
			}
			matched, err = filepath.Match(clean, path)
			if err == nil && matched {
				return true
			}
		}
	}
	return false
}

// Source is the host surface documents are read from.
type Source interface {
	ListPullRequestFiles(ctx context.Context, t host.Target) ([]host.PullRequestFile, error)
	GetFile(ctx context.Context, owner, repo, path, ref string) (host.FileContent, error)
}

// PullRequestDocuments returns the changed files of t that pass f, read at
// the pull request head, in the host's file order.
func PullRequestDocuments(ctx context.Context, src Source, t host.Target, f Filter, log zerolog.Logger) ([]review.Document, error) {
	files, err := src.ListPullRequestFiles(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("listing files of %s: %w", t, err)
	}

	ref := t.HeadSHA
	if ref == "" {
		ref = t.HeadRef
	}

	var paths []string
	for _, file := range files {
		switch {
		case file.Status == "removed":
			continue
		case !f.Allows(file.Filename):
			log.Debug().Str("path", file.Filename).Msg("excluded by filter")
			continue
		}
		paths = append(paths, file.Filename)
	}

	docs := make([]*review.Document, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, path := range paths {
		g.Go(func() error {
			fc, err := src.GetFile(gctx, t.Owner, t.Repo, path, ref)
			if err != nil {
				if host.IsNotFound(err) || host.KindOf(err) == host.KindInvalid {
					log.Debug().Err(err).Str("path", path).Msg("not a readable file; skipping")
					return nil
				}
				return fmt.Errorf("reading %s: %w", path, err)
			}
			if reason := skipReason(fc.Content, f.maxBytes()); reason != "" {
				log.Info().Str("path", path).Msg("skipping " + reason + " file")
				return nil
			}
			docs[i] = &review.Document{Path: path, Content: fc.Content}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]review.Document, 0, len(docs))
	for _, d := range docs {
		if d != nil {
			out = append(out, *d)
		}
	}
	return out, nil
}

func skipReason(content string, limit int) string {
	switch {
	case len(content) > limit:
		return "oversized"
	case strings.IndexByte(content, 0) >= 0 || !utf8.ValidString(content):
		return "binary"
	}
	return ""
}
