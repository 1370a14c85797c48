package sweep

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/scribe/internal/host"
	"github.com/dshills/scribe/internal/rewrite"
)

// DefaultRetention is used when Sweep is given a non-positive retention.
const DefaultRetention = 7 * 24 * time.Hour

// Result reports a sweep.
type Result struct {
	Scanned int      `json:"scanned"`
	Deleted []string `json:"deleted,omitempty"`
	Kept    int      `json:"kept"`
	Failed  int      `json:"failed"`
}

// Sweeper removes expired rewrite branches.
type Sweeper struct {
	host   host.Refs
	prefix string
	log    zerolog.Logger
	now    func() time.Time
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithPrefix sets the rewrite branch prefix.
func WithPrefix(prefix string) Option {
	return func(s *Sweeper) {
		if p := strings.Trim(prefix, "/"); p != "" {
			s.prefix = p
		}
	}
}

// WithLogger sets the sweeper logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Sweeper) { s.log = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// New creates a Sweeper.
func New(h host.Refs, opts ...Option) *Sweeper {
	s := &Sweeper{host: h, prefix: rewrite.DefaultPrefix, log: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep deletes rewrite branches of owner/repo whose head commit is older
// than retention. It never fails: a listing error ends the sweep early and
// per-branch errors are counted in Failed.
func (s *Sweeper) Sweep(ctx context.Context, owner, repo string, retention time.Duration) Result {
	if retention <= 0 {
		retention = DefaultRetention
	}
	log := s.log.With().Str("repo", owner+"/"+repo).Logger()

	var res Result
	branches, err := s.host.ListBranches(ctx, owner, repo)
	if err != nil {
		log.Warn().Err(err).Msg("cannot list branches; skipping sweep")
		return res
	}

	cutoff := s.now().Add(-retention)
	for _, b := range branches {
		if !strings.HasPrefix(b.Name, s.prefix+"/") {
			continue
		}
		res.Scanned++

		c, err := s.host.GetCommit(ctx, owner, repo, b.SHA)
		if err != nil {
			res.Failed++
			log.Warn().Err(err).Str("branch", b.Name).Msg("cannot read branch head commit")
			continue
		}
		if !c.Date.Before(cutoff) {
			res.Kept++
			continue
		}
		if err := s.host.DeleteBranch(ctx, owner, repo, b.Name); err != nil {
			res.Failed++
			log.Warn().Err(err).Str("branch", b.Name).Msg("cannot delete expired rewrite branch")
			continue
		}
		res.Deleted = append(res.Deleted, b.Name)
		log.Info().Str("branch", b.Name).Time("committed", c.Date).Msg("deleted expired rewrite branch")
	}
	return res
}
