package rewrite

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dshills/scribe/internal/host"
	"github.com/dshills/scribe/internal/review"
)

// DefaultPrefix is the default rewrite branch prefix.
const DefaultPrefix = "scribe-rewrite"

// Host is the subset of host.Platform the manager needs.
type Host interface {
	host.Refs
	host.Contents
	host.Pulls
}

// RewriteBranch is the auxiliary branch for one pull request.
type RewriteBranch struct {
	Name    string `json:"name"`
	BaseRef string `json:"baseRef"`
	HeadSHA string `json:"headSha"`
}

// RewritePullRequest is the pull request opened from a RewriteBranch.
type RewritePullRequest struct {
	Number     int    `json:"number,omitempty"`
	URL        string `json:"url"`
	HeadBranch string `json:"headBranch"`
	BaseBranch string `json:"baseBranch"`
}

// Result reports what a sync did.
type Result struct {
	Branch         RewriteBranch       `json:"branch"`
	PullRequest    *RewritePullRequest `json:"pullRequest,omitempty"`
	BranchCreated  bool                `json:"branchCreated"`
	PullCreated    bool                `json:"pullCreated"`
	FilesWritten   int                 `json:"filesWritten"`
	FilesUnchanged int                 `json:"filesUnchanged"`
}

// Manager maintains rewrite branches.
type Manager struct {
	host   Host
	prefix string
	log    zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithPrefix sets the branch prefix.
func WithPrefix(prefix string) Option {
	return func(m *Manager) {
		if p := strings.Trim(prefix, "/"); p != "" {
			m.prefix = p
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// New creates a Manager.
func New(h Host, opts ...Option) *Manager {
	m := &Manager{host: h, prefix: DefaultPrefix, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// BranchName returns the rewrite branch for a pull request number.
func BranchName(prefix string, number int) string {
	return fmt.Sprintf("%s/pr-%d", prefix, number)
}

// Prefix returns the branch prefix in use.
func (m *Manager) Prefix() string { return m.prefix }

// Sync reconciles the rewrite branch and pull request for t. Results
// without a rewrite are ignored; when none remain, no remote call is made.
// A failed file write stops the remaining writes and returns a
// PartialFailure error together with what was done, including an already
// open pull request.
func (m *Manager) Sync(ctx context.Context, t host.Target, results []review.AnalysisResult) (Result, error) {
	var files []review.AnalysisResult
	for _, r := range results {
		if r.HasRewrite() {
			files = append(files, r)
		}
	}
	if len(files) == 0 {
		return Result{}, nil
	}

	t, err := m.resolveHead(ctx, t)
	if err != nil {
		return Result{}, err
	}

	name := BranchName(m.prefix, t.Number)
	log := m.log.With().Str("target", t.String()).Str("branch", name).Logger()
	res := Result{Branch: RewriteBranch{Name: name, BaseRef: t.HeadRef, HeadSHA: t.HeadSHA}}

	created, err := m.resetBranch(ctx, t, name)
	if err != nil {
		return res, err
	}
	res.BranchCreated = created

	writeErr := m.writeFiles(ctx, t, name, files, &res)
	if writeErr != nil {
		log.Warn().Err(writeErr).Int("written", res.FilesWritten).Msg("rewrite stopped after a failed file write")
	}

	pr, err := m.findPull(ctx, t, name)
	if err != nil {
		return res, err
	}
	if pr == nil && writeErr == nil {
		pr, err = m.openPull(ctx, t, name, files)
		if err != nil {
			return res, err
		}
		res.PullCreated = true
	}
	res.PullRequest = pr

	if writeErr != nil {
		return res, host.Wrap(host.KindPartialFailure, "sync rewrite branch", name, writeErr)
	}
	log.Info().
		Int("written", res.FilesWritten).
		Int("unchanged", res.FilesUnchanged).
		Str("url", pr.URL).
		Msg("rewrite branch synced")
	return res, nil
}

func (m *Manager) resolveHead(ctx context.Context, t host.Target) (host.Target, error) {
	if t.HeadRef != "" && t.HeadSHA != "" {
		return t, nil
	}
	pr, err := m.host.GetPullRequest(ctx, t.Owner, t.Repo, t.Number)
	if err != nil {
		return t, host.Wrap(host.KindUnknown, "resolve pull request head", "", err)
	}
	t.HeadRef, t.HeadSHA = pr.HeadRef, pr.HeadSHA
	if t.BaseRef == "" {
		t.BaseRef = pr.BaseRef
	}
	return t, nil
}

// resetBranch points the branch at the pull request head, creating it when
// absent. It reports whether the branch was created.
func (m *Manager) resetBranch(ctx context.Context, t host.Target, name string) (bool, error) {
	b, err := m.host.GetBranch(ctx, t.Owner, t.Repo, name)
	switch {
	case host.IsNotFound(err):
		if err := m.host.CreateBranch(ctx, t.Owner, t.Repo, name, t.HeadSHA); err != nil {
			return false, host.Wrap(host.KindUnknown, "create rewrite branch", name, err)
		}
		return true, nil
	case err != nil:
		return false, host.Wrap(host.KindUnknown, "read rewrite branch", name, err)
	case b.SHA == t.HeadSHA:
		return false, nil
	}
	if err := m.host.UpdateBranch(ctx, t.Owner, t.Repo, name, t.HeadSHA, true); err != nil {
		return false, host.Wrap(host.KindUnknown, "reset rewrite branch", name, err)
	}
	return false, nil
}

// writeFiles writes sequentially; each write moves the branch, so the next
// blob lookup sees it.
func (m *Manager) writeFiles(ctx context.Context, t host.Target, name string, files []review.AnalysisResult, res *Result) error {
	for _, f := range files {
		var sha string
		cur, err := m.host.GetFile(ctx, t.Owner, t.Repo, f.FilePath, name)
		switch {
		case host.IsNotFound(err):
		case err != nil:
			return host.Wrap(host.KindUnknown, "read file", f.FilePath, err)
		case cur.Content == f.RewrittenContent:
			res.FilesUnchanged++
			continue
		default:
			sha = cur.SHA
		}

		_, err = m.host.PutFile(ctx, t.Owner, t.Repo, host.FileUpdate{
			Path:    f.FilePath,
			Branch:  name,
			Message: fmt.Sprintf("scribe: rewrite %s", f.FilePath),
			Content: f.RewrittenContent,
			SHA:     sha,
		})
		if err != nil {
			return host.Wrap(host.KindUnknown, "write file", f.FilePath, err)
		}
		res.FilesWritten++
	}
	return nil
}

func (m *Manager) findPull(ctx context.Context, t host.Target, name string) (*RewritePullRequest, error) {
	prs, err := m.host.ListPullRequests(ctx, t.Owner, t.Repo, t.Owner+":"+name, "open")
	if err != nil {
		return nil, host.Wrap(host.KindUnknown, "find rewrite pull request", name, err)
	}
	for _, pr := range prs {
		if pr.HeadRef == name {
			return &RewritePullRequest{Number: pr.Number, URL: pr.URL, HeadBranch: name, BaseBranch: pr.BaseRef}, nil
		}
	}
	return nil, nil
}

func (m *Manager) openPull(ctx context.Context, t host.Target, name string, files []review.AnalysisResult) (*RewritePullRequest, error) {
	pr, err := m.host.CreatePullRequest(ctx, t.Owner, t.Repo, host.NewPullRequest{
		Title: fmt.Sprintf("scribe: suggested rewrites for #%d", t.Number),
		Head:  name,
		Base:  t.HeadRef,
		Body:  PullRequestBody(t, files),
	})
	if err != nil {
		return nil, host.Wrap(host.KindUnknown, "open rewrite pull request", name, err)
	}
	return &RewritePullRequest{Number: pr.Number, URL: pr.URL, HeadBranch: name, BaseBranch: t.HeadRef}, nil
}

// PullRequestBody summarizes a rewrite for the pull request description.
func PullRequestBody(t host.Target, files []review.AnalysisResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## scribe rewrites\n\n")
	fmt.Fprintf(&b, "This pull request holds the suggested rewrites of %d file(s) from #%d", len(files), t.Number)
	if t.HeadSHA != "" {
		fmt.Fprintf(&b, " at %s", shortSHA(t.HeadSHA))
	}
	b.WriteString(". Merge it into the original branch to accept them.\n\n")
	b.WriteString("| File | Quality | Clarity | Grammar | Consistency | Tone |\n")
	b.WriteString("|------|---------|---------|---------|-------------|------|\n")
	for _, f := range files {
		s := f.Scores
		fmt.Fprintf(&b, "| `%s` | %.0f | %.0f | %.0f | %.0f | %.0f |\n", f.FilePath, s.Quality, s.Clarity, s.Grammar, s.Consistency, s.Tone)
	}
	return b.String()
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
