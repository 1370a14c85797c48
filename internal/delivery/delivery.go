package delivery

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/scribe/internal/host"
	"github.com/dshills/scribe/internal/suggest"
)

// MaxCommentsPerReview is the host's limit on comments in one review.
const MaxCommentsPerReview = 100

const (
	defaultConcurrency = 4
	pendingReviewBody  = "Submitting a pending review left by an earlier scribe run."
)

// Host is the subset of host.Platform a delivery needs.
type Host interface {
	host.Repositories
	host.Reviews
}

// RemoteReviewState is a snapshot of the pull request taken right before
// writing. It is never cached across runs.
type RemoteReviewState struct {
	PendingReviewIDs           []int64
	ExistingSuggestionComments map[Anchor]int64
}

// Outcome summarizes a delivery.
type Outcome struct {
	State            State   `json:"state"`
	Created          int     `json:"created"`
	Updated          int     `json:"updated"`
	Skipped          int     `json:"skipped"`
	Dropped          int     `json:"dropped"`
	Failed           int     `json:"failed"`
	PendingSubmitted int     `json:"pendingSubmitted"`
	ReviewIDs        []int64 `json:"reviewIds,omitempty"`
}

// Manager delivers suggestions to a pull request.
type Manager struct {
	host        Host
	log         zerolog.Logger
	login       string
	concurrency int
	maxComments int
	maxBatches  int
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithLogin fixes the integration's login instead of asking the host,
// for tokens that cannot read their own user.
func WithLogin(login string) Option {
	return func(m *Manager) { m.login = login }
}

// WithConcurrency bounds in-flight comment updates.
func WithConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithMaxComments lowers the per-review comment limit.
func WithMaxComments(n int) Option {
	return func(m *Manager) {
		if n > 0 && n < MaxCommentsPerReview {
			m.maxComments = n
		}
	}
}

// WithMaxBatches sets how many reviews one delivery may create.
func WithMaxBatches(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxBatches = n
		}
	}
}

// New creates a Manager.
func New(h Host, opts ...Option) *Manager {
	m := &Manager{
		host:        h,
		log:         zerolog.Nop(),
		concurrency: defaultConcurrency,
		maxComments: MaxCommentsPerReview,
		maxBatches:  1,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type update struct {
	id   int64
	path string
	body string
}

// Deliver posts suggestions to the pull request t. An empty input makes no
// remote calls. Failed updates or creates do not stop the others; they turn
// the outcome into PartialFailure and are returned joined.
func (m *Manager) Deliver(ctx context.Context, t host.Target, suggestions []suggest.CommitSuggestion) (Outcome, error) {
	out := Outcome{State: NotStarted}
	if len(suggestions) == 0 {
		return out, nil
	}
	log := m.log.With().Str("target", t.String()).Logger()

	if err := m.checkPermission(ctx, t); err != nil {
		out.State = terminalState(err, out.State)
		return out, err
	}
	out.State = PermissionChecked

	login := m.resolveLogin(ctx)

	state, err := m.clearPending(ctx, t, login, &out)
	if err != nil {
		out.State = terminalState(err, out.State)
		return out, err
	}
	out.State = PendingReviewCleared

	existing, err := m.existingComments(ctx, t, login)
	if err != nil {
		out.State = terminalState(err, out.State)
		return out, err
	}
	state.ExistingSuggestionComments = existing

	index := m.patchIndex(ctx, t)
	updates, creates := m.reconcile(suggestions, state, index, &out)
	out.State = Reconciled

	batches := partition(creates, m.maxComments)
	if len(batches) > m.maxBatches {
		for _, b := range batches[m.maxBatches:] {
			out.Dropped += len(b)
		}
		batches = batches[:m.maxBatches]
		log.Warn().
			Int("dropped", out.Dropped).
			Int("limit", m.maxComments*m.maxBatches).
			Msg("too many suggestions for one review; dropping the excess")
	}

	errs := m.submit(ctx, t, updates, batches, out.Dropped, &out)
	if errs != nil {
		out.State = PartialFailure
		log.Warn().Err(errs).Int("failed", out.Failed).Msg("some suggestions could not be delivered")
		return out, host.Wrap(host.KindPartialFailure, "deliver suggestions", "", errs)
	}
	out.State = Submitted
	log.Info().
		Int("created", out.Created).
		Int("updated", out.Updated).
		Int("skipped", out.Skipped).
		Msg("suggestions delivered")
	return out, nil
}

func (m *Manager) checkPermission(ctx context.Context, t host.Target) error {
	perm, err := m.host.RepositoryPermission(ctx, t.Owner, t.Repo)
	if err != nil {
		if host.IsPermissionDenied(err) {
			return host.Wrap(host.KindPermissionDenied, "check permission", "",
				fmt.Errorf("cannot read %s/%s; check that the token has access to the repository: %w", t.Owner, t.Repo, err))
		}
		return host.Wrap(host.KindUnknown, "check permission", "", err)
	}
	if !perm.Push && !perm.Admin {
		return host.Errorf(host.KindPermissionDenied, "check permission",
			"write access to %s/%s is required to post suggestions; grant the token pull request write permission", t.Owner, t.Repo)
	}
	return nil
}

func (m *Manager) resolveLogin(ctx context.Context) string {
	if m.login != "" {
		return m.login
	}
	login, err := m.host.AuthenticatedLogin(ctx)
	if err != nil {
		m.log.Debug().Err(err).Msg("cannot resolve authenticated login; matching any author")
		return ""
	}
	return login
}

// clearPending submits this integration's pending reviews. Any failure
// aborts the delivery, since creating a review while one is pending fails.
func (m *Manager) clearPending(ctx context.Context, t host.Target, login string, out *Outcome) (RemoteReviewState, error) {
	var state RemoteReviewState
	reviews, err := m.host.ListReviews(ctx, t)
	if err != nil {
		return state, host.Wrap(host.KindUnknown, "list reviews", "", err)
	}
	for _, r := range reviews {
		if r.State == host.ReviewStatePending && ownedBy(r.User, login) {
			state.PendingReviewIDs = append(state.PendingReviewIDs, r.ID)
		}
	}
	for _, id := range state.PendingReviewIDs {
		if err := m.host.SubmitReview(ctx, t, id, host.EventComment, pendingReviewBody); err != nil {
			return state, host.Wrap(host.KindUnknown, "submit pending review", "", err)
		}
		out.PendingSubmitted++
		m.log.Info().Int64("review", id).Msg("submitted pending review from an earlier run")
	}
	return state, nil
}

func (m *Manager) existingComments(ctx context.Context, t host.Target, login string) (map[Anchor]int64, error) {
	comments, err := m.host.ListReviewComments(ctx, t)
	if err != nil {
		return nil, host.Wrap(host.KindUnknown, "list review comments", "", err)
	}
	existing := map[Anchor]int64{}
	for _, c := range comments {
		if c.Line == 0 || !ownedBy(c.User, login) || !IsSuggestionComment(c.Body) {
			continue
		}
		a := Anchor{Path: c.Path, Line: c.Line}
		if c.ID > existing[a] {
			existing[a] = c.ID
		}
	}
	return existing, nil
}

// patchIndex returns nil when the patch cannot be read, which disables the
// commentable-line filter.
func (m *Manager) patchIndex(ctx context.Context, t host.Target) patchIndex {
	files, err := m.host.ListPullRequestFiles(ctx, t)
	if err != nil {
		m.log.Warn().Err(err).Msg("cannot list pull request files; posting without anchor checks")
		return nil
	}
	idx, err := newPatchIndex(files)
	if err != nil {
		m.log.Warn().Err(err).Msg("cannot parse pull request patch; posting without anchor checks")
		return nil
	}
	return idx
}

func (m *Manager) reconcile(suggestions []suggest.CommitSuggestion, state RemoteReviewState, index patchIndex, out *Outcome) ([]update, []host.DraftComment) {
	var (
		updates []update
		creates []host.DraftComment
	)
	seen := map[Anchor]bool{}
	for _, s := range suggestions {
		p, ok := place(s)
		if !ok {
			out.Skipped++
			m.log.Warn().Str("path", s.FilePath).Int("line", s.LineNumber).Msg("suggestion has no original line to anchor on")
			continue
		}
		if seen[p.Anchor] {
			out.Skipped++
			m.log.Warn().Str("path", p.Path).Int("line", p.Line).Msg("duplicate anchor; keeping the first suggestion")
			continue
		}
		seen[p.Anchor] = true

		body := FormatComment(p.Text, p.WholeFile)
		if id, ok := state.ExistingSuggestionComments[p.Anchor]; ok {
			updates = append(updates, update{id: id, path: p.Path, body: body})
			continue
		}
		if index != nil && !index.commentable(p.Path, p.StartLine, p.Line) {
			out.Skipped++
			m.log.Warn().Str("path", p.Path).Int("line", p.Line).Msg("suggestion is outside the pull request diff; skipping")
			continue
		}
		dc := host.DraftComment{Path: p.Path, Line: p.Line, Side: host.SideRight, Body: body}
		if p.StartLine < p.Line {
			dc.StartLine = p.StartLine
		}
		creates = append(creates, dc)
	}
	return updates, creates
}

// submit runs updates concurrently alongside the sequential create batches.
// Errors are collected, never short-circuited.
func (m *Manager) submit(ctx context.Context, t host.Target, updates []update, batches [][]host.DraftComment, dropped int, out *Outcome) error {
	var (
		mu   sync.Mutex
		errs error
		g    errgroup.Group
	)
	g.SetLimit(m.concurrency)
	record := func(err error, n int) {
		mu.Lock()
		defer mu.Unlock()
		errs = multierr.Append(errs, err)
		out.Failed += n
	}

	if len(batches) > 0 {
		g.Go(func() error {
			for _, batch := range batches {
				rev, err := m.host.CreateReview(ctx, t, host.ReviewDraft{
					CommitID: t.HeadSHA,
					Body:     reviewBody(len(batch), countFiles(batch), dropped),
					Event:    host.EventComment,
					Comments: batch,
				})
				if err != nil {
					record(host.Wrap(host.KindUnknown, "create review", "", err), len(batch))
					continue
				}
				mu.Lock()
				out.Created += len(batch)
				out.ReviewIDs = append(out.ReviewIDs, rev.ID)
				mu.Unlock()
			}
			return nil
		})
	}
	for _, u := range updates {
		g.Go(func() error {
			if err := m.host.UpdateReviewComment(ctx, t.Owner, t.Repo, u.id, u.body); err != nil {
				record(host.Wrap(host.KindUnknown, "update comment", u.path, err), 1)
				return nil
			}
			mu.Lock()
			out.Updated++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

func partition(comments []host.DraftComment, size int) [][]host.DraftComment {
	var batches [][]host.DraftComment
	for len(comments) > 0 {
		n := min(size, len(comments))
		batches = append(batches, comments[:n])
		comments = comments[n:]
	}
	return batches
}

func countFiles(batch []host.DraftComment) int {
	files := map[string]bool{}
	for _, c := range batch {
		files[c.Path] = true
	}
	return len(files)
}

func ownedBy(user, login string) bool {
	return login == "" || user == login
}

func terminalState(err error, current State) State {
	switch host.KindOf(err) {
	case host.KindPermissionDenied:
		return PermissionDenied
	case host.KindNotFound:
		return NotFound
	default:
		return current
	}
}
