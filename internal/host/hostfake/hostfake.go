// Package hostfake provides an in-memory host.Platform for tests.
//
// It models a single repository with branches pointing at commits, commits
// owning a file tree, one set of pull requests, and the reviews and inline
// comments of those pull requests. Every call is appended to Calls so tests
// can assert ordering, and Fail injects errors per operation.
package hostfake

import (
	"context"
	"crypto/sha1"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dshills/scribe/internal/host"
)

// Compile-time interface verification.
var _ host.Platform = (*Platform)(nil)

// Platform is an in-memory host.
type Platform struct {
	mu sync.Mutex

	Login      string
	Permission host.Permission

	Reviews  []host.Review
	Comments []host.ReviewComment
	Files    []host.PullRequestFile
	Pulls    []host.PullRequest
	Branches map[string]string // name -> commit sha
	Commits  map[string]host.Commit
	Trees    map[string]map[string]string // commit sha -> path -> content

	// Fail maps an operation name (or "op:key") to the error it returns.
	Fail map[string]error
	// Calls records every operation in order, as "op" or "op:key".
	Calls []string
	// CreatedReviews records the drafts passed to CreateReview.
	CreatedReviews []host.ReviewDraft

	// Now stamps new commits. Defaults to time.Now.
	Now func() time.Time

	nextID  int64
	nextSHA int
}

// New returns a Platform with write access, a "bot" login and a main branch
// holding the given files.
func New(files map[string]string) *Platform {
	p := &Platform{
		Login:      "bot",
		Permission: host.Permission{Pull: true, Push: true},
		Branches:   map[string]string{},
		Commits:    map[string]host.Commit{},
		Trees:      map[string]map[string]string{},
		Fail:       map[string]error{},
		nextID:     1000,
	}
	sha := p.commitLocked(copyTree(files))
	p.Branches["main"] = sha
	return p
}

// AddBranch points name at a new commit dated date holding files.
func (p *Platform) AddBranch(name string, date time.Time, files map[string]string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	sha := p.commitLocked(copyTree(files))
	c := p.Commits[sha]
	c.Date = date
	p.Commits[sha] = c
	p.Branches[name] = sha
	return sha
}

// BranchSHA returns the commit a branch points to.
func (p *Platform) BranchSHA(name string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Branches[name]
}

// FileAt returns a file's content on a branch.
func (p *Platform) FileAt(branch, path string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.Trees[p.Branches[branch]][path]
	return c, ok
}

// CallCount returns how many recorded calls start with prefix.
func (p *Platform) CallCount(prefix string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.Calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// CallIndex returns the index of the first recorded call starting with
// prefix, or -1.
func (p *Platform) CallIndex(prefix string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.Calls {
		if strings.HasPrefix(c, prefix) {
			return i
		}
	}
	return -1
}

// BlobSHA is the blob identifier the fake assigns to content.
func BlobSHA(content string) string {
	return fmt.Sprintf("%x", sha1.Sum([]byte(content)))
}

func (p *Platform) record(op, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recordLocked(op, key)
}

func (p *Platform) recordLocked(op, key string) error {
	call := op
	if key != "" {
		call = op + ":" + key
	}
	p.Calls = append(p.Calls, call)
	if err, ok := p.Fail[call]; ok {
		return err
	}
	if err, ok := p.Fail[op]; ok {
		return err
	}
	return nil
}

func (p *Platform) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Platform) commitLocked(tree map[string]string) string {
	p.nextSHA++
	sha := fmt.Sprintf("%040x", p.nextSHA)
	p.Commits[sha] = host.Commit{SHA: sha, Date: p.now()}
	p.Trees[sha] = tree
	return sha
}

func (p *Platform) resolveLocked(ref string) (string, bool) {
	if sha, ok := p.Branches[ref]; ok {
		return sha, true
	}
	if _, ok := p.Trees[ref]; ok {
		return ref, true
	}
	return "", false
}

func copyTree(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func notFound(op, what string) error {
	return host.Errorf(host.KindNotFound, op, "%s not found", what)
}

// --- host.Repositories ---

func (p *Platform) RepositoryPermission(ctx context.Context, owner, repo string) (host.Permission, error) {
	if err := p.record("RepositoryPermission", ""); err != nil {
		return host.Permission{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Permission, nil
}

func (p *Platform) AuthenticatedLogin(ctx context.Context) (string, error) {
	if err := p.record("AuthenticatedLogin", ""); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Login, nil
}

// --- host.Reviews ---

func (p *Platform) ListReviews(ctx context.Context, t host.Target) ([]host.Review, error) {
	if err := p.record("ListReviews", ""); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]host.Review(nil), p.Reviews...), nil
}

func (p *Platform) SubmitReview(ctx context.Context, t host.Target, reviewID int64, event, body string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.recordLocked("SubmitReview", fmt.Sprint(reviewID)); err != nil {
		return err
	}
	for i := range p.Reviews {
		if p.Reviews[i].ID == reviewID {
			if p.Reviews[i].State != host.ReviewStatePending {
				return host.Errorf(host.KindInvalid, "SubmitReview", "review %d is not pending", reviewID)
			}
			p.Reviews[i].State = "COMMENTED"
			return nil
		}
	}
	return notFound("SubmitReview", fmt.Sprintf("review %d", reviewID))
}

func (p *Platform) CreateReview(ctx context.Context, t host.Target, draft host.ReviewDraft) (host.Review, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.recordLocked("CreateReview", ""); err != nil {
		return host.Review{}, err
	}
	for _, r := range p.Reviews {
		if r.State == host.ReviewStatePending && r.User == p.Login {
			return host.Review{}, host.Errorf(host.KindInvalid, "CreateReview", "user can only have one pending review per pull request")
		}
	}
	p.nextID++
	state := "COMMENTED"
	if draft.Event == "" {
		state = host.ReviewStatePending
	}
	rev := host.Review{ID: p.nextID, State: state, User: p.Login}
	p.Reviews = append(p.Reviews, rev)
	p.CreatedReviews = append(p.CreatedReviews, draft)
	for _, c := range draft.Comments {
		p.nextID++
		p.Comments = append(p.Comments, host.ReviewComment{
			ID: p.nextID, User: p.Login, Path: c.Path, Line: c.Line, Body: c.Body,
		})
	}
	return rev, nil
}

func (p *Platform) ListReviewComments(ctx context.Context, t host.Target) ([]host.ReviewComment, error) {
	if err := p.record("ListReviewComments", ""); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]host.ReviewComment(nil), p.Comments...), nil
}

func (p *Platform) UpdateReviewComment(ctx context.Context, owner, repo string, commentID int64, body string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.recordLocked("UpdateReviewComment", fmt.Sprint(commentID)); err != nil {
		return err
	}
	for i := range p.Comments {
		if p.Comments[i].ID == commentID {
			p.Comments[i].Body = body
			return nil
		}
	}
	return notFound("UpdateReviewComment", fmt.Sprintf("comment %d", commentID))
}

func (p *Platform) ListPullRequestFiles(ctx context.Context, t host.Target) ([]host.PullRequestFile, error) {
	if err := p.record("ListPullRequestFiles", ""); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]host.PullRequestFile(nil), p.Files...), nil
}

// --- host.Refs ---

func (p *Platform) GetBranch(ctx context.Context, owner, repo, name string) (host.Branch, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.recordLocked("GetBranch", name); err != nil {
		return host.Branch{}, err
	}
	sha, ok := p.Branches[name]
	if !ok {
		return host.Branch{}, notFound("GetBranch", "branch "+name)
	}
	return host.Branch{Name: name, SHA: sha}, nil
}

func (p *Platform) ListBranches(ctx context.Context, owner, repo string) ([]host.Branch, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.recordLocked("ListBranches", ""); err != nil {
		return nil, err
	}
	out := make([]host.Branch, 0, len(p.Branches))
	for name, sha := range p.Branches {
		out = append(out, host.Branch{Name: name, SHA: sha})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (p *Platform) CreateBranch(ctx context.Context, owner, repo, name, sha string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.recordLocked("CreateBranch", name); err != nil {
		return err
	}
	if _, ok := p.Branches[name]; ok {
		return host.Errorf(host.KindInvalid, "CreateBranch", "reference already exists")
	}
	if _, ok := p.Trees[sha]; !ok {
		return host.Errorf(host.KindInvalid, "CreateBranch", "object %s does not exist", sha)
	}
	p.Branches[name] = sha
	return nil
}

func (p *Platform) UpdateBranch(ctx context.Context, owner, repo, name, sha string, force bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.recordLocked("UpdateBranch", name); err != nil {
		return err
	}
	if _, ok := p.Branches[name]; !ok {
		return notFound("UpdateBranch", "branch "+name)
	}
	if _, ok := p.Trees[sha]; !ok {
		return host.Errorf(host.KindInvalid, "UpdateBranch", "object %s does not exist", sha)
	}
	p.Branches[name] = sha
	return nil
}

func (p *Platform) DeleteBranch(ctx context.Context, owner, repo, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.recordLocked("DeleteBranch", name); err != nil {
		return err
	}
	if _, ok := p.Branches[name]; !ok {
		return notFound("DeleteBranch", "branch "+name)
	}
	delete(p.Branches, name)
	return nil
}

func (p *Platform) GetCommit(ctx context.Context, owner, repo, sha string) (host.Commit, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.recordLocked("GetCommit", sha); err != nil {
		return host.Commit{}, err
	}
	c, ok := p.Commits[sha]
	if !ok {
		return host.Commit{}, notFound("GetCommit", "commit "+sha)
	}
	return c, nil
}

// --- host.Contents ---

func (p *Platform) GetFile(ctx context.Context, owner, repo, path, ref string) (host.FileContent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.recordLocked("GetFile", path); err != nil {
		return host.FileContent{}, err
	}
	sha, ok := p.resolveLocked(ref)
	if !ok {
		return host.FileContent{}, notFound("GetFile", "ref "+ref)
	}
	content, ok := p.Trees[sha][path]
	if !ok {
		return host.FileContent{}, notFound("GetFile", path)
	}
	return host.FileContent{Path: path, SHA: BlobSHA(content), Content: content}, nil
}

func (p *Platform) PutFile(ctx context.Context, owner, repo string, u host.FileUpdate) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.recordLocked("PutFile", u.Path); err != nil {
		return "", err
	}
	head, ok := p.Branches[u.Branch]
	if !ok {
		return "", notFound("PutFile", "branch "+u.Branch)
	}
	tree := copyTree(p.Trees[head])
	if cur, exists := tree[u.Path]; exists {
		if u.SHA != BlobSHA(cur) {
			return "", host.Errorf(host.KindInvalid, "PutFile", "%s does not match %s", u.Path, u.SHA)
		}
	} else if u.SHA != "" {
		return "", host.Errorf(host.KindInvalid, "PutFile", "sha given for new file %s", u.Path)
	}
	tree[u.Path] = u.Content
	sha := p.commitLocked(tree)
	p.Branches[u.Branch] = sha
	return sha, nil
}

// --- host.Pulls ---

func (p *Platform) GetPullRequest(ctx context.Context, owner, repo string, number int) (host.PullRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.recordLocked("GetPullRequest", fmt.Sprint(number)); err != nil {
		return host.PullRequest{}, err
	}
	for _, pr := range p.Pulls {
		if pr.Number == number {
			return pr, nil
		}
	}
	return host.PullRequest{}, notFound("GetPullRequest", fmt.Sprintf("pull request #%d", number))
}

func (p *Platform) ListPullRequests(ctx context.Context, owner, repo, head, state string) ([]host.PullRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.recordLocked("ListPullRequests", head); err != nil {
		return nil, err
	}
	// head arrives as "owner:branch"
	branch := head
	if i := strings.Index(head, ":"); i >= 0 {
		branch = head[i+1:]
	}
	var out []host.PullRequest
	for _, pr := range p.Pulls {
		if pr.HeadRef == branch && (state == "" || state == "all" || pr.State == state) {
			out = append(out, pr)
		}
	}
	return out, nil
}

func (p *Platform) CreatePullRequest(ctx context.Context, owner, repo string, np host.NewPullRequest) (host.PullRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.recordLocked("CreatePullRequest", np.Head); err != nil {
		return host.PullRequest{}, err
	}
	for _, pr := range p.Pulls {
		if pr.HeadRef == np.Head && pr.State == "open" {
			return host.PullRequest{}, host.Errorf(host.KindInvalid, "CreatePullRequest", "a pull request already exists for %s", np.Head)
		}
	}
	sha, ok := p.Branches[np.Head]
	if !ok {
		return host.PullRequest{}, host.Errorf(host.KindInvalid, "CreatePullRequest", "head %s does not exist", np.Head)
	}
	number := len(p.Pulls) + 1
	pr := host.PullRequest{
		Number:  number,
		URL:     fmt.Sprintf("https://example.test/%s/%s/pull/%d", owner, repo, number),
		State:   "open",
		HeadRef: np.Head,
		HeadSHA: sha,
		BaseRef: np.Base,
	}
	p.Pulls = append(p.Pulls, pr)
	return pr, nil
}
