package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/scribe/internal/host"
)

type apiUser struct {
	Login string `json:"login"`
}

type apiReview struct {
	ID    int64   `json:"id"`
	State string  `json:"state"`
	User  apiUser `json:"user"`
}

func (r apiReview) toHost() host.Review {
	return host.Review{ID: r.ID, State: r.State, User: r.User.Login}
}

type apiPull struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
	State   string `json:"state"`
	Head    struct {
		Ref string `json:"ref"`
		SHA string `json:"sha"`
	} `json:"head"`
	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`
}

func (p apiPull) toHost() host.PullRequest {
	return host.PullRequest{
		Number:  p.Number,
		URL:     p.HTMLURL,
		State:   p.State,
		HeadRef: p.Head.Ref,
		HeadSHA: p.Head.SHA,
		BaseRef: p.Base.Ref,
	}
}

func pullPath(t host.Target) string {
	return repoPath(t.Owner, t.Repo) + "/pulls/" + strconv.Itoa(t.Number)
}

// RepositoryPermission returns the token's permissions on owner/repo.
func (c *Client) RepositoryPermission(ctx context.Context, owner, repo string) (host.Permission, error) {
	var out struct {
		Permissions *struct {
			Admin bool `json:"admin"`
			Push  bool `json:"push"`
			Pull  bool `json:"pull"`
		} `json:"permissions"`
	}
	if _, err := c.do(ctx, "get repository", http.MethodGet, repoPath(owner, repo), nil, nil, &out); err != nil {
		return host.Permission{}, err
	}
	if out.Permissions == nil {
		return host.Permission{Pull: true}, nil
	}
	return host.Permission{Admin: out.Permissions.Admin, Push: out.Permissions.Push, Pull: out.Permissions.Pull}, nil
}

// AuthenticatedLogin returns the login the token belongs to. Installation
// tokens have no user and return a PermissionDenied error.
func (c *Client) AuthenticatedLogin(ctx context.Context) (string, error) {
	var u apiUser
	if _, err := c.do(ctx, "get user", http.MethodGet, "/user", nil, nil, &u); err != nil {
		return "", err
	}
	return u.Login, nil
}

// ListReviews lists the reviews of a pull request.
func (c *Client) ListReviews(ctx context.Context, t host.Target) ([]host.Review, error) {
	raw, err := getAll[apiReview](ctx, c, "list reviews", pullPath(t)+"/reviews", nil)
	if err != nil {
		return nil, err
	}
	out := make([]host.Review, len(raw))
	for i, r := range raw {
		out[i] = r.toHost()
	}
	return out, nil
}

// SubmitReview submits a pending review with the given event.
func (c *Client) SubmitReview(ctx context.Context, t host.Target, reviewID int64, event, body string) error {
	in := map[string]string{"event": event}
	if body != "" {
		in["body"] = body
	}
	path := fmt.Sprintf("%s/reviews/%d/events", pullPath(t), reviewID)
	_, err := c.do(ctx, "submit review", http.MethodPost, path, nil, in, nil)
	return err
}

type apiDraftComment struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line,omitempty"`
	StartSide string `json:"start_side,omitempty"`
	Line      int    `json:"line"`
	Side      string `json:"side,omitempty"`
	Body      string `json:"body"`
}

// CreateReview creates a review with inline comments. An empty Event
// leaves the review pending.
func (c *Client) CreateReview(ctx context.Context, t host.Target, draft host.ReviewDraft) (host.Review, error) {
	in := struct {
		CommitID string            `json:"commit_id,omitempty"`
		Body     string            `json:"body,omitempty"`
		Event    string            `json:"event,omitempty"`
		Comments []apiDraftComment `json:"comments"`
	}{CommitID: draft.CommitID, Body: draft.Body, Event: draft.Event, Comments: []apiDraftComment{}}
	for _, dc := range draft.Comments {
		ac := apiDraftComment{Path: dc.Path, Line: dc.Line, Side: dc.Side, Body: dc.Body}
		if dc.StartLine > 0 && dc.StartLine < dc.Line {
			ac.StartLine = dc.StartLine
			ac.StartSide = dc.Side
		}
		in.Comments = append(in.Comments, ac)
	}

	var out apiReview
	if _, err := c.do(ctx, "create review", http.MethodPost, pullPath(t)+"/reviews", nil, in, &out); err != nil {
		return host.Review{}, err
	}
	return out.toHost(), nil
}

// ListReviewComments lists the inline comments of a pull request.
func (c *Client) ListReviewComments(ctx context.Context, t host.Target) ([]host.ReviewComment, error) {
	type apiComment struct {
		ID   int64   `json:"id"`
		User apiUser `json:"user"`
		Path string  `json:"path"`
		Line *int    `json:"line"`
		Body string  `json:"body"`
	}
	raw, err := getAll[apiComment](ctx, c, "list review comments", pullPath(t)+"/comments", nil)
	if err != nil {
		return nil, err
	}
	out := make([]host.ReviewComment, len(raw))
	for i, r := range raw {
		out[i] = host.ReviewComment{ID: r.ID, User: r.User.Login, Path: r.Path, Body: r.Body}
		if r.Line != nil {
			out[i].Line = *r.Line
		}
	}
	return out, nil
}

// UpdateReviewComment replaces the body of an inline comment.
func (c *Client) UpdateReviewComment(ctx context.Context, owner, repo string, commentID int64, body string) error {
	path := fmt.Sprintf("%s/pulls/comments/%d", repoPath(owner, repo), commentID)
	_, err := c.do(ctx, "update review comment", http.MethodPatch, path, nil, map[string]string{"body": body}, nil)
	return err
}

// ListPullRequestFiles lists the files of a pull request with their patches.
func (c *Client) ListPullRequestFiles(ctx context.Context, t host.Target) ([]host.PullRequestFile, error) {
	type apiFile struct {
		Filename string `json:"filename"`
		Status   string `json:"status"`
		Patch    string `json:"patch"`
	}
	raw, err := getAll[apiFile](ctx, c, "list pull request files", pullPath(t)+"/files", nil)
	if err != nil {
		return nil, err
	}
	out := make([]host.PullRequestFile, len(raw))
	for i, f := range raw {
		out[i] = host.PullRequestFile(f)
	}
	return out, nil
}

type apiRef struct {
	Ref    string `json:"ref"`
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

// GetBranch resolves a branch to its head commit.
func (c *Client) GetBranch(ctx context.Context, owner, repo, name string) (host.Branch, error) {
	var ref apiRef
	path := repoPath(owner, repo) + "/git/ref/heads/" + escapePath(name)
	if _, err := c.do(ctx, "get branch", http.MethodGet, path, nil, nil, &ref); err != nil {
		return host.Branch{}, withPath(err, name)
	}
	return host.Branch{Name: name, SHA: ref.Object.SHA}, nil
}

// ListBranches lists every branch of the repository.
func (c *Client) ListBranches(ctx context.Context, owner, repo string) ([]host.Branch, error) {
	type apiBranch struct {
		Name   string `json:"name"`
		Commit struct {
			SHA string `json:"sha"`
		} `json:"commit"`
	}
	raw, err := getAll[apiBranch](ctx, c, "list branches", repoPath(owner, repo)+"/branches", nil)
	if err != nil {
		return nil, err
	}
	out := make([]host.Branch, len(raw))
	for i, b := range raw {
		out[i] = host.Branch{Name: b.Name, SHA: b.Commit.SHA}
	}
	return out, nil
}

// CreateBranch creates refs/heads/name at sha.
func (c *Client) CreateBranch(ctx context.Context, owner, repo, name, sha string) error {
	in := map[string]string{"ref": "refs/heads/" + name, "sha": sha}
	_, err := c.do(ctx, "create branch", http.MethodPost, repoPath(owner, repo)+"/git/refs", nil, in, nil)
	return withPath(err, name)
}

// UpdateBranch moves refs/heads/name to sha.
func (c *Client) UpdateBranch(ctx context.Context, owner, repo, name, sha string, force bool) error {
	in := struct {
		SHA   string `json:"sha"`
		Force bool   `json:"force"`
	}{sha, force}
	path := repoPath(owner, repo) + "/git/refs/heads/" + escapePath(name)
	_, err := c.do(ctx, "update branch", http.MethodPatch, path, nil, in, nil)
	return withPath(err, name)
}

// DeleteBranch deletes refs/heads/name.
func (c *Client) DeleteBranch(ctx context.Context, owner, repo, name string) error {
	path := repoPath(owner, repo) + "/git/refs/heads/" + escapePath(name)
	_, err := c.do(ctx, "delete branch", http.MethodDelete, path, nil, nil, nil)
	return withPath(err, name)
}

// GetCommit reads a commit's committer date.
func (c *Client) GetCommit(ctx context.Context, owner, repo, sha string) (host.Commit, error) {
	var out struct {
		SHA    string `json:"sha"`
		Commit struct {
			Committer struct {
				Date time.Time `json:"date"`
			} `json:"committer"`
		} `json:"commit"`
	}
	path := repoPath(owner, repo) + "/commits/" + url.PathEscape(sha)
	if _, err := c.do(ctx, "get commit", http.MethodGet, path, nil, nil, &out); err != nil {
		return host.Commit{}, err
	}
	return host.Commit{SHA: out.SHA, Date: out.Commit.Committer.Date}, nil
}

// GetFile reads a file at ref. Directories are rejected as KindInvalid.
func (c *Client) GetFile(ctx context.Context, owner, repo, path, ref string) (host.FileContent, error) {
	var out struct {
		Type     string `json:"type"`
		Path     string `json:"path"`
		SHA      string `json:"sha"`
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	q := url.Values{}
	if ref != "" {
		q.Set("ref", ref)
	}
	p := repoPath(owner, repo) + "/contents/" + escapePath(path)
	if _, err := c.do(ctx, "get file", http.MethodGet, p, q, nil, &out); err != nil {
		return host.FileContent{}, withPath(err, path)
	}
	if out.Type != "" && out.Type != "file" {
		return host.FileContent{}, &host.Error{Kind: host.KindInvalid, Op: "get file", Path: path, Err: fmt.Errorf("not a file: %s", out.Type)}
	}
	content := out.Content
	if out.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(out.Content, "\n", ""))
		if err != nil {
			return host.FileContent{}, fmt.Errorf("get file %s: decoding content: %w", path, err)
		}
		content = string(decoded)
	}
	return host.FileContent{Path: out.Path, SHA: out.SHA, Content: content}, nil
}

// PutFile creates or updates a file and returns the new commit SHA.
func (c *Client) PutFile(ctx context.Context, owner, repo string, u host.FileUpdate) (string, error) {
	in := struct {
		Message string `json:"message"`
		Content string `json:"content"`
		Branch  string `json:"branch,omitempty"`
		SHA     string `json:"sha,omitempty"`
	}{u.Message, base64.StdEncoding.EncodeToString([]byte(u.Content)), u.Branch, u.SHA}
	var out struct {
		Commit struct {
			SHA string `json:"sha"`
		} `json:"commit"`
	}
	p := repoPath(owner, repo) + "/contents/" + escapePath(u.Path)
	if _, err := c.do(ctx, "put file", http.MethodPut, p, nil, in, &out); err != nil {
		return "", withPath(err, u.Path)
	}
	return out.Commit.SHA, nil
}

// GetPullRequest reads a pull request.
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (host.PullRequest, error) {
	var out apiPull
	path := repoPath(owner, repo) + "/pulls/" + strconv.Itoa(number)
	if _, err := c.do(ctx, "get pull request", http.MethodGet, path, nil, nil, &out); err != nil {
		return host.PullRequest{}, err
	}
	return out.toHost(), nil
}

// ListPullRequests lists pull requests filtered by head ("owner:branch")
// and state.
func (c *Client) ListPullRequests(ctx context.Context, owner, repo, head, state string) ([]host.PullRequest, error) {
	q := url.Values{}
	if head != "" {
		q.Set("head", head)
	}
	if state != "" {
		q.Set("state", state)
	}
	raw, err := getAll[apiPull](ctx, c, "list pull requests", repoPath(owner, repo)+"/pulls", q)
	if err != nil {
		return nil, err
	}
	out := make([]host.PullRequest, len(raw))
	for i, p := range raw {
		out[i] = p.toHost()
	}
	return out, nil
}

// CreatePullRequest opens a pull request.
func (c *Client) CreatePullRequest(ctx context.Context, owner, repo string, pr host.NewPullRequest) (host.PullRequest, error) {
	in := struct {
		Title string `json:"title"`
		Head  string `json:"head"`
		Base  string `json:"base"`
		Body  string `json:"body,omitempty"`
	}{pr.Title, pr.Head, pr.Base, pr.Body}
	var out apiPull
	if _, err := c.do(ctx, "create pull request", http.MethodPost, repoPath(owner, repo)+"/pulls", nil, in, &out); err != nil {
		return host.PullRequest{}, err
	}
	return out.toHost(), nil
}

// withPath records the file or branch an error concerns.
func withPath(err error, path string) error {
	var he *host.Error
	if errors.As(err, &he) && he.Path == "" {
		he.Path = path
	}
	return err
}
