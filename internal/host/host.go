package host

import (
	"context"
	"fmt"
	"time"
)

// Target identifies the pull request a run operates on. It is passed
// explicitly into every component entry point.
type Target struct {
	Owner   string
	Repo    string
	Number  int
	HeadRef string
	HeadSHA string
	BaseRef string
}

// String returns owner/repo#number.
func (t Target) String() string {
	return fmt.Sprintf("%s/%s#%d", t.Owner, t.Repo, t.Number)
}

// Permission is the caller's access level on a repository.
type Permission struct {
	Admin bool
	Push  bool
	Pull  bool
}

// Review states and events as used by the host.
const (
	ReviewStatePending = "PENDING"
	EventComment       = "COMMENT"
	SideRight          = "RIGHT"
)

// Review is a pull request review.
type Review struct {
	ID    int64
	State string
	User  string
}

// ReviewComment is an inline comment attached to a pull request diff.
// Line is zero when the host considers the comment outdated.
type ReviewComment struct {
	ID   int64
	User string
	Path string
	Line int
	Body string
}

// DraftComment is an inline comment to be created as part of a review.
// StartLine is set for a comment spanning StartLine..Line.
type DraftComment struct {
	Path      string
	StartLine int
	Line      int
	Side      string
	Body      string
}

// ReviewDraft is a review to be created and submitted in one call.
type ReviewDraft struct {
	CommitID string
	Body     string
	Event    string
	Comments []DraftComment
}

// PullRequestFile is a file changed in a pull request, with its rendered patch.
type PullRequestFile struct {
	Filename string
	Status   string
	Patch    string
}

// Branch is a named branch and the SHA it points to.
type Branch struct {
	Name string
	SHA  string
}

// Commit is the subset of commit metadata scribe needs.
type Commit struct {
	SHA  string
	Date time.Time
}

// FileContent is a file read from a ref.
type FileContent struct {
	Path    string
	SHA     string
	Content string
}

// FileUpdate is a create-or-update content call. SHA must carry the current
// blob SHA when the file already exists on Branch.
type FileUpdate struct {
	Path    string
	Branch  string
	Message string
	Content string
	SHA     string
}

// PullRequest is a pull request as seen by scribe.
type PullRequest struct {
	Number  int
	URL     string
	State   string
	HeadRef string
	HeadSHA string
	BaseRef string
}

// NewPullRequest describes a pull request to create.
type NewPullRequest struct {
	Title string
	Head  string
	Base  string
	Body  string
}

// Repositories covers repository and identity reads.
type Repositories interface {
	RepositoryPermission(ctx context.Context, owner, repo string) (Permission, error)
	AuthenticatedLogin(ctx context.Context) (string, error)
}

// Reviews covers pull request reviews and their inline comments.
type Reviews interface {
	ListReviews(ctx context.Context, t Target) ([]Review, error)
	SubmitReview(ctx context.Context, t Target, reviewID int64, event, body string) error
	CreateReview(ctx context.Context, t Target, draft ReviewDraft) (Review, error)
	ListReviewComments(ctx context.Context, t Target) ([]ReviewComment, error)
	UpdateReviewComment(ctx context.Context, owner, repo string, commentID int64, body string) error
	ListPullRequestFiles(ctx context.Context, t Target) ([]PullRequestFile, error)
}

// Refs covers branch reads and ref mutations.
type Refs interface {
	GetBranch(ctx context.Context, owner, repo, name string) (Branch, error)
	ListBranches(ctx context.Context, owner, repo string) ([]Branch, error)
	CreateBranch(ctx context.Context, owner, repo, name, sha string) error
	UpdateBranch(ctx context.Context, owner, repo, name, sha string, force bool) error
	DeleteBranch(ctx context.Context, owner, repo, name string) error
	GetCommit(ctx context.Context, owner, repo, sha string) (Commit, error)
}

// Contents covers file reads and writes on a ref.
type Contents interface {
	GetFile(ctx context.Context, owner, repo, path, ref string) (FileContent, error)
	PutFile(ctx context.Context, owner, repo string, update FileUpdate) (string, error)
}

// Pulls covers pull request lookup and creation.
type Pulls interface {
	GetPullRequest(ctx context.Context, owner, repo string, number int) (PullRequest, error)
	ListPullRequests(ctx context.Context, owner, repo, head, state string) ([]PullRequest, error)
	CreatePullRequest(ctx context.Context, owner, repo string, pr NewPullRequest) (PullRequest, error)
}

// Platform is the full set of host capabilities.
type Platform interface {
	Repositories
	Reviews
	Refs
	Contents
	Pulls
}
