package github

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Repo names a repository.
type Repo struct {
	Owner string
	Name  string
}

func (r Repo) String() string { return r.Owner + "/" + r.Name }

// ParseRepo accepts an "owner/repo" slug, an https URL or an scp-style ssh
// remote such as git@github.com:owner/repo.git.
func ParseRepo(s string) (Repo, error) {
	s = strings.TrimSpace(s)
	slug := s
	switch {
	case strings.Contains(s, "://"):
		u, err := url.Parse(s)
		if err != nil || u.Host == "" {
			return Repo{}, fmt.Errorf("invalid repository %q: want owner/repo", s)
		}
		slug = strings.Trim(u.Path, "/")
	case strings.Contains(s, "@") && strings.Contains(s, ":"):
		_, slug, _ = strings.Cut(s, ":")
	}
	slug = strings.TrimSuffix(slug, ".git")

	owner, name, ok := strings.Cut(slug, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Repo{}, fmt.Errorf("invalid repository %q: want owner/repo", s)
	}
	return Repo{Owner: owner, Name: name}, nil
}

// DetectRepo finds the repository of the current run: GITHUB_REPOSITORY
// inside Actions, otherwise the origin remote of the working directory.
func DetectRepo(ctx context.Context) (Repo, error) {
	if slug := os.Getenv("GITHUB_REPOSITORY"); slug != "" {
		return ParseRepo(slug)
	}
	out, err := exec.CommandContext(ctx, "git", "remote", "get-url", "origin").Output()
	if err != nil {
		return Repo{}, fmt.Errorf("cannot detect repository: git remote get-url origin: %w", err)
	}
	return ParseRepo(string(out))
}

// PullNumberFromEnv returns the pull request of an Actions run, read from
// GITHUB_REF (refs/pull/<n>/merge). It returns 0 outside a pull request run.
func PullNumberFromEnv() int {
	rest, ok := strings.CutPrefix(os.Getenv("GITHUB_REF"), "refs/pull/")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.SplitN(rest, "/", 2)[0])
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
