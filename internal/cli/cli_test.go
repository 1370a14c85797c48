package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/scribe/internal/cache"
	"github.com/dshills/scribe/internal/config"
	"github.com/dshills/scribe/internal/host"
	"github.com/dshills/scribe/internal/host/hostfake"
	"github.com/dshills/scribe/internal/providers"
	"github.com/dshills/scribe/internal/review"
	"github.com/dshills/scribe/internal/workflow"
)

// resetFlags resets all package-level flag variables to their zero values.
func resetFlags() {
	flagConfig = ""
	flagLogLevel = ""
	flagFormat = ""
	flagOut = ""
	flagRepo = ""
	flagProvider = ""
	flagModel = ""
	flagDialect = ""
	flagTone = ""
	flagStyleGuide = ""
	flagPaths = ""
	flagExclude = ""
	flagFailUnder = 0
	flagNoSuggest = false
	flagNoRewrite = false
	flagNoSweep = false
	flagNoCache = false
	flagDryRun = false
	flagMaxComments = 0
	flagSuggestPath = ""
	flagRetentionDays = 0
}

// execute runs the command tree with args and returns its output and exit code.
func execute(t *testing.T, args ...string) (string, int) {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)
	exitCode = ExitSuccess

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return buf.String(), exitCode
}

func TestSplitComma(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"foo", []string{"foo"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"a,,b", []string{"a", "b"}},
		{",,,", nil},
		{"docs/**,*.md", []string{"docs/**", "*.md"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitComma(tt.input), "splitComma(%q)", tt.input)
	}
}

func TestBuildOverrides(t *testing.T) {
	resetFlags()
	t.Cleanup(resetFlags)

	assert.Empty(t, buildOverrides())

	flagProvider = "gemini"
	flagTone = "formal"
	flagPaths = "docs/**, README.md"
	flagFailUnder = 60
	flagNoRewrite = true
	flagMaxComments = 25

	assert.Equal(t, map[string]any{
		"provider":                 "gemini",
		"tone":                     "formal",
		"include":                  []string{"docs/**", "README.md"},
		"fail_under":               60.0,
		"rewrite.enabled":          false,
		"suggestions.max_comments": 25,
	}, buildOverrides())
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, ExitUsageError, exitCodeFor(usagef("bad %s", "input")))
	assert.Equal(t, ExitUsageError, exitCodeFor(fmt.Errorf("wrapped: %w", usagef("bad"))))
	assert.Equal(t, ExitAuthError, exitCodeFor(host.Errorf(host.KindPermissionDenied, "github", "GITHUB_TOKEN environment variable is not set")))
	assert.Equal(t, ExitRuntimeError, exitCodeFor(host.Errorf(host.KindTransient, "GetPullRequest", "502")))
}

func TestOutcomeExitCode(t *testing.T) {
	low := []review.AnalysisResult{{FilePath: "a.md", Scores: review.Scores{Quality: 40}}}

	assert.Equal(t, ExitSuccess, outcomeExitCode(workflow.Outcome{Results: low}, 0))
	assert.Equal(t, ExitBelowThreshold, outcomeExitCode(workflow.Outcome{Results: low}, 50))
	assert.Equal(t, ExitDegraded, outcomeExitCode(workflow.Outcome{
		Results: low,
		Errors:  []workflow.StepError{{Step: workflow.StepRewrite}},
	}, 50))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, zerolog.DebugLevel, newLogger(&buf, "debug").GetLevel())
	assert.Equal(t, zerolog.WarnLevel, newLogger(&buf, "WARN").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, newLogger(&buf, "").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, newLogger(&buf, "chatty").GetLevel())

	l := newLogger(&buf, "info")
	l.Info().Str("branch", "scribe-rewrite/pr-7").Msg("synced")
	assert.Contains(t, buf.String(), "synced")
	assert.Contains(t, buf.String(), "scribe-rewrite/pr-7")
}

// rewritingCompleter replaces "line2" in every document with "NEW".
type rewritingCompleter struct{}

func (rewritingCompleter) Complete(_ context.Context, req providers.Request) (providers.Response, error) {
	start := strings.Index(req.UserPrompt, "--- BEGIN DOCUMENT ---\n") + len("--- BEGIN DOCUMENT ---\n")
	end := strings.Index(req.UserPrompt, "\n--- END DOCUMENT ---")
	body := strings.ReplaceAll(req.UserPrompt[start:end], "line2", "NEW")
	return providers.Response{Content: fmt.Sprintf(
		`{"rewritten": %q, "scores": {"quality": 72, "clarity": 70, "grammar": 90, "consistency": 80, "tone": 75}}`, body)}, nil
}

func (rewritingCompleter) Name() string { return "fake" }

func prFixture() (*hostfake.Platform, host.Target) {
	p := hostfake.New(map[string]string{"README.md": "line1\nline2\nline3\n", "main.go": "package main\n"})
	p.Files = []host.PullRequestFile{
		{Filename: "README.md", Status: "added", Patch: "@@ -0,0 +1,3 @@\n+line1\n+line2\n+line3"},
		{Filename: "main.go", Status: "added", Patch: "@@ -0,0 +1 @@\n+package main"},
	}
	return p, host.Target{Owner: "acme", Repo: "docs", Number: 7, HeadRef: "main", HeadSHA: p.BranchSHA("main")}
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Cache.Enabled = false
	return cfg
}

func TestBuildRunner_FullRun(t *testing.T) {
	p, tgt := prFixture()

	runner, err := buildRunner(testConfig(), p, rewritingCompleter{}, zerolog.Nop(), false)
	require.NoError(t, err)

	out, err := runner.RunPullRequest(context.Background(), tgt)
	require.NoError(t, err)

	require.Len(t, out.Results, 1, "main.go is outside the default include globs")
	assert.Equal(t, "README.md", out.Results[0].FilePath)
	require.Len(t, out.Suggestions, 1)
	require.NotNil(t, out.Delivery)
	assert.Equal(t, 1, out.Delivery.Created)
	require.NotNil(t, out.Rewrite)
	require.NotNil(t, out.Rewrite.PullRequest)
	assert.Equal(t, "scribe-rewrite/pr-7", out.Rewrite.Branch.Name)
	assert.NotNil(t, out.Sweep)
	assert.Equal(t, ExitSuccess, outcomeExitCode(out, 0))
	assert.Equal(t, ExitBelowThreshold, outcomeExitCode(out, 80))
}

func TestBuildRunner_DryRunWritesNothing(t *testing.T) {
	p, tgt := prFixture()

	runner, err := buildRunner(testConfig(), p, rewritingCompleter{}, zerolog.Nop(), true)
	require.NoError(t, err)

	out, err := runner.RunPullRequest(context.Background(), tgt)
	require.NoError(t, err)

	assert.Len(t, out.Suggestions, 1)
	assert.Nil(t, out.Delivery)
	assert.Nil(t, out.Rewrite)
	assert.Nil(t, out.Sweep)
	for _, call := range p.Calls {
		assert.True(t, strings.HasPrefix(call, "ListPullRequestFiles") || strings.HasPrefix(call, "GetFile"), call)
	}
}

func TestBuildRunner_DisabledSteps(t *testing.T) {
	p, tgt := prFixture()
	cfg := testConfig()
	cfg.Suggestions.Enabled = false
	cfg.Sweep.Enabled = false

	runner, err := buildRunner(cfg, p, rewritingCompleter{}, zerolog.Nop(), false)
	require.NoError(t, err)
	out, err := runner.RunPullRequest(context.Background(), tgt)
	require.NoError(t, err)

	assert.Nil(t, out.Delivery)
	assert.Nil(t, out.Sweep)
	assert.NotNil(t, out.Rewrite)
	assert.Zero(t, p.CallCount("CreateReview"))
}

func TestBuildRunner_MissingStyleGuide(t *testing.T) {
	p, _ := prFixture()
	cfg := testConfig()
	cfg.StyleGuide = filepath.Join(t.TempDir(), "missing.json")

	_, err := buildRunner(cfg, p, rewritingCompleter{}, zerolog.Nop(), false)
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCodeFor(err))
}

func TestVersionCommand(t *testing.T) {
	out, code := execute(t, "version")
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "scribe version "+version+"\n", out)
}

func TestSuggestCommand(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	orig := filepath.Join(dir, "orig.md")
	rewritten := filepath.Join(dir, "new.md")
	require.NoError(t, os.WriteFile(orig, []byte("line1\nline2\nline3"), 0o644))
	require.NoError(t, os.WriteFile(rewritten, []byte("line1\nNEW\nline3"), 0o644))

	out, code := execute(t, "suggest", orig, rewritten, "--path", "docs/guide.md", "--format", "json")
	require.Equal(t, ExitSuccess, code, out)

	var decoded struct {
		Suggestions []struct {
			FilePath       string `json:"filePath"`
			LineNumber     int    `json:"lineNumber"`
			SuggestionText string `json:"suggestionText"`
		} `json:"suggestions"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded), out)
	require.Len(t, decoded.Suggestions, 1)
	assert.Equal(t, "docs/guide.md", decoded.Suggestions[0].FilePath)
	assert.Equal(t, 2, decoded.Suggestions[0].LineNumber)
	assert.Equal(t, "NEW", decoded.Suggestions[0].SuggestionText)
}

func TestSuggestCommand_MissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	_, code := execute(t, "suggest", "/nonexistent/a.md", "/nonexistent/b.md")
	assert.Equal(t, ExitUsageError, code)
}

func TestPRCommand_InvalidNumber(t *testing.T) {
	_, code := execute(t, "pr", "abc")
	assert.Equal(t, ExitUsageError, code)

	t.Setenv("GITHUB_REF", "refs/heads/main")
	_, code = execute(t, "pr")
	assert.Equal(t, ExitUsageError, code, "no number outside a pull request run")
}

func TestPullNumber(t *testing.T) {
	t.Setenv("GITHUB_REF", "refs/pull/42/merge")
	n, err := pullNumber(nil)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	n, err = pullNumber([]string{"7"})
	require.NoError(t, err)
	assert.Equal(t, 7, n, "explicit number wins")

	_, err = pullNumber([]string{"0"})
	assert.Equal(t, ExitUsageError, exitCodeFor(err))
}

func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	out, code := execute(t, "config", "path", "--config", path)
	require.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "not created")

	out, code = execute(t, "config", "init", "--config", path)
	require.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, path)

	out, code = execute(t, "config", "set", "rewrite.branch_prefix", "docs-bot", "--config", path)
	require.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "Set rewrite.branch_prefix = docs-bot")

	out, code = execute(t, "config", "show", "--config", path)
	require.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, `branch_prefix = "docs-bot"`)
	assert.Contains(t, out, "# file: "+path)

	out, code = execute(t, "config", "show", "--config", path, "--format", "json")
	require.Equal(t, ExitSuccess, code, out)
	var shown config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, "docs-bot", shown.Rewrite.BranchPrefix)

	_, code = execute(t, "config", "set", "no.such.key", "1", "--config", path)
	assert.Equal(t, ExitUsageError, code)

	_, code = execute(t, "config", "init", "--config", path)
	assert.Equal(t, ExitRuntimeError, code, "init refuses to overwrite")
}

func TestCacheCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cacheDir := t.TempDir()
	require.NoError(t, config.SetField(path, "cache.dir", cacheDir))
	c, err := cache.Open(cacheDir, time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.Put(cache.Key{Provider: "anthropic", Model: "m", Inputs: []string{"a.md"}}, "{}"))

	out, code := execute(t, "cache", "show", "--config", path)
	require.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, cacheDir)
	assert.Contains(t, out, "Entries:   1 (0 expired")
	assert.Contains(t, out, "anthropic")

	out, code = execute(t, "cache", "clear", "--config", path)
	require.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "1 entries removed")

	out, code = execute(t, "cache", "prune", "--config", path)
	require.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "Pruned 0 entries")
}

func TestModelsList(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("OPENAI_API_KEY", "")
	out, code := execute(t, "models", "list")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "anthropic (claude):  ANTHROPIC_API_KEY set")
	assert.Contains(t, out, "openai:  OPENAI_API_KEY unset")
	assert.Contains(t, out, "gemini-2.5-flash")
}
