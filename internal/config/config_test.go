package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, "text", cfg.Format)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.Suggestions.Enabled)
	assert.Equal(t, 100, cfg.Suggestions.MaxComments)
	assert.Equal(t, 1, cfg.Suggestions.MaxBatches)
	assert.Equal(t, "scribe-rewrite", cfg.Rewrite.BranchPrefix)
	assert.Equal(t, 7, cfg.Sweep.RetentionDays)
	assert.True(t, cfg.Privacy.RedactSecrets)
	assert.Equal(t, []string{"**/.env", "**/*secrets*"}, cfg.Privacy.RedactPaths)
	assert.Empty(t, cfg.GitHub.APIURL, "empty defers to GITHUB_API_URL")
	assert.InDelta(t, 5.0, cfg.GitHub.RequestsPerSecond, 0.001)
	assert.NoError(t, Validate(cfg))
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.toml"), nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
provider = "openai"
model = "gpt-4o"
tone = "formal"

[rewrite]
branch_prefix = "docs-bot"

[sweep]
retention_days = 14
`), 0o644))

	t.Setenv("SCRIBE_MODEL", "gpt-4o-mini")
	t.Setenv("SCRIBE_SWEEP_RETENTION_DAYS", "3")
	t.Setenv("SCRIBE_SUGGESTIONS_ENABLED", "false")
	t.Setenv("SCRIBE_INCLUDE", "docs/**,README.md")

	cfg, err := Load(path, map[string]any{"tone": "friendly"})
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Provider, "file beats default")
	assert.Equal(t, "gpt-4o-mini", cfg.Model, "env beats file")
	assert.Equal(t, "friendly", cfg.Tone, "override beats file")
	assert.Equal(t, "docs-bot", cfg.Rewrite.BranchPrefix)
	assert.Equal(t, 3, cfg.Sweep.RetentionDays)
	assert.False(t, cfg.Suggestions.Enabled)
	assert.Equal(t, []string{"docs/**", "README.md"}, cfg.Include)
	assert.True(t, cfg.Rewrite.Enabled, "untouched keys keep defaults")
}

func TestLoad_EnvLists(t *testing.T) {
	t.Setenv("SCRIBE_EXCLUDE", " vendor/** , ,drafts/**")
	t.Setenv("SCRIBE_PRIVACY_REDACT_PATHS", "secrets/*")
	t.Setenv("SCRIBE_TONE", "plain, direct")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.toml"), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"vendor/**", "drafts/**"}, cfg.Exclude)
	assert.Equal(t, []string{"secrets/*"}, cfg.Privacy.RedactPaths)
	assert.Equal(t, "plain, direct", cfg.Tone, "scalar keys keep commas")
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("provider = ["), 0o644))

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoad_ValidationFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.toml"), map[string]any{
		"format":                   "sarif",
		"suggestions.max_comments": 500,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "format")
	assert.Contains(t, err.Error(), "suggestions.max_comments")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "github.api_url", envKey("SCRIBE_GITHUB_API_URL"))
	assert.Equal(t, "log_level", envKey("SCRIBE_LOG_LEVEL"))
	assert.Equal(t, "max_file_bytes", envKey("SCRIBE_MAX_FILE_BYTES"))
	assert.Equal(t, "rewrite.branch_prefix", envKey("SCRIBE_REWRITE_BRANCH_PREFIX"))
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	got, err := Init(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Init(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestSetField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	require.NoError(t, SetField(path, "provider", "gemini"))
	require.NoError(t, SetField(path, "sweep.retention_days", "30"))
	require.NoError(t, SetField(path, "rewrite.enabled", "false"))
	require.NoError(t, SetField(path, "exclude", "vendor/**, drafts/**"))
	require.NoError(t, SetField(path, "fail_under", "72.5"))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.Provider)
	assert.Equal(t, 30, cfg.Sweep.RetentionDays)
	assert.False(t, cfg.Rewrite.Enabled)
	assert.Equal(t, []string{"vendor/**", "drafts/**"}, cfg.Exclude)
	assert.InDelta(t, 72.5, cfg.FailUnder, 0.001)
}

func TestSetField_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	err := SetField(path, "nonsense", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")

	err = SetField(path, "sweep.retention_days", "soon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be an integer")

	err = SetField(path, "cache.enabled", "maybe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a boolean")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "failed sets leave no file behind")
}

func TestDump(t *testing.T) {
	data, err := Dump(filepath.Join(t.TempDir(), "none.toml"), map[string]any{"dialect": "en-GB"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `dialect = "en-GB"`)
	assert.Contains(t, string(data), "[rewrite]")
}

func TestKeys(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "suggestions.max_batches")
	assert.Contains(t, keys, "github.login")
	assert.IsIncreasing(t, keys)
}

func TestConfigDir_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	dir, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/xdg/scribe", dir)

	path, err := ConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/xdg/scribe/config.toml", path)
}
