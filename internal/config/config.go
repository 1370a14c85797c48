package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g. SCRIBE_REWRITE_ENABLED.
const EnvPrefix = "SCRIBE_"

// Config represents the scribe configuration.
type Config struct {
	Provider     string   `koanf:"provider" json:"provider"`
	Model        string   `koanf:"model" json:"model"`
	Format       string   `koanf:"format" json:"format"`
	LogLevel     string   `koanf:"log_level" json:"logLevel"`
	Dialect      string   `koanf:"dialect" json:"dialect"`
	Tone         string   `koanf:"tone" json:"tone"`
	StyleGuide   string   `koanf:"style_guide" json:"styleGuide,omitempty"`
	Include      []string `koanf:"include" json:"include"`
	Exclude      []string `koanf:"exclude" json:"exclude"`
	MaxFileBytes int      `koanf:"max_file_bytes" json:"maxFileBytes"`
	FailUnder    float64  `koanf:"fail_under" json:"failUnder"`

	Suggestions SuggestionsConfig `koanf:"suggestions" json:"suggestions"`
	Rewrite     RewriteConfig     `koanf:"rewrite" json:"rewrite"`
	Sweep       SweepConfig       `koanf:"sweep" json:"sweep"`
	Cache       CacheConfig       `koanf:"cache" json:"cache"`
	Privacy     PrivacyConfig     `koanf:"privacy" json:"privacy"`
	GitHub      GitHubConfig      `koanf:"github" json:"github"`
}

// SuggestionsConfig controls inline suggestion delivery.
type SuggestionsConfig struct {
	Enabled     bool `koanf:"enabled" json:"enabled"`
	MaxComments int  `koanf:"max_comments" json:"maxComments"`
	MaxBatches  int  `koanf:"max_batches" json:"maxBatches"`
	Concurrency int  `koanf:"concurrency" json:"concurrency"`
}

// RewriteConfig controls the rewrite branch and its pull request.
type RewriteConfig struct {
	Enabled      bool   `koanf:"enabled" json:"enabled"`
	BranchPrefix string `koanf:"branch_prefix" json:"branchPrefix"`
}

// SweepConfig controls deletion of stale rewrite branches.
type SweepConfig struct {
	Enabled       bool `koanf:"enabled" json:"enabled"`
	RetentionDays int  `koanf:"retention_days" json:"retentionDays"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled    bool   `koanf:"enabled" json:"enabled"`
	Dir        string `koanf:"dir" json:"dir,omitempty"`
	TTLSeconds int    `koanf:"ttl_seconds" json:"ttlSeconds"`
}

// PrivacyConfig controls privacy/redaction behavior.
type PrivacyConfig struct {
	RedactSecrets bool     `koanf:"redact_secrets" json:"redactSecrets"`
	RedactPaths   []string `koanf:"redact_paths" json:"redactPaths,omitempty"`
}

// GitHubConfig controls the host client.
type GitHubConfig struct {
	APIURL            string  `koanf:"api_url" json:"apiUrl"`
	RequestsPerSecond float64 `koanf:"requests_per_second" json:"requestsPerSecond"`
	MaxRetries        int     `koanf:"max_retries" json:"maxRetries"`
	TimeoutSeconds    int     `koanf:"timeout_seconds" json:"timeoutSeconds"`
	Login             string  `koanf:"login" json:"login,omitempty"`
}

// defaults is keyed by the flattened koanf path.
func defaults() map[string]any {
	return map[string]any{
		"provider":                   "anthropic",
		"model":                      "claude-sonnet-4-20250514",
		"format":                     "text",
		"log_level":                  "info",
		"dialect":                    "en-US",
		"tone":                       "neutral",
		"style_guide":                "",
		"include":                    []string{"**/*.md", "**/*.mdx", "**/*.rst", "**/*.txt"},
		"exclude":                    []string{"vendor/**", "**/node_modules/**", "CHANGELOG.md"},
		"max_file_bytes":             200000,
		"fail_under":                 0.0,
		"suggestions.enabled":        true,
		"suggestions.max_comments":   100,
		"suggestions.max_batches":    1,
		"suggestions.concurrency":    4,
		"rewrite.enabled":            true,
		"rewrite.branch_prefix":      "scribe-rewrite",
		"sweep.enabled":              true,
		"sweep.retention_days":       7,
		"cache.enabled":              true,
		"cache.dir":                  "",
		"cache.ttl_seconds":          86400,
		"privacy.redact_secrets":     true,
		"privacy.redact_paths":       []string{"**/.env", "**/*secrets*"},
		"github.api_url":             "",
		"github.requests_per_second": 5.0,
		"github.max_retries":         3,
		"github.timeout_seconds":     30,
		"github.login":               "",
	}
}

// sections are the nested tables; env names map their first underscore to
// the table separator.
var sections = []string{"suggestions", "rewrite", "sweep", "cache", "privacy", "github"}

// Keys returns every settable key in sorted order.
func Keys() []string {
	d := defaults()
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Default returns a Config with all defaults applied.
func Default() Config {
	k := koanf.New(".")
	_ = k.Load(confmap.Provider(defaults(), "."), nil)
	var cfg Config
	_ = k.Unmarshal("", &cfg)
	return cfg
}

// ConfigDir returns scribe's config directory. XDG_CONFIG_HOME wins on
// every platform so CI runners can point it at the workspace.
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		var err error
		if base, err = os.UserConfigDir(); err != nil {
			return "", fmt.Errorf("locating user config directory: %w", err)
		}
	}
	return filepath.Join(base, "scribe"), nil
}

// ConfigPath returns the full path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ResolvePath returns path, or ConfigPath when path is empty.
func ResolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return ConfigPath()
}

// Load builds the effective config by merging: defaults <- file <- env <- overrides.
// path may be empty to use ConfigPath; a missing file is not an error. The
// overrides map comes from CLI flags, keyed like Keys.
func Load(path string, overrides map[string]any) (Config, error) {
	k, err := load(path, overrides)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Dump renders the effective configuration as TOML.
func Dump(path string, overrides map[string]any) ([]byte, error) {
	k, err := load(path, overrides)
	if err != nil {
		return nil, err
	}
	return k.Marshal(toml.Parser())
}

func load(path string, overrides map[string]any) (*koanf.Koanf, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	path, err := ResolvePath(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("applying overrides: %w", err)
		}
	}
	return k, nil
}

// listKeys hold comma-separated values when set from the environment.
var listKeys = map[string]bool{"include": true, "exclude": true, "privacy.redact_paths": true}

// envValue maps SCRIBE_INCLUDE=a,b to include = ["a", "b"].
func envValue(name, value string) (string, any) {
	key := envKey(name)
	if !listKeys[key] {
		return key, value
	}
	items := []string{}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return key, items
}

// envKey maps SCRIBE_GITHUB_API_URL to github.api_url.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, sec := range sections {
		if rest, ok := strings.CutPrefix(key, sec+"_"); ok {
			return sec + "." + rest
		}
	}
	return key
}

// Validate checks value ranges and enumerations.
func Validate(cfg Config) error {
	var errs []error
	if !slices.Contains([]string{"text", "json", "markdown"}, cfg.Format) {
		errs = append(errs, fmt.Errorf("format must be text, json or markdown, got %q", cfg.Format))
	}
	if cfg.Suggestions.MaxComments < 1 || cfg.Suggestions.MaxComments > 100 {
		errs = append(errs, fmt.Errorf("suggestions.max_comments must be between 1 and 100, got %d", cfg.Suggestions.MaxComments))
	}
	if cfg.Suggestions.MaxBatches < 1 {
		errs = append(errs, fmt.Errorf("suggestions.max_batches must be positive, got %d", cfg.Suggestions.MaxBatches))
	}
	if cfg.Sweep.RetentionDays < 1 {
		errs = append(errs, fmt.Errorf("sweep.retention_days must be positive, got %d", cfg.Sweep.RetentionDays))
	}
	if strings.Trim(cfg.Rewrite.BranchPrefix, "/") == "" {
		errs = append(errs, errors.New("rewrite.branch_prefix must not be empty"))
	}
	if cfg.FailUnder < 0 || cfg.FailUnder > 100 {
		errs = append(errs, fmt.Errorf("fail_under must be between 0 and 100, got %v", cfg.FailUnder))
	}
	return errors.Join(errs...)
}

// Init writes a config file holding the defaults. It refuses to overwrite an
// existing file.
func Init(path string) (string, error) {
	path, err := ResolvePath(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("configuration file already exists at %s", path)
	}
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return "", err
	}
	return path, write(path, k)
}

// SetField sets a single key in the config file, creating the file when it
// does not exist. The value is parsed according to the key's type; lists
// are comma separated.
func SetField(path, key, value string) error {
	def, ok := defaults()[key]
	if !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}
	v, err := parseValue(key, def, value)
	if err != nil {
		return err
	}

	path, err = ResolvePath(path)
	if err != nil {
		return err
	}
	k := koanf.New(".")
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := k.Set(key, v); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return write(path, k)
}

func parseValue(key string, def any, value string) (any, error) {
	switch def.(type) {
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be a boolean: %w", key, err)
		}
		return b, nil
	case int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer: %w", key, err)
		}
		return n, nil
	case float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be a number: %w", key, err)
		}
		return f, nil
	case []string:
		var out []string
		for _, part := range strings.Split(value, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	default:
		return value, nil
	}
}

func write(path string, k *koanf.Koanf) error {
	data, err := k.Marshal(toml.Parser())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
