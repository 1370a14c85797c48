package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/scribe/internal/config"
	"github.com/dshills/scribe/internal/host"
	"github.com/dshills/scribe/internal/providers"
)

const version = "0.3.0"

// Exit codes
const (
	ExitSuccess        = 0
	ExitBelowThreshold = 1
	ExitUsageError     = 2
	ExitAuthError      = 3
	ExitRuntimeError   = 4
	ExitDegraded       = 5
)

// Global flags
var (
	flagConfig   string
	flagLogLevel string
	flagFormat   string
	flagOut      string
)

var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "Documentation rewrite bot for pull requests",
	Long: "Scribe scores the prose changed in a pull request, posts inline suggestions " +
		"and keeps a rewrite branch with a companion pull request in sync.",
	SilenceUsage: true,
}

// Run executes the root command and returns an exit code.
func Run() int {
	exitCode = ExitSuccess
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error
		return ExitUsageError
	}
	return exitCode
}

// exitCode is set by command handlers to control the process exit code.
var exitCode = ExitSuccess

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print scribe version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "scribe version %s\n", version)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Config file path (default: $XDG_CONFIG_HOME/scribe/config.toml)")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&flagFormat, "format", "", "Output format (text, json, markdown)")
	pf.StringVar(&flagOut, "out", "", "Output file path (default: stdout)")

	rootCmd.AddCommand(prCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig merges the config file, environment and the given command
// overrides with the global flags.
func loadConfig(overrides map[string]any) (config.Config, error) {
	if overrides == nil {
		overrides = map[string]any{}
	}
	if flagLogLevel != "" {
		overrides["log_level"] = flagLogLevel
	}
	if flagFormat != "" {
		overrides["format"] = flagFormat
	}
	cfg, err := config.Load(flagConfig, overrides)
	if err != nil {
		return config.Config{}, usagef("%v", err)
	}
	return cfg, nil
}

// newLogger builds the stderr console logger.
func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).
		Level(lvl).
		With().Timestamp().Logger()
}

// exitCodeFor classifies a fatal error.
func exitCodeFor(err error) int {
	var ue *usageError
	switch {
	case errors.As(err, &ue):
		return ExitUsageError
	case providers.IsAuthError(err), host.IsPermissionDenied(err):
		return ExitAuthError
	default:
		return ExitRuntimeError
	}
}

// fail reports err on stderr and records its exit code.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	exitCode = exitCodeFor(err)
}

// usageError marks bad arguments detected after flag parsing.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func splitComma(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
