// Package cli wires together the Cobra command tree for the scribe binary.
//
// It defines the root command and all subcommands (pr, suggest, sweep,
// config, models, cache, version), binds flags, reads configuration, builds
// the host client and scoring engine, and returns deterministic exit codes
// for CI gating.
package cli
