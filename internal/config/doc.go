// Package config loads and merges scribe configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (SCRIBE_PROVIDER, SCRIBE_REWRITE_ENABLED, etc.)
//  3. Config file ($XDG_CONFIG_HOME/scribe/config.toml)
//  4. Built-in defaults
//
// Use [Load] to obtain a merged [Config], [Init] to write a default config
// file, and [SetField] to update a single key in the config file.
package config
