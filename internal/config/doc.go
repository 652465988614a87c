// Package config loads and merges vibecheck configuration from multiple
// sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (VIBECHECK_BACKEND_MODEL, VIBECHECK_INFERENCE_POOLSIZE, etc.)
//  3. Config file ($XDG_CONFIG_HOME/vibecheck/config.toml, or VIBECHECK_CONFIG)
//  4. Built-in defaults
//
// Use [Load] to obtain a merged [Config], [Save] to write one back, and
// [SetField] to update a single dotted key.
package config
