// Package cli wires together the Cobra command tree for the vibecheck binary.
//
// It defines the root command and its subcommands (review, serve, vectorify,
// watch, chat, tools, config, models, cache, hook, version), binds flags onto
// configuration overrides, builds the shared review pipeline, and maps
// outcomes onto deterministic exit codes for CI and git hooks.
package cli
