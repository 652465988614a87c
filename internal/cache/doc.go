// Package cache provides a file-based cache of review candidates per hunk.
//
// Entries are keyed by a SHA-256 hash of the backend, model, prompt
// fingerprint and formatted hunk text. Each entry stores the candidate JSON
// values extracted for that hunk with a creation timestamp and a TTL in
// seconds. Expired entries are skipped on read and counted by GetStats.
//
// The default cache directory is $XDG_CACHE_HOME/vibecheck (or the
// OS-appropriate equivalent). Hunk text has been through secret redaction
// before it reaches the model, and only model output is stored.
package cache
