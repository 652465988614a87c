// Package builtin provides the repository operations offered to the model
// during review: reading a file, locating a file by fuzzy name, and semantic
// search over a vector index when one has been built.
package builtin
