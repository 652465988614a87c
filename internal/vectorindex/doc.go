// Package vectorindex builds and queries a semantic index of a repository.
//
// Files are split into line-aligned chunks, embedded through an [Embedder]
// and stored in a SQLite database under the repository's .vibecheck
// folder. A [Searcher] embeds a query and returns the paths of the most
// similar chunks, which is what the VectorSearch tool exposes to the model.
package vectorindex
