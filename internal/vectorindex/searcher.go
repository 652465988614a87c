package vectorindex

import (
	"context"
	"fmt"
)

// Searcher answers path queries against a Store. It satisfies the tool
// layer's vector search interface.
type Searcher struct {
	store    *Store
	embedder Embedder
}

// NewSearcher creates a searcher.
func NewSearcher(store *Store, embedder Embedder) *Searcher {
	return &Searcher{store: store, embedder: embedder}
}

// IsIndexed reports whether the store holds any records.
func (s *Searcher) IsIndexed() bool {
	n, err := s.store.Count(context.Background())
	return err == nil && n > 0
}

// Search returns up to k distinct file paths ranked by similarity to query.
func (s *Searcher) Search(ctx context.Context, query string, k int) ([]string, error) {
	if k <= 0 {
		return nil, nil
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	// Several chunks of one file can outrank other files.
	matches, err := s.store.Search(ctx, vec, k*4)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, k)
	paths := make([]string, 0, k)
	for _, m := range matches {
		if seen[m.Path] {
			continue
		}
		seen[m.Path] = true
		paths = append(paths, m.Path)
		if len(paths) == k {
			break
		}
	}
	return paths, nil
}
