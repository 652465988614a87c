package vectorindex

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keywordEmbedder maps text onto keyword counts so similarity is predictable.
type keywordEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  string
}

var keywords = []string{"retry", "parse", "http"}

func (e *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.fail != "" && strings.Contains(text, e.fail) {
		return nil, errors.New("embedding failed")
	}
	vec := make([]float32, len(keywords)+1)
	for i, kw := range keywords {
		vec[i] = float32(strings.Count(text, kw))
	}
	vec[len(keywords)] = 0.01
	return vec, nil
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "index", "vectors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.Upsert(ctx, Record{ID: "a#0", Path: "a.go", Text: "a", Embedding: []float32{1, 0}}))
	require.NoError(t, s.Upsert(ctx, Record{ID: "b#0", Path: "b.go", Text: "b", Embedding: []float32{0, 1}}))
	require.NoError(t, s.Upsert(ctx, Record{ID: "c#0", Path: "c.go", Text: "c", Embedding: []float32{1, 1, 1}}))
	require.NoError(t, s.Upsert(ctx, Record{ID: "b#0", Path: "b.go", Text: "b2", Embedding: []float32{0.9, 0.1}}))
	assert.Error(t, s.Upsert(ctx, Record{ID: "d#0", Path: "d.go"}))

	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	matches, err := s.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 2, "records of another dimension are skipped")
	assert.Equal(t, "a.go", matches[0].Path)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	assert.Equal(t, "b2", matches[1].Text)

	require.NoError(t, s.DeletePath(ctx, "a.go"))
	matches, err = s.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b.go", matches[0].Path)
}

func TestVectorEncoding(t *testing.T) {
	vec := []float32{0.5, -1.25, 3}
	assert.Equal(t, vec, decodeVector(encodeVector(vec)))
	assert.Nil(t, decodeVector([]byte{1, 2, 3}))
	assert.Zero(t, cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestChunk(t *testing.T) {
	text := "line one\nline two\nline three\n"
	assert.Equal(t, []string{text}, Chunk(text, 100))
	assert.Equal(t, []string{"line one\n", "line two\n", "line three\n"}, Chunk(text, 10))
	assert.Equal(t, []string{"line one\nline two\n", "line three\n"}, Chunk(text, 18))
	assert.Empty(t, Chunk("\n\n  \n", 4))
}

func TestIndexer(t *testing.T) {
	root := writeTree(t, map[string]string{
		"net/client.go":       "package net\n// retry the http call\n",
		"parse/parser.go":     "package parse\n// parse parse parse\n",
		"docs/notes.md":       "retry",
		"vendor/x/x.go":       "package x // retry",
		"broken/bad.go":       "package bad // explode",
		".vibecheck/cache.go": "package cache",
	})
	store := openTestStore(t)
	emb := &keywordEmbedder{fail: "explode"}
	ix := NewIndexer(store, emb, IndexOptions{
		IncludedFileTypes: []string{".go"},
		ExcludedFolders:   []string{"vendor"},
		Workers:           2,
	}, nil)

	stats, err := ix.Index(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, Stats{Files: 2, Chunks: 2, Skipped: 1}, stats)

	// Reindexing replaces rather than duplicates.
	_, err = ix.Index(context.Background(), root)
	require.NoError(t, err)
	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	searcher := NewSearcher(store, emb)
	assert.True(t, searcher.IsIndexed())
	paths, err := searcher.Search(context.Background(), "parse", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"parse/parser.go"}, paths)

	paths, err = searcher.Search(context.Background(), "retry", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"net/client.go", "parse/parser.go"}, paths)
}

func TestIndexerErrors(t *testing.T) {
	store := openTestStore(t)
	ix := NewIndexer(store, &keywordEmbedder{}, IndexOptions{}, nil)

	_, err := ix.Index(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	root := writeTree(t, map[string]string{"a.go": "retry\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ix.Index(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearcherEmpty(t *testing.T) {
	s := NewSearcher(openTestStore(t), &keywordEmbedder{})
	assert.False(t, s.IsIndexed())
	paths, err := s.Search(context.Background(), "retry", 0)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "embed-model", req.Model)
		switch req.Prompt {
		case "empty":
			json.NewEncoder(w).Encode(ollamaEmbedResponse{})
		case "fail":
			http.Error(w, "model not found", http.StatusNotFound)
		default:
			json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.1, 0.2}})
		}
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL+"/", "embed-model", time.Second)
	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)

	_, err = e.Embed(context.Background(), "empty")
	assert.ErrorContains(t, err, "empty vector")

	_, err = e.Embed(context.Background(), "fail")
	assert.ErrorContains(t, err, "status 404")
	assert.ErrorContains(t, err, "model not found")
}
