package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultChunkBytes is the target size of an embedded chunk.
const DefaultChunkBytes = 2048

// IndexOptions controls which files are indexed and how.
type IndexOptions struct {
	// IncludedFileTypes are extensions such as ".go"; empty means all.
	IncludedFileTypes []string
	ExcludedFolders   []string
	// MaxFileBytes truncates larger files.
	MaxFileBytes int
	ChunkBytes   int
	Workers      int
}

// Stats summarizes an indexing run.
type Stats struct {
	Files   int
	Chunks  int
	Skipped int
}

// Indexer embeds repository files into a Store.
type Indexer struct {
	store    *Store
	embedder Embedder
	opts     IndexOptions
	log      *zap.Logger
}

// NewIndexer creates an indexer. log may be nil.
func NewIndexer(store *Store, embedder Embedder, opts IndexOptions, log *zap.Logger) *Indexer {
	if opts.ChunkBytes <= 0 {
		opts.ChunkBytes = DefaultChunkBytes
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = 64 << 10
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Indexer{store: store, embedder: embedder, opts: opts, log: log}
}

// Index embeds every included file under root. A file that fails to read
// or embed is logged and skipped; cancellation aborts the run.
func (ix *Indexer) Index(ctx context.Context, root string) (Stats, error) {
	info, err := os.Stat(root)
	if err != nil {
		return Stats{}, fmt.Errorf("index root: %w", err)
	}
	if !info.IsDir() {
		return Stats{}, fmt.Errorf("index root %s is not a directory", root)
	}

	files, err := ix.collect(root)
	if err != nil {
		return Stats{}, err
	}
	ix.log.Info("indexing repository", zap.String("root", root), zap.Int("files", len(files)))

	var indexed, chunks, skipped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.Workers)
	for _, rel := range files {
		g.Go(func() error {
			n, err := ix.indexFile(gctx, root, rel)
			switch {
			case err == nil:
				indexed.Add(1)
				chunks.Add(int64(n))
			case gctx.Err() != nil:
				return gctx.Err()
			default:
				skipped.Add(1)
				ix.log.Warn("skipping file", zap.String("path", rel), zap.Error(err))
			}
			return nil
		})
	}
	err = g.Wait()
	stats := Stats{Files: int(indexed.Load()), Chunks: int(chunks.Load()), Skipped: int(skipped.Load())}
	if err != nil {
		return stats, err
	}
	ix.log.Info("index complete",
		zap.Int("files", stats.Files), zap.Int("chunks", stats.Chunks), zap.Int("skipped", stats.Skipped))
	return stats, nil
}

func (ix *Indexer) collect(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && (slices.Contains(ix.opts.ExcludedFolders, d.Name()) || d.Name() == ".vibecheck") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !ix.included(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return files, nil
}

func (ix *Indexer) included(name string) bool {
	if len(ix.opts.IncludedFileTypes) == 0 {
		return true
	}
	ext := filepath.Ext(name)
	for _, t := range ix.opts.IncludedFileTypes {
		if strings.EqualFold(t, ext) {
			return true
		}
	}
	return false
}

func (ix *Indexer) indexFile(ctx context.Context, root, rel string) (int, error) {
	text, err := readPrefix(filepath.Join(root, filepath.FromSlash(rel)), ix.opts.MaxFileBytes)
	if err != nil {
		return 0, err
	}
	if !utf8.ValidString(text) {
		return 0, errors.New("not UTF-8 text")
	}
	parts := Chunk(text, ix.opts.ChunkBytes)
	if len(parts) == 0 {
		return 0, errors.New("empty file")
	}

	records := make([]Record, 0, len(parts))
	for i, part := range parts {
		vec, err := ix.embedder.Embed(ctx, rel+"\n"+part)
		if err != nil {
			return 0, fmt.Errorf("embedding chunk %d: %w", i, err)
		}
		records = append(records, Record{
			ID:        rel + "#" + strconv.Itoa(i),
			Path:      rel,
			Chunk:     i,
			Text:      part,
			Embedding: vec,
		})
	}

	if err := ix.store.DeletePath(ctx, rel); err != nil {
		return 0, err
	}
	for _, rec := range records {
		if err := ix.store.Upsert(ctx, rec); err != nil {
			return 0, err
		}
	}
	ix.log.Debug("indexed file", zap.String("path", rel), zap.Int("chunks", len(records)))
	return len(records), nil
}

func readPrefix(path string, limit int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, int64(limit)))
	if err != nil {
		return "", err
	}
	// Truncation may split a rune.
	if len(data) == limit {
		for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
			if utf8.RuneStart(data[i]) {
				if !utf8.FullRune(data[i:]) {
					data = data[:i]
				}
				break
			}
		}
	}
	return string(data), nil
}

// Chunk splits text at line boundaries into pieces of about size bytes.
// A single line longer than size becomes its own piece. Blank pieces are
// dropped.
func Chunk(text string, size int) []string {
	var (
		out     []string
		current strings.Builder
	)
	flush := func() {
		if strings.TrimSpace(current.String()) != "" {
			out = append(out, current.String())
		}
		current.Reset()
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		if current.Len() > 0 && current.Len()+len(line) > size {
			flush()
		}
		current.WriteString(line)
	}
	flush()
	return out
}
