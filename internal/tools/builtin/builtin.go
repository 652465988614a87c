package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dshills/vibecheck/internal/redact"
	"github.com/dshills/vibecheck/internal/tools"
)

// DefaultMaxReadBytes caps how much of a file ReadFileContents returns.
const DefaultMaxReadBytes = 64 << 10

var errNoRepository = errors.New("no repository path configured")

// Options tunes the builtin operations.
type Options struct {
	ExcludedDirs []string
	MaxReadBytes int
	Redaction    redact.Policy
	VectorTopK   int
}

func (o Options) withDefaults() Options {
	if o.MaxReadBytes <= 0 {
		o.MaxReadBytes = DefaultMaxReadBytes
	}
	if o.VectorTopK <= 0 {
		o.VectorTopK = 3
	}
	return o
}

// Providers returns the FileReader, FuzzySearcher and VectorSearcher
// providers.
func Providers(opts Options) []tools.Provider {
	opts = opts.withDefaults()
	return []tools.Provider{
		tools.ProviderFunc{Qualifier: "FileReader", Ops: func() []tools.Operation {
			return []tools.Operation{readFileContents(opts)}
		}},
		tools.ProviderFunc{Qualifier: "FuzzySearcher", Ops: func() []tools.Operation {
			return []tools.Operation{fuzzySearch(opts)}
		}},
		tools.ProviderFunc{Qualifier: "VectorSearcher", Ops: func() []tools.Operation {
			return []tools.Operation{vectorSearch(opts)}
		}},
	}
}

func readFileContents(opts Options) tools.Operation {
	return tools.Operation{
		Name:        "ReadFileContents",
		Description: "Find a file using a fuzzy search and return its contents.",
		Params: []tools.Param{{
			Name:        "searchPath",
			Description: "The file or file path to search for within the repository.",
			Kind:        tools.KindString,
			Required:    true,
		}},
		Invoke: func(ctx context.Context, tc *tools.Context, args tools.Args) (string, error) {
			if tc == nil || tc.RepositoryPath == "" {
				return "", errNoRepository
			}
			rel, err := FindFile(tc.RepositoryPath, args.String("searchPath"), opts.ExcludedDirs)
			if err != nil {
				return "", err
			}
			content, err := readLimited(filepath.Join(tc.RepositoryPath, filepath.FromSlash(rel)), opts.MaxReadBytes)
			if err != nil {
				return "", err
			}
			content, _ = opts.Redaction.Apply(rel, content)
			return fmt.Sprintf("File: %s\n%s", rel, content), nil
		},
	}
}

func fuzzySearch(opts Options) tools.Operation {
	return tools.Operation{
		Name:        "FuzzySearch",
		Description: "Try to search for a file.",
		Params: []tools.Param{{
			Name:        "searchPath",
			Description: "The file or file path to search for.",
			Kind:        tools.KindString,
			Required:    true,
		}},
		Invoke: func(ctx context.Context, tc *tools.Context, args tools.Args) (string, error) {
			if tc == nil || tc.RepositoryPath == "" {
				return "", errNoRepository
			}
			return FindFile(tc.RepositoryPath, args.String("searchPath"), opts.ExcludedDirs)
		},
	}
}

func vectorSearch(opts Options) tools.Operation {
	return tools.Operation{
		Name:        "VectorSearch",
		Description: "Perform a vector search through an indexed portion of the codebase.",
		Params: []tools.Param{
			{
				Name:        "searchQuery",
				Description: "A description of the code to look for.",
				Kind:        tools.KindString,
				Required:    true,
			},
			{
				Name:        "count",
				Description: "How many files to return.",
				Kind:        tools.KindInt,
				Default:     opts.VectorTopK,
			},
		},
		Available: func(tc *tools.Context) bool {
			return tc.Vector != nil && tc.Vector.IsIndexed()
		},
		Invoke: func(ctx context.Context, tc *tools.Context, args tools.Args) (string, error) {
			paths, err := tc.Vector.Search(ctx, args.String("searchQuery"), args.Int("count"))
			if err != nil {
				return "", err
			}
			if paths == nil {
				paths = []string{}
			}
			data, err := json.MarshalIndent(paths, "", "  ")
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	}
}

func readLimited(path string, limit int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, int64(limit)+1))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	if len(data) > limit {
		return string(data[:limit]) + "\n... (file truncated)\n", nil
	}
	return string(data), nil
}
