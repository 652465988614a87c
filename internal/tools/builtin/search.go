package builtin

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sahilm/fuzzy"
)

// MinScore is the similarity a file name must exceed to count as a match.
const MinScore = 0.4

// ErrNoMatch is returned when no file in the repository resembles the query.
var ErrNoMatch = errors.New("no matching file")

// DefaultExcludedDirs are skipped while walking a repository.
var DefaultExcludedDirs = []string{".git", "bin", "obj", "node_modules", "vendor", ".vibecheck"}

// FindFile returns the repository-relative path that best matches query.
// An exact relative path wins outright. Otherwise lowercase file names are
// scored: containment either way is 1.0, anything else is one minus the
// normalized edit distance. Ties go to the best subsequence match, then to
// the shorter path.
func FindFile(root, query string, excluded []string) (string, error) {
	query = strings.TrimSpace(filepath.ToSlash(query))
	if query == "" {
		return "", fmt.Errorf("%w: empty query", ErrNoMatch)
	}
	if excluded == nil {
		excluded = DefaultExcludedDirs
	}
	wantPath := strings.ToLower(strings.TrimPrefix(query, "./"))
	wantName := strings.ToLower(pathBase(query))

	var (
		best     float64
		tied     []string
		exactHit string
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && slices.Contains(excluded, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if strings.ToLower(rel) == wantPath {
			exactHit = rel
			return fs.SkipAll
		}

		score := Similarity(strings.ToLower(d.Name()), wantName)
		switch {
		case score <= MinScore || score < best:
		case score > best:
			best = score
			tied = []string{rel}
		default:
			tied = append(tied, rel)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walking %s: %w", root, err)
	}
	if exactHit != "" {
		return exactHit, nil
	}
	if len(tied) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoMatch, query)
	}
	return breakTie(wantPath, tied), nil
}

func breakTie(query string, paths []string) string {
	if len(paths) == 1 {
		return paths[0]
	}
	if matches := fuzzy.Find(query, paths); len(matches) > 0 {
		return matches[0].Str
	}
	shortest := paths[0]
	for _, p := range paths[1:] {
		if len(p) < len(shortest) {
			shortest = p
		}
	}
	return shortest
}

// Similarity scores two names between 0 and 1.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 1
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func pathBase(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}
