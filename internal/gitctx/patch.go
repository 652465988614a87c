package gitctx

import (
	"context"
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// FilePatch is the portion of a unified diff that concerns one file.
type FilePatch struct {
	Path    string
	OldPath string
	Hunks   []Hunk
}

// SplitPatch parses a multi-file unified diff into per-file patches. Text
// whose first range header comes before any file header is a single patch
// with an empty path.
func SplitPatch(text string) ([]FilePatch, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if !hasFileHeader(text) {
		hunks, err := ParseHunks("", text)
		if err != nil {
			return nil, err
		}
		return []FilePatch{{Hunks: hunks}}, nil
	}

	files, err := diff.ParseMultiFileDiff([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}
	patches := make([]FilePatch, 0, len(files))
	for _, fd := range files {
		oldPath := headerPath(fd.OrigName, "a/")
		path := headerPath(fd.NewName, "b/")
		if path == "" {
			path = oldPath
		}
		patches = append(patches, FilePatch{
			Path:    path,
			OldPath: oldPath,
			Hunks:   convertHunks(path, fd.Hunks),
		})
	}
	return patches, nil
}

// hasFileHeader reports whether a "diff --git" line or a ---/+++ pair
// appears before the first range header.
func hasFileHeader(text string) bool {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "@@ "):
			return false
		case strings.HasPrefix(line, "diff --git "):
			return true
		case strings.HasPrefix(line, "--- ") && i+1 < len(lines) && strings.HasPrefix(lines[i+1], "+++ "):
			return true
		}
	}
	return false
}

// headerPath extracts the file name from a ---/+++ header value, dropping
// the a/ or b/ prefix and any trailing timestamp. /dev/null yields "".
func headerPath(v, prefix string) string {
	if i := strings.IndexByte(v, '\t'); i >= 0 {
		v = v[:i]
	}
	v = strings.TrimSpace(v)
	if v == "/dev/null" {
		return ""
	}
	return strings.TrimPrefix(v, prefix)
}

// PatchSource supplies the patches to review and the repository they
// belong to.
type PatchSource interface {
	Patches(ctx context.Context) ([]FilePatch, error)
	Root() string
}

// TextSource reviews unified diff text supplied directly.
type TextSource struct {
	Text string
	Dir  string
}

func (s TextSource) Patches(ctx context.Context) ([]FilePatch, error) {
	return SplitPatch(s.Text)
}

func (s TextSource) Root() string { return s.Dir }

// GitSource collects a diff from git when Patches is called.
type GitSource struct {
	Dir  string
	Diff func(ctx context.Context, dir string) (DiffResult, error)

	result DiffResult
}

func (s *GitSource) Patches(ctx context.Context) ([]FilePatch, error) {
	res, err := s.Diff(ctx, s.Dir)
	if err != nil {
		return nil, err
	}
	s.result = res
	return SplitPatch(res.Diff)
}

func (s *GitSource) Root() string {
	if s.result.Repo.Root != "" {
		return s.result.Repo.Root
	}
	return s.Dir
}

// Result returns the diff gathered by the last call to Patches.
func (s *GitSource) Result() DiffResult { return s.result }

// BranchSource diffs Source against Target, each optionally offset by a
// number of commits.
func BranchSource(dir, target string, targetOffset int, source string, sourceOffset int, opts DiffOptions) *GitSource {
	return &GitSource{Dir: dir, Diff: func(ctx context.Context, dir string) (DiffResult, error) {
		return Branches(ctx, dir, target, targetOffset, source, sourceOffset, opts)
	}}
}

// CommitSource diffs a single commit against its parent.
func CommitSource(dir, sha string, opts DiffOptions) *GitSource {
	return &GitSource{Dir: dir, Diff: func(ctx context.Context, dir string) (DiffResult, error) {
		return Commit(ctx, dir, sha, opts)
	}}
}

// StagedSource diffs the index against HEAD.
func StagedSource(dir string, opts DiffOptions) *GitSource {
	return &GitSource{Dir: dir, Diff: func(ctx context.Context, dir string) (DiffResult, error) {
		return Staged(ctx, dir, opts)
	}}
}

// UnstagedSource diffs the working tree against the index.
func UnstagedSource(dir string, opts DiffOptions) *GitSource {
	return &GitSource{Dir: dir, Diff: func(ctx context.Context, dir string) (DiffResult, error) {
		return Unstaged(ctx, dir, opts)
	}}
}

// RangeSource diffs a revision range.
func RangeSource(dir, revRange string, mergeBase bool, opts DiffOptions) *GitSource {
	return &GitSource{Dir: dir, Diff: func(ctx context.Context, dir string) (DiffResult, error) {
		return Range(ctx, dir, revRange, mergeBase, opts)
	}}
}

// Hunks flattens the patches of src into hunks, in file order.
func Hunks(ctx context.Context, src PatchSource) ([]Hunk, error) {
	patches, err := src.Patches(ctx)
	if err != nil {
		return nil, err
	}
	var hunks []Hunk
	for _, p := range patches {
		hunks = append(hunks, p.Hunks...)
	}
	return hunks, nil
}
