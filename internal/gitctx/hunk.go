package gitctx

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// Kind classifies a line within a hunk.
type Kind int

const (
	Unmodified Kind = iota
	Added
	Deleted
)

func (k Kind) String() string {
	switch k {
	case Added:
		return "added"
	case Deleted:
		return "deleted"
	default:
		return "unmodified"
	}
}

func (k Kind) prefix() byte {
	switch k {
	case Added:
		return '+'
	case Deleted:
		return '-'
	default:
		return ' '
	}
}

// Line is one line of a hunk with its diff marker removed.
type Line struct {
	Kind Kind
	Text string
}

// Hunk is a contiguous block of changes in one file.
type Hunk struct {
	Path     string
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// Header renders the unified diff range line for h.
func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
}

// HasChanges reports whether h adds or deletes anything.
func (h Hunk) HasChanges() bool {
	for _, l := range h.Lines {
		if l.Kind != Unmodified {
			return true
		}
	}
	return false
}

// ParseHunks splits the unified diff text of a single file into hunks.
// Text before the first range header, including any ---/+++ file header,
// is ignored.
func ParseHunks(path, patch string) ([]Hunk, error) {
	patch = strings.ReplaceAll(patch, "\r\n", "\n")
	start := firstRangeHeader(patch)
	if start < 0 {
		return nil, nil
	}
	parsed, err := diff.ParseHunks([]byte(patch[start:]))
	if err != nil {
		return nil, fmt.Errorf("parsing hunks of %s: %w", displayPath(path), err)
	}
	return convertHunks(path, parsed), nil
}

// firstRangeHeader returns the offset of the first line starting with "@@ ",
// or -1.
func firstRangeHeader(patch string) int {
	if strings.HasPrefix(patch, "@@ ") {
		return 0
	}
	if i := strings.Index(patch, "\n@@ "); i >= 0 {
		return i + 1
	}
	return -1
}

func convertHunks(path string, parsed []*diff.Hunk) []Hunk {
	hunks := make([]Hunk, 0, len(parsed))
	for _, h := range parsed {
		hunks = append(hunks, convertHunk(path, h))
	}
	return hunks
}

// convertHunk reads the body of h line by line until the old and new line
// counts of its header are used up or the body ends, which happens when a
// size limit cut the diff. "\ No newline at end of file" markers are
// metadata and never become lines.
func convertHunk(path string, h *diff.Hunk) Hunk {
	out := Hunk{
		Path:     path,
		OldStart: int(h.OrigStartLine),
		OldCount: int(h.OrigLines),
		NewStart: int(h.NewStartLine),
		NewCount: int(h.NewLines),
	}
	oldLeft, newLeft := out.OldCount, out.NewCount
	body := strings.TrimSuffix(string(h.Body), "\n")
	for _, line := range strings.Split(body, "\n") {
		if oldLeft <= 0 && newLeft <= 0 {
			break
		}
		line = strings.TrimSuffix(line, "\r")
		switch {
		case strings.HasPrefix(line, `\`):
			continue
		case strings.HasPrefix(line, "+"):
			out.Lines = append(out.Lines, Line{Kind: Added, Text: line[1:]})
			newLeft--
		case strings.HasPrefix(line, "-"):
			out.Lines = append(out.Lines, Line{Kind: Deleted, Text: line[1:]})
			oldLeft--
		default:
			// An empty line is context whose leading space was stripped.
			out.Lines = append(out.Lines, Line{Kind: Unmodified, Text: strings.TrimPrefix(line, " ")})
			oldLeft--
			newLeft--
		}
	}
	return out
}

func displayPath(path string) string {
	if path == "" {
		return "patch"
	}
	return path
}

// FormatHunk renders h for a prompt: the file path, the range header and
// each line with its diff marker. With onlyNewCode set, deleted lines are
// left out.
func FormatHunk(h Hunk, onlyNewCode bool) string {
	var b strings.Builder
	if h.Path != "" {
		b.WriteString(h.Path)
		b.WriteByte('\n')
	}
	b.WriteString(h.Header())
	b.WriteByte('\n')
	for _, l := range h.Lines {
		if onlyNewCode && l.Kind == Deleted {
			continue
		}
		b.WriteByte(l.Kind.prefix())
		b.WriteString(l.Text)
		b.WriteByte('\n')
	}
	return b.String()
}
