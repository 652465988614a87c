package review

import (
	"sort"

	"github.com/dshills/vibecheck/internal/gitctx"
)

// ChunkThreshold is the formatted hunk size at which a chunk is closed.
const ChunkThreshold = 16 << 10

// Chunk is a run of hunks reviewed under one lease. Hunks of the same file
// stay together unless the file alone exceeds the threshold.
type Chunk struct {
	Index int
	// Hunks holds indexes into the slice given to SplitIntoChunks.
	Hunks []int
	Files []string
}

// SplitIntoChunks groups hunks by file, starting a new chunk whenever
// adding the next file would push the formatted size past maxBytes.
func SplitIntoChunks(hunks []gitctx.Hunk, maxBytes int) []Chunk {
	if len(hunks) == 0 {
		return nil
	}
	if maxBytes <= 0 {
		maxBytes = ChunkThreshold
	}

	var (
		chunks  []Chunk
		current Chunk
		size    int
	)
	flush := func() {
		if len(current.Hunks) == 0 {
			return
		}
		current.Index = len(chunks)
		chunks = append(chunks, current)
		current = Chunk{}
		size = 0
	}

	for i, h := range hunks {
		n := len(gitctx.FormatHunk(h, false))
		newFile := len(current.Files) == 0 || current.Files[len(current.Files)-1] != h.Path
		if size > 0 && size+n > maxBytes && (newFile || size >= maxBytes) {
			flush()
			newFile = true
		}
		if newFile {
			current.Files = append(current.Files, h.Path)
		}
		current.Hunks = append(current.Hunks, i)
		size += n
	}
	flush()
	return chunks
}

// DeduplicateComments removes comments with the same ID, keeping the first.
func DeduplicateComments(comments []Comment) []Comment {
	seen := make(map[string]bool)
	var result []Comment
	for _, c := range comments {
		id := c.ID()
		if !seen[id] {
			seen[id] = true
			result = append(result, c)
		}
	}
	return result
}

// SortComments orders comments by path, then line, then descending AI
// probability.
func SortComments(comments []Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		if comments[i].Path != comments[j].Path {
			return comments[i].Path < comments[j].Path
		}
		if comments[i].Line != comments[j].Line {
			return comments[i].Line < comments[j].Line
		}
		return comments[i].AIProbability > comments[j].AIProbability
	})
}
