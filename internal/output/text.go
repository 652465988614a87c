package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dshills/vibecheck/internal/review"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiDim    = "\033[2m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
	ansiCyan   = "\033[36m"
)

// TextWriter outputs a human-readable text report.
type TextWriter struct {
	// Color enables ANSI escapes.
	Color bool
	// Width is the wrap width for prose; 0 means 70.
	Width int
}

func (t *TextWriter) Write(w io.Writer, report *review.Report) error {
	ew := &errWriter{w: w}
	width := t.Width
	if width <= 0 {
		width = 70
	}

	ew.printf("%s\n", t.paint(ansiBold, "vibecheck review ("+report.Inputs.Mode+" mode)"))
	if report.Inputs.Range != "" {
		ew.printf("Range: %s\n", report.Inputs.Range)
	}
	if report.Repo.Branch != "" {
		ew.printf("Repository: %s (branch: %s)\n", report.Repo.Root, report.Repo.Branch)
	} else if report.Repo.Root != "" {
		ew.printf("Repository: %s\n", report.Repo.Root)
	}
	if report.Model != "" {
		ew.printf("Model: %s\n", report.Model)
	}
	ew.println(strings.Repeat("─", 60))
	ew.printf("Comments: %d across %d files, %d hunks reviewed", report.Summary.Comments, report.Summary.Files, report.Inputs.Hunks)
	if report.Summary.FailedHunks > 0 {
		ew.printf(", %s", t.paint(ansiRed, fmt.Sprintf("%d failed", report.Summary.FailedHunks)))
	}
	ew.println("")
	ew.println(strings.Repeat("─", 60))

	if len(report.Comments) == 0 {
		ew.printf("\n%s\n", t.paint(ansiGreen, "No suggestions. Looks good!"))
	}

	for _, group := range groupByFile(report.Comments) {
		ew.printf("\n%s\n", t.paint(ansiCyan, group.path))
		for _, c := range group.comments {
			ew.printf("\n  line %d  %s\n", c.Line, t.paint(probabilityColor(c.AIProbability), aiLabel(c.AIProbability)))
			for _, line := range wrapText(c.Comment, width) {
				ew.printf("    %s\n", line)
			}
			ew.println("  Suggested change:")
			for _, line := range strings.Split(strings.TrimRight(c.SuggestedChange, "\n"), "\n") {
				ew.printf("    %s\n", t.paint(ansiDim, line))
			}
		}
	}

	if len(report.Errors) > 0 {
		ew.printf("\n%s\n", t.paint(ansiRed, "Hunks that could not be reviewed:"))
		for _, e := range report.Errors {
			ew.printf("  - %s\n", e)
		}
	}

	ew.printf("\n%s\n", strings.Repeat("─", 60))
	ew.printf("Completed in %dms (git: %dms, LLM: %dms)\n",
		report.Timing.TotalMs, report.Timing.GitMs, report.Timing.LLMMs)

	return ew.err
}

func (t *TextWriter) paint(code, s string) string {
	if !t.Color || s == "" {
		return s
	}
	return code + s + ansiReset
}

func probabilityColor(p float64) string {
	switch {
	case p >= 0.7:
		return ansiRed
	case p >= 0.4:
		return ansiYellow
	default:
		return ansiDim
	}
}

func aiLabel(p float64) string {
	return fmt.Sprintf("[AI %.0f%%]", p*100)
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

type fileGroup struct {
	path     string
	comments []review.Comment
}

// groupByFile keeps files in first-seen order. Reports arrive sorted.
func groupByFile(comments []review.Comment) []fileGroup {
	var groups []fileGroup
	index := make(map[string]int)
	for _, c := range comments {
		i, ok := index[c.Path]
		if !ok {
			i = len(groups)
			index[c.Path] = i
			groups = append(groups, fileGroup{path: c.Path})
		}
		groups[i].comments = append(groups[i].comments, c)
	}
	return groups
}

func wrapText(text string, width int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	words := strings.Fields(text)
	var current strings.Builder
	for _, word := range words {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
