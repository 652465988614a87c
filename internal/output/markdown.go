package output

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/dshills/vibecheck/internal/review"
)

// MarkdownWriter outputs a PR-comment-friendly markdown report.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, report *review.Report) error {
	ew := &errWriter{w: w}

	ew.printf("## vibecheck review\n\n")
	ew.printf("| | |\n")
	ew.printf("|---|---|\n")
	ew.printf("| Comments | %d |\n", report.Summary.Comments)
	ew.printf("| Files | %d |\n", report.Summary.Files)
	ew.printf("| Hunks reviewed | %d |\n", report.Inputs.Hunks)
	if report.Summary.FailedHunks > 0 {
		ew.printf("| Failed hunks | %d |\n", report.Summary.FailedHunks)
	}
	ew.printf("| Max AI probability | %.0f%% |\n\n", report.Summary.MaxAIProbability*100)

	if len(report.Comments) == 0 {
		ew.println("No suggestions. :white_check_mark:")
	}

	for _, group := range groupByFile(report.Comments) {
		ew.printf("<details>\n<summary><code>%s</code> (%d)</summary>\n\n", group.path, len(group.comments))
		lang := inferLang(group.path)
		for _, c := range group.comments {
			ew.printf("**Line %d** | AI probability: %.0f%%\n\n", c.Line, c.AIProbability*100)
			if c.Comment != "" {
				ew.printf("%s\n\n", c.Comment)
			}
			fence := codeFence(c.SuggestedChange)
			ew.printf("%s%s\n%s\n%s\n\n", fence, lang, strings.TrimRight(c.SuggestedChange, "\n"), fence)
			ew.printf("---\n\n")
		}
		ew.printf("</details>\n\n")
	}

	if len(report.Errors) > 0 {
		ew.printf("<details>\n<summary>:warning: %d hunks could not be reviewed</summary>\n\n", len(report.Errors))
		for _, e := range report.Errors {
			ew.printf("- `%s`\n", e)
		}
		ew.printf("\n</details>\n\n")
	}

	ew.printf("*Reviewed in %dms (git: %dms, LLM: %dms)*\n",
		report.Timing.TotalMs, report.Timing.GitMs, report.Timing.LLMMs)

	return ew.err
}

// codeFence returns a backtick fence longer than any run inside s.
func codeFence(s string) string {
	longest, run := 0, 0
	for _, r := range s {
		if r == '`' {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	return strings.Repeat("`", max(3, longest+1))
}

var langByExt = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".tsx":  "tsx",
	".jsx":  "jsx",
	".rs":   "rust",
	".java": "java",
	".rb":   "ruby",
	".cpp":  "cpp",
	".c":    "c",
	".h":    "c",
	".cs":   "csharp",
	".php":  "php",
	".sh":   "bash",
	".sql":  "sql",
	".yaml": "yaml",
	".yml":  "yaml",
	".json": "json",
	".tf":   "hcl",
}

func inferLang(path string) string {
	return langByExt[strings.ToLower(filepath.Ext(path))]
}
