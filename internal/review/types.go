package review

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
)

// Comment is a single review suggestion for a hunk.
type Comment struct {
	Path            string  `json:"path"`
	Line            int     `json:"line"`
	HasChange       bool    `json:"hasChange"`
	SuggestedChange string  `json:"suggestedChange,omitempty"`
	Comment         string  `json:"comment,omitempty"`
	AIProbability   float64 `json:"aiProbability"`
}

// UnmarshalJSON accepts PascalCase, camelCase and snake_case keys, since
// models do not reliably follow the casing they were shown.
func (c *Comment) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for key, raw := range fields {
		var err error
		switch normalizeKey(key) {
		case "path":
			err = json.Unmarshal(raw, &c.Path)
		case "line":
			err = json.Unmarshal(raw, &c.Line)
		case "haschange":
			err = json.Unmarshal(raw, &c.HasChange)
		case "suggestedchange":
			err = json.Unmarshal(raw, &c.SuggestedChange)
		case "comment":
			err = json.Unmarshal(raw, &c.Comment)
		case "aiprobability":
			err = json.Unmarshal(raw, &c.AIProbability)
		}
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
	}
	return nil
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.ReplaceAll(k, "_", ""))
}

// ID identifies a comment by location and suggestion for deduplication.
func (c Comment) ID() string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", c.Path, c.Line, c.SuggestedChange)))
	return fmt.Sprintf("%x", h[:8])
}

// RepoInfo contains repository metadata.
type RepoInfo struct {
	Root   string `json:"root"`
	Head   string `json:"head,omitempty"`
	Branch string `json:"branch,omitempty"`
}

// InputInfo describes what was reviewed.
type InputInfo struct {
	Mode  string   `json:"mode"`
	Range string   `json:"range,omitempty"`
	Files []string `json:"files,omitempty"`
	Hunks int      `json:"hunks"`
}

// Summary provides an overview of the comments.
type Summary struct {
	Comments         int     `json:"comments"`
	Files            int     `json:"files"`
	MaxAIProbability float64 `json:"maxAiProbability"`
	FailedHunks      int     `json:"failedHunks"`
}

// Timing contains performance metrics.
type Timing struct {
	GitMs   int64 `json:"gitMs"`
	LLMMs   int64 `json:"llmMs"`
	TotalMs int64 `json:"totalMs"`
}

// Report is the top-level output structure.
type Report struct {
	Tool     string    `json:"tool"`
	Version  string    `json:"version"`
	RunID    string    `json:"runId"`
	Model    string    `json:"model,omitempty"`
	Repo     RepoInfo  `json:"repo"`
	Inputs   InputInfo `json:"inputs"`
	Summary  Summary   `json:"summary"`
	Comments []Comment `json:"comments"`
	Errors   []string  `json:"errors,omitempty"`
	Timing   Timing    `json:"timing"`
}

// ComputeSummary calculates the summary from comments.
func ComputeSummary(comments []Comment, failedHunks int) Summary {
	s := Summary{Comments: len(comments), FailedHunks: failedHunks}
	files := make(map[string]bool)
	for _, c := range comments {
		files[c.Path] = true
		if c.AIProbability > s.MaxAIProbability {
			s.MaxAIProbability = c.AIProbability
		}
	}
	s.Files = len(files)
	return s
}
