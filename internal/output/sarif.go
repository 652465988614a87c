package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/vibecheck/internal/review"
)

const (
	sarifRuleID = "vibecheck/suggestion"
	sarifSchema = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/main/sarif-2.1/schema/sarif-schema-2.1.0.json"
)

// SARIFWriter outputs comments in SARIF v2.1.0 format.
type SARIFWriter struct{}

func (s *SARIFWriter) Write(w io.Writer, report *review.Report) error {
	sarif := buildSARIF(report)
	data, err := json.MarshalIndent(sarif, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling SARIF: %w", err)
	}
	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("writing SARIF: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}

// SARIF schema types (v2.1.0)

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool        sarifTool         `json:"tool"`
	Results     []sarifResult     `json:"results"`
	Invocations []sarifInvocation `json:"invocations,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	ShortDescription sarifMessage       `json:"shortDescription"`
	DefaultConfig    sarifDefaultConfig `json:"defaultConfiguration"`
}

type sarifDefaultConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID              string            `json:"ruleId"`
	Level               string            `json:"level"`
	Message             sarifMessage      `json:"message"`
	Locations           []sarifLocation   `json:"locations"`
	Fixes               []sarifFix        `json:"fixes,omitempty"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
	Properties          map[string]any    `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           sarifRegion           `json:"region"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
}

type sarifFix struct {
	Description sarifMessage `json:"description"`
}

type sarifInvocation struct {
	ExecutionSuccessful        bool                `json:"executionSuccessful"`
	ToolExecutionNotifications []sarifNotification `json:"toolExecutionNotifications,omitempty"`
}

type sarifNotification struct {
	Level   string       `json:"level"`
	Message sarifMessage `json:"message"`
}

func buildSARIF(report *review.Report) sarifLog {
	results := make([]sarifResult, 0, len(report.Comments))
	for _, c := range report.Comments {
		text := c.Comment
		if text == "" {
			text = "Suggested change"
		}
		results = append(results, sarifResult{
			RuleID:  sarifRuleID,
			Level:   "warning",
			Message: sarifMessage{Text: text},
			Locations: []sarifLocation{{
				PhysicalLocation: sarifPhysicalLocation{
					ArtifactLocation: sarifArtifactLocation{URI: c.Path},
					Region:           sarifRegion{StartLine: max(c.Line, 1)},
				},
			}},
			Fixes:               []sarifFix{{Description: sarifMessage{Text: c.SuggestedChange}}},
			PartialFingerprints: map[string]string{"vibecheck/v1": c.ID()},
			Properties:          map[string]any{"aiProbability": c.AIProbability},
		})
	}

	run := sarifRun{
		Tool: sarifTool{
			Driver: sarifDriver{
				Name:    "vibecheck",
				Version: report.Version,
				Rules: []sarifRule{{
					ID:               sarifRuleID,
					Name:             "ReviewSuggestion",
					ShortDescription: sarifMessage{Text: "Code change suggested by model review"},
					DefaultConfig:    sarifDefaultConfig{Level: "warning"},
				}},
			},
		},
		Results: results,
	}
	if len(report.Errors) > 0 {
		inv := sarifInvocation{ExecutionSuccessful: true}
		for _, e := range report.Errors {
			inv.ToolExecutionNotifications = append(inv.ToolExecutionNotifications, sarifNotification{
				Level:   "error",
				Message: sarifMessage{Text: e},
			})
		}
		run.Invocations = []sarifInvocation{inv}
	}

	return sarifLog{
		Version: "2.1.0",
		Schema:  sarifSchema,
		Runs:    []sarifRun{run},
	}
}
