package review

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/vibecheck/internal/gitctx"
)

// Rules represents a rules pack loaded from --rules.
type Rules struct {
	Focus    []string        `json:"focus,omitempty" yaml:"focus,omitempty"`
	Required []RequiredCheck `json:"required,omitempty" yaml:"required,omitempty"`
	// Style is free-form guidance appended to the code style prompt.
	Style string `json:"style,omitempty" yaml:"style,omitempty"`
	// Ignore lists glob patterns of paths whose hunks are not reviewed.
	Ignore []string `json:"ignore,omitempty" yaml:"ignore,omitempty"`
}

// RequiredCheck is a policy check that should always be enforced.
type RequiredCheck struct {
	ID   string `json:"id" yaml:"id"`
	Text string `json:"text" yaml:"text"`
}

// LoadRules loads a YAML or JSON rules file from disk. Returns nil Rules and
// nil error if path is empty.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	var rules Rules
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &rules)
	} else {
		err = yaml.Unmarshal(data, &rules)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}
	return &rules, nil
}

// Skips reports whether hunks in path are excluded by the rules.
func (r *Rules) Skips(path string) bool {
	return r != nil && gitctx.MatchesAny(path, r.Ignore)
}

// BuildRulesPromptSection returns additional prompt instructions derived from rules.
func BuildRulesPromptSection(rules *Rules) string {
	if rules == nil {
		return ""
	}

	var b strings.Builder

	if s := strings.TrimSpace(rules.Style); s != "" {
		b.WriteString(s)
		b.WriteByte('\n')
	}

	if len(rules.Focus) > 0 {
		fmt.Fprintf(&b, "Focus areas: %s. Prioritize comments in these areas.\n",
			strings.Join(rules.Focus, ", "))
	}

	if len(rules.Required) > 0 {
		b.WriteString("Required checks (always evaluate these):\n")
		for _, req := range rules.Required {
			fmt.Fprintf(&b, "- [%s] %s\n", req.ID, req.Text)
		}
	}

	return b.String()
}
