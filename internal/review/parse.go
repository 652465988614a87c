package review

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dshills/vibecheck/internal/jsonscan"
)

var trailingComma = regexp.MustCompile(`,(\s*[\]}])`)

// ParseComments decodes the review comments in a candidate. Every complete
// value in the text is tried in turn; if none decodes, the largest balanced
// span is tried as a last resort. Comments without a concrete suggested
// change are dropped. The error wraps ErrMalformedCandidate when some value
// could not be decoded, even if others were.
func ParseComments(c Candidate) ([]Comment, error) {
	text := strings.TrimSpace(c.Text)
	text = strings.TrimSpace(strings.TrimSuffix(text, "User:"))
	if text == "" {
		return nil, nil
	}

	values := jsonscan.AllComplete(text)
	var (
		comments []Comment
		errs     []error
		decoded  bool
	)
	for _, v := range values {
		list, err := decodeComments(v.Text)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		decoded = true
		comments = append(comments, keep(list, c)...)
	}

	if !decoded {
		if v, ok := jsonscan.LargestComplete(text); ok {
			if list, err := decodeComments(v.Text); err == nil {
				return keep(list, c), nil
			}
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: no JSON value in %q", ErrMalformedCandidate, abbreviate(text))
		}
	}
	if len(errs) > 0 {
		return comments, fmt.Errorf("%w: %w", ErrMalformedCandidate, errors.Join(errs...))
	}
	return comments, nil
}

func decodeComments(text string) ([]Comment, error) {
	list, err := unmarshalComments(text)
	if err == nil {
		return list, nil
	}
	// Models often leave a comma before a closing bracket.
	if repaired := trailingComma.ReplaceAllString(text, "$1"); repaired != text {
		if list, rerr := unmarshalComments(repaired); rerr == nil {
			return list, nil
		}
	}
	return nil, err
}

// unmarshalComments accepts an array of comments or a single object.
func unmarshalComments(text string) ([]Comment, error) {
	if strings.HasPrefix(text, "{") {
		var c Comment
		if err := json.Unmarshal([]byte(text), &c); err != nil {
			return nil, err
		}
		return []Comment{c}, nil
	}
	var list []Comment
	if err := json.Unmarshal([]byte(text), &list); err != nil {
		return nil, err
	}
	return list, nil
}

func keep(list []Comment, c Candidate) []Comment {
	var out []Comment
	for _, cm := range list {
		if !cm.HasChange || strings.TrimSpace(cm.SuggestedChange) == "" {
			continue
		}
		cm.Path = c.Path
		cm.Line = c.Line
		out = append(out, cm)
	}
	return out
}

func abbreviate(s string) string {
	const limit = 80
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
