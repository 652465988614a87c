package tools

import (
	"encoding/json"
	"fmt"
)

// QualifierParam selects a provider when several expose the same name.
const QualifierParam = "__class"

// Call is a tool invocation request read from model output:
//
//	{"tool": "<name>", "parameters": {"<name>": <value>}}
type Call struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
}

// ParseCall looks for a tool invocation in a candidate JSON value. The value
// may be a single object or an array whose first tool-shaped element is
// used. isCall reports whether anything carried a tool field; when it did
// but the call cannot be read, err wraps ErrMalformedCall.
func ParseCall(text string) (call Call, isCall bool, err error) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		items = []json.RawMessage{json.RawMessage(text)}
	}

	for _, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil {
			continue
		}
		rawName, ok := lookup(fields, "tool", "Tool")
		if !ok {
			continue
		}
		var name string
		if err := json.Unmarshal(rawName, &name); err != nil || name == "" {
			return Call{}, true, fmt.Errorf("%w: tool name must be a non-empty string", ErrMalformedCall)
		}
		call = Call{Tool: name, Parameters: map[string]any{}}
		if rawParams, ok := lookup(fields, "parameters", "Parameters"); ok && string(rawParams) != "null" {
			if err := json.Unmarshal(rawParams, &call.Parameters); err != nil {
				return Call{}, true, fmt.Errorf("%w: parameters of %s must be an object", ErrMalformedCall, name)
			}
		}
		return call, true, nil
	}
	return Call{}, false, nil
}

func lookup(fields map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			return v, true
		}
	}
	return nil, false
}
