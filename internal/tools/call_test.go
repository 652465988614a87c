package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCall(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		isCall  bool
		wantErr bool
		tool    string
		params  map[string]any
	}{
		{
			name:   "wrapped object",
			input:  `[{"tool":"search","parameters":{"query":"foo"}}]`,
			isCall: true, tool: "search", params: map[string]any{"query": "foo"},
		},
		{
			name:   "bare object",
			input:  `{"tool":"search","parameters":{"query":"foo","n":2}}`,
			isCall: true, tool: "search", params: map[string]any{"query": "foo", "n": 2.0},
		},
		{
			name:   "pascal case keys",
			input:  `[{"Tool":"FuzzySearch","Parameters":{"searchPath":"main.go"}}]`,
			isCall: true, tool: "FuzzySearch", params: map[string]any{"searchPath": "main.go"},
		},
		{
			name:   "missing parameters",
			input:  `[{"tool":"list"}]`,
			isCall: true, tool: "list", params: map[string]any{},
		},
		{
			name:   "tool after review entries",
			input:  `[{"HasChange":false},{"tool":"x","parameters":null}]`,
			isCall: true, tool: "x", params: map[string]any{},
		},
		{name: "review comment", input: `[{"HasChange":true,"Comment":"fine"}]`},
		{name: "array of numbers", input: `[1,2,3]`},
		{name: "invalid json", input: `[{"tool":`},
		{name: "non-string tool", input: `[{"tool":42}]`, isCall: true, wantErr: true},
		{name: "empty tool", input: `[{"tool":""}]`, isCall: true, wantErr: true},
		{name: "parameters not an object", input: `[{"tool":"x","parameters":"q"}]`, isCall: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, isCall, err := ParseCall(tt.input)
			assert.Equal(t, tt.isCall, isCall)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedCall)
				return
			}
			require.NoError(t, err)
			if !tt.isCall {
				return
			}
			assert.Equal(t, tt.tool, call.Tool)
			assert.Equal(t, tt.params, call.Parameters)
		})
	}
}
