package jsonscan

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstComplete(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wrapped bool
		ok      bool
	}{
		{name: "empty", input: "", ok: false},
		{name: "no brackets", input: "thinking about it...", ok: false},
		{name: "incomplete array", input: `[{"HasChange":true,"Comment":"x"`, ok: false},
		{name: "plain array", input: `[1,2,3]`, want: `[1,2,3]`, ok: true},
		{name: "prefix and suffix noise", input: "Sure! Here you go:\n[{\"a\":1}]\nUser: thanks", want: `[{"a":1}]`, ok: true},
		{name: "bare object is wrapped", input: `ok {"tool":"x"} trailing`, want: `[{"tool":"x"}]`, wrapped: true, ok: true},
		{name: "brackets inside strings", input: `["a{b]c"]`, want: `["a{b]c"]`, ok: true},
		{name: "escaped quote inside string", input: `["say \"[hi\" now"] tail`, want: `["say \"[hi\" now"]`, ok: true},
		{name: "escaped backslash before quote", input: `["c:\\", "]"]`, want: `["c:\\", "]"]`, ok: true},
		{name: "nested mixed", input: `x [{"a":[1,{"b":2}]},{"c":{}}] y`, want: `[{"a":[1,{"b":2}]},{"c":{}}]`, ok: true},
		{name: "stray closers before start are ignored", input: `]} [1]`, want: `[1]`, ok: true},
		{name: "quoted bracket in leading prose", input: `Use "[" carefully. [1,2]`, want: `[1,2]`, ok: true},
		{name: "quoted index in leading prose", input: `Review for "foo[i]": [{"a":1}]`, want: `[{"a":1}]`, ok: true},
		{name: "quoted brace in leading prose", input: `He wrote "{" then [{"a":1}]`, want: `[{"a":1}]`, ok: true},
		{name: "escaped quote in leading prose", input: `say "a " [x" [2]`, want: `[2]`, ok: true},
		{name: "unterminated quote hides value", input: `it's "fine [1] ok`, ok: false},
		{name: "first of two", input: `[1][2]`, want: `[1]`, ok: true},
		{name: "trailing anti-prompt", input: `[{"HasChange":true,"SuggestedChange":"x","Comment":"y","AiProbability":0.5}]User:`, want: `[{"HasChange":true,"SuggestedChange":"x","Comment":"y","AiProbability":0.5}]`, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FirstComplete(tt.input)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.want, got.Text)
			assert.Equal(t, tt.wrapped, got.Wrapped)
			assert.Equal(t, got.Raw, tt.input[got.Start:got.End])
			assert.True(t, json.Valid([]byte(got.Text)), "extracted text should be valid JSON: %s", got.Text)
		})
	}
}

func TestFirstComplete_NoiseIsIgnored(t *testing.T) {
	values := []string{
		`[]`,
		`[{"HasChange":false}]`,
		`{"tool":"FuzzySearch","parameters":{"searchPath":"main.go"}}`,
		`[{"Comment":"use \"errors.Is\" here [not ==]"}]`,
	}
	noise := []struct{ prefix, suffix string }{
		{"", ""},
		{"Assistant: ", "\nUser:"},
		{"\n\n  ", "</s>"},
		{"Here is the review, as requested: ", " Let me know if you need more."},
		{"```json\n", "\n```"},
	}
	for _, v := range values {
		for _, n := range noise {
			got, ok := FirstComplete(n.prefix + v + n.suffix)
			require.True(t, ok, "no value found in %q", n.prefix+v+n.suffix)
			assert.Equal(t, v, got.Raw)
			assert.Equal(t, len(n.prefix), got.Start)
		}
	}
}

func TestFirstComplete_Incremental(t *testing.T) {
	stream := []string{"Sure", ": [", `{"HasChange"`, `:true,"Sugg`, `estedChange":"]"`, "}", "]", "User:"}
	var buf string
	found := -1
	for i, tok := range stream {
		buf += tok
		if _, ok := FirstComplete(buf); ok {
			found = i
			break
		}
	}
	assert.Equal(t, 6, found, "value should complete exactly at the closing bracket token")
}

func TestAllComplete(t *testing.T) {
	input := "[1]\n,{\"a\":2} noise [\"x\"] [unterminated"
	got := AllComplete(input)

	texts := make([]string, len(got))
	for i, c := range got {
		texts[i] = c.Text
	}
	want := []string{`[1]`, `[{"a":2}]`, `["x"]`}
	if diff := cmp.Diff(want, texts); diff != "" {
		t.Errorf("AllComplete mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, AllComplete("nothing here"))
}

func TestLargestComplete(t *testing.T) {
	t.Run("truncated outer array recovers longest element", func(t *testing.T) {
		input := `[{"a":1},{"longer":"value"},{"b":`
		_, ok := FirstComplete(input)
		require.False(t, ok)

		got, ok := LargestComplete(input)
		require.True(t, ok)
		assert.Equal(t, `[{"longer":"value"}]`, got.Text)
		assert.True(t, got.Wrapped)
	})

	t.Run("complete buffer returns outermost", func(t *testing.T) {
		got, ok := LargestComplete(`x [1,[2,3]] y [4]`)
		require.True(t, ok)
		assert.Equal(t, `[1,[2,3]]`, got.Text)
	})

	t.Run("nothing balanced", func(t *testing.T) {
		_, ok := LargestComplete(`[[[`)
		assert.False(t, ok)
	})
}

func TestTrimLeading(t *testing.T) {
	assert.Equal(t, `[1]`, TrimLeading(",\r\n  [1]"))
	assert.Equal(t, "", TrimLeading(", \n"))
}
