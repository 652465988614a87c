package review

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/vibecheck/internal/cache"
	"github.com/dshills/vibecheck/internal/gitctx"
	"github.com/dshills/vibecheck/internal/tools"
)

const twoFileDiff = `diff --git a/a.go b/a.go
--- a/a.go
+++ b/a.go
@@ -1 +1,2 @@
 package a
+var x = 1
diff --git a/b.go b/b.go
--- a/b.go
+++ b/b.go
@@ -1 +1,2 @@
 package b
+var y = 2
diff --git a/README.md b/README.md
--- a/README.md
+++ b/README.md
@@ -1 +1,2 @@
 # demo
+more words
`

const suggestion = `[{"HasChange":true,"SuggestedChange":"const x = 1","Comment":"never reassigned","AIProbability":0.4}]`

func newTestEngine(t *testing.T, b *scriptedBackend, opts EngineOptions) *Engine {
	t.Helper()
	o, err := NewOrchestrator(newTestPool(t, max(opts.Parallelism, 1)), factoryFor(b), nil, testSettings(false), nil)
	require.NoError(t, err)
	opts.Backend, opts.Model = b.Name(), b.Model()
	return NewEngine(o, opts)
}

func TestEngine_Review(t *testing.T) {
	b := &scriptedBackend{replies: []reply{
		say(suggestion),
		{err: errors.New("model crashed")},
	}}
	e := newTestEngine(t, b, EngineOptions{Rules: &Rules{Ignore: []string{"*.md"}}})

	report, err := e.Review(context.Background(), gitctx.TextSource{Text: twoFileDiff, Dir: "/repo"})
	require.NoError(t, err)

	assert.Equal(t, "vibecheck", report.Tool)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "test-model", report.Model)
	assert.Equal(t, "/repo", report.Repo.Root)
	assert.Equal(t, InputInfo{Mode: "diff", Hunks: 2}, report.Inputs)

	require.Len(t, report.Comments, 1)
	c := report.Comments[0]
	assert.Equal(t, "a.go", c.Path)
	assert.Equal(t, 1, c.Line)
	assert.Equal(t, "const x = 1", c.SuggestedChange)

	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "b.go")
	assert.Equal(t, Summary{Comments: 1, Files: 1, MaxAIProbability: 0.4, FailedHunks: 1}, report.Summary)
	assert.Equal(t, 2, b.callCount())
}

func TestEngine_ReviewEmptyDiff(t *testing.T) {
	b := &scriptedBackend{}
	e := newTestEngine(t, b, EngineOptions{})

	report, err := e.Review(context.Background(), gitctx.TextSource{Text: ""})
	require.NoError(t, err)
	assert.Empty(t, report.Comments)
	assert.NotNil(t, report.Comments)
	assert.Zero(t, b.callCount())
}

func TestEngine_CachesSuccessfulHunksOnly(t *testing.T) {
	c, err := cache.New(true, t.TempDir(), 3600)
	require.NoError(t, err)
	src := gitctx.TextSource{Text: twoFileDiff}
	opts := EngineOptions{Cache: c, Rules: &Rules{Ignore: []string{"*.md"}}}

	first := &scriptedBackend{replies: []reply{say(suggestion), {err: errors.New("boom")}}}
	report, err := newTestEngine(t, first, opts).Review(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, report.Comments, 1)

	second := &scriptedBackend{replies: []reply{say(`[]`)}}
	report, err = newTestEngine(t, second, opts).Review(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, 1, second.callCount(), "only the failed hunk is sent again")
	assert.Contains(t, second.call(0)[1].Content, "+var y = 2")
	require.Len(t, report.Comments, 1)
	assert.Equal(t, "a.go", report.Comments[0].Path)
	assert.Empty(t, report.Errors)
}

func TestEngine_MaxComments(t *testing.T) {
	b := &scriptedBackend{replies: []reply{
		say(`[{"HasChange":true,"SuggestedChange":"a"},{"HasChange":true,"SuggestedChange":"b","AIProbability":0.9}]`),
		say(`[{"HasChange":true,"SuggestedChange":"c"}]`),
		say(`[]`),
	}}
	e := newTestEngine(t, b, EngineOptions{MaxComments: 2})

	report, err := e.Review(context.Background(), gitctx.TextSource{Text: twoFileDiff})
	require.NoError(t, err)
	require.Len(t, report.Comments, 2)
	assert.Equal(t, "b", report.Comments[0].SuggestedChange)
	assert.Equal(t, "a", report.Comments[1].SuggestedChange)
}

func TestEngine_CommentsStopEarly(t *testing.T) {
	replies := make([]reply, 3)
	for i := range replies {
		replies[i] = say(`[{"HasChange":true,"SuggestedChange":"s"}]`)
	}
	b := &scriptedBackend{replies: replies}
	e := newTestEngine(t, b, EngineOptions{Parallelism: 2, ChunkBytes: 1})

	hunks, err := gitctx.Hunks(context.Background(), gitctx.TextSource{Text: twoFileDiff})
	require.NoError(t, err)

	n := 0
	for _, err := range e.Comments(context.Background(), &tools.Context{}, hunks) {
		require.NoError(t, err)
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestEngine_CommentsCancelled(t *testing.T) {
	b := &scriptedBackend{replies: []reply{{block: true}}}
	e := newTestEngine(t, b, EngineOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Review(ctx, gitctx.TextSource{Text: twoFileDiff})
	assert.ErrorIs(t, err, context.Canceled)
}
