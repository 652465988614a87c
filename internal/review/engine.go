package review

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/vibecheck/internal/cache"
	"github.com/dshills/vibecheck/internal/gitctx"
	"github.com/dshills/vibecheck/internal/tools"
)

// Version is reported in every Report.
const Version = "1.0"

// EngineOptions configures an Engine.
type EngineOptions struct {
	// Cache may be nil to disable caching.
	Cache *cache.Cache
	Rules *Rules
	// Vector is offered to tools for semantic search; may be nil.
	Vector tools.VectorSearcher
	// Parallelism caps how many chunks are in flight. It should match the
	// pool size; the pool still decides who runs.
	Parallelism int
	ChunkBytes  int
	// MaxComments truncates the report; 0 keeps everything.
	MaxComments int
	// Backend and Model identify the generator in cache keys and reports.
	Backend string
	Model   string
	Log     *zap.Logger
}

// Engine turns patch sources into review reports.
type Engine struct {
	orch        *Orchestrator
	opts        EngineOptions
	fingerprint string
	log         *zap.Logger
}

// NewEngine creates an engine on top of orch.
func NewEngine(orch *Orchestrator, opts EngineOptions) *Engine {
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		orch:        orch,
		opts:        opts,
		fingerprint: fingerprint(opts.Backend, opts.Model, orch.settings),
		log:         log,
	}
}

// fingerprint hashes everything besides the hunk that shapes model output.
func fingerprint(backend, model string, s Settings) string {
	h := sha256.New()
	for _, part := range []string{
		backend, model,
		s.Prompts.System, s.Prompts.CodeStyle, s.Prompts.Completion, s.Prompts.Tool,
		strconv.FormatBool(s.ToolsEnabled), strconv.FormatBool(s.OnlyNewCode),
		fmt.Sprintf("%+v", s.Sampling),
	} {
		fmt.Fprintf(h, "%d:%s;", len(part), part)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

type result struct {
	comment Comment
	err     error
}

// Comments streams the review comments for hunks. Cached hunks are served
// first; the rest are split into chunks reviewed concurrently, each under
// its own pool lease. Backend failures arrive as *HunkError values and do
// not end the sequence; any other error does.
func (e *Engine) Comments(ctx context.Context, tc *tools.Context, hunks []gitctx.Hunk) iter.Seq2[Comment, error] {
	return func(yield func(Comment, error) bool) {
		var pending []gitctx.Hunk
		for _, h := range hunks {
			cached, ok := e.opts.Cache.Get(e.cacheKey(h))
			if !ok {
				pending = append(pending, h)
				continue
			}
			e.log.Debug("cache hit", zap.String("path", h.Path), zap.Int("line", h.NewStart))
			for _, text := range cached {
				for _, c := range e.parse(Candidate{Path: h.Path, Line: h.NewStart, Text: text}) {
					if !yield(c, nil) {
						return
					}
				}
			}
		}
		if len(pending) == 0 {
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		results := make(chan result)

		var g errgroup.Group
		g.SetLimit(e.opts.Parallelism)
		go func() {
			for _, ch := range SplitIntoChunks(pending, e.opts.ChunkBytes) {
				chunk := make([]gitctx.Hunk, len(ch.Hunks))
				for i, idx := range ch.Hunks {
					chunk[i] = pending[idx]
				}
				g.Go(func() error {
					e.runChunk(ctx, tc, chunk, results)
					return nil
				})
			}
			g.Wait()
			close(results)
		}()

		for r := range results {
			if !yield(r.comment, r.err) {
				cancel()
				for range results {
				}
				return
			}
		}
		if err := ctx.Err(); err != nil {
			yield(Comment{}, err)
		}
	}
}

// runChunk reviews one chunk and caches the candidates of every hunk that
// finished without a backend failure.
func (e *Engine) runChunk(ctx context.Context, tc *tools.Context, hunks []gitctx.Hunk, out chan<- result) {
	send := func(r result) bool {
		select {
		case out <- r:
			return true
		case <-ctx.Done():
			return false
		}
	}

	perHunk := make([][]string, len(hunks))
	failed := make([]bool, len(hunks))
	for cand, err := range e.orch.Run(ctx, tc, hunks) {
		if err != nil {
			var he *HunkError
			if errors.As(err, &he) {
				failed[cand.Hunk] = true
				if !send(result{err: err}) {
					return
				}
				continue
			}
			send(result{err: err})
			return
		}
		perHunk[cand.Hunk] = append(perHunk[cand.Hunk], cand.Text)
		for _, c := range e.parse(cand) {
			if !send(result{comment: c}) {
				return
			}
		}
	}

	for i, h := range hunks {
		if failed[i] {
			continue
		}
		if err := e.opts.Cache.Put(e.cacheKey(h), perHunk[i]); err != nil {
			e.log.Warn("cache write failed", zap.Error(err))
		}
	}
}

func (e *Engine) parse(c Candidate) []Comment {
	comments, err := ParseComments(c)
	if err != nil {
		e.log.Warn("skipping malformed candidate",
			zap.String("path", c.Path), zap.Int("line", c.Line), zap.Error(err))
	}
	return comments
}

func (e *Engine) cacheKey(h gitctx.Hunk) string {
	return cache.BuildCacheKey(e.fingerprint, gitctx.FormatHunk(h, e.orch.settings.OnlyNewCode))
}

// Review runs a full review of src and returns the collected report.
func (e *Engine) Review(ctx context.Context, src gitctx.PatchSource) (*Report, error) {
	start := time.Now()
	all, err := gitctx.Hunks(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("collecting hunks: %w", err)
	}
	gitMs := time.Since(start).Milliseconds()

	hunks := make([]gitctx.Hunk, 0, len(all))
	for _, h := range all {
		if !h.HasChanges() || e.opts.Rules.Skips(h.Path) {
			continue
		}
		hunks = append(hunks, h)
	}

	report := &Report{
		Tool:    "vibecheck",
		Version: Version,
		RunID:   uuid.NewString(),
		Model:   e.opts.Model,
		Repo:    RepoInfo{Root: src.Root()},
		Inputs:  InputInfo{Mode: "diff", Hunks: len(hunks)},
	}
	if d, ok := src.(interface{ Result() gitctx.DiffResult }); ok {
		res := d.Result()
		report.Repo = RepoInfo{Root: res.Repo.Root, Head: res.Repo.Head, Branch: res.Repo.Branch}
		report.Inputs.Mode = res.Mode
		report.Inputs.Range = res.Range
		report.Inputs.Files = res.Files
	}
	log := e.log.With(zap.String("run", report.RunID))
	log.Info("review started", zap.Int("hunks", len(hunks)))

	tc := &tools.Context{RepositoryPath: src.Root(), Vector: e.opts.Vector}
	llmStart := time.Now()
	var (
		comments []Comment
		failures int
	)
	for c, err := range e.Comments(ctx, tc, hunks) {
		if err != nil {
			var he *HunkError
			if !errors.As(err, &he) {
				return nil, err
			}
			failures++
			report.Errors = append(report.Errors, err.Error())
			continue
		}
		comments = append(comments, c)
	}

	comments = DeduplicateComments(comments)
	SortComments(comments)
	if e.opts.MaxComments > 0 && len(comments) > e.opts.MaxComments {
		comments = comments[:e.opts.MaxComments]
	}
	if comments == nil {
		comments = []Comment{}
	}

	report.Comments = comments
	report.Summary = ComputeSummary(comments, failures)
	report.Timing = Timing{
		GitMs:   gitMs,
		LLMMs:   time.Since(llmStart).Milliseconds(),
		TotalMs: time.Since(start).Milliseconds(),
	}
	log.Info("review finished",
		zap.Int("comments", len(comments)),
		zap.Int("failedHunks", report.Summary.FailedHunks),
		zap.Int64("totalMs", report.Timing.TotalMs))
	return report, nil
}
