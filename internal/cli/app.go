package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/vibecheck/internal/cache"
	"github.com/dshills/vibecheck/internal/config"
	"github.com/dshills/vibecheck/internal/pool"
	"github.com/dshills/vibecheck/internal/providers"
	"github.com/dshills/vibecheck/internal/redact"
	"github.com/dshills/vibecheck/internal/review"
	"github.com/dshills/vibecheck/internal/tools"
	"github.com/dshills/vibecheck/internal/tools/builtin"
	"github.com/dshills/vibecheck/internal/vectorindex"
)

// app holds the components shared by the commands that talk to a model.
type app struct {
	cfg      config.Config
	log      *zap.Logger
	pool     *pool.Pool[providers.Backend]
	registry *tools.Registry
	orch     *review.Orchestrator
	engine   *review.Engine
	store    *vectorindex.Store
	// vector is nil when no index exists for the repository.
	vector *vectorindex.Searcher
}

// newApp wires the review stack for the repository at root.
func newApp(cfg config.Config, root string, log *zap.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}

	p, err := pool.New[providers.Backend](cfg.Inference.PoolSize, pool.WithLogger(log), pool.WithName("backend"))
	if err != nil {
		return nil, err
	}
	a.pool = p

	rules, err := review.LoadRules(cfg.Review.RulesFile)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("loading rules: %w", err)
	}

	redaction := redact.Policy{Secrets: cfg.Privacy.RedactSecrets, Paths: cfg.Privacy.RedactPaths}
	a.registry = tools.NewRegistry(log, builtin.Providers(builtin.Options{
		ExcludedDirs: cfg.Vector.ExcludedFolders,
		Redaction:    redaction,
		VectorTopK:   cfg.Vector.TopK,
	})...)
	if err := a.registry.Discover(); err != nil {
		a.close()
		return nil, fmt.Errorf("registering tools: %w", err)
	}

	if cfg.Vector.Enabled && root != "" {
		if err := a.openIndex(root, false); err != nil {
			log.Warn("vector index unavailable", zap.Error(err))
		}
	}

	a.orch, err = review.NewOrchestrator(a.pool, backendFactory(cfg), a.registry, review.Settings{
		Prompts:      promptsFrom(cfg).WithRules(rules),
		Sampling:     samplingFrom(cfg),
		ToolsEnabled: cfg.Tools.Enabled,
		MaxToolCalls: cfg.Inference.MaxToolCalls,
		OnlyNewCode:  cfg.Review.OnlyNewCode,
		Redaction:    redaction,
	}, log)
	if err != nil {
		a.close()
		return nil, err
	}

	c, err := cache.New(cfg.Cache.Enabled, cfg.Cache.Dir, cfg.Cache.TTLSeconds)
	if err != nil {
		log.Warn("cache unavailable", zap.Error(err))
		c = nil
	}
	opts := review.EngineOptions{
		Cache:       c,
		Rules:       rules,
		Parallelism: cfg.Inference.PoolSize,
		MaxComments: cfg.Review.MaxComments,
		Backend:     cfg.Backend.Provider,
		Model:       cfg.Backend.Model,
		Log:         log,
	}
	if a.vector != nil {
		opts.Vector = a.vector
	}
	a.engine = review.NewEngine(a.orch, opts)
	return a, nil
}

// openIndex opens the vector store of root. Unless create is set, a missing
// index is reported as an error rather than created.
func (a *app) openIndex(root string, create bool) error {
	path := vectorindex.DefaultPath(root)
	if !create {
		if _, err := os.Stat(path); err != nil {
			return err
		}
	}
	store, err := vectorindex.Open(path)
	if err != nil {
		return err
	}
	a.store = store
	a.vector = vectorindex.NewSearcher(store, embedderFrom(a.cfg))
	return nil
}

func (a *app) toolContext(root string) *tools.Context {
	tc := &tools.Context{RepositoryPath: root}
	if a.vector != nil {
		tc.Vector = a.vector
	}
	return tc
}

func (a *app) close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("closing vector index", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}

func backendOptions(cfg config.Config) providers.Options {
	return providers.Options{
		Provider: cfg.Backend.Provider,
		Model:    cfg.Backend.Model,
		BaseURL:  cfg.Backend.URL,
		APIKey:   cfg.Backend.APIKey,
		Timeout:  time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
	}
}

func backendFactory(cfg config.Config) pool.Factory[providers.Backend] {
	opts := backendOptions(cfg)
	return func(ctx context.Context) (providers.Backend, error) {
		return providers.New(opts)
	}
}

func embedderFrom(cfg config.Config) vectorindex.Embedder {
	endpoint := ""
	if cfg.Backend.Provider == "ollama" {
		endpoint = cfg.Backend.URL
	}
	return vectorindex.NewOllamaEmbedder(endpoint, cfg.Vector.EmbedModel,
		time.Duration(cfg.Backend.TimeoutSeconds)*time.Second)
}

func promptsFrom(cfg config.Config) review.Prompts {
	p := review.DefaultPrompts()
	if cfg.Inference.SystemPrompt != "" {
		p.System = cfg.Inference.SystemPrompt
	}
	if cfg.Inference.CompletionPrompt != "" {
		p.Completion = cfg.Inference.CompletionPrompt
	}
	if cfg.Tools.Prompt != "" {
		p.Tool = cfg.Tools.Prompt
	}
	p.CodeStyle = cfg.Inference.CodeStylePrompt
	return p
}

func samplingFrom(cfg config.Config) providers.Sampling {
	s := cfg.Inference.Sampling
	return providers.Sampling{
		Temperature:     s.Temperature,
		TopP:            s.TopP,
		MinP:            s.MinP,
		TopK:            s.TopK,
		RepeatPenalty:   s.RepeatPenalty,
		PenalizeNewline: s.PenalizeNewline,
		MaxTokens:       cfg.Inference.MaxTokens,
		ContextWindow:   cfg.Inference.ContextWindow,
		Stop:            cfg.Inference.StopSequences,
	}
}

// exitCodeFor maps an error to the process exit code.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case providers.IsAuthError(err):
		return ExitAuthError
	case errors.Is(err, errUsage):
		return ExitUsageError
	default:
		return ExitRuntimeError
	}
}

// errUsage marks invalid flag combinations detected after parsing.
var errUsage = errors.New("invalid usage")
