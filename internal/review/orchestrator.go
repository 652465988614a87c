package review

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/vibecheck/internal/gitctx"
	"github.com/dshills/vibecheck/internal/jsonscan"
	"github.com/dshills/vibecheck/internal/pool"
	"github.com/dshills/vibecheck/internal/providers"
	"github.com/dshills/vibecheck/internal/redact"
	"github.com/dshills/vibecheck/internal/tools"
)

// DefaultMaxToolCalls bounds tool round trips per hunk.
const DefaultMaxToolCalls = 8

// errStopped reports that the consumer stopped iterating.
var errStopped = errors.New("consumer stopped")

// Candidate is a complete JSON value extracted from model output for a hunk.
// Its content has not been validated against the comment schema.
type Candidate struct {
	Path string
	Line int
	// Hunk is the index of the originating hunk in the slice passed to Run.
	Hunk int
	Text string
}

// Settings tunes how the orchestrator converses with the model.
type Settings struct {
	Prompts      Prompts
	Sampling     providers.Sampling
	ToolsEnabled bool
	MaxToolCalls int
	OnlyNewCode  bool
	// Redaction masks credentials in hunk text before it is sent.
	Redaction redact.Policy
}

// Orchestrator drives one conversation per hunk against a pooled backend.
type Orchestrator struct {
	pool       *pool.Pool[providers.Backend]
	newBackend pool.Factory[providers.Backend]
	registry   *tools.Registry
	settings   Settings
	log        *zap.Logger
}

// NewOrchestrator wires an orchestrator. registry may be nil, which
// disables tool use regardless of settings.
func NewOrchestrator(p *pool.Pool[providers.Backend], newBackend pool.Factory[providers.Backend], registry *tools.Registry, s Settings, log *zap.Logger) (*Orchestrator, error) {
	if p == nil || newBackend == nil {
		return nil, errors.New("orchestrator needs a pool and a backend factory")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if s.MaxToolCalls <= 0 {
		s.MaxToolCalls = DefaultMaxToolCalls
	}
	return &Orchestrator{
		pool:       p,
		newBackend: newBackend,
		registry:   registry,
		settings:   s,
		log:        log,
	}, nil
}

// Run reviews hunks in order under a single pool lease and yields review
// candidates as soon as they are extracted. A backend failure is yielded as
// a *HunkError and the next hunk proceeds. Failing to obtain a lease or
// cancellation ends the sequence with that error. The lease is released
// when the sequence ends, including when the consumer stops early.
func (o *Orchestrator) Run(ctx context.Context, tc *tools.Context, hunks []gitctx.Hunk) iter.Seq2[Candidate, error] {
	return func(yield func(Candidate, error) bool) {
		if len(hunks) == 0 {
			return
		}
		lease, err := o.pool.Acquire(ctx, o.newBackend)
		if err != nil {
			yield(Candidate{}, fmt.Errorf("acquiring backend: %w", err))
			return
		}
		defer lease.Release()
		backend := lease.Value()
		log := o.log.With(zap.Uint64("lease", lease.Ticket()), zap.String("backend", backend.Name()))

		for i, h := range hunks {
			if err := ctx.Err(); err != nil {
				yield(Candidate{}, err)
				return
			}
			c := &conversation{
				o:       o,
				backend: backend,
				tc:      tc,
				hunk:    h,
				index:   i,
				log:     log.With(zap.String("path", h.Path), zap.Int("line", h.NewStart)),
				yield:   yield,
			}
			err := c.run(ctx)
			switch {
			case err == nil:
			case errors.Is(err, errStopped):
				return
			case ctx.Err() != nil:
				yield(Candidate{}, ctx.Err())
				return
			default:
				c.log.Error("hunk failed", zap.Error(err))
				if !yield(Candidate{Path: h.Path, Line: h.NewStart, Hunk: i}, &HunkError{Path: h.Path, Line: h.NewStart, Err: err}) {
					return
				}
			}
		}
	}
}

// conversation holds the state of one hunk's exchange with the model.
type conversation struct {
	o       *Orchestrator
	backend providers.Backend
	tc      *tools.Context
	hunk    gitctx.Hunk
	index   int
	log     *zap.Logger
	yield   func(Candidate, error) bool

	messages  []providers.Message
	toolCalls int
}

func (c *conversation) run(ctx context.Context) error {
	if err := c.backend.Reset(ctx); err != nil {
		return fmt.Errorf("resetting backend: %w", err)
	}
	s := c.o.settings
	hunkText := c.formatHunk()

	catalog := ""
	if c.toolsEnabled() {
		catalog = c.o.registry.DescribeAvailable(c.tc)
	}
	c.messages = []providers.Message{
		{Role: providers.RoleSystem, Content: s.Prompts.System},
		{Role: providers.RoleUser, Content: s.Prompts.Initial(catalog, hunkText)},
	}

	for {
		transcript, result, called, err := c.turn(ctx)
		if err != nil || !called {
			return err
		}
		c.messages = append(c.messages,
			providers.Message{Role: providers.RoleAssistant, Content: transcript},
			providers.Message{Role: providers.RoleUser, Content: s.Prompts.Continuation(result, hunkText)},
		)
	}
}

// turn streams one model reply. Candidates are emitted as they complete.
// When the reply contains a tool call the stream is abandoned, the tool is
// run and called is true; result carries its output or error text.
func (c *conversation) turn(ctx context.Context) (transcript, result string, called bool, err error) {
	var (
		full   strings.Builder
		buffer string
	)
	for tok, streamErr := range c.backend.StreamChat(ctx, c.messages, c.o.settings.Sampling) {
		if streamErr != nil {
			return "", "", false, streamErr
		}
		full.WriteString(tok)
		buffer += tok

		for {
			buffer = jsonscan.TrimLeading(buffer)
			cand, ok := jsonscan.FirstComplete(buffer)
			if !ok {
				break
			}
			buffer = buffer[cand.End:]

			if c.toolsEnabled() {
				call, isCall, parseErr := tools.ParseCall(cand.Text)
				if isCall {
					if c.toolCalls >= c.o.settings.MaxToolCalls {
						c.log.Warn("tool call limit reached, ending hunk", zap.Int("limit", c.o.settings.MaxToolCalls))
						return "", "", false, nil
					}
					if err := ctx.Err(); err != nil {
						return "", "", false, err
					}
					c.toolCalls++
					return full.String(), c.dispatch(ctx, call, parseErr), true, nil
				}
			}
			if err := c.emit(cand.Text); err != nil {
				return "", "", false, err
			}
		}
	}

	// Servers strip the matched stop sequence, so an array ended by "]User"
	// arrives without its closing bracket.
	if rest := strings.TrimSpace(jsonscan.TrimLeading(buffer)); strings.HasPrefix(rest, "[") {
		if cand, ok := jsonscan.FirstComplete(rest + "]"); ok && cand.Start == 0 {
			if err := c.emit(cand.Text); err != nil {
				return "", "", false, err
			}
		}
	}
	return full.String(), "", false, nil
}

// dispatch runs a tool call and renders the outcome as conversation text.
// Failures never abort the hunk.
func (c *conversation) dispatch(ctx context.Context, call tools.Call, parseErr error) string {
	if parseErr != nil {
		c.log.Warn("malformed tool call", zap.Error(parseErr))
		return fmt.Sprintf("Error invoking tool: %v", parseErr)
	}
	c.log.Info("invoking tool", zap.String("tool", call.Tool))
	out, err := c.o.registry.Invoke(ctx, c.tc, call)
	if err != nil {
		return fmt.Sprintf("Error invoking tool '%s': %v", call.Tool, err)
	}
	return out
}

func (c *conversation) emit(text string) error {
	c.log.Debug("candidate extracted", zap.Int("bytes", len(text)))
	if !c.yield(Candidate{Path: c.hunk.Path, Line: c.hunk.NewStart, Hunk: c.index, Text: text}, nil) {
		return errStopped
	}
	return nil
}

func (c *conversation) toolsEnabled() bool {
	return c.o.settings.ToolsEnabled && c.o.registry != nil
}

func (c *conversation) formatHunk() string {
	text, n := c.o.settings.Redaction.Apply(c.hunk.Path, gitctx.FormatHunk(c.hunk, c.o.settings.OnlyNewCode))
	if n > 0 {
		c.log.Info("redacted hunk", zap.Int("replacements", n))
	}
	return text
}
