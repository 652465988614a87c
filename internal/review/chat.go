package review

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/vibecheck/internal/providers"
)

// DefaultChatPrompt seeds interactive sessions.
const DefaultChatPrompt = "You are a helpful senior software engineer. Answer concisely."

// Chat runs an interactive session on a pooled backend. Every line read from
// in is a user turn; the reply is streamed to out as it is generated. The
// session ends at EOF, on "exit" or "quit", or when ctx is cancelled.
func (o *Orchestrator) Chat(ctx context.Context, system string, in io.Reader, out io.Writer) error {
	lease, err := o.pool.Acquire(ctx, o.newBackend)
	if err != nil {
		return fmt.Errorf("acquiring backend: %w", err)
	}
	defer lease.Release()
	backend := lease.Value()
	if err := backend.Reset(ctx); err != nil {
		return fmt.Errorf("resetting backend: %w", err)
	}

	messages := []providers.Message{{Role: providers.RoleSystem, Content: system}}
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		messages = append(messages, providers.Message{Role: providers.RoleUser, Content: line})
		var reply strings.Builder
		for tok, err := range backend.StreamChat(ctx, messages, o.settings.Sampling) {
			if err != nil {
				return fmt.Errorf("%w: %w", ErrBackendFailure, err)
			}
			reply.WriteString(tok)
			fmt.Fprint(out, tok)
		}
		fmt.Fprintln(out)
		messages = append(messages, providers.Message{Role: providers.RoleAssistant, Content: reply.String()})
		o.log.Debug("chat turn", zap.Int("turns", len(messages)/2))
	}
}
