package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"sync"
)

const defaultOllamaURL = "http://localhost:11434"

var errStreamTruncated = errors.New("stream ended before completion")

// Ollama streams from the native Ollama chat API.
type Ollama struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	retries int

	mu    sync.Mutex
	usage Usage
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature     float64  `json:"temperature"`
	TopP            float64  `json:"top_p"`
	MinP            float64  `json:"min_p"`
	TopK            int      `json:"top_k"`
	RepeatPenalty   float64  `json:"repeat_penalty"`
	PenalizeNewline bool     `json:"penalize_newline"`
	NumPredict      int      `json:"num_predict,omitempty"`
	NumCtx          int      `json:"num_ctx,omitempty"`
	Stop            []string `json:"stop,omitempty"`
}

type ollamaChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done            bool   `json:"done"`
	Error           string `json:"error"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (o *Ollama) Name() string  { return "ollama" }
func (o *Ollama) Model() string { return o.model }

// Reset clears the usage counters. The chat API keeps no server-side
// conversation, so nothing else needs discarding.
func (o *Ollama) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	o.usage = Usage{}
	o.mu.Unlock()
	return nil
}

func (o *Ollama) Usage() Usage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.usage
}

func (o *Ollama) StreamChat(ctx context.Context, messages []Message, s Sampling) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		payload, err := json.Marshal(ollamaChatRequest{
			Model:    o.model,
			Messages: messages,
			Stream:   true,
			Options: ollamaOptions{
				Temperature:     s.Temperature,
				TopP:            s.TopP,
				MinP:            s.MinP,
				TopK:            s.TopK,
				RepeatPenalty:   s.RepeatPenalty,
				PenalizeNewline: s.PenalizeNewline,
				NumPredict:      s.MaxTokens,
				NumCtx:          s.ContextWindow,
				Stop:            s.Stop,
			},
		})
		if err != nil {
			yield("", fmt.Errorf("marshaling request: %w", err))
			return
		}

		body, err := openStream(ctx, o.client, o.baseURL+"/api/chat", o.apiKey, payload, o.retries)
		if err != nil {
			yield("", err)
			return
		}
		defer body.Close()

		sc := newLineScanner(body)
		for sc.Scan() {
			line := sc.Bytes()
			if len(line) == 0 {
				continue
			}
			var chunk ollamaChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				yield("", fmt.Errorf("parsing stream chunk: %w", err))
				return
			}
			if chunk.Error != "" {
				yield("", fmt.Errorf("ollama: %s", chunk.Error))
				return
			}
			if chunk.Message.Content != "" && !yield(chunk.Message.Content, nil) {
				return
			}
			if chunk.Done {
				o.mu.Lock()
				o.usage.PromptTokens += chunk.PromptEvalCount
				o.usage.CompletionTokens += chunk.EvalCount
				o.mu.Unlock()
				return
			}
		}
		if err := sc.Err(); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			yield("", fmt.Errorf("reading stream: %w", err))
			return
		}
		yield("", errStreamTruncated)
	}
}

// ListModels returns the models installed on the server.
func (o *Ollama) ListModels(ctx context.Context) ([]string, error) {
	data, err := getJSON(ctx, o.client, o.baseURL+"/api/tags", o.apiKey)
	if err != nil {
		return nil, err
	}
	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil, fmt.Errorf("parsing model list: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}
