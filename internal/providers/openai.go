package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"sync"
)

const defaultOpenAIURL = "http://localhost:1234"

// maxOpenAIStop is the most stop sequences api.openai.com accepts. Local
// OpenAI-compatible servers take any number.
const maxOpenAIStop = 4

// OpenAI streams from an OpenAI-compatible chat completions endpoint such
// as llama.cpp server or LM Studio.
type OpenAI struct {
	name    string
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	retries int

	mu    sync.Mutex
	usage Usage
}

type openaiRequest struct {
	Model         string         `json:"model"`
	Messages      []Message      `json:"messages"`
	Stream        bool           `json:"stream"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
	MaxTokens     int            `json:"max_tokens,omitempty"`
	Temperature   *float64       `json:"temperature,omitempty"`
	TopP          float64        `json:"top_p,omitempty"`
	Stop          []string       `json:"stop,omitempty"`
	// llama.cpp extensions; ignored by servers that do not know them.
	TopK          int     `json:"top_k,omitempty"`
	MinP          float64 `json:"min_p,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type openaiChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

var (
	ssePrefix = []byte("data:")
	sseDone   = []byte("[DONE]")
)

func (o *OpenAI) Name() string {
	if o.name == "" {
		return "openai"
	}
	return o.name
}

func (o *OpenAI) Model() string { return o.model }

func (o *OpenAI) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	o.usage = Usage{}
	o.mu.Unlock()
	return nil
}

func (o *OpenAI) Usage() Usage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.usage
}

// stopSequences keeps the first maxOpenAIStop entries of stop when talking
// to OpenAI itself.
func (o *OpenAI) stopSequences(stop []string) []string {
	if o.name == "openai" && len(stop) > maxOpenAIStop {
		return stop[:maxOpenAIStop]
	}
	return stop
}

func (o *OpenAI) StreamChat(ctx context.Context, messages []Message, s Sampling) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		temp := s.Temperature
		payload, err := json.Marshal(openaiRequest{
			Model:         o.model,
			Messages:      messages,
			Stream:        true,
			StreamOptions: &streamOptions{IncludeUsage: true},
			MaxTokens:     s.MaxTokens,
			Temperature:   &temp,
			TopP:          s.TopP,
			Stop:          o.stopSequences(s.Stop),
			TopK:          s.TopK,
			MinP:          s.MinP,
			RepeatPenalty: s.RepeatPenalty,
		})
		if err != nil {
			yield("", fmt.Errorf("marshaling request: %w", err))
			return
		}

		body, err := openStream(ctx, o.client, o.baseURL+"/v1/chat/completions", o.apiKey, payload, o.retries)
		if err != nil {
			yield("", err)
			return
		}
		defer body.Close()

		sc := newLineScanner(body)
		for sc.Scan() {
			line := bytes.TrimSpace(sc.Bytes())
			if !bytes.HasPrefix(line, ssePrefix) {
				continue
			}
			data := bytes.TrimSpace(line[len(ssePrefix):])
			if bytes.Equal(data, sseDone) {
				return
			}
			var chunk openaiChunk
			if err := json.Unmarshal(data, &chunk); err != nil {
				yield("", fmt.Errorf("parsing stream chunk: %w", err))
				return
			}
			if chunk.Usage != nil {
				o.mu.Lock()
				o.usage.PromptTokens += chunk.Usage.PromptTokens
				o.usage.CompletionTokens += chunk.Usage.CompletionTokens
				o.mu.Unlock()
			}
			for _, c := range chunk.Choices {
				if c.Delta.Content != "" && !yield(c.Delta.Content, nil) {
					return
				}
			}
		}
		if err := sc.Err(); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			yield("", fmt.Errorf("reading stream: %w", err))
		}
	}
}

// ListModels returns the model identifiers the server advertises.
func (o *OpenAI) ListModels(ctx context.Context) ([]string, error) {
	data, err := getJSON(ctx, o.client, o.baseURL+"/v1/models", o.apiKey)
	if err != nil {
		return nil, err
	}
	var list struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parsing model list: %w", err)
	}
	ids := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}
