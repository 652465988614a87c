package providers

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Sampling holds the generation parameters sent with every request.
type Sampling struct {
	Temperature     float64
	TopP            float64
	MinP            float64
	TopK            int
	RepeatPenalty   float64
	PenalizeNewline bool
	MaxTokens       int
	ContextWindow   int
	Stop            []string
}

// DefaultSampling returns the parameters used when none are configured.
func DefaultSampling() Sampling {
	return Sampling{
		Temperature:     0.3,
		TopP:            0.9,
		MinP:            0.05,
		TopK:            40,
		RepeatPenalty:   1.1,
		PenalizeNewline: true,
		MaxTokens:       512,
		ContextWindow:   2048,
		Stop:            []string{"User:", "\nUser:", "</s>", "<|eot_id|>", "]User"},
	}
}

// Usage counts tokens reported by the server since the last Reset.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Backend streams chat completions from a model server.
type Backend interface {
	Name() string
	Model() string
	// Reset prepares the backend for an unrelated conversation.
	Reset(ctx context.Context) error
	// StreamChat sends messages and yields generated text fragments as they
	// arrive. A non-nil error is always the last value yielded.
	StreamChat(ctx context.Context, messages []Message, s Sampling) iter.Seq2[string, error]
	Usage() Usage
}

// Options selects and configures a backend.
type Options struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	Retries  int
}

// New returns the backend for opts.Provider.
func New(opts Options) (Backend, error) {
	if opts.Model == "" {
		return nil, fmt.Errorf("no model configured for provider %q", opts.Provider)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	retries := opts.Retries
	if retries <= 0 {
		retries = 3
	}
	client := &http.Client{Timeout: timeout}

	switch strings.ToLower(opts.Provider) {
	case "", "ollama":
		base := opts.BaseURL
		if base == "" {
			base = defaultOllamaURL
		}
		return &Ollama{
			apiKey:  opts.APIKey,
			model:   opts.Model,
			baseURL: normalizeBaseURL(base),
			client:  client,
			retries: retries,
		}, nil
	case "openai", "lmstudio", "llamacpp":
		base := opts.BaseURL
		if base == "" {
			base = defaultOpenAIURL
		}
		return &OpenAI{
			name:    strings.ToLower(opts.Provider),
			apiKey:  opts.APIKey,
			model:   opts.Model,
			baseURL: normalizeBaseURL(base),
			client:  client,
			retries: retries,
		}, nil
	default:
		return nil, fmt.Errorf("unknown provider: %q (supported: ollama, openai, lmstudio, llamacpp)", opts.Provider)
	}
}

// normalizeBaseURL strips trailing slashes and any known API path so that
// users can paste either the server root or a full endpoint.
func normalizeBaseURL(u string) string {
	u = strings.TrimRight(u, "/")
	for _, suffix := range []string{"/v1/chat/completions", "/api/chat", "/v1"} {
		u = strings.TrimSuffix(u, suffix)
	}
	return u
}

// ModelLister is implemented by backends that can enumerate server models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}
