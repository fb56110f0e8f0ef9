package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	groqBaseURL   = "https://api.groq.com/openai/v1"
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

	groqModel   = "openai/gpt-oss-120b"
	geminiModel = "gemini-2.5-flash"
)

// Options tune one completion call.
type Options struct {
	Temperature float64
	MaxTokens   int64
}

// Provider is a single-turn chat completion backend. Implementations
// return the generated text or an error the engine treats as a soft
// failure.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system string, prompt string, opts Options) (string, error)
}

// ProviderError wraps a backend failure with the provider's name so the
// fallback chain logs read cleanly.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Client calls one OpenAI-compatible chat-completions endpoint. Groq and
// Gemini both expose one, so a single implementation covers the whole
// fallback chain.
type Client struct {
	name   string
	model  string
	client openai.Client
}

// NewGroq builds the primary generation provider.
func NewGroq(apiKey string) *Client {
	return &Client{
		name:   "groq",
		model:  groqModel,
		client: openai.NewClient(option.WithAPIKey(apiKey), option.WithBaseURL(groqBaseURL)),
	}
}

// NewGemini builds the secondary generation provider.
func NewGemini(apiKey string) *Client {
	return &Client{
		name:   "gemini",
		model:  geminiModel,
		client: openai.NewClient(option.WithAPIKey(apiKey), option.WithBaseURL(geminiBaseURL)),
	}
}

func (c *Client) Name() string {
	return c.name
}

func (c *Client) Complete(ctx context.Context, system string, prompt string, opts Options) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(opts.Temperature),
		MaxTokens:   openai.Int(opts.MaxTokens),
	})
	if err != nil {
		return "", &ProviderError{Provider: c.name, Err: err}
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &ProviderError{Provider: c.name, Err: fmt.Errorf("empty completion")}
	}
	return resp.Choices[0].Message.Content, nil
}
