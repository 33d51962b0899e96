// Package genai provides GenAI-backed text generation using the OpenAI API.
//
// All language-model collaborators in Hamraz (reply generation, memory
// summarization, classification, exercise ranking) go through this client.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ClientInterface defines the generation operations the rest of the
// system depends on, so tests can substitute a mock.
type ClientInterface interface {
	// Generate produces a completion for a system prompt and optional
	// user prompt at the given sampling temperature.
	Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)

	// GenerateWithMessages produces a completion for a full message list.
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, temperature float64) (string, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  string
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel overrides the default chat model.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// Client wraps the OpenAI chat completion API.
type Client struct {
	client openai.Client
	model  string
}

// NewClient initializes a new GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable when not provided via options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		slog.Error("GenAI client API key not set")
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	model := cfg.Model
	if model == "" {
		model = os.Getenv("OPENAI_MODEL")
	}
	if model == "" {
		model = openai.ChatModelGPT4o
	}

	slog.Debug("Creating GenAI client", "model", model)
	return &Client{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

// Generate produces a completion for a system prompt and optional user prompt.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
	}
	if userPrompt != "" {
		messages = append(messages, openai.UserMessage(userPrompt))
	}
	return c.GenerateWithMessages(ctx, messages, temperature)
}

// GenerateWithMessages produces a completion for a full message list.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, temperature float64) (string, error) {
	slog.Debug("GenAI GenerateWithMessages invoked", "model", c.model, "messageCount", len(messages), "temperature", temperature)

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    messages,
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		slog.Error("GenAI chat completion failed", "error", err, "model", c.model)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		slog.Error("GenAI chat completion returned no choices", "model", c.model)
		return "", fmt.Errorf("no choices returned")
	}

	content := completion.Choices[0].Message.Content
	slog.Debug("GenAI GenerateWithMessages succeeded", "model", c.model, "responseLength", len(content))
	return content, nil
}
