// Package llm defines the completion client interface for CodeHelper and the
// provider-agnostic prompt and error types shared by every provider.
package llm

import (
	"context"
	"time"
)

// DefaultSystemPrompt is the system instruction sent to chat-style backends.
const DefaultSystemPrompt = "You are a precise coding assistant."

// Client is a minimal interface for making LLM API calls.
// Implementations provide the actual HTTP transport to a specific provider.
type Client interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Prompt is the provider-agnostic output of the task dispatcher.
// Chat-style providers send it as two messages; completion-style providers
// send the flattened text.
type Prompt struct {
	System string
	User   string
}

// Message is one entry of a chat-style request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Flat returns the single-string form of the prompt.
func (p Prompt) Flat() string {
	return p.User
}

// Messages returns the system + user message pair. The system message is
// omitted when empty.
func (p Prompt) Messages() []Message {
	msgs := make([]Message, 0, 2)
	if p.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: p.System})
	}
	return append(msgs, Message{Role: "user", Content: p.User})
}

// Options configures a provider client.
type Options struct {
	// Model is the provider model identifier. Empty selects the provider default.
	Model string

	// BaseURL overrides the provider endpoint (used for Groq and for tests).
	BaseURL string

	// MaxTokens caps the completion length (default 2048).
	MaxTokens int

	// Temperature is the sampling temperature (default 0.3).
	Temperature float64

	// Timeout bounds a single request (default 30s).
	Timeout time.Duration
}

const (
	DefaultMaxTokens   = 2048
	DefaultTemperature = 0.3
	DefaultTimeout     = 30 * time.Second
)

// WithDefaults returns a copy of o with zero fields filled in.
func (o Options) WithDefaults(model, baseURL string) Options {
	if o.Model == "" {
		o.Model = model
	}
	if o.BaseURL == "" {
		o.BaseURL = baseURL
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.Temperature == 0 {
		o.Temperature = DefaultTemperature
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}
