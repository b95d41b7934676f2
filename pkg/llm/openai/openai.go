// Package openai implements llm.Client against OpenAI-compatible Chat
// Completions endpoints. The same client serves OpenAI and Groq.
package openai

import (
	"context"
	"net/http"
	"strings"

	"github.com/jxucoder/codehelper/pkg/llm"
)

const (
	OpenAIBaseURL = "https://api.openai.com/v1"
	GroqBaseURL   = "https://api.groq.com/openai/v1"

	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultGroqModel   = "llama-3.3-70b-versatile"
)

// Client implements llm.Client using the Chat Completions API.
type Client struct {
	name   string
	apiKey string
	opts   llm.Options
	client *http.Client
}

// New creates a client for the OpenAI API.
// Model defaults to "gpt-4o-mini" if empty.
func New(apiKey string, opts llm.Options) *Client {
	return newClient("openai", apiKey, opts.WithDefaults(DefaultOpenAIModel, OpenAIBaseURL))
}

// NewGroq creates a client for Groq's OpenAI-compatible endpoint.
// Model defaults to "llama-3.3-70b-versatile" if empty.
func NewGroq(apiKey string, opts llm.Options) *Client {
	return newClient("groq", apiKey, opts.WithDefaults(DefaultGroqModel, GroqBaseURL))
}

func newClient(name, apiKey string, opts llm.Options) *Client {
	return &Client{
		name:   name,
		apiKey: apiKey,
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
	}
}

// Name returns the provider name ("openai" or "groq").
func (c *Client) Name() string { return c.name }

func (c *Client) Complete(ctx context.Context, p llm.Prompt) (string, error) {
	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	reqBody := map[string]any{
		"model":       c.opts.Model,
		"max_tokens":  c.opts.MaxTokens,
		"temperature": c.opts.Temperature,
		"messages":    p.Messages(),
	}
	err := llm.DoJSON(ctx, c.client, c.name, strings.TrimRight(c.opts.BaseURL, "/")+"/chat/completions", c.apiKey,
		map[string]string{
			"Authorization": "Bearer " + c.apiKey,
		},
		reqBody, &result)
	if err != nil {
		return "", err
	}

	if len(result.Choices) == 0 {
		return "", llm.NewMalformedError(c.name, "no choices in response")
	}
	return result.Choices[0].Message.Content, nil
}
