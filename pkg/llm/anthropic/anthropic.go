// Package anthropic implements llm.Client using the Anthropic Messages API.
package anthropic

import (
	"context"
	"net/http"
	"strings"

	"github.com/jxucoder/codehelper/pkg/llm"
)

const (
	BaseURL      = "https://api.anthropic.com/v1"
	DefaultModel = "claude-sonnet-4-20250514"
)

// Client implements llm.Client using the Anthropic Messages API.
type Client struct {
	apiKey string
	opts   llm.Options
	client *http.Client
}

// New creates a client for the Anthropic API.
// Model defaults to "claude-sonnet-4-20250514" if empty.
func New(apiKey string, opts llm.Options) *Client {
	opts = opts.WithDefaults(DefaultModel, BaseURL)
	return &Client{
		apiKey: apiKey,
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
	}
}

func (c *Client) Complete(ctx context.Context, p llm.Prompt) (string, error) {
	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	reqBody := map[string]any{
		"model":       c.opts.Model,
		"max_tokens":  c.opts.MaxTokens,
		"temperature": c.opts.Temperature,
		"messages": []llm.Message{
			{Role: "user", Content: p.User},
		},
	}
	if p.System != "" {
		reqBody["system"] = p.System
	}
	err := llm.DoJSON(ctx, c.client, "anthropic", strings.TrimRight(c.opts.BaseURL, "/")+"/messages", c.apiKey,
		map[string]string{
			"x-api-key":         c.apiKey,
			"anthropic-version": "2023-06-01",
		},
		reqBody, &result)
	if err != nil {
		return "", err
	}

	for _, c := range result.Content {
		if c.Type == "text" {
			return c.Text, nil
		}
	}
	return "", llm.NewMalformedError("anthropic", "no text content in response")
}
