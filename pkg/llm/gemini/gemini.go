// Package gemini implements llm.Client on the Google Gen AI SDK. Gemini
// receives the flattened single-string prompt.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/jxucoder/codehelper/pkg/llm"
)

// DefaultModel is the model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

// Client implements llm.Client using the Gemini generateContent API.
type Client struct {
	apiKey string
	opts   llm.Options
	client *genai.Client
}

// New creates a Gemini client. BaseURL in opts overrides the API endpoint.
func New(ctx context.Context, apiKey string, opts llm.Options) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	opts = opts.WithDefaults(DefaultModel, "")

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: opts.Timeout},
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Client{apiKey: apiKey, opts: opts, client: client}, nil
}

func (c *Client) Complete(ctx context.Context, p llm.Prompt) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(c.opts.Temperature)),
		MaxOutputTokens: int32(c.opts.MaxTokens),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.opts.Model, genai.Text(p.Flat()), config)
	if err != nil {
		return "", c.classify(err)
	}

	text := resp.Text()
	if text == "" {
		return "", llm.NewMalformedError("gemini", "no text content in response")
	}
	return text, nil
}

func (c *Client) classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return statusError(apiErr, c.apiKey)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return statusError(*apiErrPtr, c.apiKey)
	}
	return llm.ClassifyTransportError("gemini", err, c.apiKey)
}

func statusError(apiErr genai.APIError, apiKey string) *llm.Error {
	msg := apiErr.Message
	if msg == "" {
		msg = apiErr.Status
	}
	return llm.NewStatusError("gemini", apiErr.Code, msg, apiKey)
}
