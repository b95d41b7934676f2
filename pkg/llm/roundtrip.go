package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// DoJSON posts reqBody as JSON and decodes a 200 response into respBody.
// All failures come back as *Error for the named provider; apiKey is
// scrubbed from any message.
func DoJSON(
	ctx context.Context,
	client *http.Client,
	provider, url, apiKey string,
	headers map[string]string,
	reqBody any,
	respBody any,
) error {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return &Error{Provider: provider, Kind: KindProvider, Message: "encoding request: " + err.Error(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return &Error{Provider: provider, Kind: KindProvider, Message: "building request: " + err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return ClassifyTransportError(provider, err, apiKey)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ClassifyTransportError(provider, err, apiKey)
	}
	if resp.StatusCode != http.StatusOK {
		return NewStatusError(provider, resp.StatusCode, string(body), apiKey)
	}
	if err := json.Unmarshal(body, respBody); err != nil {
		return NewMalformedError(provider, "parsing response: "+err.Error())
	}
	return nil
}
