package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Kind classifies a completion failure.
type Kind string

const (
	KindAuth      Kind = "auth"
	KindRateLimit Kind = "rate_limit"
	KindMalformed Kind = "malformed_response"
	KindNetwork   Kind = "network"
	KindTimeout   Kind = "timeout"
	KindProvider  Kind = "provider"
)

// Error is the single error type returned by every Client implementation.
type Error struct {
	Provider   string
	Kind       Kind
	StatusCode int // 0 when no HTTP response was received
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API %s error (%d): %s", e.Provider, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API %s error: %s", e.Provider, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether another attempt could succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimit, KindNetwork:
		return true
	case KindProvider:
		return e.StatusCode >= 500
	}
	return false
}

// maxMessageLen bounds provider error bodies carried in Error.Message.
const maxMessageLen = 500

// NewStatusError classifies a non-2xx provider response.
func NewStatusError(provider string, status int, body, apiKey string) *Error {
	kind := KindProvider
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case status == http.StatusTooManyRequests:
		kind = KindRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = KindTimeout
	}
	msg := strings.TrimSpace(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{
		Provider:   provider,
		Kind:       kind,
		StatusCode: status,
		Message:    Redact(Truncate(msg, maxMessageLen), apiKey),
	}
}

// NewMalformedError reports a response that could not be interpreted.
func NewMalformedError(provider, msg string) *Error {
	return &Error{Provider: provider, Kind: KindMalformed, Message: msg}
}

// ClassifyTransportError wraps a failure that happened before a response was
// read: deadline, cancellation or network.
func ClassifyTransportError(provider string, err error, apiKey string) *Error {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}
	kind := KindNetwork
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}
	return &Error{
		Provider: provider,
		Kind:     kind,
		Message:  Redact(Truncate(err.Error(), maxMessageLen), apiKey),
		Err:      err,
	}
}

// Redact removes every occurrence of secret from s.
func Redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "[REDACTED]")
}

// Truncate shortens s to at most maxLen runes, ending in "..." when cut.
func Truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen-3]) + "..."
}
