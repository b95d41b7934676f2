package llm

import (
	"context"
	"errors"
	"time"
)

// retryClient retries retryable failures with exponential backoff.
type retryClient struct {
	next       Client
	maxRetries int
	baseDelay  time.Duration
}

// WithRetry wraps c so that rate-limit, network and 5xx failures are retried
// up to maxRetries times, sleeping baseDelay, 2*baseDelay, 4*baseDelay...
// between attempts. maxRetries <= 0 returns c unchanged.
func WithRetry(c Client, maxRetries int, baseDelay time.Duration) Client {
	if maxRetries <= 0 {
		return c
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &retryClient{next: c, maxRetries: maxRetries, baseDelay: baseDelay}
}

func (r *retryClient) Complete(ctx context.Context, p Prompt) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := r.baseDelay << uint(attempt-1)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", lastErr
			case <-timer.C:
			}
		}

		text, err := r.next.Complete(ctx, p)
		if err == nil {
			return text, nil
		}
		lastErr = err

		var llmErr *Error
		if !errors.As(err, &llmErr) || !llmErr.Retryable() || ctx.Err() != nil {
			return "", err
		}
	}
	return "", lastErr
}
