// Package helper runs a code task end to end: build the prompt, call the
// completion client under a deadline, return the text.
package helper

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jxucoder/codehelper/pkg/dispatcher"
	"github.com/jxucoder/codehelper/pkg/llm"
)

// Runner executes a code task. It is the interface the HTTP server and chat
// channels depend on.
type Runner interface {
	Run(ctx context.Context, req dispatcher.Request) (string, error)
}

// Service implements Runner.
type Service struct {
	dispatcher *dispatcher.Dispatcher
	client     llm.Client
	provider   string
	timeout    time.Duration
	logger     *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout bounds each completion call. d <= 0 leaves only the caller's
// context in charge.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithLogger sets the logger used for completion failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithProviderName labels timeout errors and log lines with the provider.
func WithProviderName(name string) Option {
	return func(s *Service) { s.provider = name }
}

// New creates a Service.
func New(d *dispatcher.Dispatcher, client llm.Client, opts ...Option) *Service {
	s := &Service{
		dispatcher: d,
		client:     client,
		provider:   "llm",
		timeout:    llm.DefaultTimeout,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run builds the prompt for req and returns the completion text. Validation
// failures come back as dispatcher errors; everything after that as
// *llm.Error. A deadline or cancellation yields Kind timeout and no text.
func (s *Service) Run(ctx context.Context, req dispatcher.Request) (string, error) {
	prompt, err := s.dispatcher.Build(req)
	if err != nil {
		return "", err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := s.client.Complete(ctx, prompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = s.timeoutError(ctxErr, err)
		}
		err = s.asLLMError(err)
		var llmErr *llm.Error
		errors.As(err, &llmErr)
		s.logger.Warn("completion failed",
			zap.String("task", string(req.TaskType)),
			zap.String("provider", llmErr.Provider),
			zap.String("kind", string(llmErr.Kind)),
			zap.Int("status", llmErr.StatusCode),
			zap.Duration("elapsed", time.Since(start)),
		)
		return "", err
	}

	s.logger.Debug("completion finished",
		zap.String("task", string(req.TaskType)),
		zap.Int("code_bytes", len(req.Code)),
		zap.Int("result_bytes", len(text)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return text, nil
}

func (s *Service) timeoutError(ctxErr, callErr error) error {
	msg := "completion timed out after " + s.timeout.String()
	if errors.Is(ctxErr, context.Canceled) {
		msg = "completion cancelled by caller"
	}
	return &llm.Error{Provider: s.provider, Kind: llm.KindTimeout, Message: msg, Err: callErr}
}

func (s *Service) asLLMError(err error) error {
	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		return err
	}
	return &llm.Error{Provider: s.provider, Kind: llm.KindProvider, Message: err.Error(), Err: err}
}
