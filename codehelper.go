// Package codehelper is the top-level entry point for the CodeHelper backend.
//
// Use the Builder to compose an application from configuration:
//
//	cfg, _ := config.Load()
//	app, err := codehelper.NewBuilder().WithConfig(cfg).Build(ctx)
//	app.Start(ctx)
//
// Or swap individual components:
//
//	app, err := codehelper.NewBuilder().
//	    WithConfig(cfg).
//	    WithStore(myStore).
//	    WithLLM(myClient).
//	    Build(ctx)
package codehelper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jxucoder/codehelper/internal/auth"
	"github.com/jxucoder/codehelper/internal/config"
	"github.com/jxucoder/codehelper/internal/helper"
	"github.com/jxucoder/codehelper/internal/server"
	"github.com/jxucoder/codehelper/pkg/channel"
	"github.com/jxucoder/codehelper/pkg/channel/slack"
	"github.com/jxucoder/codehelper/pkg/channel/telegram"
	"github.com/jxucoder/codehelper/pkg/dispatcher"
	"github.com/jxucoder/codehelper/pkg/llm"
	"github.com/jxucoder/codehelper/pkg/llm/anthropic"
	"github.com/jxucoder/codehelper/pkg/llm/gemini"
	"github.com/jxucoder/codehelper/pkg/llm/openai"
	"github.com/jxucoder/codehelper/pkg/store"
	"github.com/jxucoder/codehelper/pkg/store/sqlstore"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// retryBaseDelay is the first backoff step when retries are enabled.
const retryBaseDelay = 500 * time.Millisecond

// Builder constructs a CodeHelper App.
type Builder struct {
	config   *config.Config
	store    store.Store
	llm      llm.Client
	provider string
	logger   *zap.Logger
	channels []channel.Channel
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithConfig sets the application configuration.
func (b *Builder) WithConfig(cfg *config.Config) *Builder {
	b.config = cfg
	return b
}

// WithStore sets the user and item store.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithLLM sets the completion client, bypassing provider selection.
func (b *Builder) WithLLM(client llm.Client) *Builder {
	b.llm = client
	return b
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithChannel adds a channel (Slack, Telegram, etc.) to the application.
func (b *Builder) WithChannel(ch channel.Channel) *Builder {
	b.channels = append(b.channels, ch)
	return b
}

// Build creates the App. Missing components are created from the config.
func (b *Builder) Build(ctx context.Context) (*App, error) {
	if b.config == nil {
		return nil, errors.New("codehelper: config is required")
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	cfg := b.config

	d := dispatcher.New(dispatcher.WithMaxCodeBytes(cfg.MaxCodeBytes))
	if cfg.TemplatesFile != "" {
		if err := d.LoadTemplates(cfg.TemplatesFile); err != nil {
			return nil, err
		}
		b.logger.Info("prompt templates loaded", zap.String("file", cfg.TemplatesFile))
	}

	if b.llm == nil {
		client, provider, err := ClientFromConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b.llm, b.provider = client, provider
	}
	if b.provider == "" {
		b.provider = "custom"
	}
	client := llm.WithRetry(b.llm, cfg.LLMMaxRetries, retryBaseDelay)

	if b.store == nil {
		st, err := sqlstore.Open(cfg.DBDriver, cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("initializing store: %w", err)
		}
		b.store = st
	}

	runner := helper.New(d, client,
		helper.WithTimeout(cfg.LLMTimeout),
		helper.WithLogger(b.logger),
		helper.WithProviderName(b.provider),
	)

	srv := server.New(runner, auth.NewService(b.store, auth.DefaultCost), b.store, b.logger, server.Options{
		MaxBodyBytes:     cfg.MaxBodyBytes,
		RateLimit:        cfg.RateLimit,
		RateBurst:        cfg.RateBurst,
		StrictAuthStatus: cfg.StrictAuthStatus,
	})

	channels := append([]channel.Channel(nil), b.channels...)
	if cfg.TelegramEnabled() {
		bot, err := telegram.NewBot(cfg.TelegramBotToken, runner, b.logger)
		if err != nil {
			b.logger.Warn("telegram bot disabled", zap.Error(err))
		} else {
			channels = append(channels, bot)
		}
	}
	if cfg.SlackEnabled() {
		channels = append(channels, slack.NewBot(cfg.SlackBotToken, cfg.SlackAppToken, runner, b.logger))
	}

	b.logger.Info("codehelper configured",
		zap.String("provider", b.provider),
		zap.String("db_driver", cfg.DBDriver),
		zap.Int("channels", len(channels)),
	)

	return &App{
		config:   cfg,
		store:    b.store,
		runner:   runner,
		handler:  srv,
		channels: channels,
		logger:   b.logger,
	}, nil
}

// App is a CodeHelper application ready to start.
type App struct {
	config   *config.Config
	store    store.Store
	runner   *helper.Service
	handler  http.Handler
	channels []channel.Channel
	logger   *zap.Logger
}

// Handler returns the HTTP API handler.
func (a *App) Handler() http.Handler { return a.handler }

// Runner returns the code-task runner shared by the HTTP API and channels.
func (a *App) Runner() helper.Runner { return a.runner }

// Start serves HTTP on the configured address and runs all channels.
// Blocks until ctx is done or the server fails, then closes the store.
func (a *App) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.config.ServerAddr)
	if err != nil {
		a.store.Close()
		return fmt.Errorf("listening on %s: %w", a.config.ServerAddr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	defer a.store.Close()

	g, gctx := errgroup.WithContext(ctx)

	for _, ch := range a.channels {
		ch := ch
		g.Go(func() error {
			if err := ch.Run(gctx); err != nil {
				a.logger.Error("channel stopped", zap.String("channel", ch.Name()), zap.Error(err))
			}
			return nil
		})
	}

	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		a.logger.Info("codehelper server listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	return g.Wait()
}

// ClientFromConfig creates the completion client for the configured
// provider and returns it with the provider's name.
func ClientFromConfig(ctx context.Context, cfg *config.Config) (llm.Client, string, error) {
	provider, err := cfg.ResolvedProvider()
	if err != nil {
		return nil, "", err
	}

	opts := llm.Options{
		Model:       cfg.LLMModel,
		BaseURL:     cfg.LLMBaseURL,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
		Timeout:     cfg.LLMTimeout,
	}
	key := cfg.APIKey(provider)

	switch provider {
	case config.ProviderGemini:
		c, err := gemini.New(ctx, key, opts)
		if err != nil {
			return nil, "", err
		}
		return c, provider, nil
	case config.ProviderGroq:
		return openai.NewGroq(key, opts), provider, nil
	case config.ProviderOpenAI:
		return openai.New(key, opts), provider, nil
	case config.ProviderAnthropic:
		return anthropic.New(key, opts), provider, nil
	}
	return nil, "", fmt.Errorf("unknown provider %q", provider)
}
