package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jxucoder/codehelper"
	"github.com/jxucoder/codehelper/internal/config"
	"github.com/jxucoder/codehelper/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the CodeHelper server",
	Long: `Start the HTTP API and any configured chat bots (Telegram, Slack).

Configuration comes from the environment and the config file; see
"codehelper config show".`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w (run \"codehelper config setup\")", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := codehelper.NewBuilder().
		WithConfig(cfg).
		WithLogger(logger).
		Build(ctx)
	if err != nil {
		return err
	}

	if err := app.Start(ctx); err != nil {
		logger.Error("server stopped", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
