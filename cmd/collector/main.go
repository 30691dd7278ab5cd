// Command collector receives Monobank webhooks and notifies users.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/leeforge/moneykeeper/app"
	"github.com/leeforge/moneykeeper/config"
	"github.com/leeforge/moneykeeper/logging"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "collector:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}
	settings, err := app.LoadCollectorSettings(cfg)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(settings.Log)
	logging.SetGlobal(logger)
	defer func() {
		_ = logger.Sync()
		_ = logging.CloseAllWriters()
	}()

	collector, err := app.NewCollector(settings, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := collector.Run(ctx); err != nil {
		logger.Error("collector.exit", zap.Error(err))
		return err
	}
	return nil
}
