// Command stashd runs the collection price tracker: a background daemon
// that keeps item prices fresh against the Steam community market, records
// a daily portfolio snapshot and mirrors state to an optional sync remote.
//
// Usage:
//
//	stashd --config config.yaml
//	stashd (uses CLI arguments)
//	stashd setup (interactive configuration wizard)
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vadiminshakov/stashd/config"
	"github.com/vadiminshakov/stashd/internal"
	"github.com/vadiminshakov/stashd/internal/setup"
	"go.uber.org/zap"
)

const defaultConfigPath = "config.yaml"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.RunTUI(defaultConfigPath); err != nil {
			log.Fatal(err)
		}
		return
	}

	conf, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	app, err := internal.NewApp(conf, logger)
	if err != nil {
		logger.Fatal("failed to assemble daemon", zap.Error(err))
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		logger.Fatal("daemon stopped", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
