// Command server runs the enhancement HTTP service.
package main

import (
	"fmt"
	"log/slog"
	"os"

	studio "github.com/prodimg/studio"
	"github.com/prodimg/studio/adapters/storage"
	"github.com/prodimg/studio/config"
	"github.com/prodimg/studio/hooks"
	"github.com/prodimg/studio/transport"
)

// janitorSchedule sweeps expired artifacts hourly.
const janitorSchedule = "0 * * * *"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	logger := hooks.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	enhancer, err := studio.New(cfg)
	if err != nil {
		return err
	}
	enhancer.SetLogger(logger)
	enhancer.AddHook(hooks.NewLoggingHook(logger))
	enhancer.AddHook(hooks.NewMetricsHook(hooks.NewInMemoryMetrics()))

	store, err := storage.NewLocal(cfg.WorkDir, 0o644)
	if err != nil {
		return err
	}
	enhancer.SetStore(store)

	if cfg.AzureAccount != "" && cfg.AzureKey != "" && cfg.AzureContainer != "" {
		publisher, pubErr := storage.NewAzurePublisher(cfg.AzureAccount, cfg.AzureKey, cfg.AzureContainer)
		if pubErr != nil {
			return pubErr
		}
		enhancer.SetPublisher(publisher)
		logger.Info("server.publishing_enabled", "container", cfg.AzureContainer)
	}

	janitor, err := storage.NewJanitor(store.Root(), cfg.ArtifactTTL, janitorSchedule, logger)
	if err != nil {
		return err
	}
	janitor.Start()
	defer janitor.Stop()

	addr := os.Getenv("STUDIO_LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	handler := transport.NewHandler(enhancer, logger).WithStore(store)
	logger.Info("server.listening", "addr", addr)
	return handler.Router().Run(addr)
}
