// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"genmedia-studio/internal/application"
	"genmedia-studio/internal/config"
	"genmedia-studio/internal/infra/logging"
	"genmedia-studio/internal/infra/metrics"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (offline job api without a key, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logging & metrics ----
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit, "json")

	// ---- Application ----
	app, err := application.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("setup failed")
	}
	if err := app.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	app.Serve()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	app.Close(shutdownCtx)
}
