// Heron - Review trust scoring that deploys in 60 seconds.
// Copyright (c) 2025 opensource.trust
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-trust/heron/internal/api"
	"github.com/opensource-trust/heron/internal/bus"
	"github.com/opensource-trust/heron/internal/cache"
	"github.com/opensource-trust/heron/internal/domain"
	"github.com/opensource-trust/heron/internal/ingest"
	"github.com/opensource-trust/heron/internal/profile"
	"github.com/opensource-trust/heron/internal/repository"
	"github.com/opensource-trust/heron/internal/rules"
	"github.com/opensource-trust/heron/internal/scoring"
	"github.com/opensource-trust/heron/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("HERON_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting heron",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("HERON_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	if path := os.Getenv("HERON_THRESHOLDS_PATH"); path != "" {
		cfg.Scoring.ThresholdsPath = path
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"thresholds", cfg.Scoring.ThresholdsPath,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Rule Engine
	engine, err := rules.NewEngine()
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}

	// Initialize Threshold Profile Provider. Custom rules from the thresholds
	// file are compiled into the engine on every reload.
	profiles := profile.NewProvider(cfg.Scoring.ThresholdsPath)
	profiles.OnReload(engine.ReloadCustom)
	engine.ReloadCustom(profiles.Get())
	slog.Info("rule engine initialized", "custom_rules", engine.CustomRulesCount())

	// Initialize Ingest Engine
	ingestEngine := ingest.NewEngine(repo, busImpl, logger)

	// Initialize Scoring Service
	scoringService := scoring.NewService(repo, cacheImpl, busImpl, engine, profiles, logger, scoring.Options{
		CacheTTL: time.Duration(cfg.Scoring.ScoreCacheTTL) * time.Second,
	})

	// Initialize async Worker: rescores a product whenever a review lands
	scoreWorker := worker.NewWorker(busImpl, cacheImpl, scoringService, logger)
	if err := scoreWorker.Start(); err != nil {
		slog.Error("failed to start score worker", "error", err)
		os.Exit(1)
	}
	slog.Info("score worker started")

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, ingestEngine, scoringService, profiles, engine, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("heron is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop score worker first
	if err := scoreWorker.Stop(); err != nil {
		slog.Error("failed to stop score worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("heron shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🐦 HERON                    ║")
	fmt.Println("  ║       Review Trust Scoring Engine         ║")
	fmt.Println("  ║      Every review, weighed once.          ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /reviews                      - Ingest a scraped review")
	fmt.Println("    GET  /products/{id}/reviews        - List stored reviews")
	fmt.Println("    POST /products/{id}/score          - Recompute the trust score")
	fmt.Println("    GET  /products/{id}/score          - Get the latest trust score")
	fmt.Println("    GET  /thresholds                   - Show the active profile")
	fmt.Println("    POST /thresholds/reload            - Hot-reload the thresholds file")
	fmt.Println("    GET  /health                       - Health check")
	fmt.Println()
}
