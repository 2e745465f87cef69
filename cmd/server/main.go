// Package main implements the entry point for the research platform
// server, which runs bulk research jobs against an external generation
// service and scores detected buying signals for accounts.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/joho/godotenv"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/config"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/platform/logger"
)

// main initializes configuration, logging, the database, and the
// application's services, then runs the HTTP server until shutdown.
func main() {
	// Missing .env is fine: production configures through real env vars.
	_ = godotenv.Load()

	cfg, err := initializeConfig()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app, err := newApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}

	if err := app.run(context.Background()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// initializeConfig loads configuration and sets up structured logging.
func initializeConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if _, err := logger.Setup(logger.Config{Level: cfg.Server.LogLevel}); err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"workers", cfg.Worker.Workers,
		"queue_size", cfg.Worker.QueueSize)

	return cfg, nil
}
