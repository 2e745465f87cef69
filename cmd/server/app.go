package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/config"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/events"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/orchestrator"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/platform/notify"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/platform/postgres"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/research"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/service"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/signals"
)

// application holds the assembled dependencies of the running server.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	runner    *orchestrator.Runner
	reclaimer *orchestrator.Reclaimer

	jobService    service.JobService
	signalService service.SignalService
}

// newApplication wires the full dependency graph: stores over the shared
// connection pool, the streaming research client, the orchestrator with
// its runner and reclaimer, and the services the HTTP layer serves.
func newApplication(cfg *config.Config) (*application, error) {
	logger := slog.Default()

	db, err := setupAppDatabase(cfg, logger)
	if err != nil {
		return nil, err
	}

	jobStore := postgres.NewPostgresJobStore(db)
	taskStore := postgres.NewPostgresTaskStore(db)
	signalStore := postgres.NewPostgresSignalStore(db)

	researchClient, err := research.NewClient(cfg.Research, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create research client: %w", err)
	}

	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(notify.NewWebhookNotifier(cfg.Notify.WebhookURL, logger))

	orch := orchestrator.New(
		jobStore,
		taskStore,
		researchClient,
		emitter,
		orchestrator.Config{ReclaimTimeout: cfg.Worker.ReclaimTimeout},
		logger,
	)

	runner := orchestrator.NewRunner(orch, orchestrator.RunnerConfig{
		WorkerCount: cfg.Worker.Workers,
		QueueSize:   cfg.Worker.QueueSize,
	}, logger)

	reclaimer := orchestrator.NewReclaimer(jobStore, taskStore, runner, orchestrator.ReclaimerConfig{
		Timeout:       cfg.Worker.ReclaimTimeout,
		CheckInterval: cfg.Worker.ReclaimInterval,
	}, logger)

	jobService, err := service.NewJobService(db, jobStore, taskStore, runner, orch, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create job service: %w", err)
	}

	signalService, err := service.NewSignalService(signalStore, signals.NewNormalizer(logger), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create signal service: %w", err)
	}

	return &application{
		config:        cfg,
		logger:        logger,
		db:            db,
		runner:        runner,
		reclaimer:     reclaimer,
		jobService:    jobService,
		signalService: signalService,
	}, nil
}

// cleanup releases the application's background resources in dependency
// order: stop accepting ticks, stop the sweep, then close the pool.
func (app *application) cleanup() {
	app.runner.Stop()
	app.reclaimer.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("Failed to close database connection", "error", err)
	}
}
