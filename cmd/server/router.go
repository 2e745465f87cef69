package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/api"
	apiMiddleware "github.com/MarkLNEO/research-agent-platform-sub004/internal/api/middleware"
)

// setupRouter creates and configures the application router with all
// routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	jobHandler := api.NewJobHandler(app.jobService)
	signalHandler := api.NewSignalHandler(app.signalService)

	r.Route("/api", func(r chi.Router) {
		// Research job endpoints
		r.Post("/jobs", jobHandler.CreateJob)
		r.Get("/jobs/{id}", jobHandler.GetJob)
		r.Post("/jobs/{id}/tick", jobHandler.TickJob)
		r.Post("/jobs/{id}/cancel", jobHandler.CancelJob)

		// Account signal endpoints
		r.Post("/accounts/{id}/signals", signalHandler.DetectSignals)
		r.Get("/accounts/{id}/signals", signalHandler.ListSignals)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
