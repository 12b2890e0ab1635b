package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/eodledger/internal/adapter/http/handler"
	"github.com/iho/eodledger/internal/adapter/http/middleware"
	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/infrastructure/auth"
	"github.com/iho/eodledger/internal/infrastructure/metrics"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	EODHandler     *handler.EODHandler
	PostingHandler *handler.PostingHandler
	LedgerHandler  *handler.LedgerHandler
	HealthHandler  *handler.HealthHandler
	// JWTManager enables bearer authentication when set.
	JWTManager     *auth.JWTManager
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	Logger         zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Metrics(cfg.Metrics))

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.JWTManager != nil {
			r.Use(middleware.AuthMiddleware(cfg.JWTManager))
		}

		r.Get("/eod/jobs", cfg.EODHandler.Statuses)
		r.Get("/eod/business-date", cfg.EODHandler.BusinessDate)
		r.Get("/eod/books", cfg.LedgerHandler.CheckBooks)

		// Mutating routes
		r.Group(func(r chi.Router) {
			if cfg.JWTManager != nil {
				r.Use(middleware.RequireRole(domain.RoleOperator))
			}

			r.Post("/eod/jobs/{n}/execute", cfg.EODHandler.ExecuteJob)
			r.Post("/eod/cycle", cfg.EODHandler.RunCycle)
			r.Post("/fx/deals", cfg.PostingHandler.SettleDeal)
			r.Post("/accounts/{accountNo}/capitalize", cfg.PostingHandler.Capitalize)
		})
	})

	return r
}
