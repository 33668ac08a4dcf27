// Package server exposes the settlement verification and receipt lookup
// endpoints consumed by the storefront client.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowmint/flowpay/ledger"
	"github.com/flowmint/flowpay/logger"
	"github.com/flowmint/flowpay/metrics"
	"github.com/flowmint/flowpay/verification"
)

// Config carries the server's collaborators.
type Config struct {
	Verifier    *verification.Verifier
	Store       *ledger.Store
	Logger      logger.Logger
	Metrics     metrics.Recorder
	Development bool
}

// Server is the HTTP API.
type Server struct {
	verifier    *verification.Verifier
	store       *ledger.Store
	log         logger.Logger
	rec         metrics.Recorder
	development bool
	now         func() time.Time

	router http.Handler
}

// New constructs the configured router.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logger.NoopLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NoopRecorder{}
	}

	s := &Server{
		verifier:    cfg.Verifier,
		store:       cfg.Store,
		log:         cfg.Logger,
		rec:         cfg.Metrics,
		development: cfg.Development,
		now:         time.Now,
	}
	s.router = s.buildRouter()
	return s
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/payments/confirm", s.ConfirmPayment)
		api.Get("/receipts/{transactionID}", s.GetReceipt)
		api.Get("/sales/totals", s.GetTotals)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
