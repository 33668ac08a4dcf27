// flowpayd serves the settlement verification and receipt lookup API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowmint/flowpay/access"
	"github.com/flowmint/flowpay/config"
	"github.com/flowmint/flowpay/imagegen"
	"github.com/flowmint/flowpay/ledger"
	"github.com/flowmint/flowpay/logger"
	"github.com/flowmint/flowpay/metrics"
	"github.com/flowmint/flowpay/server"
	"github.com/flowmint/flowpay/verification"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("flowpayd: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.NewZapLogger(cfg.LogLevel, cfg.Development())

	var rec metrics.Recorder = metrics.NoopRecorder{}
	if cfg.EnableMetrics {
		rec = metrics.NewPrometheusRecorder()
	}

	store, err := ledger.Open(cfg.DatabasePath, log)
	if err != nil {
		log.Error("opening ledger failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	selector := access.NewSelector(cfg.Endpoints, cfg.RequestTimeout, log)

	var images verification.ImageGenerator
	if cfg.StabilityAPIKey != "" {
		images = imagegen.NewStabilityClient(cfg.StabilityAPIKey, 30*time.Second, log)
	}

	verifier, err := verification.New(verification.Config{
		Selector:        selector,
		Store:           store,
		Images:          images,
		MerchantAddress: cfg.MerchantAddress,
		RequestTimeout:  cfg.RequestTimeout,
		Logger:          log,
		Metrics:         rec,
	})
	if err != nil {
		log.Error("building verifier failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	srv := server.New(server.Config{
		Verifier:    verifier,
		Store:       store,
		Logger:      log,
		Metrics:     rec,
		Development: cfg.Development(),
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("flowpayd listening", map[string]any{
			"address":   cfg.ListenAddress,
			"endpoints": len(cfg.Endpoints),
			"merchant":  cfg.MerchantAddress,
		})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", map[string]any{"error": err.Error()})
	}
	log.Info("flowpayd stopped", nil)
}
