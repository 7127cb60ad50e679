// Command laplaced is the Laplace host process: it discovers lapps under a
// configured directory, serves the management API and the per-lapp proxy
// surface, and exposes Prometheus metrics. Structure follows REPRAM's
// cmd/repram/main.go: env-var configuration, a constructed *mux.Router, and
// a signal-driven graceful shutdown.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"laplace/internal/config"
	"laplace/internal/httpapi"
	"laplace/internal/lapp"
	"laplace/internal/logging"
	"laplace/internal/metrics"
	"laplace/internal/security"
)

func main() {
	logging.Init()
	cfg := config.Load()

	if cfg.SettingsKeyPassphrase != "" {
		lapp.SetSettingsKey(security.DeriveKey(cfg.SettingsKeyPassphrase))
		logging.Info("access tokens sealed at rest (LAPLACE_SETTINGS_KEY configured)")
	} else {
		logging.Info("LAPLACE_SETTINGS_KEY not set; access tokens stored in plain text")
	}

	if err := os.MkdirAll(cfg.LappsDir, 0o755); err != nil {
		log.Fatalf("laplaced: creating lapps directory %s: %v", cfg.LappsDir, err)
	}

	reg := prometheus.NewRegistry()
	metricsImpl := metrics.New(reg)

	mgr := lapp.NewManager(cfg.LappsDir)
	mgr.SetMetrics(metricsImpl)
	if err := mgr.Discover(); err != nil {
		log.Fatalf("laplaced: discovering lapps: %v", err)
	}

	srv := httpapi.NewServer(mgr, "/admin", httpapi.NewGossipFactory())

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: srv.Router(),
	}
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logging.Info("laplaced online")
	logging.Info("  HTTP: %s  Metrics: %s", cfg.HTTPAddr, cfg.MetricsAddr)
	logging.Info("  Lapps directory: %s", cfg.LappsDir)
	logging.Info("  Lapps discovered: %d", len(mgr.List()))

	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("metrics server: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logging.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
		defer shutdownCancel()

		for _, name := range mgr.List() {
			l, err := mgr.Lapp(name)
			if err != nil || !l.Loaded() {
				continue
			}
			if err := mgr.Unload(shutdownCtx, l); err != nil {
				logging.WithLapp(name, logging.LevelWarn, "unloading during shutdown: %v", err)
			}
		}

		_ = httpServer.Shutdown(shutdownCtx)
		_ = metricsServer.Shutdown(shutdownCtx)
		cancel()
		os.Exit(0)
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(fmt.Errorf("laplaced: %w", err))
	}
}
