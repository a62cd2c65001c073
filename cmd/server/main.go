// Command server runs the rustboard collaborative whiteboard backend: the
// session catalog, its websocket fan-out, and the admin HTTP surface.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/a-khushal/rustboard/internal/adminapi"
	"github.com/a-khushal/rustboard/internal/config"
	"github.com/a-khushal/rustboard/internal/metrics"
	"github.com/a-khushal/rustboard/internal/session"
)

const maintenanceInterval = 30 * time.Second

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg := config.Load()

	reg := prometheus.NewRegistry()
	counters := metrics.New(reg)

	mgr := session.NewManager(cfg.SessionStorePath, cfg.SessionTTL, cfg.SessionTokenTTL, log, counters)
	if err := mgr.Load(); err != nil {
		log.Error("loading session store", "error", err)
		os.Exit(1)
	}

	router := adminapi.New(mgr, cfg.AllowedOrigins, reg, log, counters)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go mgr.RunMaintenance(ctx, maintenanceInterval)

	go func() {
		log.Info("rustboard server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server exited", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	if err := mgr.PersistAll(); err != nil {
		log.Error("final persistence failed", "error", err)
	}
}
