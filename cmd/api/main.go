package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/urbcode/plan-assistant/internal/adapters/http"
	"github.com/urbcode/plan-assistant/internal/bootstrap"
	"github.com/urbcode/plan-assistant/internal/config"
	"github.com/urbcode/plan-assistant/internal/observability/logging"
	"github.com/urbcode/plan-assistant/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	serverMetrics := metrics.NewHTTPServerMetrics("api")
	router := httpadapter.NewRouter(
		app.Answer,
		app.Queue,
		app.Runs,
		app.Cache,
		app.Catalog,
		serverMetrics,
		httpadapter.TrafficControl{
			RequestsPerSecond: cfg.RateLimitRequestsPerSec,
			Burst:             cfg.RateLimitBurst,
			MaxInFlight:       64,
			AcquireTimeout:    200 * time.Millisecond,
		},
	).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api shutdown error", "error", err)
	}
}
