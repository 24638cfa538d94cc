package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/queue-api/internal/app"
	"github.com/jwalitptl/queue-api/internal/config"
	"github.com/jwalitptl/queue-api/internal/handler/health"
	promhandler "github.com/jwalitptl/queue-api/internal/handler/prometheus"
	"github.com/jwalitptl/queue-api/internal/worker"
	"github.com/jwalitptl/queue-api/pkg/logger"
	"github.com/jwalitptl/queue-api/pkg/metrics"
)

// healthServer serves /health/live, /health/ready and /health/metrics
// for the orchestrator.
func healthServer(port int, checks map[string]health.Pinger, registry *prometheus.Registry) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	health.NewHandler(checks).RegisterRoutes(engine.Group(""), promhandler.New(registry).Handler())

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func run(ctx context.Context, cfg *config.Config, l *logger.Logger) error {
	infra, err := app.Open(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer infra.Close()

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(cfg.Monitoring.Namespace, registry)

	srv := healthServer(cfg.Monitoring.HealthPort, infra.Checks, registry)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error(err, "health check server failed")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	w := worker.NewRetentionWorker(infra.Store, cfg.Retention.QueueDays, cfg.Retention.BookingDays,
		cfg.Retention.Interval, m, l)
	l.Info("retention worker started",
		"interval", cfg.Retention.Interval.String(),
		"queue_days", cfg.Retention.QueueDays,
		"booking_days", cfg.Retention.BookingDays)
	w.Start(ctx)
	return nil
}

func main() {
	_ = godotenv.Load()

	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	l := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		l.Info("Shutting down...")
		cancel()
	}()

	if err := run(ctx, cfg, l); err != nil {
		l.Fatal(err, "worker failed")
	}
}
