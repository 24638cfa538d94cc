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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/queue-api/internal/app"
	"github.com/jwalitptl/queue-api/internal/captcha"
	"github.com/jwalitptl/queue-api/internal/config"
	"github.com/jwalitptl/queue-api/internal/email"
	"github.com/jwalitptl/queue-api/internal/handler/appointment"
	"github.com/jwalitptl/queue-api/internal/handler/doctor"
	"github.com/jwalitptl/queue-api/internal/handler/health"
	promhandler "github.com/jwalitptl/queue-api/internal/handler/prometheus"
	queuehandler "github.com/jwalitptl/queue-api/internal/handler/queue"
	tickethandler "github.com/jwalitptl/queue-api/internal/handler/ticket"
	"github.com/jwalitptl/queue-api/internal/livequeue"
	"github.com/jwalitptl/queue-api/internal/middleware"
	"github.com/jwalitptl/queue-api/internal/router"
	"github.com/jwalitptl/queue-api/internal/service/booking"
	"github.com/jwalitptl/queue-api/internal/service/queue"
	"github.com/jwalitptl/queue-api/internal/service/retrieval"
	"github.com/jwalitptl/queue-api/internal/service/verification"
	"github.com/jwalitptl/queue-api/internal/ticket"
	"github.com/jwalitptl/queue-api/internal/worker"
	"github.com/jwalitptl/queue-api/pkg/auth"
	"github.com/jwalitptl/queue-api/pkg/metrics"
	"github.com/jwalitptl/queue-api/pkg/security"
)

func main() {
	// A missing .env is fine outside development.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	infra, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(err, "failed to open infrastructure")
	}
	defer infra.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(cfg.Monitoring.Namespace, registry)

	codec := ticket.NewCodec(cfg.Ticket.HashKey)

	var verifier captcha.Verifier = captcha.Noop{}
	if cfg.Captcha.Enabled {
		verifier = captcha.NewReCaptcha(captcha.Config{
			VerifyURL: cfg.Captcha.VerifyURL,
			Secret:    cfg.Captcha.Secret,
			MinScore:  cfg.Captcha.MinScore,
			Timeout:   cfg.Captcha.Timeout,
		})
	} else {
		logger.Warn(nil, "captcha disabled, bookings are only screened by the honeypot")
	}

	var mailer email.Service = email.NewLogService(logger)
	if cfg.SMTP.Enabled {
		mailer = email.NewSMTPService(email.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}

	// Live queue
	hub := livequeue.NewHub(m, logger)
	publisher := livequeue.NewPublisher(infra.Broker, cfg.LiveQueue.Topic, m)
	go func() {
		if err := hub.Run(ctx, infra.Broker, cfg.LiveQueue.Topic); err != nil {
			logger.Error(err, "live queue hub stopped")
		}
	}()

	// Initialize services
	bookingSvc := booking.NewService(infra.Store, infra.Doctors, codec, verifier,
		booking.WithMetrics(m), booking.WithLogger(logger))
	verificationSvc := verification.NewService(infra.Store, infra.Doctors, codec, publisher,
		verification.WithMetrics(m), verification.WithLogger(logger))
	queueSvc := queue.NewService(infra.Store, infra.Doctors)
	retrievalSvc := retrieval.NewService(infra.Store.Bookings(), security.NewBcryptHasher(bcrypt.DefaultCost), mailer, codec,
		retrieval.WithQRSize(cfg.Ticket.QRSize), retrieval.WithMetrics(m), retrieval.WithLogger(logger))

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)

	// Initialize handlers
	handlers := router.Handlers{
		Appointment: appointment.NewHandler(bookingSvc, verificationSvc),
		Queue: queuehandler.NewHandler(queueSvc, hub, queuehandler.LiveConfig{
			ClientBuffer: cfg.LiveQueue.ClientBuffer,
			PingInterval: cfg.LiveQueue.PingInterval,
		}, logger),
		Ticket:  tickethandler.NewHandler(retrievalSvc),
		Doctor:  doctor.NewHandler(queueSvc),
		Health:  health.NewHandler(infra.Checks),
		Metrics: promhandler.New(registry).Handler(),
	}

	// Setup router
	r := router.NewRouter(middleware.NewAuthMiddleware(jwtService), handlers, m, router.RouterConfig{
		CORSConfig:       middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins),
		RequestTimeout:   cfg.Server.RequestTimeout,
		RateLimitEnabled: cfg.RateLimit.Enabled,
		GlobalRequests:   cfg.RateLimit.GlobalRequests,
		GlobalWindow:     cfg.RateLimit.GlobalWindow,
		OTPRequests:      cfg.RateLimit.OTPRequests,
		OTPWindow:        cfg.RateLimit.OTPWindow,
	})
	r.Setup()

	if cfg.Retention.RunInAPI {
		w := worker.NewRetentionWorker(infra.Store, cfg.Retention.QueueDays, cfg.Retention.BookingDays,
			cfg.Retention.Interval, m, logger)
		go w.Start(ctx)
	}

	// Create server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(err, "failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	// Stop the hub and workers before draining connections.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "server forced to shutdown")
	}

	logger.Info("server exited properly")
}
