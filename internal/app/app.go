// Package app opens the infrastructure shared by the api and worker binaries.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/queue-api/internal/config"
	"github.com/jwalitptl/queue-api/internal/handler/health"
	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
	"github.com/jwalitptl/queue-api/internal/repository/cached"
	"github.com/jwalitptl/queue-api/internal/repository/memory"
	"github.com/jwalitptl/queue-api/internal/repository/postgres"
	"github.com/jwalitptl/queue-api/pkg/logger"
	"github.com/jwalitptl/queue-api/pkg/messaging"
	msgmemory "github.com/jwalitptl/queue-api/pkg/messaging/memory"
	"github.com/jwalitptl/queue-api/pkg/messaging/redis"
)

const memoryBrokerBuffer = 256

// Infra holds the opened store and broker.
type Infra struct {
	Store   repository.Store
	Doctors repository.DoctorRepository
	Broker  messaging.Broker
	// Checks feeds the readiness probe.
	Checks map[string]health.Pinger

	closers []func() error
}

// NewLogger builds the configured logger and installs it as the global
// zerolog logger used by the request middleware.
func NewLogger(cfg config.LogConfig) *logger.Logger {
	l := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Level),
		Output: os.Stdout,
		JSON:   cfg.JSON,
	})
	log.Logger = l.ZL
	return l
}

// Open connects the store selected by database.driver and the broker
// selected by redis.url.
func Open(ctx context.Context, cfg *config.Config, l *logger.Logger) (*Infra, error) {
	infra := &Infra{Checks: make(map[string]health.Pinger)}

	switch cfg.Database.Driver {
	case "memory":
		store := memory.NewStore()
		for _, d := range cfg.Database.SeedDoctors {
			store.Doctors().Put(&model.Doctor{
				ID:             d.ID,
				AccountID:      d.AccountID,
				Name:           d.Name,
				Speciality:     d.Speciality,
				IsAvailable:    d.Available,
				MaxAppointment: d.MaxAppointment,
			})
		}
		infra.Store = store
		infra.Doctors = store.Doctors()
		infra.Checks["database"] = store
		l.Warn(nil, "using in-memory store, data is lost on restart", "doctors", len(cfg.Database.SeedDoctors))
	default:
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			return nil, err
		}
		infra.closers = append(infra.closers, db.Close)
		store := postgres.NewStore(db)
		infra.Store = store
		infra.Doctors = cached.NewDoctorRepository(postgres.NewDoctorRepository(db), cfg.Database.DoctorCacheTTL)
		infra.Checks["database"] = store
	}

	if cfg.Redis.URL != "" {
		broker, err := redis.NewRedisBroker(ctx, redis.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, &l.ZL)
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		infra.Broker = broker
		infra.Checks["redis"] = broker
	} else {
		infra.Broker = msgmemory.NewBroker(memoryBrokerBuffer)
		l.Info("redis url not set, live queue events stay in this process")
	}
	infra.closers = append(infra.closers, infra.Broker.Close)

	return infra, nil
}

// Close releases everything Open acquired, broker first.
func (i *Infra) Close() {
	for j := len(i.closers) - 1; j >= 0; j-- {
		if err := i.closers[j](); err != nil {
			log.Warn().Err(err).Msg("failed to close resource")
		}
	}
}
