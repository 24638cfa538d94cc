package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
	"github.com/jwalitptl/queue-api/pkg/logger"
	"github.com/jwalitptl/queue-api/pkg/metrics"
)

// RetentionWorker drops past days' queues and bookings on a fixed interval.
type RetentionWorker struct {
	store       repository.Store
	queueDays   int
	bookingDays int
	interval    time.Duration

	metrics *metrics.Metrics
	logger  *logger.Logger
	now     func() time.Time
}

func NewRetentionWorker(store repository.Store, queueDays, bookingDays int, interval time.Duration, m *metrics.Metrics, log *logger.Logger) *RetentionWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RetentionWorker{
		store:       store,
		queueDays:   queueDays,
		bookingDays: bookingDays,
		interval:    interval,
		metrics:     m,
		logger:      log,
		now:         time.Now,
	}
}

// Start sweeps once immediately and then on every tick until ctx is done.
func (w *RetentionWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *RetentionWorker) runOnce(ctx context.Context) {
	if err := w.Sweep(ctx); err != nil {
		w.metrics.RetentionRuns.WithLabelValues("error").Inc()
		w.logger.Error(err, "retention sweep failed")
		return
	}
	w.metrics.RetentionRuns.WithLabelValues("ok").Inc()
}

// Sweep deletes queues older than queueDays and bookings older than
// bookingDays. A non-positive retention keeps that entity forever.
func (w *RetentionWorker) Sweep(ctx context.Context) error {
	today := model.NormalizeDate(w.now())

	if w.queueDays > 0 {
		cutoff := today.AddDate(0, 0, -w.queueDays)
		n, err := w.store.Queues().DeleteBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("failed to delete queues: %w", err)
		}
		w.metrics.RetentionDeleted.WithLabelValues("queue").Add(float64(n))
		w.logger.Info("expired queues deleted", "count", n, "cutoff", model.FormatDate(cutoff))
	}

	if w.bookingDays > 0 {
		cutoff := today.AddDate(0, 0, -w.bookingDays)
		n, err := w.store.Bookings().DeleteBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("failed to delete bookings: %w", err)
		}
		w.metrics.RetentionDeleted.WithLabelValues("booking").Add(float64(n))
		w.logger.Info("expired bookings deleted", "count", n, "cutoff", model.FormatDate(cutoff))
	}
	return nil
}
