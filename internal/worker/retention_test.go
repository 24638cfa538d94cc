package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
	"github.com/jwalitptl/queue-api/internal/repository/memory"
	"github.com/jwalitptl/queue-api/pkg/metrics"
)

var today = time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, store *memory.Store, daysAgo int, phone string) {
	t.Helper()
	ctx := context.Background()
	day := today.AddDate(0, 0, -daysAgo)
	q, err := store.Queues().AllocateNext(ctx, "D", day)
	require.NoError(t, err)
	require.NoError(t, store.Bookings().Create(ctx, &model.Booking{
		ID: uuid.New(), QueueID: q.ID, PatientName: "P", Gender: model.GenderOther, PhoneNumber: phone,
		DoctorID: "D", AppointmentDate: day, SerialNumber: q.TotalIssued, Status: model.BookingStatusBooked,
		TicketPayload: uuid.NewString(),
	}))
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seed(t, store, 90, "9000000001")
	seed(t, store, 45, "9000000002")
	seed(t, store, 1, "9000000003")

	m := metrics.NewNop()
	w := NewRetentionWorker(store, 30, 60, time.Hour, m, nil)
	w.now = func() time.Time { return today.Add(3 * time.Hour) }

	require.NoError(t, w.Sweep(ctx))

	_, err := store.Queues().Get(ctx, "D", today.AddDate(0, 0, -45))
	assert.ErrorIs(t, err, repository.ErrQueueNotFound)
	_, err = store.Queues().Get(ctx, "D", today.AddDate(0, 0, -1))
	assert.NoError(t, err)

	stats, err := store.Bookings().Stats(ctx, "D", today.AddDate(0, 0, -100), today)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total, "only the 90 day old booking is past its retention")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RetentionDeleted.WithLabelValues("queue")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RetentionDeleted.WithLabelValues("booking")))
}

func TestStartRunsUntilCancelled(t *testing.T) {
	store := memory.NewStore()
	m := metrics.NewNop()
	w := NewRetentionWorker(store, 30, 60, 10*time.Millisecond, m, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.RetentionRuns.WithLabelValues("ok")) >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
