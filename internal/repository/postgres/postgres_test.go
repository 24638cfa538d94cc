package postgres

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/queue-api/internal/config"
	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
)

func TestDSNQuotesValues(t *testing.T) {
	got := dsn(config.DatabaseConfig{
		Host: "db", Port: 5432, User: "app", Password: `p a'ss`, Name: "queue_db", SSLMode: "disable",
	})
	assert.Contains(t, got, `password='p a\'ss'`)
	assert.Contains(t, got, "port=5432")
	assert.Contains(t, got, "application_name=queue-api")

	assert.NotContains(t, dsn(config.DatabaseConfig{Host: "db"}), "password=")
}

// openTestDB connects to QUEUE_TEST_DATABASE_URL and recreates the schema.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	url := os.Getenv("QUEUE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("QUEUE_TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for _, name := range []string{"001_init.down.sql", "001_init.up.sql"} {
		schema, err := os.ReadFile(filepath.Join("..", "..", "..", "migrations", name))
		require.NoError(t, err)
		_, err = db.Exec(string(schema))
		require.NoError(t, err)
	}
	return db
}

func TestAllocateNextIsSerialized(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	day := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	const n = 20
	serials := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.WithTx(ctx, func(tx repository.Store) error {
				q, err := tx.Queues().AllocateNext(ctx, "doc-1", day)
				if err != nil {
					return err
				}
				serials[i] = q.TotalIssued
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	sort.Ints(serials)
	for i, s := range serials {
		assert.Equal(t, i+1, s)
	}
}

func TestBookingLifecycle(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	day := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)

	q, err := store.Queues().AllocateNext(ctx, "doc-1", day)
	require.NoError(t, err)

	b := &model.Booking{
		ID: uuid.New(), QueueID: q.ID, PatientName: "Asha", Gender: model.GenderFemale,
		PhoneNumber: "9876543210", DoctorID: "doc-1", AppointmentDate: day, SerialNumber: 1,
		Status: model.BookingStatusBooked, TicketPayload: uuid.NewString(), VerificationHash: uuid.NewString(),
	}
	require.NoError(t, store.Bookings().Create(ctx, b))
	require.NoError(t, store.Queues().AppendBooking(ctx, q.ID, b.ID))

	dup := *b
	dup.ID = uuid.New()
	dup.VerificationHash = uuid.NewString()
	assert.ErrorIs(t, store.Bookings().Create(ctx, &dup), repository.ErrConflict)

	ok, err := store.Bookings().MarkVerified(ctx, b.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Bookings().MarkVerified(ctx, b.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	snap, err := store.Queues().AdvanceCurrent(ctx, "doc-1", day, 1)
	require.NoError(t, err)
	assert.Equal(t, model.QueueSnapshot{TotalSerialNumber: 1, CurrSerialNumber: 1}, *snap)

	_, err = store.Queues().AdvanceCurrent(ctx, "doc-2", day, 1)
	assert.ErrorIs(t, err, repository.ErrQueueNotFound)

	stats, err := store.Bookings().Stats(ctx, "doc-1", day, day)
	require.NoError(t, err)
	assert.Equal(t, model.PatientStats{Total: 1, Verified: 1, Female: 1}, *stats)
}
