package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
)

type queueRepository struct {
	db queryer
}

const queueColumns = `id, doctor_id, queue_date, total_issued, current_serving, created_at, updated_at`

// AllocateNext relies on the row lock taken by the upsert, so concurrent
// callers for the same key are serialized by Postgres until their
// transactions end.
func (r *queueRepository) AllocateNext(ctx context.Context, doctorID string, date time.Time) (*model.DailyQueue, error) {
	query := `
		INSERT INTO daily_queues (
			id, doctor_id, queue_date, total_issued, current_serving,
			booking_ids, created_at, updated_at
		) VALUES ($1, $2, $3, 1, 0, '{}', NOW(), NOW())
		ON CONFLICT (doctor_id, queue_date)
		DO UPDATE SET
			total_issued = daily_queues.total_issued + 1,
			updated_at = NOW()
		RETURNING ` + queueColumns

	var q model.DailyQueue
	err := r.db.GetContext(ctx, &q, query, uuid.New(), doctorID, model.NormalizeDate(date))
	if err != nil {
		return nil, fmt.Errorf("failed to allocate serial: %w", mapError(err))
	}
	return &q, nil
}

func (r *queueRepository) AdvanceCurrent(ctx context.Context, doctorID string, date time.Time, serial int) (*model.QueueSnapshot, error) {
	query := `
		UPDATE daily_queues
		SET current_serving = $3, updated_at = NOW()
		WHERE doctor_id = $1 AND queue_date = $2
		RETURNING total_issued, current_serving
	`
	var snap model.QueueSnapshot
	err := r.db.GetContext(ctx, &snap, query, doctorID, model.NormalizeDate(date), serial)
	if err != nil {
		err = mapError(err)
		if isNotFound(err) {
			return nil, repository.ErrQueueNotFound
		}
		return nil, fmt.Errorf("failed to advance current serial: %w", err)
	}
	return &snap, nil
}

func (r *queueRepository) AppendBooking(ctx context.Context, queueID, bookingID uuid.UUID) error {
	query := `
		UPDATE daily_queues
		SET booking_ids = array_append(booking_ids, $2), updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, queueID, bookingID)
	if err != nil {
		return fmt.Errorf("failed to append booking to queue: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrQueueNotFound
	}
	return nil
}

func (r *queueRepository) Get(ctx context.Context, doctorID string, date time.Time) (*model.DailyQueue, error) {
	query := `
		SELECT ` + queueColumns + `, booking_ids::text[] AS booking_ids
		FROM daily_queues
		WHERE doctor_id = $1 AND queue_date = $2
	`
	var row struct {
		model.DailyQueue
		BookingIDs pq.StringArray `db:"booking_ids"`
	}
	err := r.db.GetContext(ctx, &row, query, doctorID, model.NormalizeDate(date))
	if err != nil {
		err = mapError(err)
		if isNotFound(err) {
			return nil, repository.ErrQueueNotFound
		}
		return nil, fmt.Errorf("failed to get daily queue: %w", err)
	}

	q := row.DailyQueue
	q.BookingIDs = make([]uuid.UUID, 0, len(row.BookingIDs))
	for _, raw := range row.BookingIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse booking id %q: %w", raw, err)
		}
		q.BookingIDs = append(q.BookingIDs, id)
	}
	return &q, nil
}

func (r *queueRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM daily_queues WHERE queue_date < $1`, model.NormalizeDate(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete daily queues: %w", err)
	}
	return result.RowsAffected()
}
