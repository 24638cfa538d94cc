package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
)

type queueRepository struct {
	s  *Store
	tx *txn
}

func (r *queueRepository) AllocateNext(ctx context.Context, doctorID string, date time.Time) (*model.DailyQueue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k := keyFor(doctorID, date)
	if r.tx != nil {
		r.tx.lock(k)
	} else {
		l := r.s.keyLock(k)
		l.Lock()
		defer l.Unlock()
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	q, ok := r.s.queues[k]
	if !ok {
		q = &model.DailyQueue{
			ID:        uuid.New(),
			DoctorID:  doctorID,
			Date:      k.date,
			CreatedAt: now,
		}
		r.s.queues[k] = q
		if r.tx != nil {
			r.tx.onRollback(func() { delete(r.s.queues, k) })
		}
	}

	prevUpdated := q.UpdatedAt
	q.TotalIssued++
	q.UpdatedAt = now
	if r.tx != nil {
		r.tx.onRollback(func() {
			q.TotalIssued--
			q.UpdatedAt = prevUpdated
		})
	}
	return cloneQueue(q), nil
}

func (r *queueRepository) AdvanceCurrent(ctx context.Context, doctorID string, date time.Time, serial int) (*model.QueueSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	q, ok := r.s.queues[keyFor(doctorID, date)]
	if !ok {
		return nil, repository.ErrQueueNotFound
	}

	prev, prevUpdated := q.CurrentServing, q.UpdatedAt
	q.CurrentServing = serial
	q.UpdatedAt = r.s.now()
	if r.tx != nil {
		r.tx.onRollback(func() {
			q.CurrentServing = prev
			q.UpdatedAt = prevUpdated
		})
	}

	snap := q.Snapshot()
	return &snap, nil
}

func (r *queueRepository) AppendBooking(ctx context.Context, queueID, bookingID uuid.UUID) error {
	if r.tx != nil {
		r.s.mu.RLock()
		q := r.s.queueByID(queueID)
		r.s.mu.RUnlock()
		if q == nil {
			return repository.ErrQueueNotFound
		}
		r.tx.appends = append(r.tx.appends, appendOp{queueID: queueID, bookingID: bookingID})
		return nil
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	q := r.s.queueByID(queueID)
	if q == nil {
		return repository.ErrQueueNotFound
	}
	q.BookingIDs = append(q.BookingIDs, bookingID)
	return nil
}

func (r *queueRepository) Get(ctx context.Context, doctorID string, date time.Time) (*model.DailyQueue, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	q, ok := r.s.queues[keyFor(doctorID, date)]
	if !ok {
		return nil, repository.ErrQueueNotFound
	}
	return cloneQueue(q), nil
}

func (r *queueRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoff = model.NormalizeDate(cutoff)

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for k := range r.s.queues {
		if k.date.Before(cutoff) {
			delete(r.s.queues, k)
			n++
		}
	}
	return n, nil
}
