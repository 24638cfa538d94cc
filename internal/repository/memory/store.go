// Package memory is an in-process implementation of the repositories,
// used for single-instance deployments and tests.
//
// Serial allocation takes a per-(doctor, day) lock that a transaction
// holds until it commits or rolls back, which gives the same ordering as
// the Postgres row lock. Bookings and queue appends made inside a
// transaction are staged and only become visible on commit; other writes
// are applied in place with an undo entry.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
)

type queueKey struct {
	doctorID string
	date     time.Time
}

func keyFor(doctorID string, date time.Time) queueKey {
	return queueKey{doctorID: doctorID, date: model.NormalizeDate(date)}
}

type Store struct {
	mu       sync.RWMutex
	queues   map[queueKey]*model.DailyQueue
	bookings map[uuid.UUID]*model.Booking
	doctors  map[string]*model.Doctor

	locksMu sync.Mutex
	locks   map[queueKey]*sync.Mutex

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		queues:   make(map[queueKey]*model.DailyQueue),
		bookings: make(map[uuid.UUID]*model.Booking),
		doctors:  make(map[string]*model.Doctor),
		locks:    make(map[queueKey]*sync.Mutex),
		now:      time.Now,
	}
}

func (s *Store) Queues() repository.QueueRepository {
	return &queueRepository{s: s}
}

func (s *Store) Bookings() repository.BookingRepository {
	return &bookingRepository{s: s}
}

func (s *Store) Doctors() *DoctorRepository {
	return &DoctorRepository{s: s}
}

func (s *Store) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &txn{s: s, held: make(map[queueKey]*sync.Mutex)}
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return tx.commit()
}

// Ping is used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) keyLock(k queueKey) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.locks[k]
	if !ok {
		l = &sync.Mutex{}
		s.locks[k] = l
	}
	return l
}

type appendOp struct {
	queueID   uuid.UUID
	bookingID uuid.UUID
}

// txn is the transaction-scoped view of a Store.
type txn struct {
	s       *Store
	held    map[queueKey]*sync.Mutex
	undo    []func()
	staged  []*model.Booking
	appends []appendOp
}

func (t *txn) Queues() repository.QueueRepository {
	return &queueRepository{s: t.s, tx: t}
}

func (t *txn) Bookings() repository.BookingRepository {
	return &bookingRepository{s: t.s, tx: t}
}

func (t *txn) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	return fn(t)
}

func (t *txn) lock(k queueKey) {
	if _, ok := t.held[k]; ok {
		return
	}
	l := t.s.keyLock(k)
	l.Lock()
	t.held[k] = l
}

func (t *txn) release() {
	for k, l := range t.held {
		l.Unlock()
		delete(t.held, k)
	}
}

// onRollback must be called with s.mu held.
func (t *txn) onRollback(fn func()) {
	t.undo = append(t.undo, fn)
}

func (t *txn) rollback() {
	t.s.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.s.mu.Unlock()

	t.undo, t.staged, t.appends = nil, nil, nil
	t.release()
}

func (t *txn) commit() error {
	t.s.mu.Lock()
	for i, b := range t.staged {
		if t.s.conflicts(b) || conflictsWith(b, t.staged[:i]) {
			t.s.mu.Unlock()
			t.rollback()
			return repository.ErrConflict
		}
	}
	for _, b := range t.staged {
		t.s.bookings[b.ID] = b
	}
	for _, a := range t.appends {
		if q := t.s.queueByID(a.queueID); q != nil {
			q.BookingIDs = append(q.BookingIDs, a.bookingID)
		}
	}
	t.s.mu.Unlock()

	t.undo, t.staged, t.appends = nil, nil, nil
	t.release()
	return nil
}

// conflicts must be called with s.mu held.
func (s *Store) conflicts(b *model.Booking) bool {
	if _, ok := s.bookings[b.ID]; ok {
		return true
	}
	for _, existing := range s.bookings {
		if sameBookingKey(existing, b) {
			return true
		}
	}
	return false
}

func conflictsWith(b *model.Booking, others []*model.Booking) bool {
	for _, o := range others {
		if o.ID == b.ID || sameBookingKey(o, b) {
			return true
		}
	}
	return false
}

func sameBookingKey(a, b *model.Booking) bool {
	if a.VerificationHash == b.VerificationHash {
		return true
	}
	sameDay := a.DoctorID == b.DoctorID && a.AppointmentDate.Equal(b.AppointmentDate)
	return sameDay && (a.PhoneNumber == b.PhoneNumber || a.SerialNumber == b.SerialNumber)
}

// queueByID must be called with s.mu held.
func (s *Store) queueByID(id uuid.UUID) *model.DailyQueue {
	for _, q := range s.queues {
		if q.ID == id {
			return q
		}
	}
	return nil
}

func cloneQueue(q *model.DailyQueue) *model.DailyQueue {
	c := *q
	c.BookingIDs = append([]uuid.UUID(nil), q.BookingIDs...)
	return &c
}

func cloneBooking(b *model.Booking) *model.Booking {
	c := *b
	return &c
}
