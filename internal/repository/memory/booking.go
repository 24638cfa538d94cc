package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
)

type bookingRepository struct {
	s  *Store
	tx *txn
}

// visible must be called with s.mu held. Staged rows of the own
// transaction come first.
func (r *bookingRepository) visible() []*model.Booking {
	out := make([]*model.Booking, 0, len(r.s.bookings))
	if r.tx != nil {
		out = append(out, r.tx.staged...)
	}
	for _, b := range r.s.bookings {
		out = append(out, b)
	}
	return out
}

func (r *bookingRepository) find(match func(*model.Booking) bool) (*model.Booking, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, b := range r.visible() {
		if match(b) {
			return cloneBooking(b), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *bookingRepository) Create(ctx context.Context, b *model.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := cloneBooking(b)
	stored.AppointmentDate = model.NormalizeDate(b.AppointmentDate)

	if r.tx != nil {
		r.s.mu.RLock()
		conflict := r.s.conflicts(stored) || conflictsWith(stored, r.tx.staged)
		r.s.mu.RUnlock()
		if conflict {
			return repository.ErrConflict
		}
		r.tx.staged = append(r.tx.staged, stored)
		return nil
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.conflicts(stored) {
		return repository.ErrConflict
	}
	r.s.bookings[stored.ID] = stored
	return nil
}

func (r *bookingRepository) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	return r.find(func(b *model.Booking) bool { return b.ID == id })
}

func (r *bookingRepository) GetByTicket(ctx context.Context, payload string) (*model.Booking, error) {
	return r.find(func(b *model.Booking) bool { return b.TicketPayload == payload })
}

func (r *bookingRepository) ExistsForPatient(ctx context.Context, phone, doctorID string, date time.Time) (bool, error) {
	date = model.NormalizeDate(date)
	_, err := r.find(func(b *model.Booking) bool {
		return b.PhoneNumber == phone && b.DoctorID == doctorID && b.AppointmentDate.Equal(date)
	})
	if err == repository.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

// mutate applies fn to a committed booking under the write lock and
// registers an undo entry when running inside a transaction.
func (r *bookingRepository) mutate(id uuid.UUID, fn func(b *model.Booking) bool) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bookings[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	before := *b
	if !fn(b) {
		return false, nil
	}
	if r.tx != nil {
		r.tx.onRollback(func() { *b = before })
	}
	return true, nil
}

func (r *bookingRepository) MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.mutate(id, func(b *model.Booking) bool {
		if b.Status != model.BookingStatusBooked {
			return false
		}
		b.Status = model.BookingStatusVerified
		b.VerifiedAt = &at
		b.UpdatedAt = at
		return true
	})
}

func (r *bookingRepository) FindForRetrieval(ctx context.Context, email, doctorID string, date time.Time) (*model.Booking, error) {
	date = model.NormalizeDate(date)
	return r.find(func(b *model.Booking) bool {
		return b.Email != nil && *b.Email == email && b.DoctorID == doctorID && b.AppointmentDate.Equal(date)
	})
}

func (r *bookingRepository) FindByActiveOTP(ctx context.Context, email string, now time.Time) (*model.Booking, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var best *model.Booking
	for _, b := range r.visible() {
		if b.Email == nil || *b.Email != email || b.OTPHash == nil || b.OTPExpiresAt == nil || !b.OTPExpiresAt.After(now) {
			continue
		}
		if best == nil || (b.LastOTPRequestAt != nil && best.LastOTPRequestAt != nil && b.LastOTPRequestAt.After(*best.LastOTPRequestAt)) {
			best = b
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	return cloneBooking(best), nil
}

func (r *bookingRepository) SaveOTP(ctx context.Context, id uuid.UUID, otpHash string, expiresAt, requestedAt time.Time) error {
	_, err := r.mutate(id, func(b *model.Booking) bool {
		b.OTPHash = &otpHash
		b.OTPExpiresAt = &expiresAt
		b.OTPAttempts = 0
		b.LastOTPRequestAt = &requestedAt
		b.UpdatedAt = requestedAt
		return true
	})
	return err
}

func (r *bookingRepository) RecordOTPFailure(ctx context.Context, id uuid.UUID) error {
	_, err := r.mutate(id, func(b *model.Booking) bool {
		b.OTPAttempts++
		b.UpdatedAt = r.s.now()
		return true
	})
	return err
}

func (r *bookingRepository) ClearOTP(ctx context.Context, id uuid.UUID) error {
	_, err := r.mutate(id, func(b *model.Booking) bool {
		b.OTPHash = nil
		b.OTPExpiresAt = nil
		b.OTPAttempts = 0
		b.UpdatedAt = r.s.now()
		return true
	})
	return err
}

func (r *bookingRepository) Stats(ctx context.Context, doctorID string, from, to time.Time) (*model.PatientStats, error) {
	from, to = model.NormalizeDate(from), model.NormalizeDate(to)

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stats := &model.PatientStats{}
	for _, b := range r.s.bookings {
		if b.DoctorID != doctorID || b.AppointmentDate.Before(from) || b.AppointmentDate.After(to) {
			continue
		}
		stats.Total++
		if b.Status == model.BookingStatusVerified {
			stats.Verified++
		} else {
			stats.NonVerified++
		}
		switch b.Gender {
		case model.GenderMale:
			stats.Male++
		case model.GenderFemale:
			stats.Female++
		case model.GenderOther:
			stats.Other++
		}
	}
	return stats, nil
}

func (r *bookingRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoff = model.NormalizeDate(cutoff)

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, b := range r.s.bookings {
		if b.AppointmentDate.Before(cutoff) {
			delete(r.s.bookings, id)
			n++
		}
	}
	return n, nil
}
