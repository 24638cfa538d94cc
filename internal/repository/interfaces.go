package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/queue-api/internal/model"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrQueueNotFound = errors.New("daily queue not found")
	// ErrConflict reports a uniqueness violation.
	ErrConflict = errors.New("record conflicts with an existing one")
)

// All repository interfaces in one file
type (
	// Store is the unit of work handed through booking and verification.
	// Inside WithTx every repository obtained from the Store argument
	// shares one transaction; returning an error rolls all of it back.
	Store interface {
		Queues() QueueRepository
		Bookings() BookingRepository
		WithTx(ctx context.Context, fn func(tx Store) error) error
	}

	// QueueRepository is the per-(doctor, day) counter store.
	QueueRepository interface {
		// AllocateNext creates the queue if needed and increments
		// TotalIssued atomically; the returned TotalIssued is the serial.
		AllocateNext(ctx context.Context, doctorID string, date time.Time) (*model.DailyQueue, error)
		AdvanceCurrent(ctx context.Context, doctorID string, date time.Time, serial int) (*model.QueueSnapshot, error)
		AppendBooking(ctx context.Context, queueID, bookingID uuid.UUID) error
		Get(ctx context.Context, doctorID string, date time.Time) (*model.DailyQueue, error)
		DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}

	BookingRepository interface {
		Create(ctx context.Context, booking *model.Booking) error
		Get(ctx context.Context, id uuid.UUID) (*model.Booking, error)
		GetByTicket(ctx context.Context, payload string) (*model.Booking, error)
		ExistsForPatient(ctx context.Context, phone, doctorID string, date time.Time) (bool, error)
		// MarkVerified flips BOOKED to VERIFIED and reports whether this
		// call performed the transition.
		MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

		FindForRetrieval(ctx context.Context, email, doctorID string, date time.Time) (*model.Booking, error)
		FindByActiveOTP(ctx context.Context, email string, now time.Time) (*model.Booking, error)
		SaveOTP(ctx context.Context, id uuid.UUID, otpHash string, expiresAt, requestedAt time.Time) error
		RecordOTPFailure(ctx context.Context, id uuid.UUID) error
		ClearOTP(ctx context.Context, id uuid.UUID) error

		Stats(ctx context.Context, doctorID string, from, to time.Time) (*model.PatientStats, error)
		DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}

	// DoctorRepository is the read side of the doctor directory.
	DoctorRepository interface {
		Get(ctx context.Context, id string) (*model.Doctor, error)
		GetByAccount(ctx context.Context, accountID string) (*model.Doctor, error)
	}
)
