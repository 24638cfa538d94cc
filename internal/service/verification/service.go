// Package verification checks scanned tickets and advances the queue.
package verification

import (
	"context"
	"crypto/hmac"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
	"github.com/jwalitptl/queue-api/internal/ticket"
	"github.com/jwalitptl/queue-api/pkg/errors"
	"github.com/jwalitptl/queue-api/pkg/logger"
	"github.com/jwalitptl/queue-api/pkg/metrics"
)

const (
	VerifiedMessage        = "Appointment Verified"
	AlreadyVerifiedMessage = "Patient Already Verified, Details Below"
)

// Publisher receives the queue snapshot after a successful verification.
type Publisher interface {
	Publish(ctx context.Context, doctorID string, date time.Time, snap model.QueueSnapshot) error
}

type Result struct {
	AlreadyVerified bool
	Booking         *model.Booking
	// Snapshot is nil when the ticket had already been verified.
	Snapshot *model.QueueSnapshot
}

func (r *Result) Message() string {
	if r.AlreadyVerified {
		return AlreadyVerifiedMessage
	}
	return VerifiedMessage
}

type Service struct {
	store     repository.Store
	doctors   repository.DoctorRepository
	codec     *ticket.Codec
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *logger.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(store repository.Store, doctors repository.DoctorRepository, codec *ticket.Codec, publisher Publisher, opts ...Option) *Service {
	s := &Service{
		store:     store,
		doctors:   doctors,
		codec:     codec,
		publisher: publisher,
		metrics:   metrics.NewNop(),
		logger:    logger.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Verify checks raw on behalf of the doctor owning accountID. Scanning the
// same ticket again returns the stored detail with AlreadyVerified set.
func (s *Service) Verify(ctx context.Context, accountID, raw string) (*Result, error) {
	res, err := s.verify(ctx, accountID, raw)

	outcome := "verified"
	switch {
	case err != nil:
		outcome = errors.Code(err).String()
		if errors.Code(err) == errors.ErrInternal {
			s.logger.Error(err, "ticket verification failed", "account_id", accountID)
		} else {
			s.logger.Info("ticket rejected", "account_id", accountID, "outcome", outcome)
		}
	case res.AlreadyVerified:
		outcome = "already_verified"
	}
	s.metrics.VerificationsTotal.WithLabelValues(outcome).Inc()
	return res, err
}

func (s *Service) verify(ctx context.Context, accountID, raw string) (*Result, error) {
	payload, err := s.codec.Parse(raw)
	if err != nil {
		return nil, errors.MalformedTicket(err)
	}

	booking, err := s.store.Bookings().GetByTicket(ctx, raw)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.TicketNotFound(err)
		}
		return nil, errors.Internal(fmt.Errorf("failed to get booking: %w", err))
	}

	doctor, err := s.doctors.GetByAccount(ctx, accountID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.Unauthorized(err)
		}
		return nil, errors.Internal(fmt.Errorf("failed to get verifying doctor: %w", err))
	}
	if doctor.ID != payload.DoctorID || doctor.ID != booking.DoctorID {
		return nil, errors.Unauthorized(nil)
	}

	if !s.codec.Verify(payload) || !hmac.Equal([]byte(payload.VerificationHash), []byte(booking.VerificationHash)) {
		return nil, errors.InvalidSignature(nil)
	}

	switch booking.Status {
	case model.BookingStatusVerified:
		return &Result{AlreadyVerified: true, Booking: booking}, nil
	case model.BookingStatusCancelled:
		return nil, errors.Validation("This appointment has been cancelled", nil)
	}

	at := s.now().UTC().Truncate(time.Microsecond)
	var (
		snap *model.QueueSnapshot
		lost bool
	)
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		won, err := tx.Bookings().MarkVerified(ctx, booking.ID, at)
		if err != nil {
			return fmt.Errorf("failed to mark booking verified: %w", err)
		}
		if !won {
			lost = true
			return nil
		}
		snap, err = tx.Queues().AdvanceCurrent(ctx, booking.DoctorID, booking.AppointmentDate, booking.SerialNumber)
		if err != nil {
			if stderrors.Is(err, repository.ErrQueueNotFound) {
				return errors.QueueNotFound(err)
			}
			return fmt.Errorf("failed to advance queue: %w", err)
		}
		return nil
	})
	if err != nil {
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, errors.Internal(err)
	}

	if lost {
		current, err := s.store.Bookings().Get(ctx, booking.ID)
		if err != nil {
			return nil, errors.Internal(fmt.Errorf("failed to reload booking: %w", err))
		}
		return &Result{AlreadyVerified: true, Booking: current}, nil
	}

	booking.Status = model.BookingStatusVerified
	booking.VerifiedAt = &at
	booking.UpdatedAt = at

	s.publish(ctx, booking, *snap)
	return &Result{Booking: booking, Snapshot: snap}, nil
}

// publish is best effort; the verification is already committed.
func (s *Service) publish(ctx context.Context, b *model.Booking, snap model.QueueSnapshot) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, b.DoctorID, b.AppointmentDate, snap); err != nil {
		s.logger.Warn(err, "failed to publish queue update",
			"doctor_id", b.DoctorID,
			"date", model.FormatDate(b.AppointmentDate),
		)
	}
}
