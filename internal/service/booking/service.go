// Package booking issues serial-numbered tickets for a doctor's day.
package booking

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/queue-api/internal/captcha"
	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
	"github.com/jwalitptl/queue-api/internal/ticket"
	"github.com/jwalitptl/queue-api/pkg/errors"
	"github.com/jwalitptl/queue-api/pkg/logger"
	"github.com/jwalitptl/queue-api/pkg/metrics"
	"github.com/jwalitptl/queue-api/pkg/validator"
)

// Stage names the last step a booking attempt reached.
type Stage string

const (
	StageValidating       Stage = "validating"
	StageBotChecked       Stage = "bot_checked"
	StageDoctorChecked    Stage = "doctor_checked"
	StageDuplicateChecked Stage = "duplicate_checked"
	StageSerialAllocated  Stage = "serial_allocated"
	StageCapacityChecked  Stage = "capacity_checked"
	StageTicketIssued     Stage = "ticket_issued"
	StagePersisted        Stage = "persisted"
	StageCommitted        Stage = "committed"
)

const SuccessMessage = "Appointment booked successfully"

// Request is the public booking form.
type Request struct {
	PatientName     string  `json:"patientName" validate:"required,min=2,max=50"`
	Gender          string  `json:"gender" validate:"required,gender"`
	PhoneNumber     string  `json:"phoneNumber" validate:"required,indianphone"`
	Email           *string `json:"email" validate:"omitempty,email"`
	DoctorID        string  `json:"doctorId" validate:"required"`
	AppointmentDate string  `json:"appointmentDate" validate:"required,date"`
	CaptchaToken    string  `json:"reCaptcha"`
	Honeypot        string  `json:"honeypot"`
	RemoteIP        string  `json:"-"`
}

type Result struct {
	// Ticket is the exact string encoded into the QR code.
	Ticket  string
	Payload ticket.Payload
	Booking *model.Booking
}

type Service struct {
	store     repository.Store
	doctors   repository.DoctorRepository
	codec     *ticket.Codec
	captcha   captcha.Verifier
	validator *validator.Validator
	metrics   *metrics.Metrics
	logger    *logger.Logger

	now   func() time.Time
	newID func() uuid.UUID
}

type Option func(*Service)

// WithClock overrides the clock used for the past-date check and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() uuid.UUID) Option {
	return func(s *Service) { s.newID = newID }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(store repository.Store, doctors repository.DoctorRepository, codec *ticket.Codec, verifier captcha.Verifier, opts ...Option) *Service {
	if verifier == nil {
		verifier = captcha.Noop{}
	}
	s := &Service{
		store:     store,
		doctors:   doctors,
		codec:     codec,
		captcha:   verifier,
		validator: validator.New(),
		metrics:   metrics.NewNop(),
		logger:    logger.Nop(),
		now:       time.Now,
		newID:     uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Book runs one booking attempt. Every rejection is an *errors.AppError.
func (s *Service) Book(ctx context.Context, req Request) (*Result, error) {
	stage := StageValidating
	res, err := s.book(ctx, req, &stage)

	outcome := "committed"
	if err != nil {
		outcome = errors.Code(err).String()
		log := s.logger.WithFields(map[string]interface{}{
			"doctor_id": req.DoctorID,
			"date":      req.AppointmentDate,
			"stage":     string(stage),
			"outcome":   outcome,
		})
		if errors.Code(err) == errors.ErrInternal {
			log.Error(err, "booking aborted")
		} else {
			log.Info("booking rejected")
		}
	}
	s.metrics.BookingsTotal.WithLabelValues(outcome, string(stage)).Inc()
	return res, err
}

func (s *Service) book(ctx context.Context, req Request, stage *Stage) (*Result, error) {
	if strings.TrimSpace(req.Honeypot) != "" {
		return nil, errors.BotDetected(nil)
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, errors.Validation(err.Error(), err)
	}
	gender, _ := model.ParseGender(req.Gender)
	date, err := model.ParseDate(req.AppointmentDate)
	if err != nil {
		return nil, errors.Validation("appointmentDate must be a date in YYYY-MM-DD format", err)
	}
	if date.Before(model.NormalizeDate(s.now())) {
		return nil, errors.Validation("Appointment date cannot be in the past", nil)
	}

	ok, err := s.captcha.Verify(ctx, req.CaptchaToken, req.RemoteIP)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("failed to verify captcha: %w", err))
	}
	if !ok {
		return nil, errors.BotDetected(nil)
	}
	*stage = StageBotChecked

	doctor, err := s.doctors.Get(ctx, req.DoctorID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.DoctorUnavailable(err)
		}
		return nil, errors.Internal(fmt.Errorf("failed to get doctor: %w", err))
	}
	if !doctor.IsAvailable {
		return nil, errors.DoctorUnavailable(nil)
	}
	*stage = StageDoctorChecked

	var (
		res      *Result
		rejected bool
	)
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		exists, err := tx.Bookings().ExistsForPatient(ctx, req.PhoneNumber, doctor.ID, date)
		if err != nil {
			return fmt.Errorf("failed to check existing booking: %w", err)
		}
		if exists {
			return errors.DuplicateBooking(nil)
		}
		*stage = StageDuplicateChecked

		started := time.Now()
		queue, err := tx.Queues().AllocateNext(ctx, doctor.ID, date)
		s.metrics.SerialAllocationLatency.Observe(time.Since(started).Seconds())
		if err != nil {
			return fmt.Errorf("failed to allocate serial: %w", err)
		}
		serial := queue.TotalIssued
		*stage = StageSerialAllocated

		// The consumed serial is committed without a booking.
		if !doctor.HasCapacityFor(serial) {
			rejected = true
			return nil
		}
		*stage = StageCapacityChecked

		id := s.newID()
		raw, payload, err := s.codec.Issue(id.String(), req.PatientName, doctor.ID, model.FormatDate(date), doctor.Name, serial)
		if err != nil {
			return fmt.Errorf("failed to issue ticket: %w", err)
		}
		*stage = StageTicketIssued

		now := s.now()
		b := &model.Booking{
			ID:               id,
			QueueID:          queue.ID,
			PatientName:      req.PatientName,
			Gender:           gender,
			PhoneNumber:      req.PhoneNumber,
			Email:            normalizeEmail(req.Email),
			DoctorID:         doctor.ID,
			DoctorSpeciality: doctor.Speciality,
			AppointmentDate:  date,
			SerialNumber:     serial,
			Status:           model.BookingStatusBooked,
			TicketPayload:    raw,
			VerificationHash: payload.VerificationHash,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.Bookings().Create(ctx, b); err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}
		if err := tx.Queues().AppendBooking(ctx, queue.ID, b.ID); err != nil {
			return fmt.Errorf("failed to append booking to queue: %w", err)
		}
		*stage = StagePersisted

		res = &Result{Ticket: raw, Payload: payload, Booking: b}
		return nil
	})
	if err != nil {
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			return nil, appErr
		}
		if stderrors.Is(err, repository.ErrConflict) {
			return nil, errors.DuplicateBooking(err)
		}
		return nil, errors.Internal(err)
	}
	if rejected {
		return nil, errors.CapacityExceeded(nil)
	}

	*stage = StageCommitted
	return res, nil
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	e := strings.ToLower(strings.TrimSpace(*email))
	if e == "" {
		return nil
	}
	return &e
}
