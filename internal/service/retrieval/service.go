// Package retrieval lets patients recover or print a ticket they booked.
package retrieval

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/queue-api/internal/email"
	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
	"github.com/jwalitptl/queue-api/internal/ticket"
	"github.com/jwalitptl/queue-api/pkg/errors"
	"github.com/jwalitptl/queue-api/pkg/logger"
	"github.com/jwalitptl/queue-api/pkg/metrics"
	"github.com/jwalitptl/queue-api/pkg/security"
)

const (
	OTPLength      = 6
	OTPTTL         = 10 * time.Minute
	OTPResendDelay = time.Minute
	MaxOTPAttempts = 3

	OTPSentMessage      = "OTP sent to your email"
	TicketSentMessage   = "Your QR code is sent to your email, please check."
)

type Service struct {
	bookings repository.BookingRepository
	hasher   security.SecretHasher
	mailer   email.Service
	codec    *ticket.Codec
	qrSize   int
	metrics  *metrics.Metrics
	logger   *logger.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithQRSize(size int) Option {
	return func(s *Service) { s.qrSize = size }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(bookings repository.BookingRepository, hasher security.SecretHasher, mailer email.Service, codec *ticket.Codec, opts ...Option) *Service {
	s := &Service{
		bookings: bookings,
		hasher:   hasher,
		mailer:   mailer,
		codec:    codec,
		qrSize:   ticket.DefaultQRSize,
		metrics:  metrics.NewNop(),
		logger:   logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestOTP mails a one-time code for the booking of emailAddr with
// doctorID on date.
func (s *Service) RequestOTP(ctx context.Context, emailAddr, doctorID, date string) error {
	err := s.requestOTP(ctx, normalize(emailAddr), doctorID, date)
	s.record("otp", err)
	return err
}

func (s *Service) requestOTP(ctx context.Context, emailAddr, doctorID, date string) error {
	if emailAddr == "" {
		return errors.Validation("email is required", nil)
	}
	if doctorID == "" {
		return errors.Validation("Doctor is required", nil)
	}
	day, err := model.ParseDate(date)
	if err != nil {
		return errors.Validation("Invalid date format. Please use YYYY-MM-DD format", err)
	}

	b, err := s.bookings.FindForRetrieval(ctx, emailAddr, doctorID, day)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.NotFound("Appointment", err)
		}
		return errors.Internal(fmt.Errorf("failed to find booking: %w", err))
	}

	now := s.now()
	if b.LastOTPRequestAt != nil && now.Sub(*b.LastOTPRequestAt) < OTPResendDelay {
		return errors.TooManyRequests("Please wait 1 minute before requesting another OTP", nil)
	}

	otp, err := security.GenerateOTP(OTPLength)
	if err != nil {
		return errors.Internal(err)
	}
	hashed, err := s.hasher.Hash(otp)
	if err != nil {
		return errors.Internal(fmt.Errorf("failed to hash otp: %w", err))
	}
	if err := s.bookings.SaveOTP(ctx, b.ID, hashed, now.Add(OTPTTL), now); err != nil {
		return errors.Internal(fmt.Errorf("failed to save otp: %w", err))
	}

	if err := s.mailer.SendOTP(ctx, emailAddr, otp, OTPTTL); err != nil {
		return errors.Internal(fmt.Errorf("failed to send otp: %w", err))
	}
	return nil
}

// RetrieveTicket checks otp and mails the ticket QR code.
func (s *Service) RetrieveTicket(ctx context.Context, emailAddr, otp string) error {
	err := s.retrieveTicket(ctx, normalize(emailAddr), strings.TrimSpace(otp))
	s.record("retrieve", err)
	return err
}

func (s *Service) retrieveTicket(ctx context.Context, emailAddr, otp string) error {
	if emailAddr == "" || otp == "" {
		return errors.Validation("email and otp are required", nil)
	}

	b, err := s.bookings.FindByActiveOTP(ctx, emailAddr, s.now())
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.Validation("Invalid or expired OTP", err)
		}
		return errors.Internal(fmt.Errorf("failed to find otp: %w", err))
	}
	if b.OTPAttempts >= MaxOTPAttempts {
		return errors.TooManyRequests("Too many invalid attempts. Please request a new OTP", nil)
	}

	if err := s.hasher.Compare(*b.OTPHash, otp); err != nil {
		if err := s.bookings.RecordOTPFailure(ctx, b.ID); err != nil {
			return errors.Internal(fmt.Errorf("failed to record otp attempt: %w", err))
		}
		return errors.Validation("Invalid OTP", nil)
	}

	png, err := ticket.QRCode(b.TicketPayload, s.qrSize)
	if err != nil {
		return errors.Internal(err)
	}
	if err := s.mailer.SendTicket(ctx, emailAddr, png); err != nil {
		return errors.Internal(fmt.Errorf("failed to send ticket: %w", err))
	}
	if err := s.bookings.ClearOTP(ctx, b.ID); err != nil {
		s.logger.Warn(err, "failed to clear otp after retrieval", "booking_id", b.ID.String())
	}
	return nil
}

// PrintTicket renders the PDF of a stored ticket.
func (s *Service) PrintTicket(ctx context.Context, raw string) ([]byte, error) {
	payload, err := s.codec.Parse(raw)
	if err != nil {
		s.record("print", errors.MalformedTicket(err))
		return nil, errors.MalformedTicket(err)
	}
	b, err := s.bookings.GetByTicket(ctx, raw)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			err = errors.NotFound("Appointment", err)
		} else {
			err = errors.Internal(fmt.Errorf("failed to get booking: %w", err))
		}
		s.record("print", err)
		return nil, err
	}
	if !s.codec.Verify(payload) {
		s.record("print", errors.InvalidSignature(nil))
		return nil, errors.InvalidSignature(nil)
	}

	pdf, err := ticket.PDF(ticket.Sheet{
		Payload:    payload,
		Raw:        raw,
		Gender:     string(b.Gender),
		Speciality: b.DoctorSpeciality,
		Status:     string(b.Status),
	})
	if err != nil {
		s.record("print", err)
		return nil, errors.Internal(err)
	}
	s.record("print", nil)
	return pdf, nil
}

func (s *Service) record(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = errors.Code(err).String()
		if errors.Code(err) == errors.ErrInternal {
			s.logger.Error(err, "ticket retrieval failed", "kind", kind)
		}
	}
	s.metrics.OTPRequestsTotal.WithLabelValues(kind, outcome).Inc()
}

func normalize(emailAddr string) string {
	return strings.ToLower(strings.TrimSpace(emailAddr))
}
