package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
)

type bookingRepository struct {
	db queryer
}

const bookingColumns = `
	id, queue_id, patient_name, gender, phone_number, email,
	doctor_id, doctor_speciality, appointment_date, serial_number,
	status, ticket_payload, verification_hash,
	otp_hash, otp_expires_at, otp_attempts, last_otp_request_at,
	verified_at, created_at, updated_at`

func (r *bookingRepository) Create(ctx context.Context, b *model.Booking) error {
	query := `
		INSERT INTO bookings (
			id, queue_id, patient_name, gender, phone_number, email,
			doctor_id, doctor_speciality, appointment_date, serial_number,
			status, ticket_payload, verification_hash, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.db.ExecContext(ctx, query,
		b.ID,
		b.QueueID,
		b.PatientName,
		b.Gender,
		b.PhoneNumber,
		b.Email,
		b.DoctorID,
		b.DoctorSpeciality,
		model.NormalizeDate(b.AppointmentDate),
		b.SerialNumber,
		b.Status,
		b.TicketPayload,
		b.VerificationHash,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", mapError(err))
	}
	return nil
}

func (r *bookingRepository) getOne(ctx context.Context, what string, where string, args ...interface{}) (*model.Booking, error) {
	var b model.Booking
	err := r.db.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking by %s: %w", what, mapError(err))
	}
	return &b, nil
}

func (r *bookingRepository) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	return r.getOne(ctx, "id", `id = $1`, id)
}

func (r *bookingRepository) GetByTicket(ctx context.Context, payload string) (*model.Booking, error) {
	return r.getOne(ctx, "ticket", `ticket_payload = $1`, payload)
}

func (r *bookingRepository) ExistsForPatient(ctx context.Context, phone, doctorID string, date time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE phone_number = $1 AND doctor_id = $2 AND appointment_date = $3
		)
	`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, phone, doctorID, model.NormalizeDate(date)); err != nil {
		return false, fmt.Errorf("failed to check existing booking: %w", err)
	}
	return exists, nil
}

func (r *bookingRepository) MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $2, verified_at = $3, updated_at = $3
		WHERE id = $1 AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query, id, model.BookingStatusVerified, at, model.BookingStatusBooked)
	if err != nil {
		return false, fmt.Errorf("failed to verify booking: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *bookingRepository) FindForRetrieval(ctx context.Context, email, doctorID string, date time.Time) (*model.Booking, error) {
	return r.getOne(ctx, "email",
		`email = $1 AND doctor_id = $2 AND appointment_date = $3`,
		email, doctorID, model.NormalizeDate(date))
}

func (r *bookingRepository) FindByActiveOTP(ctx context.Context, email string, now time.Time) (*model.Booking, error) {
	return r.getOne(ctx, "otp",
		`email = $1 AND otp_hash IS NOT NULL AND otp_expires_at > $2 ORDER BY last_otp_request_at DESC LIMIT 1`,
		email, now)
}

func (r *bookingRepository) exec(ctx context.Context, what, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *bookingRepository) SaveOTP(ctx context.Context, id uuid.UUID, otpHash string, expiresAt, requestedAt time.Time) error {
	return r.exec(ctx, "save otp", `
		UPDATE bookings
		SET otp_hash = $2, otp_expires_at = $3, otp_attempts = 0,
			last_otp_request_at = $4, updated_at = $4
		WHERE id = $1
	`, id, otpHash, expiresAt, requestedAt)
}

func (r *bookingRepository) RecordOTPFailure(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, "record otp failure", `
		UPDATE bookings SET otp_attempts = otp_attempts + 1, updated_at = NOW() WHERE id = $1
	`, id)
}

func (r *bookingRepository) ClearOTP(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, "clear otp", `
		UPDATE bookings
		SET otp_hash = NULL, otp_expires_at = NULL, otp_attempts = 0, updated_at = NOW()
		WHERE id = $1
	`, id)
}

func (r *bookingRepository) Stats(ctx context.Context, doctorID string, from, to time.Time) (*model.PatientStats, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'VERIFIED') AS verified,
			COUNT(*) FILTER (WHERE status <> 'VERIFIED') AS non_verified,
			COUNT(*) FILTER (WHERE gender = 'MALE') AS male,
			COUNT(*) FILTER (WHERE gender = 'FEMALE') AS female,
			COUNT(*) FILTER (WHERE gender = 'OTHER') AS other
		FROM bookings
		WHERE doctor_id = $1 AND appointment_date BETWEEN $2 AND $3
	`
	var stats model.PatientStats
	err := r.db.GetContext(ctx, &stats, query, doctorID, model.NormalizeDate(from), model.NormalizeDate(to))
	if err != nil {
		return nil, fmt.Errorf("failed to get patient stats: %w", err)
	}
	return &stats, nil
}

func (r *bookingRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE appointment_date < $1`, model.NormalizeDate(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete bookings: %w", err)
	}
	return result.RowsAffected()
}
