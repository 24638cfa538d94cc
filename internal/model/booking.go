package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
	GenderOther  Gender = "OTHER"
)

// ParseGender accepts any casing.
func ParseGender(s string) (Gender, bool) {
	switch g := Gender(strings.ToUpper(strings.TrimSpace(s))); g {
	case GenderMale, GenderFemale, GenderOther:
		return g, true
	}
	return "", false
}

type BookingStatus string

const (
	BookingStatusBooked    BookingStatus = "BOOKED"
	BookingStatusVerified  BookingStatus = "VERIFIED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// Booking is one issued ticket.
type Booking struct {
	ID               uuid.UUID     `db:"id" json:"appointmentId"`
	QueueID          uuid.UUID     `db:"queue_id" json:"-"`
	PatientName      string        `db:"patient_name" json:"patientName"`
	Gender           Gender        `db:"gender" json:"gender"`
	PhoneNumber      string        `db:"phone_number" json:"phoneNumber"`
	Email            *string       `db:"email" json:"email,omitempty"`
	DoctorID         string        `db:"doctor_id" json:"doctorId"`
	DoctorSpeciality string        `db:"doctor_speciality" json:"doctorSpeciality,omitempty"`
	AppointmentDate  time.Time     `db:"appointment_date" json:"appointmentDate"`
	SerialNumber     int           `db:"serial_number" json:"serialNumber"`
	Status           BookingStatus `db:"status" json:"status"`
	TicketPayload    string        `db:"ticket_payload" json:"qrCodeData"`
	VerificationHash string        `db:"verification_hash" json:"verificationHash"`

	OTPHash          *string    `db:"otp_hash" json:"-"`
	OTPExpiresAt     *time.Time `db:"otp_expires_at" json:"-"`
	OTPAttempts      int        `db:"otp_attempts" json:"-"`
	LastOTPRequestAt *time.Time `db:"last_otp_request_at" json:"-"`

	VerifiedAt *time.Time `db:"verified_at" json:"verifiedAt,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updatedAt"`
}

// PatientStats summarises a doctor's bookings over a date range.
type PatientStats struct {
	Total       int `db:"total" json:"totalPatients"`
	Verified    int `db:"verified" json:"verifiedPatients"`
	NonVerified int `db:"non_verified" json:"nonVerifiedPatients"`
	Male        int `db:"male" json:"male"`
	Female      int `db:"female" json:"female"`
	Other       int `db:"other" json:"other"`
}
