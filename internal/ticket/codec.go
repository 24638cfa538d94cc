// Package ticket builds and checks the QR payload handed to patients.
package ticket

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"strings"
	"time"

	"github.com/jwalitptl/queue-api/internal/model"
)

// ErrMalformed is returned by Parse for payloads that are not tickets.
var ErrMalformed = errors.New("malformed ticket payload")

const hashSeparator = "-"

// Payload is the JSON object encoded into the QR code. Field order is
// part of the format since lookups compare the serialized string.
type Payload struct {
	AppointmentID    string `json:"appointmentId"`
	PatientName      string `json:"patientName"`
	DoctorID         string `json:"doctorId"`
	AppointmentDate  string `json:"appointmentDate"`
	VerificationHash string `json:"verificationHash"`
	DoctorName       string `json:"doctorName"`
	SerialNumber     int    `json:"serialNumber"`
}

// Date returns the appointment date of the payload.
func (p Payload) Date() (time.Time, error) {
	return model.ParseDate(p.AppointmentDate)
}

// Codec issues and parses ticket payloads. With a key it stamps tickets
// with HMAC-SHA256, otherwise with plain SHA-256.
type Codec struct {
	key []byte
}

func NewCodec(key string) *Codec {
	c := &Codec{}
	if key != "" {
		c.key = []byte(key)
	}
	return c
}

func (c *Codec) newHash() hash.Hash {
	if len(c.key) > 0 {
		return hmac.New(sha256.New, c.key)
	}
	return sha256.New()
}

// Hash digests appointmentId, patientName and appointmentDate joined by "-".
func (c *Codec) Hash(appointmentID, patientName, appointmentDate string) string {
	h := c.newHash()
	h.Write([]byte(strings.Join([]string{appointmentID, patientName, appointmentDate}, hashSeparator)))
	return hex.EncodeToString(h.Sum(nil))
}

// Issue stamps the fields with their hash and serializes them.
func (c *Codec) Issue(appointmentID, patientName, doctorID, appointmentDate, doctorName string, serialNumber int) (string, Payload, error) {
	p := Payload{
		AppointmentID:    appointmentID,
		PatientName:      patientName,
		DoctorID:         doctorID,
		AppointmentDate:  appointmentDate,
		VerificationHash: c.Hash(appointmentID, patientName, appointmentDate),
		DoctorName:       doctorName,
		SerialNumber:     serialNumber,
	}
	if err := p.validate(); err != nil {
		return "", Payload{}, err
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return "", Payload{}, fmt.Errorf("failed to encode ticket: %w", err)
	}
	return string(raw), p, nil
}

// Parse is the inverse of Issue.
func (c *Codec) Parse(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := p.validate(); err != nil {
		return Payload{}, err
	}
	return p, nil
}

// Verify recomputes the hash from the payload fields.
func (c *Codec) Verify(p Payload) bool {
	expected := c.Hash(p.AppointmentID, p.PatientName, p.AppointmentDate)
	return hmac.Equal([]byte(expected), []byte(p.VerificationHash))
}

func (p Payload) validate() error {
	missing := make([]string, 0, 5)
	if p.AppointmentID == "" {
		missing = append(missing, "appointmentId")
	}
	if p.PatientName == "" {
		missing = append(missing, "patientName")
	}
	if p.DoctorID == "" {
		missing = append(missing, "doctorId")
	}
	if p.AppointmentDate == "" {
		missing = append(missing, "appointmentDate")
	}
	if p.VerificationHash == "" {
		missing = append(missing, "verificationHash")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrMalformed, strings.Join(missing, ", "))
	}
	if p.SerialNumber < 1 {
		return fmt.Errorf("%w: serialNumber must be positive", ErrMalformed)
	}
	if _, err := p.Date(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
