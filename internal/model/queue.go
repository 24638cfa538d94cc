package model

import (
	"time"

	"github.com/google/uuid"
)

// DailyQueue is the per-doctor-per-day serial counter.
type DailyQueue struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	DoctorID       string      `db:"doctor_id" json:"doctorId"`
	Date           time.Time   `db:"queue_date" json:"date"`
	TotalIssued    int         `db:"total_issued" json:"totalIssued"`
	CurrentServing int         `db:"current_serving" json:"currentServing"`
	BookingIDs     []uuid.UUID `db:"-" json:"bookingIds,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updatedAt"`
}

// Snapshot returns the broadcastable view of the queue.
func (q *DailyQueue) Snapshot() QueueSnapshot {
	return QueueSnapshot{
		TotalSerialNumber: q.TotalIssued,
		CurrSerialNumber:  q.CurrentServing,
	}
}

// QueueSnapshot is what live subscribers and the status endpoint see.
type QueueSnapshot struct {
	TotalSerialNumber int `db:"total_issued" json:"totalSerialNumber"`
	CurrSerialNumber  int `db:"current_serving" json:"currSerialNumber"`
}
