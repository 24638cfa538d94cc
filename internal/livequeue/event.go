// Package livequeue broadcasts "now serving" updates for a doctor's day.
package livequeue

import (
	"fmt"
	"time"

	"github.com/jwalitptl/queue-api/internal/model"
)

// EventCurrentPatientUpdate is emitted after every successful verification.
const EventCurrentPatientUpdate = "current-patient-update"

// Channel names the broadcast channel of one doctor's day.
func Channel(doctorID string, date time.Time) string {
	return fmt.Sprintf("doctor-%s+%s", doctorID, model.FormatDate(date))
}

// Event is the envelope carried on the broker topic and written to clients.
type Event struct {
	Channel string              `json:"channel"`
	Event   string              `json:"event"`
	Data    model.QueueSnapshot `json:"data"`
}
