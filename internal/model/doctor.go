package model

// Doctor is the read-only capacity snapshot owned by the doctor directory.
type Doctor struct {
	ID             string `db:"id" json:"id"`
	AccountID      string `db:"account_id" json:"-"`
	Name           string `db:"name" json:"name"`
	Speciality     string `db:"speciality" json:"speciality"`
	IsAvailable    bool   `db:"is_available" json:"isAvailable"`
	MaxAppointment int    `db:"max_appointment" json:"maxAppointment"`
}

// HasCapacityFor reports whether serial fits under the daily ceiling.
// A non-positive ceiling means the doctor takes unlimited bookings.
func (d *Doctor) HasCapacityFor(serial int) bool {
	return d.MaxAppointment <= 0 || serial <= d.MaxAppointment
}
