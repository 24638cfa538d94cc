package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Name   string  `json:"patientName" validate:"required,min=2,max=50"`
	Gender string  `json:"gender" validate:"required,gender"`
	Phone  string  `json:"phoneNumber" validate:"required,indianphone"`
	Date   string  `json:"appointmentDate" validate:"required,date"`
	Email  *string `json:"email" validate:"omitempty,email"`
}

func valid() sample {
	return sample{Name: "Asha", Gender: "female", Phone: "9876543210", Date: "2025-01-10"}
}

func TestValidate(t *testing.T) {
	v := New()
	assert.NoError(t, v.Validate(valid()))

	bad := "nope"
	tests := []struct {
		name   string
		mutate func(*sample)
		want   string
	}{
		{"short name", func(s *sample) { s.Name = "A" }, "patientName must be at least 2 characters"},
		{"gender", func(s *sample) { s.Gender = "x" }, "gender must be one of MALE, FEMALE or OTHER"},
		{"phone prefix", func(s *sample) { s.Phone = "5876543210" }, "phoneNumber must be a valid 10 digit mobile number"},
		{"phone length", func(s *sample) { s.Phone = "98765" }, "phoneNumber must be a valid 10 digit mobile number"},
		{"date", func(s *sample) { s.Date = "10-01-2025" }, "appointmentDate must be a date in YYYY-MM-DD format"},
		{"email", func(s *sample) { s.Email = &bad }, "email must be a valid email"},
		{"missing", func(s *sample) { s.Name = "" }, "patientName is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)
			err := v.Validate(s)
			if assert.Error(t, err) {
				assert.Equal(t, tt.want, err.Error())
			}
		})
	}
}
