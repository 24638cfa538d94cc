package ticket

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issue(t *testing.T, c *Codec) (string, Payload) {
	t.Helper()
	raw, p, err := c.Issue("7f1c8e2a-0000-4000-8000-000000000001", "Asha Rao", "doc-1", "2025-01-10", "Dr. Mehta", 3)
	require.NoError(t, err)
	return raw, p
}

func TestIssueParseRoundTrip(t *testing.T) {
	for _, key := range []string{"", "ticket-key"} {
		c := NewCodec(key)
		raw, issued := issue(t, c)

		parsed, err := c.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, issued, parsed)
		assert.Equal(t, "Dr. Mehta", parsed.DoctorName)
		assert.Equal(t, 3, parsed.SerialNumber)
		assert.True(t, c.Verify(parsed))
	}
}

func TestPayloadFieldOrder(t *testing.T) {
	raw, p := issue(t, NewCodec(""))

	want := `{"appointmentId":"7f1c8e2a-0000-4000-8000-000000000001","patientName":"Asha Rao",` +
		`"doctorId":"doc-1","appointmentDate":"2025-01-10","verificationHash":"` + p.VerificationHash +
		`","doctorName":"Dr. Mehta","serialNumber":3}`
	assert.Equal(t, want, raw)
}

func TestHashIsDeterministic(t *testing.T) {
	c := NewCodec("")
	a := c.Hash("id", "name", "2025-01-10")
	assert.Equal(t, a, c.Hash("id", "name", "2025-01-10"))
	assert.Len(t, a, 64)

	sum := sha256.Sum256([]byte("id-name-2025-01-10"))
	assert.Equal(t, hex.EncodeToString(sum[:]), a)
	assert.NotEqual(t, a, NewCodec("k").Hash("id", "name", "2025-01-10"))
}

func TestVerifyDetectsTampering(t *testing.T) {
	c := NewCodec("")
	_, p := issue(t, c)

	mutations := map[string]func(*Payload){
		"appointmentId":   func(p *Payload) { p.AppointmentID = "other" },
		"patientName":     func(p *Payload) { p.PatientName = "Someone Else" },
		"appointmentDate": func(p *Payload) { p.AppointmentDate = "2025-01-11" },
		"verification":    func(p *Payload) { p.VerificationHash = c.Hash("x", "y", "2025-01-10") },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			tampered := p
			mutate(&tampered)
			assert.False(t, c.Verify(tampered))
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	c := NewCodec("")
	cases := map[string]string{
		"not json":        "hello",
		"empty object":    "{}",
		"missing hash":    `{"appointmentId":"a","patientName":"b","doctorId":"d","appointmentDate":"2025-01-10","serialNumber":1}`,
		"zero serial":     `{"appointmentId":"a","patientName":"b","doctorId":"d","appointmentDate":"2025-01-10","verificationHash":"h","serialNumber":0}`,
		"bad date":        `{"appointmentId":"a","patientName":"b","doctorId":"d","appointmentDate":"10/01/2025","verificationHash":"h","serialNumber":1}`,
		"wrong json type": `{"appointmentId":"a","patientName":"b","doctorId":"d","appointmentDate":"2025-01-10","verificationHash":"h","serialNumber":"1"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.Parse(raw)
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestRenderers(t *testing.T) {
	raw, p := issue(t, NewCodec(""))

	png, err := QRCode(raw, 0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	doc, err := PDF(Sheet{Payload: p, Raw: raw, Gender: "FEMALE", Status: "BOOKED"})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))
}
