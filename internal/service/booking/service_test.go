package booking

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository/memory"
	"github.com/jwalitptl/queue-api/internal/ticket"
	"github.com/jwalitptl/queue-api/pkg/errors"
)

var today = time.Date(2025, 1, 9, 10, 0, 0, 0, time.UTC)

type fakeCaptcha struct {
	ok  bool
	err error
}

func (f fakeCaptcha) Verify(context.Context, string, string) (bool, error) {
	return f.ok, f.err
}

type harness struct {
	store *memory.Store
	svc   *Service
	codec *ticket.Codec
}

func newHarness(t *testing.T, maxAppointment int, verifier fakeCaptcha) *harness {
	t.Helper()
	store := memory.NewStore()
	store.Doctors().Put(&model.Doctor{
		ID: "D", AccountID: "acc-D", Name: "Dr. Rao", Speciality: "ENT",
		IsAvailable: true, MaxAppointment: maxAppointment,
	})
	store.Doctors().Put(&model.Doctor{ID: "OFF", Name: "Dr. Off", IsAvailable: false, MaxAppointment: 10})

	codec := ticket.NewCodec("")
	svc := NewService(store, store.Doctors(), codec, verifier, WithClock(func() time.Time { return today }))
	return &harness{store: store, svc: svc, codec: codec}
}

func request(phone string) Request {
	return Request{
		PatientName:     "Asha Verma",
		Gender:          "female",
		PhoneNumber:     phone,
		DoctorID:        "D",
		AppointmentDate: "2025-01-10",
		CaptchaToken:    "token",
	}
}

func TestBookHappyPath(t *testing.T) {
	h := newHarness(t, 10, fakeCaptcha{ok: true})
	ctx := context.Background()

	res, err := h.svc.Book(ctx, request("9876543210"))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Payload.SerialNumber)
	assert.Equal(t, "Dr. Rao", res.Payload.DoctorName)
	assert.Equal(t, "2025-01-10", res.Payload.AppointmentDate)
	assert.Equal(t, model.GenderFemale, res.Booking.Gender)
	assert.Equal(t, model.BookingStatusBooked, res.Booking.Status)
	assert.Equal(t, "ENT", res.Booking.DoctorSpeciality)

	parsed, err := h.codec.Parse(res.Ticket)
	require.NoError(t, err)
	assert.True(t, h.codec.Verify(parsed))
	assert.Equal(t, h.codec.Hash(parsed.AppointmentID, parsed.PatientName, parsed.AppointmentDate), res.Booking.VerificationHash)

	stored, err := h.store.Bookings().GetByTicket(ctx, res.Ticket)
	require.NoError(t, err)
	assert.Equal(t, res.Booking.ID, stored.ID)

	q, err := h.store.Queues().Get(ctx, "D", res.Booking.AppointmentDate)
	require.NoError(t, err)
	assert.Equal(t, 1, q.TotalIssued)
	assert.Equal(t, 0, q.CurrentServing)
	assert.Equal(t, []uuid.UUID{res.Booking.ID}, q.BookingIDs)
}

func TestBookRejections(t *testing.T) {
	tests := []struct {
		name    string
		captcha fakeCaptcha
		mutate  func(*Request)
		want    errors.ErrorCode
	}{
		{"honeypot", fakeCaptcha{ok: true}, func(r *Request) { r.Honeypot = "http://spam" }, errors.ErrBotDetected},
		{"low captcha score", fakeCaptcha{ok: false}, func(r *Request) {}, errors.ErrBotDetected},
		{"captcha transport", fakeCaptcha{err: stderrors.New("timeout")}, func(r *Request) {}, errors.ErrInternal},
		{"missing name", fakeCaptcha{ok: true}, func(r *Request) { r.PatientName = "" }, errors.ErrValidation},
		{"bad gender", fakeCaptcha{ok: true}, func(r *Request) { r.Gender = "unknown" }, errors.ErrValidation},
		{"bad phone", fakeCaptcha{ok: true}, func(r *Request) { r.PhoneNumber = "12345" }, errors.ErrValidation},
		{"bad date", fakeCaptcha{ok: true}, func(r *Request) { r.AppointmentDate = "tomorrow" }, errors.ErrValidation},
		{"past date", fakeCaptcha{ok: true}, func(r *Request) { r.AppointmentDate = "2025-01-08" }, errors.ErrValidation},
		{"unknown doctor", fakeCaptcha{ok: true}, func(r *Request) { r.DoctorID = "nope" }, errors.ErrDoctorUnavailable},
		{"unavailable doctor", fakeCaptcha{ok: true}, func(r *Request) { r.DoctorID = "OFF" }, errors.ErrDoctorUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 10, tt.captcha)
			req := request("9876543210")
			tt.mutate(&req)

			res, err := h.svc.Book(context.Background(), req)
			assert.Nil(t, res)
			assert.Equal(t, tt.want, errors.Code(err))

			// No side effects before the transaction.
			_, err = h.store.Queues().Get(context.Background(), req.DoctorID, today.AddDate(0, 0, 1))
			assert.Error(t, err)
		})
	}
}

func TestBookTodayIsAllowed(t *testing.T) {
	h := newHarness(t, 10, fakeCaptcha{ok: true})
	req := request("9876543210")
	req.AppointmentDate = "2025-01-09"

	_, err := h.svc.Book(context.Background(), req)
	assert.NoError(t, err)
}

func TestBookDuplicatePhone(t *testing.T) {
	h := newHarness(t, 10, fakeCaptcha{ok: true})
	ctx := context.Background()

	_, err := h.svc.Book(ctx, request("9876543210"))
	require.NoError(t, err)

	_, err = h.svc.Book(ctx, request("9876543210"))
	assert.Equal(t, errors.ErrDuplicateBooking, errors.Code(err))

	q, err := h.store.Queues().Get(ctx, "D", today.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, q.TotalIssued, "duplicate check runs before allocation")
}

func TestBookCapacityTwo(t *testing.T) {
	h := newHarness(t, 2, fakeCaptcha{ok: true})
	ctx := context.Background()

	for i, phone := range []string{"9000000001", "9000000002"} {
		res, err := h.svc.Book(ctx, request(phone))
		require.NoError(t, err)
		assert.Equal(t, i+1, res.Payload.SerialNumber)
	}

	_, err := h.svc.Book(ctx, request("9000000003"))
	assert.Equal(t, errors.ErrCapacityExceeded, errors.Code(err))

	date := today.AddDate(0, 0, 1)
	exists, err := h.store.Bookings().ExistsForPatient(ctx, "9000000003", "D", date)
	require.NoError(t, err)
	assert.False(t, exists)

	q, err := h.store.Queues().Get(ctx, "D", date)
	require.NoError(t, err)
	assert.Equal(t, 3, q.TotalIssued, "the rejected serial stays consumed")
	assert.Len(t, q.BookingIDs, 2)
}

func TestBookUnlimitedCapacity(t *testing.T) {
	h := newHarness(t, 0, fakeCaptcha{ok: true})
	for i := 0; i < 5; i++ {
		_, err := h.svc.Book(context.Background(), request(fmt.Sprintf("90000000%02d", i)))
		require.NoError(t, err)
	}
}

func TestBookConcurrentSerialsAreDense(t *testing.T) {
	const (
		attempts = 20
		capacity = 10
	)
	h := newHarness(t, capacity, fakeCaptcha{ok: true})
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		serials []int
		full    int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := h.svc.Book(ctx, request(fmt.Sprintf("98765432%02d", i)))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.Equal(t, errors.ErrCapacityExceeded, errors.Code(err))
				full++
				return
			}
			serials = append(serials, res.Payload.SerialNumber)
		}(i)
	}
	wg.Wait()

	require.Len(t, serials, capacity)
	assert.Equal(t, attempts-capacity, full)
	sort.Ints(serials)
	for i, s := range serials {
		assert.Equal(t, i+1, s)
	}
}
