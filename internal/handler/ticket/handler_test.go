package ticket

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/queue-api/internal/middleware"
	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository/memory"
	"github.com/jwalitptl/queue-api/internal/service/retrieval"
	ticketcodec "github.com/jwalitptl/queue-api/internal/ticket"
	"github.com/jwalitptl/queue-api/pkg/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type captureMailer struct {
	mu      sync.Mutex
	otp     string
	tickets int
}

func (m *captureMailer) SendOTP(_ context.Context, _, otp string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.otp = otp
	return nil
}

func (m *captureMailer) SendTicket(context.Context, string, []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets++
	return nil
}

type fixture struct {
	router *gin.Engine
	mailer *captureMailer
	raw    string
	date   string
}

func newFixture(t *testing.T, otpLimit gin.HandlerFunc) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	codec := ticketcodec.NewCodec("")

	day := model.NormalizeDate(time.Now())
	q, err := store.Queues().AllocateNext(ctx, "D", day)
	require.NoError(t, err)
	id := uuid.New()
	raw, payload, err := codec.Issue(id.String(), "Asha", "D", model.FormatDate(day), "Dr. D", q.TotalIssued)
	require.NoError(t, err)
	addr := "asha@example.com"
	require.NoError(t, store.Bookings().Create(ctx, &model.Booking{
		ID: id, QueueID: q.ID, PatientName: "Asha", Gender: model.GenderFemale, PhoneNumber: "9876543210",
		Email: &addr, DoctorID: "D", AppointmentDate: day, SerialNumber: 1, Status: model.BookingStatusBooked,
		TicketPayload: raw, VerificationHash: payload.VerificationHash,
	}))

	mailer := &captureMailer{}
	svc := retrieval.NewService(store.Bookings(), security.NewBcryptHasher(bcrypt.MinCost), mailer, codec)

	r := gin.New()
	r.Use(middleware.ErrorHandler())
	if otpLimit == nil {
		otpLimit = func(c *gin.Context) { c.Next() }
	}
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"), otpLimit)
	return &fixture{router: r, mailer: mailer, raw: raw, date: model.FormatDate(day)}
}

func (f *fixture) post(path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(body)
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestOTPFlow(t *testing.T) {
	f := newFixture(t, nil)

	body := decode(t, f.post("/api/v1/tickets/otp", gin.H{"email": "asha@example.com", "doctorId": "D", "date": f.date}))
	require.Equal(t, true, body["success"], body)
	assert.Equal(t, retrieval.OTPSentMessage, body["message"])
	require.Len(t, f.mailer.otp, retrieval.OTPLength)

	body = decode(t, f.post("/api/v1/tickets/otp", gin.H{"email": "asha@example.com", "doctorId": "D", "date": f.date}))
	assert.Equal(t, "too_many_requests", body["code"])

	body = decode(t, f.post("/api/v1/tickets/retrieve", gin.H{"email": "asha@example.com", "otp": "000000x"}))
	assert.Equal(t, false, body["success"])

	body = decode(t, f.post("/api/v1/tickets/retrieve", gin.H{"email": "asha@example.com", "otp": f.mailer.otp}))
	assert.Equal(t, true, body["success"], body)
	assert.Equal(t, retrieval.TicketSentMessage, body["message"])
	assert.Equal(t, 1, f.mailer.tickets)
}

func TestOTPRequiresFields(t *testing.T) {
	f := newFixture(t, nil)

	w := f.post("/api/v1/tickets/otp", gin.H{"email": "not-an-email", "doctorId": "D", "date": f.date})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "validation", decode(t, w)["code"])
}

func TestOTPRoutesUseLimiter(t *testing.T) {
	f := newFixture(t, middleware.NewRateLimiter(1, time.Hour).Middleware())

	f.post("/api/v1/tickets/otp", gin.H{"email": "asha@example.com", "doctorId": "D", "date": f.date})
	w := f.post("/api/v1/tickets/retrieve", gin.H{"email": "asha@example.com", "otp": "123456"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Printing is not behind the OTP limiter.
	w = f.post("/api/v1/tickets/print", gin.H{"qrCodeData": f.raw})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPrintTicket(t *testing.T) {
	f := newFixture(t, nil)

	w := f.post("/api/v1/tickets/print", gin.H{"qrCodeData": f.raw})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	w = f.post("/api/v1/tickets/print", gin.H{"qrCodeData": "{broken"})
	assert.Equal(t, "malformed_ticket", decode(t, w)["code"])
}
