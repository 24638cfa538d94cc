package appointment

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/queue-api/internal/middleware"
	"github.com/jwalitptl/queue-api/internal/service/booking"
	"github.com/jwalitptl/queue-api/internal/service/verification"
	"github.com/jwalitptl/queue-api/pkg/errors"
	"github.com/jwalitptl/queue-api/pkg/httputil"
)

type Handler struct {
	booking      *booking.Service
	verification *verification.Service
}

func NewHandler(bookingSvc *booking.Service, verificationSvc *verification.Service) *Handler {
	return &Handler{booking: bookingSvc, verification: verificationSvc}
}

// RegisterRoutes mounts the public booking route and the doctor-only
// verification route behind authenticate.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authenticate gin.HandlerFunc) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.BookAppointment)
		appointments.POST("/verify", authenticate, h.VerifyAppointment)
	}
}

func (h *Handler) BookAppointment(c *gin.Context) {
	var req booking.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("Invalid request body", err))
		return
	}
	req.RemoteIP = c.ClientIP()

	res, err := h.booking.Book(c.Request.Context(), req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, booking.SuccessMessage, gin.H{
		"qrCodeData": res.Ticket,
		"ticket":     res.Payload,
	})
}

type verifyRequest struct {
	QRCodeData string `json:"qrCodeData"`
}

func (h *Handler) VerifyAppointment(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("Invalid request body", err))
		return
	}
	if req.QRCodeData == "" {
		httputil.RespondWithError(c, errors.Validation("QR code data is required", nil))
		return
	}

	res, err := h.verification.Verify(c.Request.Context(), middleware.AccountID(c), req.QRCodeData)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	payload := gin.H{"patientDetails": res.Booking}
	if res.Snapshot != nil {
		payload["queue"] = res.Snapshot
	}
	httputil.RespondWithSuccess(c, res.Message(), payload)
}
