package ticket

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/queue-api/internal/service/retrieval"
	"github.com/jwalitptl/queue-api/pkg/errors"
	"github.com/jwalitptl/queue-api/pkg/httputil"
)

type Handler struct {
	service *retrieval.Service
}

func NewHandler(service *retrieval.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the ticket routes. otpLimit guards the two
// e-mail sending routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, otpLimit gin.HandlerFunc) {
	tickets := r.Group("/tickets")
	{
		tickets.POST("/otp", otpLimit, h.RequestOTP)
		tickets.POST("/retrieve", otpLimit, h.RetrieveTicket)
		tickets.POST("/print", h.PrintTicket)
	}
}

type otpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	DoctorID string `json:"doctorId" binding:"required"`
	Date     string `json:"date" binding:"required"`
}

func (h *Handler) RequestOTP(c *gin.Context) {
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	if err := h.service.RequestOTP(c.Request.Context(), req.Email, req.DoctorID, req.Date); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, retrieval.OTPSentMessage, nil)
}

type retrieveRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required"`
}

func (h *Handler) RetrieveTicket(c *gin.Context) {
	var req retrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	if err := h.service.RetrieveTicket(c.Request.Context(), req.Email, req.OTP); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, retrieval.TicketSentMessage, nil)
}

type printRequest struct {
	QRCodeData string `json:"qrCodeData"`
}

// PrintTicket streams the PDF of a ticket. Failures use the JSON envelope.
func (h *Handler) PrintTicket(c *gin.Context) {
	var req printRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("Invalid request body", err))
		return
	}
	if req.QRCodeData == "" {
		httputil.RespondWithError(c, errors.Validation("QR code data is required", nil))
		return
	}

	pdf, err := h.service.PrintTicket(c.Request.Context(), req.QRCodeData)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "ticket.pdf"))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
