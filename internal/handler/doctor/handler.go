package doctor

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/queue-api/internal/middleware"
	"github.com/jwalitptl/queue-api/internal/service/queue"
	"github.com/jwalitptl/queue-api/pkg/httputil"
)

type Handler struct {
	service *queue.Service
	now     func() time.Time
}

func NewHandler(service *queue.Service) *Handler {
	return &Handler{service: service, now: time.Now}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authenticate gin.HandlerFunc) {
	doctors := r.Group("/doctors", authenticate)
	{
		doctors.GET("/me/stats", h.PatientStats)
	}
}

// PatientStats reports the signed-in doctor's patients for
// ?startDate&endDate, defaulting to today.
func (h *Handler) PatientStats(c *gin.Context) {
	stats, err := h.service.PatientStats(
		c.Request.Context(),
		middleware.AccountID(c),
		c.Query("startDate"),
		c.Query("endDate"),
		h.now(),
	)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "", gin.H{"stats": stats})
}
