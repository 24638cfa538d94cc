package queue

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/queue-api/internal/livequeue"
	"github.com/jwalitptl/queue-api/internal/service/queue"
	"github.com/jwalitptl/queue-api/pkg/httputil"
	"github.com/jwalitptl/queue-api/pkg/logger"
)

type Handler struct {
	service *queue.Service
	hub     *livequeue.Hub
	live    LiveConfig
	logger  *logger.Logger
}

func NewHandler(service *queue.Service, hub *livequeue.Hub, live LiveConfig, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{service: service, hub: hub, live: live.withDefaults(), logger: log}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	queues := r.Group("/queues")
	{
		queues.GET("/status", h.GetStatus)
		queues.GET("/live", h.Live)
	}
}

// GetStatus returns the realtime counters for ?doctorId&date.
func (h *Handler) GetStatus(c *gin.Context) {
	snap, err := h.service.Status(c.Request.Context(), c.Query("doctorId"), c.Query("date"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "", gin.H{"realTimeData": snap})
}
