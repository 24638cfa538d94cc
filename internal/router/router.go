package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/queue-api/internal/handler/appointment"
	"github.com/jwalitptl/queue-api/internal/handler/doctor"
	"github.com/jwalitptl/queue-api/internal/handler/health"
	"github.com/jwalitptl/queue-api/internal/handler/queue"
	"github.com/jwalitptl/queue-api/internal/handler/ticket"
	"github.com/jwalitptl/queue-api/internal/middleware"
	"github.com/jwalitptl/queue-api/pkg/metrics"
)

const (
	apiPrefix = "/api/v1"
	livePath  = apiPrefix + "/queues/live"
)

// Handlers groups everything mounted under /api/v1.
type Handlers struct {
	Appointment *appointment.Handler
	Queue       *queue.Handler
	Ticket      *ticket.Handler
	Doctor      *doctor.Handler
	Health      *health.Handler
	// Metrics serves /health/metrics; nil leaves the route out.
	Metrics gin.HandlerFunc
}

type RouterConfig struct {
	CORSConfig     middleware.CORSConfig
	RequestTimeout time.Duration
	BodyLimit      int64

	RateLimitEnabled bool
	GlobalRequests   int
	GlobalWindow     time.Duration
	OTPRequests      int
	OTPWindow        time.Duration
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
	otpLimit gin.HandlerFunc
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, m *metrics.Metrics, config RouterConfig) *Router {
	gin.SetMode(gin.ReleaseMode)
	middleware.RegisterValidators()

	engine := gin.New()
	if m == nil {
		m = metrics.NewNop()
	}
	if config.BodyLimit <= 0 {
		config.BodyLimit = middleware.DefaultBodyLimit
	}

	r := &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
		otpLimit: func(c *gin.Context) { c.Next() },
	}

	// Core middlewares
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.Metrics(m),
		middleware.CORS(config.CORSConfig),
		middleware.ErrorHandler(),
		middleware.Timeout(middleware.TimeoutConfig{
			Duration:  config.RequestTimeout,
			SkipPaths: []string{livePath},
		}),
		middleware.BodyLimit(config.BodyLimit),
	)

	if config.RateLimitEnabled {
		engine.Use(middleware.NewRateLimiter(config.GlobalRequests, config.GlobalWindow).Middleware())
		r.otpLimit = middleware.NewRateLimiter(config.OTPRequests, config.OTPWindow).
			WithMessage("Too many OTP requests, please try again later").
			Middleware()
	}

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group(apiPrefix)

	if r.handlers.Health != nil {
		r.handlers.Health.RegisterRoutes(api, r.handlers.Metrics)
	}

	authenticate := r.auth.Authenticate()
	r.handlers.Appointment.RegisterRoutes(api, authenticate)
	r.handlers.Queue.RegisterRoutes(api)
	r.handlers.Ticket.RegisterRoutes(api, r.otpLimit)
	r.handlers.Doctor.RegisterRoutes(api, authenticate)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
