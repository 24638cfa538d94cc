package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/queue-api/pkg/httputil"
)

const rateLimitMessage = "Too many requests from this IP, please try again later"

// RateLimiter keeps one token bucket per client IP. Idle buckets expire
// from the cache after a full window.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	message string
	buckets *cache.Cache
}

// NewRateLimiter allows requests per window per IP, with bursts up to the
// full allowance.
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limit:   rate.Limit(float64(requests) / window.Seconds()),
		burst:   requests,
		message: rateLimitMessage,
		buckets: cache.New(window, window),
	}
}

// WithMessage overrides the 429 message.
func (rl *RateLimiter) WithMessage(msg string) *RateLimiter {
	rl.message = msg
	return rl
}

// Allow reports whether key may make another request now.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.bucket(key).Allow()
}

func (rl *RateLimiter) bucket(key string) *rate.Limiter {
	if v, ok := rl.buckets.Get(key); ok {
		return v.(*rate.Limiter)
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	// Another request may have raced us; keep whichever landed first.
	if err := rl.buckets.Add(key, l, cache.DefaultExpiration); err != nil {
		if v, ok := rl.buckets.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return l
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			httputil.Abort(c, http.StatusTooManyRequests, rl.message)
			return
		}
		c.Next()
	}
}
