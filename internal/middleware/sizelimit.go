package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/queue-api/pkg/httputil"
)

// DefaultBodyLimit caps JSON request bodies.
const DefaultBodyLimit int64 = 64 << 10

// BodyLimit rejects declared oversize bodies and caps the rest while they
// are read.
func BodyLimit(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > max {
			httputil.Abort(c, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		}
		c.Next()
	}
}
