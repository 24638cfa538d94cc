package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/queue-api/pkg/auth"
	"github.com/jwalitptl/queue-api/pkg/httputil"
)

const ContextAccountID = "account_id"

type AuthMiddleware struct {
	jwtService auth.JWTService
}

func NewAuthMiddleware(jwtService auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwtService: jwtService}
}

// Authenticate verifies the bearer token and sets the doctor account id in context
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.Abort(c, http.StatusUnauthorized, "Not authorized, login again")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.Abort(c, http.StatusUnauthorized, "Invalid authorization format")
			return
		}

		claims, err := m.jwtService.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			httputil.Abort(c, http.StatusUnauthorized, "Not authorized, login again")
			return
		}

		c.Set(ContextAccountID, claims.AccountID())
		c.Next()
	}
}

// AccountID returns the authenticated account id, if any.
func AccountID(c *gin.Context) string {
	return c.GetString(ContextAccountID)
}
