package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/queue-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func do(t *testing.T, fn func(c *gin.Context)) (int, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	fn(c)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestRespondWithSuccess(t *testing.T) {
	status, body := do(t, func(c *gin.Context) {
		RespondWithSuccess(c, "ok", gin.H{"qrCodeData": "x"})
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "ok", body["message"])
	assert.Equal(t, "x", body["qrCodeData"])
}

func TestRespondWithError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"domain", apperrors.CapacityExceeded(nil), http.StatusOK, "Booking full, choose another date"},
		{"unauthorized", apperrors.Unauthorized(nil), http.StatusUnauthorized, apperrors.DeniedMessage},
		{"rate limited", apperrors.TooManyRequests("slow down", nil), http.StatusTooManyRequests, "slow down"},
		{"plain", errors.New("db exploded"), http.StatusInternalServerError, "Something went wrong, please try again later"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, func(c *gin.Context) { RespondWithError(c, tt.err) })
			assert.Equal(t, tt.status, status)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.message, body["message"])
		})
	}
}
