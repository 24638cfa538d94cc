package httputil

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/queue-api/pkg/errors"
)

// Response is the envelope shared by every JSON endpoint; payload keys
// are merged next to success and message.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// RespondWithSuccess sends a 200 with message and payload merged in.
func RespondWithSuccess(c *gin.Context, message string, payload gin.H) {
	body := gin.H{"success": true, "message": message}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// RespondWithError renders err in the envelope. Errors that are not an
// *errors.AppError are logged and answered with a generic 500.
func RespondWithError(c *gin.Context, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.Internal(err)
	}

	if appErr.Code == errors.ErrInternal {
		log.Error().
			Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("request_id", c.GetString("request_id")).
			Msg("Request failed")
	}

	c.JSON(appErr.StatusCode(), Response{
		Success: false,
		Message: appErr.Message,
		Code:    appErr.Code.String(),
	})
}

// Abort writes a failure envelope with an explicit status and stops the chain.
func Abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Message: message})
}
