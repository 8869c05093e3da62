package server

import (
	"errors"
	"net/http"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/agentstatus"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/call"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

var errInvalidRequest = errors.New("invalid request")

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

func invalidRequest(err error) error {
	return errors.Join(errInvalidRequest, err)
}

// ErrorHandlingMiddleware renders the last handler error when nothing was written.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if status >= http.StatusInternalServerError {
			logging.Logger.Error("request failed",
				zap.String("route", c.FullPath()),
				zap.String("error", lastErr.Err.Error()),
			)
		}

		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, call.ErrInvalidPayload),
		errors.Is(err, errInvalidRequest),
		errors.Is(err, agentstatus.ErrEmptyPayload):
		return http.StatusBadRequest, errorPayload{Type: "validation_error", Message: err.Error()}
	case isAgentStatusValidation(err):
		return http.StatusBadRequest, errorPayload{Type: "validation_error", Message: err.Error()}
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return http.StatusServiceUnavailable, errorPayload{Type: "service_unavailable", Message: "storage temporarily unavailable"}
	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
	}
}

func isAgentStatusValidation(err error) bool {
	var validationErr *agentstatus.ValidationError

	return errors.As(err, &validationErr)
}
