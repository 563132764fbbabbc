package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"sales-collector/internal/domain"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type dataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrAdminNotConfigured):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"path", c.Request.URL.Path,
			"request_id", c.GetString(requestIDKey),
			"error", err,
		)
	}
	c.JSON(status, errorResponse{Error: err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: domain.NewValidationError("body", err.Error()).Error()})
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dataResponse{Success: true, Data: data})
}
