package handler

import (
	"errors"
	"net/http"
	"roastarena/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a generic error response.
type ErrorResponse struct {
	Error string `json:"error" example:"An error message"`
}

// respondError maps engine errors to HTTP status codes. Queue and vote errors
// are returned synchronously and never retried here; the caller decides.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrAlreadyQueued),
		errors.Is(err, models.ErrAlreadyMatched),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrMatchNotVotable):
		status = http.StatusConflict
	case errors.Is(err, models.ErrMatchNotFound),
		errors.Is(err, models.ErrNotInQueue):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrSelfVoteForbidden):
		status = http.StatusForbidden
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
