package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
	"dispatch/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// mapErrorToHTTPStatus maps domain/service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidCompanyID),
		errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrInvalidOrderID),
		errors.Is(err, service.ErrInvalidPickupAddress),
		errors.Is(err, service.ErrInvalidDeliveryAddress),
		errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidStatus):
		return http.StatusBadRequest

	// Lifecycle conflicts
	case errors.Is(err, service.ErrOrderAlreadyTaken),
		errors.Is(err, service.ErrPickupCodeMismatch),
		errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, domain.ErrUnknownStatus),
		errors.Is(err, domain.ErrPickupCodeRequired),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict

	// Business rule errors
	case errors.Is(err, service.ErrNotAssignedDriver):
		return http.StatusForbidden

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
