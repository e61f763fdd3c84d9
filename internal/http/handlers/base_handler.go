// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ridebook/internal/logging"
	"ridebook/internal/modules/booking"
	"ridebook/internal/modules/driver"
	"ridebook/internal/modules/pricing"
	"ridebook/internal/modules/ride"
	"ridebook/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeServiceError maps module errors to status codes. "Driver taken" and
// "ride already moved" are 409; "not your ride" is 403; infrastructure
// failures never leak their message.
func writeServiceError(c *gin.Context, log *logging.Logger, err error) {
	switch {
	case errors.Is(err, booking.ErrDriverUnavailable), errors.Is(err, driver.ErrNotVerified):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, booking.ErrBookingFailed):
		log.WithError(err).Error("booking failed")
		writeError(c, http.StatusServiceUnavailable, "booking failed, please retry")

	case errors.Is(err, ride.ErrWrongActor):
		writeError(c, http.StatusForbidden, "ride belongs to another user")
	case errors.Is(err, ride.ErrInvalidTransition):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, ride.ErrNotFound), errors.Is(err, driver.ErrNotFound), errors.Is(err, driver.ErrDocumentMissing):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, pricing.ErrConfigNotFound):
		writeError(c, http.StatusServiceUnavailable, err.Error())

	case errors.Is(err, ride.ErrBadRequest),
		errors.Is(err, ride.ErrInvalidFinalCost),
		errors.Is(err, pricing.ErrInvalidDistance),
		errors.Is(err, pricing.ErrInvalidConfig),
		errors.Is(err, driver.ErrInvalidPhone),
		errors.Is(err, driver.ErrInvalidGender),
		errors.Is(err, driver.ErrUnknownDocument),
		errors.Is(err, driver.ErrUnsupportedContentType),
		errors.Is(err, driver.ErrFileTooLarge),
		errors.Is(err, driver.ErrInvalidPath):
		writeError(c, http.StatusBadRequest, err.Error())

	case errors.Is(err, types.ErrPersistence):
		log.WithError(err).Error("persistence failure")
		writeError(c, http.StatusServiceUnavailable, "storage unavailable")
	default:
		log.WithError(err).Error("unhandled error")
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func queryLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return n
}
