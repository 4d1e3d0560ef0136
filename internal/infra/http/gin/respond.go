package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"stayfinder/internal/app/policies"
	domainbooking "stayfinder/internal/domain/booking"
	domainlisting "stayfinder/internal/domain/listing"
	"stayfinder/internal/domain/shared/daterange"
	domainuser "stayfinder/internal/domain/user"
)

// respondError maps domain errors onto HTTP statuses in one place so
// handlers stay thin.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, daterange.ErrInvalidRange),
		errors.Is(err, domainbooking.ErrInvalidPhone),
		errors.Is(err, domainbooking.ErrGuestRequired),
		errors.Is(err, domainlisting.ErrInvalidPhone),
		errors.Is(err, domainlisting.ErrTitleRequired),
		errors.Is(err, domainlisting.ErrAddressRequired),
		errors.Is(err, domainlisting.ErrNegativePrice),
		errors.Is(err, domainlisting.ErrImagesRequired),
		errors.Is(err, domainlisting.ErrTooManyImages),
		errors.Is(err, policies.ErrMalformedIntent):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domainbooking.ErrNotOwner),
		errors.Is(err, domainlisting.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domainbooking.ErrNotFound),
		errors.Is(err, domainlisting.ErrNotFound),
		errors.Is(err, domainuser.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domainbooking.ErrDuplicate),
		errors.Is(err, domainbooking.ErrDateConflict),
		errors.Is(err, domainuser.ErrEmailAlreadyUsed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domainbooking.ErrInvalidState),
		errors.Is(err, domainbooking.ErrPaymentIntentRequired):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, policies.ErrPaymentsUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider unavailable"})
	default:
		if logger != nil {
			logger.Error("request failed", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
