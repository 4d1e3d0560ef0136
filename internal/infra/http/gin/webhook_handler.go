package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"stayfinder/internal/app/policies"
	bookingsvc "stayfinder/internal/app/services/bookings"
)

type WebhookHandler struct {
	Service *bookingsvc.Service
	Logger  *slog.Logger
}

// PaymentEvent receives processor notifications. Verification runs over the
// raw request body; once the signature checks out, the delivery is
// acknowledged with 200 no matter what happens downstream, so the
// processor does not redeliver an event we cannot act on.
func (h WebhookHandler) PaymentEvent(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable payload"})
		return
	}
	err = h.Service.HandlePaymentEvent(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, policies.ErrInvalidSignature) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
			return
		}
		if h.Logger != nil {
			h.Logger.Error("payment event handling failed", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

var _ WebhookHTTP = (*WebhookHandler)(nil)
