package ginserver

import (
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"stayfinder/internal/app/dto"
	bookingsvc "stayfinder/internal/app/services/bookings"
	domainbooking "stayfinder/internal/domain/booking"
)

type BookingHandler struct {
	Service *bookingsvc.Service
	Logger  *slog.Logger
}

type checkoutRequest struct {
	Phone    string    `json:"phone"`
	CheckIn  time.Time `json:"check_in"`
	CheckOut time.Time `json:"check_out"`
}

// Checkout opens a payment session for the requested stay. The booking
// itself materializes later, when the completion webhook arrives.
func (h BookingHandler) Checkout(c *gin.Context) {
	p, ok := requireUser(c)
	if !ok {
		return
	}
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	session, err := h.Service.CreateCheckoutSession(c.Request.Context(), bookingsvc.CheckoutParams{
		GuestID:   p.ID,
		ListingID: c.Param("id"),
		Phone:     req.Phone,
		CheckIn:   req.CheckIn,
		CheckOut:  req.CheckOut,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session_id": session.ID, "checkout_url": session.URL})
}

func (h BookingHandler) List(c *gin.Context) {
	p, ok := requireUser(c)
	if !ok {
		return
	}
	found, err := h.Service.ListForGuest(c.Request.Context(), p.ID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapBookingCollection(found))
}

func (h BookingHandler) Get(c *gin.Context) {
	p, ok := requireUser(c)
	if !ok {
		return
	}
	b, err := h.Service.Get(c.Request.Context(), domainbooking.BookingID(c.Param("id")), p.ID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapBookingSummary(b))
}

func (h BookingHandler) Cancel(c *gin.Context) {
	p, ok := requireUser(c)
	if !ok {
		return
	}
	id := domainbooking.BookingID(c.Param("id"))
	if err := h.Service.Cancel(c.Request.Context(), id, p.ID); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	b, err := h.Service.Get(c.Request.Context(), id, p.ID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapBookingSummary(b))
}

func (h BookingHandler) Delete(c *gin.Context) {
	p, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.Service.MarkDeleted(c.Request.Context(), domainbooking.BookingID(c.Param("id")), p.ID); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

var _ BookingHTTP = (*BookingHandler)(nil)
