package policies

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	ErrPaymentsUnavailable = errors.New("payments: provider unavailable")
	ErrInvalidSignature    = errors.New("payments: event signature verification failed")
	ErrMalformedIntent     = errors.New("payments: malformed booking intent metadata")
)

// EventCheckoutCompleted is the only event kind the reconciler acts on;
// every other kind is acknowledged without action.
const EventCheckoutCompleted = "checkout.session.completed"

// BookingIntent is the prospective booking packed into checkout session
// metadata. It is the sole carrier of booking intent across the asynchronous
// payment boundary: no booking row exists until the completion event arrives.
type BookingIntent struct {
	GuestID    string
	ListingID  string
	Phone      string
	CheckIn    time.Time
	CheckOut   time.Time
	TotalPrice int64
}

const metadataTimeLayout = time.RFC3339

func (i BookingIntent) Metadata() map[string]string {
	return map[string]string{
		"guest_id":    i.GuestID,
		"listing_id":  i.ListingID,
		"phone":       i.Phone,
		"check_in":    i.CheckIn.UTC().Format(metadataTimeLayout),
		"check_out":   i.CheckOut.UTC().Format(metadataTimeLayout),
		"total_price": strconv.FormatInt(i.TotalPrice, 10),
	}
}

// ParseBookingIntent re-validates metadata shape and ranges at consumption
// time. The transport is untrusted even though the content was set by us.
func ParseBookingIntent(meta map[string]string) (BookingIntent, error) {
	var intent BookingIntent
	intent.GuestID = meta["guest_id"]
	intent.ListingID = meta["listing_id"]
	intent.Phone = meta["phone"]
	if intent.GuestID == "" || intent.ListingID == "" {
		return BookingIntent{}, fmt.Errorf("%w: guest or listing id missing", ErrMalformedIntent)
	}
	checkIn, err := time.Parse(metadataTimeLayout, meta["check_in"])
	if err != nil {
		return BookingIntent{}, fmt.Errorf("%w: check_in: %v", ErrMalformedIntent, err)
	}
	checkOut, err := time.Parse(metadataTimeLayout, meta["check_out"])
	if err != nil {
		return BookingIntent{}, fmt.Errorf("%w: check_out: %v", ErrMalformedIntent, err)
	}
	if !checkIn.Before(checkOut) {
		return BookingIntent{}, fmt.Errorf("%w: check_in must precede check_out", ErrMalformedIntent)
	}
	total, err := strconv.ParseInt(meta["total_price"], 10, 64)
	if err != nil || total < 0 {
		return BookingIntent{}, fmt.Errorf("%w: total_price", ErrMalformedIntent)
	}
	intent.CheckIn = checkIn.UTC()
	intent.CheckOut = checkOut.UTC()
	intent.TotalPrice = total
	return intent, nil
}

type CheckoutSession struct {
	ID  string
	URL string
}

type CheckoutParams struct {
	Title       string
	Description string
	AmountCents int64
	Intent      BookingIntent
}

// PaymentsPort drives the external payment processor.
type PaymentsPort interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (CheckoutSession, error)
	Refund(ctx context.Context, paymentIntentID string) error
}

// PaymentEvent is a verified webhook notification.
type PaymentEvent struct {
	Kind            string
	SessionID       string
	PaymentIntentID string
	Metadata        map[string]string
}

// WebhookVerifier authenticates a raw webhook delivery. Verification runs
// over the unparsed byte payload before any business logic.
type WebhookVerifier interface {
	VerifyEvent(payload []byte, signatureHeader string) (PaymentEvent, error)
}
