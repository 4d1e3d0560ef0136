package bookings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"stayfinder/internal/app/policies"
	domainbooking "stayfinder/internal/domain/booking"
	domainlisting "stayfinder/internal/domain/listing"
	"stayfinder/internal/domain/shared/daterange"
)

const (
	eventBookingConfirmed = "booking.confirmed"
	eventBookingCancelled = "booking.cancelled"
)

// Service owns the booking-payment-inventory consistency subsystem: checkout
// session creation, webhook reconciliation and cancellation/refund.
type Service struct {
	Listings domainlisting.Repository
	Bookings domainbooking.Repository
	Payments policies.PaymentsPort
	Verifier policies.WebhookVerifier
	Events   policies.EventPublisher
	Logger   *slog.Logger
	Now      func() time.Time
}

type CheckoutParams struct {
	GuestID   string
	ListingID string
	Phone     string
	CheckIn   time.Time
	CheckOut  time.Time
}

// CreateCheckoutSession prices the prospective stay and opens an external
// checkout session carrying the booking intent as metadata. No booking row
// is written here; the reconciler materializes it after payment completes.
func (s *Service) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (policies.CheckoutSession, error) {
	if params.GuestID == "" {
		return policies.CheckoutSession{}, domainbooking.ErrGuestRequired
	}
	if !domainbooking.ValidPhone(params.Phone) {
		return policies.CheckoutSession{}, domainbooking.ErrInvalidPhone
	}
	dr, err := daterange.New(params.CheckIn, params.CheckOut)
	if err != nil {
		return policies.CheckoutSession{}, err
	}

	listing, err := s.Listings.ByID(ctx, domainlisting.ListingID(params.ListingID))
	if err != nil {
		return policies.CheckoutSession{}, err
	}

	// Guard against duplicate session creation for identical parameters,
	// then apply the same overlap predicate the reconciler uses.
	if _, err := s.Bookings.FindActive(ctx, params.GuestID, listing.ID, dr); err == nil {
		return policies.CheckoutSession{}, domainbooking.ErrDuplicate
	} else if !errors.Is(err, domainbooking.ErrNotFound) {
		return policies.CheckoutSession{}, err
	}
	taken, err := s.Bookings.AnyOverlapping(ctx, listing.ID, dr)
	if err != nil {
		return policies.CheckoutSession{}, err
	}
	if taken {
		return policies.CheckoutSession{}, domainbooking.ErrDateConflict
	}

	total := dr.Nights() * listing.PricePerNight
	session, err := s.Payments.CreateCheckoutSession(ctx, policies.CheckoutParams{
		Title: listing.Title,
		Description: fmt.Sprintf("Stay from %s to %s",
			dr.CheckIn.Format("2006-01-02"), dr.CheckOut.Format("2006-01-02")),
		AmountCents: total * 100,
		Intent: policies.BookingIntent{
			GuestID:    params.GuestID,
			ListingID:  string(listing.ID),
			Phone:      params.Phone,
			CheckIn:    dr.CheckIn,
			CheckOut:   dr.CheckOut,
			TotalPrice: total,
		},
	})
	if err != nil {
		return policies.CheckoutSession{}, fmt.Errorf("%w: %v", policies.ErrPaymentsUnavailable, err)
	}
	s.Logger.Info("checkout session created",
		"session_id", session.ID, "listing_id", listing.ID, "guest_id", params.GuestID, "total", total)
	return session, nil
}

// HandlePaymentEvent reconciles an asynchronous payment notification into
// durable booking state, exactly once. Signature verification happens over
// the raw payload before anything else; once it passes, every internal
// failure is logged and acknowledged so the processor does not enter a
// redelivery storm.
func (s *Service) HandlePaymentEvent(ctx context.Context, payload []byte, signatureHeader string) error {
	event, err := s.Verifier.VerifyEvent(payload, signatureHeader)
	if err != nil {
		return fmt.Errorf("%w: %v", policies.ErrInvalidSignature, err)
	}
	if event.Kind != policies.EventCheckoutCompleted {
		s.Logger.Debug("ignoring payment event", "kind", event.Kind)
		return nil
	}

	intent, err := policies.ParseBookingIntent(event.Metadata)
	if err != nil {
		s.Logger.Error("payment event has unusable metadata, acknowledging for manual reconciliation",
			"session_id", event.SessionID, "error", err)
		return nil
	}
	dr, err := daterange.New(intent.CheckIn, intent.CheckOut)
	if err != nil {
		s.Logger.Error("payment event carries an invalid date range", "session_id", event.SessionID, "error", err)
		return nil
	}

	listingID := domainlisting.ListingID(intent.ListingID)
	if existing, err := s.Bookings.FindActive(ctx, intent.GuestID, listingID, dr); err == nil {
		s.Logger.Info("duplicate payment event delivery, booking already materialized",
			"booking_id", existing.ID, "session_id", event.SessionID)
		return nil
	} else if !errors.Is(err, domainbooking.ErrNotFound) {
		s.Logger.Error("duplicate check failed after verified event, acknowledging",
			"session_id", event.SessionID, "error", err)
		return nil
	}

	confirmed, err := domainbooking.NewConfirmed(domainbooking.ConfirmParams{
		ID:               domainbooking.BookingID(uuid.NewString()),
		GuestID:          intent.GuestID,
		ListingID:        listingID,
		Phone:            intent.Phone,
		TotalPrice:       intent.TotalPrice,
		Range:            dr,
		PaymentSessionID: event.SessionID,
		PaymentIntentID:  event.PaymentIntentID,
		Now:              s.now(),
	})
	if err != nil {
		s.Logger.Error("verified payment event rejected by booking invariants", "session_id", event.SessionID, "error", err)
		return nil
	}

	if err := s.Bookings.CreateExclusive(ctx, confirmed); err != nil {
		switch {
		case errors.Is(err, domainbooking.ErrDuplicate):
			s.Logger.Info("payment event raced a duplicate confirmation", "session_id", event.SessionID)
		case errors.Is(err, domainbooking.ErrDateConflict):
			s.Logger.Warn("payment completed for dates taken in the meantime, booking not materialized",
				"session_id", event.SessionID, "listing_id", listingID)
		default:
			s.Logger.Error("booking persistence failed after verified payment, acknowledging for manual reconciliation",
				"session_id", event.SessionID, "error", err)
		}
		return nil
	}

	s.Logger.Info("booking confirmed via payment event",
		"booking_id", confirmed.ID, "listing_id", confirmed.ListingID, "total", confirmed.TotalPrice)
	s.publish(ctx, eventBookingConfirmed, confirmed)
	return nil
}

// Cancel refunds the original payment and, only once the processor accepts
// the refund, transitions the booking to cancelled. A failed refund leaves
// the booking confirmed.
func (s *Service) Cancel(ctx context.Context, id domainbooking.BookingID, requesterID string) error {
	b, err := s.Bookings.ByID(ctx, id)
	if err != nil {
		return err
	}
	if b.GuestID != requesterID {
		return domainbooking.ErrNotOwner
	}
	if b.Status != domainbooking.StatusConfirmed {
		return domainbooking.ErrInvalidState
	}
	if b.PaymentIntentID == "" {
		return domainbooking.ErrPaymentIntentRequired
	}

	if err := s.Payments.Refund(ctx, b.PaymentIntentID); err != nil {
		s.Logger.Error("refund rejected by payment processor, booking stays confirmed",
			"booking_id", b.ID, "payment_intent_id", b.PaymentIntentID, "error", err)
		return fmt.Errorf("%w: %v", policies.ErrPaymentsUnavailable, err)
	}
	if err := b.Cancel(s.now()); err != nil {
		return err
	}
	if err := s.Bookings.Update(ctx, b); err != nil {
		return err
	}
	s.Logger.Info("booking cancelled and refunded", "booking_id", b.ID)
	s.publish(ctx, eventBookingCancelled, b)
	return nil
}

// MarkDeleted hides the booking from the guest's own list.
func (s *Service) MarkDeleted(ctx context.Context, id domainbooking.BookingID, requesterID string) error {
	b, err := s.Bookings.ByID(ctx, id)
	if err != nil {
		return err
	}
	if b.GuestID != requesterID {
		return domainbooking.ErrNotOwner
	}
	b.MarkDeleted(s.now())
	return s.Bookings.Update(ctx, b)
}

func (s *Service) Get(ctx context.Context, id domainbooking.BookingID, requesterID string) (*domainbooking.Booking, error) {
	b, err := s.Bookings.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.GuestID != requesterID {
		return nil, domainbooking.ErrNotOwner
	}
	return b, nil
}

// ListForGuest returns the guest's bookings with soft-deleted ones hidden.
func (s *Service) ListForGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	all, err := s.Bookings.ListByGuest(ctx, guestID)
	if err != nil {
		return nil, err
	}
	visible := make([]*domainbooking.Booking, 0, len(all))
	for _, b := range all {
		if !b.IsDeleted {
			visible = append(visible, b)
		}
	}
	return visible, nil
}

type bookingEventPayload struct {
	BookingID  string    `json:"booking_id"`
	ListingID  string    `json:"listing_id"`
	GuestID    string    `json:"guest_id"`
	CheckIn    time.Time `json:"check_in"`
	CheckOut   time.Time `json:"check_out"`
	TotalPrice int64     `json:"total_price"`
	Status     string    `json:"status"`
}

func (s *Service) publish(ctx context.Context, name string, b *domainbooking.Booking) {
	if s.Events == nil {
		return
	}
	payload := bookingEventPayload{
		BookingID:  string(b.ID),
		ListingID:  string(b.ListingID),
		GuestID:    b.GuestID,
		CheckIn:    b.Range.CheckIn,
		CheckOut:   b.Range.CheckOut,
		TotalPrice: b.TotalPrice,
		Status:     string(b.Status),
	}
	if err := s.Events.Publish(ctx, name, string(b.ID), payload); err != nil {
		s.Logger.Warn("booking event publish failed", "event", name, "booking_id", b.ID, "error", err)
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
