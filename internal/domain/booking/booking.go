package booking

import (
	"context"
	"errors"
	"time"

	"stayfinder/internal/domain/listing"
	"stayfinder/internal/domain/shared/daterange"
)

var (
	ErrNotFound              = errors.New("booking: not found")
	ErrInvalidState          = errors.New("booking: invalid state transition")
	ErrDateConflict          = errors.New("booking: listing already booked for the selected dates")
	ErrDuplicate             = errors.New("booking: booking already exists for these dates")
	ErrNotOwner              = errors.New("booking: caller does not own this booking")
	ErrGuestRequired         = errors.New("booking: guest id is required")
	ErrInvalidPhone          = errors.New("booking: contact must be a ten digit number")
	ErrNegativeTotal         = errors.New("booking: total price must be non-negative")
	ErrPaymentIntentRequired = errors.New("booking: payment intent id is required")
)

type BookingID string

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Booking is a reservation of a listing for a half-open date range. Records
// are materialized only by the payment reconciler, which is why the
// constructor below produces confirmed bookings carrying processor ids.
type Booking struct {
	ID               BookingID
	GuestID          string
	ListingID        listing.ListingID
	Phone            string
	TotalPrice       int64
	Range            daterange.DateRange
	Status           Status
	IsDeleted        bool
	PaymentSessionID string
	PaymentIntentID  string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Version          int64
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	ListByGuest(ctx context.Context, guestID string) ([]*Booking, error)
	ListByListing(ctx context.Context, listingID listing.ListingID, statuses ...Status) ([]*Booking, error)
	ListByListings(ctx context.Context, listingIDs []listing.ListingID) ([]*Booking, error)
	// FindActive returns the non-cancelled booking matching the exact
	// (guest, listing, range) tuple, or ErrNotFound.
	FindActive(ctx context.Context, guestID string, listingID listing.ListingID, dr daterange.DateRange) (*Booking, error)
	// AnyOverlapping reports whether any non-cancelled booking on the listing
	// overlaps the range.
	AnyOverlapping(ctx context.Context, listingID listing.ListingID, dr daterange.DateRange) (bool, error)
	// CreateExclusive inserts the booking only if no non-cancelled booking
	// overlaps its range; the check and the insert are serialized per
	// listing by the storage layer. Returns ErrDuplicate or ErrDateConflict.
	CreateExclusive(ctx context.Context, b *Booking) error
	Update(ctx context.Context, b *Booking) error
}

type ConfirmParams struct {
	ID               BookingID
	GuestID          string
	ListingID        listing.ListingID
	Phone            string
	TotalPrice       int64
	Range            daterange.DateRange
	PaymentSessionID string
	PaymentIntentID  string
	Now              time.Time
}

// NewConfirmed builds a booking in the confirmed state from a verified
// payment completion. The payment intent id is mandatory: without it a later
// refund cannot be issued.
func NewConfirmed(params ConfirmParams) (*Booking, error) {
	if params.GuestID == "" {
		return nil, ErrGuestRequired
	}
	if params.ListingID == "" {
		return nil, listing.ErrNotFound
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	if !ValidPhone(params.Phone) {
		return nil, ErrInvalidPhone
	}
	if params.TotalPrice < 0 {
		return nil, ErrNegativeTotal
	}
	if params.PaymentIntentID == "" {
		return nil, ErrPaymentIntentRequired
	}
	now := params.Now.UTC()
	return &Booking{
		ID:               params.ID,
		GuestID:          params.GuestID,
		ListingID:        params.ListingID,
		Phone:            params.Phone,
		TotalPrice:       params.TotalPrice,
		Range:            params.Range,
		Status:           StatusConfirmed,
		PaymentSessionID: params.PaymentSessionID,
		PaymentIntentID:  params.PaymentIntentID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// Cancel transitions a confirmed booking to cancelled. Pending and already
// cancelled bookings are rejected.
func (b *Booking) Cancel(now time.Time) error {
	if b.Status != StatusConfirmed {
		return ErrInvalidState
	}
	b.Status = StatusCancelled
	b.UpdatedAt = now.UTC()
	return nil
}

// MarkDeleted hides the booking from the guest's list. The flag is
// orthogonal to status and never removes the record.
func (b *Booking) MarkDeleted(now time.Time) {
	b.IsDeleted = true
	b.UpdatedAt = now.UTC()
}

func (b *Booking) Active() bool {
	return b.Status != StatusCancelled
}

func ValidPhone(phone string) bool {
	return listing.ValidPhone(phone)
}
