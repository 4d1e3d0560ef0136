package memory

import (
	"context"
	"sort"
	"sync"

	domainbooking "stayfinder/internal/domain/booking"
	domainlisting "stayfinder/internal/domain/listing"
	"stayfinder/internal/domain/shared/daterange"
)

// BookingRepository stores bookings in memory. A single mutex serializes
// CreateExclusive's check-then-insert, which is the property the Mongo
// implementation gets from its per-listing availability token.
type BookingRepository struct {
	mu       sync.RWMutex
	byID     map[domainbooking.BookingID]*domainbooking.Booking
	listings *ListingRepository
}

// NewBookingRepository wires an optional listing repository so inserts can
// reject bookings for listings that no longer exist.
func NewBookingRepository(listings *ListingRepository) *BookingRepository {
	return &BookingRepository{
		byID:     make(map[domainbooking.BookingID]*domainbooking.Booking),
		listings: listings,
	}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if b, ok := r.byID[id]; ok {
		return cloneBooking(b), nil
	}
	return nil, domainbooking.ErrNotFound
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainbooking.Booking
	for _, b := range r.byID {
		if b.GuestID == guestID {
			out = append(out, cloneBooking(b))
		}
	}
	sortBookings(out)
	return out, nil
}

func (r *BookingRepository) ListByListing(ctx context.Context, listingID domainlisting.ListingID, statuses ...domainbooking.Status) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainbooking.Booking
	for _, b := range r.byID {
		if b.ListingID != listingID {
			continue
		}
		if len(statuses) > 0 && !statusIn(b.Status, statuses) {
			continue
		}
		out = append(out, cloneBooking(b))
	}
	sortBookings(out)
	return out, nil
}

func (r *BookingRepository) ListByListings(ctx context.Context, listingIDs []domainlisting.ListingID) ([]*domainbooking.Booking, error) {
	wanted := make(map[domainlisting.ListingID]struct{}, len(listingIDs))
	for _, id := range listingIDs {
		wanted[id] = struct{}{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainbooking.Booking
	for _, b := range r.byID {
		if _, ok := wanted[b.ListingID]; ok {
			out = append(out, cloneBooking(b))
		}
	}
	sortBookings(out)
	return out, nil
}

func (r *BookingRepository) FindActive(ctx context.Context, guestID string, listingID domainlisting.ListingID, dr daterange.DateRange) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if b := r.findActiveLocked(guestID, listingID, dr); b != nil {
		return cloneBooking(b), nil
	}
	return nil, domainbooking.ErrNotFound
}

func (r *BookingRepository) AnyOverlapping(ctx context.Context, listingID domainlisting.ListingID, dr daterange.DateRange) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.anyOverlappingLocked(listingID, dr), nil
}

func (r *BookingRepository) CreateExclusive(ctx context.Context, b *domainbooking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listings != nil && !r.listings.exists(b.ListingID) {
		return domainlisting.ErrNotFound
	}
	if existing := r.findActiveLocked(b.GuestID, b.ListingID, b.Range); existing != nil {
		return domainbooking.ErrDuplicate
	}
	if r.anyOverlappingLocked(b.ListingID, b.Range) {
		return domainbooking.ErrDateConflict
	}
	r.byID[b.ID] = cloneBooking(b)
	return nil
}

func (r *BookingRepository) Update(ctx context.Context, b *domainbooking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[b.ID]; !ok {
		return domainbooking.ErrNotFound
	}
	r.byID[b.ID] = cloneBooking(b)
	return nil
}

func (r *BookingRepository) findActiveLocked(guestID string, listingID domainlisting.ListingID, dr daterange.DateRange) *domainbooking.Booking {
	for _, b := range r.byID {
		if b.GuestID == guestID && b.ListingID == listingID && b.Active() &&
			b.Range.CheckIn.Equal(dr.CheckIn) && b.Range.CheckOut.Equal(dr.CheckOut) {
			return b
		}
	}
	return nil
}

func (r *BookingRepository) anyOverlappingLocked(listingID domainlisting.ListingID, dr daterange.DateRange) bool {
	for _, b := range r.byID {
		if b.ListingID == listingID && b.Active() && b.Range.Overlaps(dr) {
			return true
		}
	}
	return false
}

func statusIn(s domainbooking.Status, set []domainbooking.Status) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}

func sortBookings(bs []*domainbooking.Booking) {
	sort.Slice(bs, func(i, j int) bool { return bs[i].ID < bs[j].ID })
}

func cloneBooking(b *domainbooking.Booking) *domainbooking.Booking {
	if b == nil {
		return nil
	}
	copyBooking := *b
	return &copyBooking
}
