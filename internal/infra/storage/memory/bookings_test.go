package memory_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainbooking "stayfinder/internal/domain/booking"
	domainlisting "stayfinder/internal/domain/listing"
	"stayfinder/internal/domain/shared/daterange"
	"stayfinder/internal/infra/storage/memory"
)

func seedListing(t *testing.T, repo *memory.ListingRepository) *domainlisting.Listing {
	t.Helper()
	l, err := domainlisting.New(domainlisting.CreateParams{
		ID:        "listing-1",
		Host:      "host-1",
		Title:     "Test Listing",
		Address:   "1 Main St",
		City:      "Delhi",
		State:     "DL",
		Country:   "India",
		Price:     1000,
		Images:    []string{"https://img/1.jpg"},
		HostPhone: "9876543210",
		Now:       time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), l))
	return l
}

func newBooking(t *testing.T, id, guest string, listingID domainlisting.ListingID, inDay, outDay int) *domainbooking.Booking {
	t.Helper()
	dr, err := daterange.New(
		time.Date(2026, 8, inDay, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 8, outDay, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	b, err := domainbooking.NewConfirmed(domainbooking.ConfirmParams{
		ID:              domainbooking.BookingID(id),
		GuestID:         guest,
		ListingID:       listingID,
		Phone:           "9876543210",
		TotalPrice:      1000,
		Range:           dr,
		PaymentIntentID: "pi_" + id,
		Now:             time.Now(),
	})
	require.NoError(t, err)
	return b
}

func TestCreateExclusiveRejectsOverlapAndDuplicate(t *testing.T) {
	listings := memory.NewListingRepository()
	repo := memory.NewBookingRepository(listings)
	l := seedListing(t, listings)
	ctx := context.Background()

	require.NoError(t, repo.CreateExclusive(ctx, newBooking(t, "b1", "guest-1", l.ID, 1, 4)))

	err := repo.CreateExclusive(ctx, newBooking(t, "b2", "guest-2", l.ID, 2, 5))
	require.ErrorIs(t, err, domainbooking.ErrDateConflict)

	err = repo.CreateExclusive(ctx, newBooking(t, "b3", "guest-1", l.ID, 1, 4))
	require.ErrorIs(t, err, domainbooking.ErrDuplicate)

	// Back-to-back insert succeeds.
	require.NoError(t, repo.CreateExclusive(ctx, newBooking(t, "b4", "guest-2", l.ID, 4, 6)))

	err = repo.CreateExclusive(ctx, newBooking(t, "b5", "guest-2", "missing", 10, 12))
	require.ErrorIs(t, err, domainlisting.ErrNotFound)
}

func TestCreateExclusiveCancelledBookingsFreeDates(t *testing.T) {
	listings := memory.NewListingRepository()
	repo := memory.NewBookingRepository(listings)
	l := seedListing(t, listings)
	ctx := context.Background()

	b := newBooking(t, "b1", "guest-1", l.ID, 1, 4)
	require.NoError(t, repo.CreateExclusive(ctx, b))
	require.NoError(t, b.Cancel(time.Now()))
	require.NoError(t, repo.Update(ctx, b))

	require.NoError(t, repo.CreateExclusive(ctx, newBooking(t, "b2", "guest-2", l.ID, 2, 5)))
}

// Many goroutines race to confirm overlapping stays; exactly one insert may
// win. This is the serialization the payment reconciler depends on.
func TestCreateExclusiveSerializesConcurrentConfirmations(t *testing.T) {
	listings := memory.NewListingRepository()
	repo := memory.NewBookingRepository(listings)
	l := seedListing(t, listings)

	const attempts = 32
	candidates := make([]*domainbooking.Booking, attempts)
	for i := range candidates {
		candidates[i] = newBooking(t, fmt.Sprintf("b%d", i), fmt.Sprintf("guest-%d", i), l.ID, 10, 14)
	}

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.CreateExclusive(context.Background(), candidates[i])
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			require.True(t, errors.Is(err, domainbooking.ErrDateConflict), "unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)

	taken, err := repo.AnyOverlapping(context.Background(), l.ID, mustRange(t, 10, 14))
	require.NoError(t, err)
	assert.True(t, taken)
}

func mustRange(t *testing.T, inDay, outDay int) daterange.DateRange {
	t.Helper()
	dr, err := daterange.New(
		time.Date(2026, 8, inDay, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 8, outDay, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	return dr
}
