package listings_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayfinder/internal/app/policies"
	"stayfinder/internal/app/services/listings"
	domainbooking "stayfinder/internal/domain/booking"
	domainlisting "stayfinder/internal/domain/listing"
	"stayfinder/internal/domain/shared/daterange"
	"stayfinder/internal/infra/storage/memory"
)

const hostID = domainlisting.HostID("host-1")

type fakePayments struct {
	refunds    []string
	failIntent string
}

func (f *fakePayments) CreateCheckoutSession(context.Context, policies.CheckoutParams) (policies.CheckoutSession, error) {
	return policies.CheckoutSession{}, policies.ErrPaymentsUnavailable
}

func (f *fakePayments) Refund(_ context.Context, paymentIntentID string) error {
	if paymentIntentID == f.failIntent {
		return errors.New("refund rejected")
	}
	f.refunds = append(f.refunds, paymentIntentID)
	return nil
}

type fakeMedia struct {
	uploads int
	err     error
}

func (f *fakeMedia) UploadBase64(_ context.Context, key, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.uploads++
	return "https://cdn.example/" + key, nil
}

type fixture struct {
	service  *listings.Service
	listings *memory.ListingRepository
	bookings *memory.BookingRepository
	payments *fakePayments
	media    *fakeMedia
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	listingRepo := memory.NewListingRepository()
	bookingRepo := memory.NewBookingRepository(listingRepo)
	payments := &fakePayments{}
	media := &fakeMedia{}
	return &fixture{
		service: &listings.Service{
			Listings: listingRepo,
			Bookings: bookingRepo,
			Payments: payments,
			Media:    media,
			Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		},
		listings: listingRepo,
		bookings: bookingRepo,
		payments: payments,
		media:    media,
	}
}

func createParams() listings.CreateParams {
	return listings.CreateParams{
		Title:        "Hilltop Cabin",
		Description:  "Quiet cabin with a view",
		Address:      "7 Ridge Lane",
		City:         "Manali",
		State:        "HP",
		Country:      "India",
		Price:        1500,
		Bedrooms:     1,
		Bathrooms:    1,
		PropertyType: "Cabin",
		Images:       []string{"data:image/jpeg;base64,aGVsbG8="},
		HostPhone:    "9876543210",
	}
}

func (f *fixture) createListing(t *testing.T) *domainlisting.Listing {
	t.Helper()
	l, err := f.service.Create(context.Background(), hostID, createParams())
	require.NoError(t, err)
	return l
}

func (f *fixture) confirmBooking(t *testing.T, l *domainlisting.Listing, id, intent string, dayOffset int) *domainbooking.Booking {
	t.Helper()
	dr, err := daterange.New(
		time.Date(2026, 6, 1+dayOffset, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 6, 4+dayOffset, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	b, err := domainbooking.NewConfirmed(domainbooking.ConfirmParams{
		ID:              domainbooking.BookingID(id),
		GuestID:         "guest-" + id,
		ListingID:       l.ID,
		Phone:           "9876543210",
		TotalPrice:      4500,
		Range:           dr,
		PaymentIntentID: intent,
		Now:             time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, f.bookings.CreateExclusive(context.Background(), b))
	return b
}

func TestCreateUploadsImagesAndPersists(t *testing.T) {
	f := newFixture(t)
	l := f.createListing(t)

	assert.Equal(t, 1, f.media.uploads)
	require.Len(t, l.Images, 1)
	assert.Contains(t, l.Images[0], "https://cdn.example/listings/host_host-1/")
	assert.Equal(t, domainlisting.PropertyCabin, l.PropertyType)

	stored, err := f.listings.ByID(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.Title, stored.Title)
}

func TestCreateFailsWhenUploadFails(t *testing.T) {
	f := newFixture(t)
	f.media.err = errors.New("bucket unavailable")

	_, err := f.service.Create(context.Background(), hostID, createParams())
	require.Error(t, err)

	all, err := f.listings.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestUpdateRequiresOwnership(t *testing.T) {
	f := newFixture(t)
	l := f.createListing(t)

	title := "Renamed"
	_, err := f.service.Update(context.Background(), l.ID, "host-2", listings.UpdateParams{
		Fields: domainlisting.UpdateParams{Title: &title},
	})
	require.ErrorIs(t, err, domainlisting.ErrNotOwner)
}

func TestUpdateRejectsImageOverflowBeforeUploading(t *testing.T) {
	f := newFixture(t)
	l := f.createListing(t)

	batch := make([]string, domainlisting.MaxImages)
	for i := range batch {
		batch[i] = fmt.Sprintf("data:image/jpeg;base64,aW1nJWQ=%d", i)
	}
	uploadsBefore := f.media.uploads
	_, err := f.service.Update(context.Background(), l.ID, hostID, listings.UpdateParams{Images: batch})
	require.ErrorIs(t, err, domainlisting.ErrTooManyImages)
	assert.Equal(t, uploadsBefore, f.media.uploads, "no uploads for a request that cannot fit")
}

func TestDeleteRefundsConfirmedBookingsThenRemovesListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.createListing(t)
	b1 := f.confirmBooking(t, l, "b1", "pi_1", 0)
	b2 := f.confirmBooking(t, l, "b2", "pi_2", 10)

	outcomes, err := f.service.Delete(ctx, l.ID, hostID)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.True(t, o.Refunded, "booking %s", o.BookingID)
	}
	assert.ElementsMatch(t, []string{"pi_1", "pi_2"}, f.payments.refunds)

	_, err = f.listings.ByID(ctx, l.ID)
	require.ErrorIs(t, err, domainlisting.ErrNotFound)

	for _, id := range []domainbooking.BookingID{b1.ID, b2.ID} {
		got, err := f.bookings.ByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domainbooking.StatusCancelled, got.Status)
	}
}

func TestDeleteContinuesPastFailedRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.createListing(t)
	failed := f.confirmBooking(t, l, "b1", "pi_bad", 0)
	f.confirmBooking(t, l, "b2", "pi_good", 10)
	f.payments.failIntent = "pi_bad"

	outcomes, err := f.service.Delete(ctx, l.ID, hostID)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	byID := make(map[string]listings.RefundOutcome, len(outcomes))
	for _, o := range outcomes {
		byID[o.BookingID] = o
	}
	assert.False(t, byID["b1"].Refunded)
	assert.NotEmpty(t, byID["b1"].Error)
	assert.True(t, byID["b2"].Refunded)

	// The listing is removed regardless of the failed refund.
	_, err = f.listings.ByID(ctx, l.ID)
	require.ErrorIs(t, err, domainlisting.ErrNotFound)

	// The unrefunded booking stays confirmed for manual follow-up.
	kept, err := f.bookings.ByID(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusConfirmed, kept.Status)
}

func TestDeleteRequiresOwnership(t *testing.T) {
	f := newFixture(t)
	l := f.createListing(t)

	_, err := f.service.Delete(context.Background(), l.ID, "host-2")
	require.ErrorIs(t, err, domainlisting.ErrNotOwner)

	_, err = f.listings.ByID(context.Background(), l.ID)
	require.NoError(t, err)
}

func TestSearchFiltersByDateAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.createListing(t)
	f.confirmBooking(t, l, "b1", "pi_1", 0) // June 1-4

	checkIn := time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)
	checkOut := time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC)
	found, err := f.service.Search(ctx, listings.SearchParams{CheckIn: &checkIn, CheckOut: &checkOut})
	require.NoError(t, err)
	assert.Empty(t, found, "booked dates hide the listing")

	// Back-to-back with the existing stay: available.
	checkIn = time.Date(2026, 6, 4, 0, 0, 0, 0, time.UTC)
	checkOut = time.Date(2026, 6, 6, 0, 0, 0, 0, time.UTC)
	found, err = f.service.Search(ctx, listings.SearchParams{CheckIn: &checkIn, CheckOut: &checkOut})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	// Location filter still applies.
	found, err = f.service.Search(ctx, listings.SearchParams{Location: "manali"})
	require.NoError(t, err)
	assert.Len(t, found, 1)
	found, err = f.service.Search(ctx, listings.SearchParams{Location: "goa"})
	require.NoError(t, err)
	assert.Empty(t, found)
}
