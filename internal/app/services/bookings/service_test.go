package bookings_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayfinder/internal/app/policies"
	"stayfinder/internal/app/services/bookings"
	domainbooking "stayfinder/internal/domain/booking"
	domainlisting "stayfinder/internal/domain/listing"
	"stayfinder/internal/infra/storage/memory"
)

const (
	guestID   = "guest-1"
	hostPhone = "9876543210"
)

var (
	checkIn  = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	checkOut = time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
)

type fakePayments struct {
	sessions   []policies.CheckoutParams
	sessionErr error
	refunds    []string
	refundErr  error
}

func (f *fakePayments) CreateCheckoutSession(_ context.Context, params policies.CheckoutParams) (policies.CheckoutSession, error) {
	if f.sessionErr != nil {
		return policies.CheckoutSession{}, f.sessionErr
	}
	f.sessions = append(f.sessions, params)
	return policies.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.example/cs_test_1"}, nil
}

func (f *fakePayments) Refund(_ context.Context, paymentIntentID string) error {
	if f.refundErr != nil {
		return f.refundErr
	}
	f.refunds = append(f.refunds, paymentIntentID)
	return nil
}

// fakeVerifier accepts deliveries signed with its secret and rejects
// everything else, standing in for HMAC verification.
type fakeVerifier struct {
	secret string
	event  policies.PaymentEvent
}

func (f *fakeVerifier) VerifyEvent(_ []byte, signatureHeader string) (policies.PaymentEvent, error) {
	if signatureHeader != f.secret {
		return policies.PaymentEvent{}, errors.New("signature mismatch")
	}
	return f.event, nil
}

type failingBookingRepo struct {
	domainbooking.Repository
}

func (failingBookingRepo) CreateExclusive(context.Context, *domainbooking.Booking) error {
	return errors.New("write timeout")
}

type recordingPublisher struct {
	events []string
}

func (r *recordingPublisher) Publish(_ context.Context, eventName, _ string, _ any) error {
	r.events = append(r.events, eventName)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	service  *bookings.Service
	listings *memory.ListingRepository
	bookings *memory.BookingRepository
	payments *fakePayments
	verifier *fakeVerifier
	events   *recordingPublisher
	listing  *domainlisting.Listing
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	listings := memory.NewListingRepository()
	bookingRepo := memory.NewBookingRepository(listings)
	payments := &fakePayments{}
	verifier := &fakeVerifier{secret: "whsec_test"}
	events := &recordingPublisher{}

	l, err := domainlisting.New(domainlisting.CreateParams{
		ID:        "listing-1",
		Host:      "host-1",
		Title:     "City Loft",
		Address:   "1 Main St",
		City:      "Mumbai",
		State:     "MH",
		Country:   "India",
		Price:     1000,
		Images:    []string{"https://img/1.jpg"},
		HostPhone: hostPhone,
		Now:       time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, listings.Save(context.Background(), l))

	return &fixture{
		service: &bookings.Service{
			Listings: listings,
			Bookings: bookingRepo,
			Payments: payments,
			Verifier: verifier,
			Events:   events,
			Logger:   discardLogger(),
		},
		listings: listings,
		bookings: bookingRepo,
		payments: payments,
		verifier: verifier,
		events:   events,
		listing:  l,
	}
}

func checkoutParams() bookings.CheckoutParams {
	return bookings.CheckoutParams{
		GuestID:   guestID,
		ListingID: "listing-1",
		Phone:     hostPhone,
		CheckIn:   checkIn,
		CheckOut:  checkOut,
	}
}

func completedEvent(intent policies.BookingIntent) policies.PaymentEvent {
	return policies.PaymentEvent{
		Kind:            policies.EventCheckoutCompleted,
		SessionID:       "cs_test_1",
		PaymentIntentID: "pi_test_1",
		Metadata:        intent.Metadata(),
	}
}

func defaultIntent() policies.BookingIntent {
	return policies.BookingIntent{
		GuestID:    guestID,
		ListingID:  "listing-1",
		Phone:      hostPhone,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		TotalPrice: 3000,
	}
}

func TestCreateCheckoutSessionPricesNightsTimesRate(t *testing.T) {
	f := newFixture(t)

	session, err := f.service.CreateCheckoutSession(context.Background(), checkoutParams())
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", session.ID)
	assert.NotEmpty(t, session.URL)

	require.Len(t, f.payments.sessions, 1)
	sent := f.payments.sessions[0]
	// 3 nights at 1000 per night, charged in the smallest currency unit.
	assert.Equal(t, int64(300000), sent.AmountCents)
	assert.Equal(t, int64(3000), sent.Intent.TotalPrice)
	assert.Equal(t, guestID, sent.Intent.GuestID)
	assert.Equal(t, "listing-1", sent.Intent.ListingID)

	// Nothing is persisted until the payment event arrives.
	found, err := f.bookings.ListByGuest(context.Background(), guestID)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestCreateCheckoutSessionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	params := checkoutParams()
	params.GuestID = ""
	_, err := f.service.CreateCheckoutSession(ctx, params)
	require.ErrorIs(t, err, domainbooking.ErrGuestRequired)

	params = checkoutParams()
	params.Phone = "123"
	_, err = f.service.CreateCheckoutSession(ctx, params)
	require.ErrorIs(t, err, domainbooking.ErrInvalidPhone)

	params = checkoutParams()
	params.ListingID = "missing"
	_, err = f.service.CreateCheckoutSession(ctx, params)
	require.ErrorIs(t, err, domainlisting.ErrNotFound)

	assert.Empty(t, f.payments.sessions)
}

func TestCreateCheckoutSessionRejectsConflictingDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.verifier.event = completedEvent(defaultIntent())
	require.NoError(t, f.service.HandlePaymentEvent(ctx, []byte("{}"), "whsec_test"))

	// Same guest, same dates: duplicate.
	_, err := f.service.CreateCheckoutSession(ctx, checkoutParams())
	require.ErrorIs(t, err, domainbooking.ErrDuplicate)

	// Different guest, overlapping dates: conflict.
	params := checkoutParams()
	params.GuestID = "guest-2"
	params.CheckIn = checkIn.AddDate(0, 0, 1)
	params.CheckOut = checkOut.AddDate(0, 0, 1)
	_, err = f.service.CreateCheckoutSession(ctx, params)
	require.ErrorIs(t, err, domainbooking.ErrDateConflict)

	// Back-to-back is allowed.
	params = checkoutParams()
	params.GuestID = "guest-2"
	params.CheckIn = checkOut
	params.CheckOut = checkOut.AddDate(0, 0, 2)
	_, err = f.service.CreateCheckoutSession(ctx, params)
	require.NoError(t, err)
}

func TestCreateCheckoutSessionWrapsProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.payments.sessionErr = errors.New("stripe is down")

	_, err := f.service.CreateCheckoutSession(context.Background(), checkoutParams())
	require.ErrorIs(t, err, policies.ErrPaymentsUnavailable)
}

func TestHandlePaymentEventMaterializesConfirmedBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.verifier.event = completedEvent(defaultIntent())

	require.NoError(t, f.service.HandlePaymentEvent(ctx, []byte("{}"), "whsec_test"))

	found, err := f.bookings.ListByGuest(ctx, guestID)
	require.NoError(t, err)
	require.Len(t, found, 1)
	b := found[0]
	assert.Equal(t, domainbooking.StatusConfirmed, b.Status)
	assert.Equal(t, int64(3000), b.TotalPrice)
	assert.Equal(t, "cs_test_1", b.PaymentSessionID)
	assert.Equal(t, "pi_test_1", b.PaymentIntentID)
	assert.Equal(t, []string{"booking.confirmed"}, f.events.events)
}

func TestHandlePaymentEventIsIdempotentOnRedelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.verifier.event = completedEvent(defaultIntent())

	require.NoError(t, f.service.HandlePaymentEvent(ctx, []byte("{}"), "whsec_test"))
	require.NoError(t, f.service.HandlePaymentEvent(ctx, []byte("{}"), "whsec_test"))

	found, err := f.bookings.ListByGuest(ctx, guestID)
	require.NoError(t, err)
	assert.Len(t, found, 1)
	assert.Equal(t, []string{"booking.confirmed"}, f.events.events)
}

func TestHandlePaymentEventRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.verifier.event = completedEvent(defaultIntent())

	err := f.service.HandlePaymentEvent(ctx, []byte("{}"), "wrong-secret")
	require.ErrorIs(t, err, policies.ErrInvalidSignature)

	found, err := f.bookings.ListByGuest(ctx, guestID)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestHandlePaymentEventIgnoresOtherKinds(t *testing.T) {
	f := newFixture(t)
	f.verifier.event = policies.PaymentEvent{Kind: "payment_intent.created"}

	require.NoError(t, f.service.HandlePaymentEvent(context.Background(), []byte("{}"), "whsec_test"))

	found, err := f.bookings.ListByGuest(context.Background(), guestID)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestHandlePaymentEventAcksUnusableMetadata(t *testing.T) {
	f := newFixture(t)
	event := completedEvent(defaultIntent())
	delete(event.Metadata, "listing_id")
	f.verifier.event = event

	// Verified but unusable: acknowledged so the processor stops redelivering.
	require.NoError(t, f.service.HandlePaymentEvent(context.Background(), []byte("{}"), "whsec_test"))

	found, err := f.bookings.ListByGuest(context.Background(), guestID)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestHandlePaymentEventAcksWhenDatesTakenMeanwhile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Another guest's payment completed first for overlapping dates.
	other := defaultIntent()
	other.GuestID = "guest-2"
	f.verifier.event = completedEvent(other)
	require.NoError(t, f.service.HandlePaymentEvent(ctx, []byte("{}"), "whsec_test"))

	event := completedEvent(defaultIntent())
	event.SessionID = "cs_test_2"
	event.PaymentIntentID = "pi_test_2"
	f.verifier.event = event
	require.NoError(t, f.service.HandlePaymentEvent(ctx, []byte("{}"), "whsec_test"))

	found, err := f.bookings.ListByGuest(ctx, guestID)
	require.NoError(t, err)
	assert.Empty(t, found, "second completion must not double book")
}

func TestHandlePaymentEventAcksPersistenceFailure(t *testing.T) {
	f := newFixture(t)
	f.service.Bookings = failingBookingRepo{Repository: f.bookings}
	f.verifier.event = completedEvent(defaultIntent())

	require.NoError(t, f.service.HandlePaymentEvent(context.Background(), []byte("{}"), "whsec_test"))
}

func confirmBooking(t *testing.T, f *fixture) *domainbooking.Booking {
	t.Helper()
	ctx := context.Background()
	f.verifier.event = completedEvent(defaultIntent())
	require.NoError(t, f.service.HandlePaymentEvent(ctx, []byte("{}"), "whsec_test"))
	found, err := f.bookings.ListByGuest(ctx, guestID)
	require.NoError(t, err)
	require.Len(t, found, 1)
	return found[0]
}

func TestCancelRefundsThenTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := confirmBooking(t, f)

	require.NoError(t, f.service.Cancel(ctx, b.ID, guestID))

	assert.Equal(t, []string{"pi_test_1"}, f.payments.refunds)
	updated, err := f.bookings.ByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusCancelled, updated.Status)
	assert.Contains(t, f.events.events, "booking.cancelled")
}

func TestCancelKeepsBookingConfirmedWhenRefundFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := confirmBooking(t, f)
	f.payments.refundErr = errors.New("refund rejected")

	err := f.service.Cancel(ctx, b.ID, guestID)
	require.ErrorIs(t, err, policies.ErrPaymentsUnavailable)

	updated, err := f.bookings.ByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusConfirmed, updated.Status, "no partial transition on refund failure")
}

func TestCancelAuthorizationAndState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := confirmBooking(t, f)

	require.ErrorIs(t, f.service.Cancel(ctx, b.ID, "guest-2"), domainbooking.ErrNotOwner)
	require.ErrorIs(t, f.service.Cancel(ctx, "missing", guestID), domainbooking.ErrNotFound)

	require.NoError(t, f.service.Cancel(ctx, b.ID, guestID))
	require.ErrorIs(t, f.service.Cancel(ctx, b.ID, guestID), domainbooking.ErrInvalidState)
	assert.Len(t, f.payments.refunds, 1, "no second refund for an already cancelled booking")
}

func TestListForGuestHidesSoftDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := confirmBooking(t, f)

	require.NoError(t, f.service.MarkDeleted(ctx, b.ID, guestID))

	visible, err := f.service.ListForGuest(ctx, guestID)
	require.NoError(t, err)
	assert.Empty(t, visible)

	// The record itself survives.
	kept, err := f.bookings.ByID(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, kept.IsDeleted)
	assert.Equal(t, domainbooking.StatusConfirmed, kept.Status)
}

func TestGetEnforcesOwnership(t *testing.T) {
	f := newFixture(t)
	b := confirmBooking(t, f)

	_, err := f.service.Get(context.Background(), b.ID, "guest-2")
	require.ErrorIs(t, err, domainbooking.ErrNotOwner)

	got, err := f.service.Get(context.Background(), b.ID, guestID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
}
