package policies_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayfinder/internal/app/policies"
)

func TestBookingIntentSurvivesMetadataTransit(t *testing.T) {
	intent := policies.BookingIntent{
		GuestID:    "guest-1",
		ListingID:  "listing-1",
		Phone:      "9876543210",
		CheckIn:    time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:   time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC),
		TotalPrice: 10000,
	}
	parsed, err := policies.ParseBookingIntent(intent.Metadata())
	require.NoError(t, err)
	assert.Equal(t, intent, parsed)
}

func TestParseBookingIntentRejectsBadMetadata(t *testing.T) {
	valid := policies.BookingIntent{
		GuestID:    "guest-1",
		ListingID:  "listing-1",
		Phone:      "9876543210",
		CheckIn:    time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:   time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC),
		TotalPrice: 10000,
	}

	cases := []struct {
		name   string
		mutate func(map[string]string)
	}{
		{"missing guest", func(m map[string]string) { delete(m, "guest_id") }},
		{"missing listing", func(m map[string]string) { delete(m, "listing_id") }},
		{"garbled check_in", func(m map[string]string) { m["check_in"] = "not-a-date" }},
		{"inverted range", func(m map[string]string) { m["check_out"] = m["check_in"] }},
		{"garbled total", func(m map[string]string) { m["total_price"] = "lots" }},
		{"negative total", func(m map[string]string) { m["total_price"] = "-5" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			meta := valid.Metadata()
			tc.mutate(meta)
			_, err := policies.ParseBookingIntent(meta)
			require.ErrorIs(t, err, policies.ErrMalformedIntent)
		})
	}
}
