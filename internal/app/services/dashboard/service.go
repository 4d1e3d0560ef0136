package dashboard

import (
	"context"

	domainbooking "stayfinder/internal/domain/booking"
	domainlisting "stayfinder/internal/domain/listing"
)

// Service derives host statistics from current store state on every
// request. Pure read-side rollup, no caching.
type Service struct {
	Listings domainlisting.Repository
	Bookings domainbooking.Repository
}

type Stats struct {
	TotalListings     int   `json:"total_listings"`
	ActiveListings    int   `json:"active_listings"`
	TotalBookings     int   `json:"total_bookings"`
	TotalEarnings     int64 `json:"total_earnings"`
	CancelledBookings int   `json:"cancelled_bookings"`
}

func (s *Service) Stats(ctx context.Context, hostID domainlisting.HostID) (Stats, error) {
	hosted, err := s.Listings.ByHost(ctx, hostID)
	if err != nil {
		return Stats{}, err
	}
	ids := make([]domainlisting.ListingID, 0, len(hosted))
	for _, l := range hosted {
		ids = append(ids, l.ID)
	}
	bookings, err := s.Bookings.ListByListings(ctx, ids)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		TotalListings:  len(hosted),
		ActiveListings: len(hosted),
		TotalBookings:  len(bookings),
	}
	for _, b := range bookings {
		switch b.Status {
		case domainbooking.StatusConfirmed:
			stats.TotalEarnings += b.TotalPrice
		case domainbooking.StatusCancelled:
			stats.CancelledBookings++
		}
	}
	return stats, nil
}
