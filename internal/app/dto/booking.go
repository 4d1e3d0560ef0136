package dto

import (
	"time"

	domainbooking "stayfinder/internal/domain/booking"
)

type BookingSummary struct {
	ID         string    `json:"id"`
	ListingID  string    `json:"listing_id"`
	GuestID    string    `json:"guest_id"`
	Phone      string    `json:"phone"`
	CheckIn    time.Time `json:"check_in"`
	CheckOut   time.Time `json:"check_out"`
	TotalPrice int64     `json:"total_price"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type BookingCollection struct {
	Items []BookingSummary `json:"items"`
}

func MapBookingSummary(b *domainbooking.Booking) BookingSummary {
	if b == nil {
		return BookingSummary{}
	}
	return BookingSummary{
		ID:         string(b.ID),
		ListingID:  string(b.ListingID),
		GuestID:    b.GuestID,
		Phone:      b.Phone,
		CheckIn:    b.Range.CheckIn,
		CheckOut:   b.Range.CheckOut,
		TotalPrice: b.TotalPrice,
		Status:     string(b.Status),
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

func MapBookingCollection(bs []*domainbooking.Booking) BookingCollection {
	items := make([]BookingSummary, 0, len(bs))
	for _, b := range bs {
		items = append(items, MapBookingSummary(b))
	}
	return BookingCollection{Items: items}
}
