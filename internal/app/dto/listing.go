package dto

import (
	"time"

	domainlisting "stayfinder/internal/domain/listing"
)

type ListingSummary struct {
	ID            string    `json:"id"`
	Host          string    `json:"host"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Address       string    `json:"address"`
	City          string    `json:"city"`
	State         string    `json:"state"`
	Country       string    `json:"country"`
	PricePerNight int64     `json:"price_per_night"`
	Bedrooms      int       `json:"bedrooms"`
	Bathrooms     int       `json:"bathrooms"`
	PropertyType  string    `json:"property_type"`
	Images        []string  `json:"images"`
	Amenities     []string  `json:"amenities"`
	HostPhone     string    `json:"host_phone"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ListingCollection struct {
	Items []ListingSummary `json:"items"`
}

func MapListingSummary(l *domainlisting.Listing) ListingSummary {
	if l == nil {
		return ListingSummary{}
	}
	return ListingSummary{
		ID:            string(l.ID),
		Host:          string(l.Host),
		Title:         l.Title,
		Description:   l.Description,
		Address:       l.Address,
		City:          l.City,
		State:         l.State,
		Country:       l.Country,
		PricePerNight: l.PricePerNight,
		Bedrooms:      l.Bedrooms,
		Bathrooms:     l.Bathrooms,
		PropertyType:  string(l.PropertyType),
		Images:        append([]string(nil), l.Images...),
		Amenities:     append([]string(nil), l.Amenities...),
		HostPhone:     l.HostPhone,
		CreatedAt:     l.CreatedAt,
		UpdatedAt:     l.UpdatedAt,
	}
}

func MapListingCollection(ls []*domainlisting.Listing) ListingCollection {
	items := make([]ListingSummary, 0, len(ls))
	for _, l := range ls {
		items = append(items, MapListingSummary(l))
	}
	return ListingCollection{Items: items}
}
