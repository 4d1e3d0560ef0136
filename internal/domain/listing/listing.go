package listing

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound        = errors.New("listing: not found")
	ErrTitleRequired   = errors.New("listing: title is required")
	ErrHostRequired    = errors.New("listing: host is required")
	ErrNegativePrice   = errors.New("listing: price per night must be non-negative")
	ErrInvalidPhone    = errors.New("listing: host contact must be a ten digit number")
	ErrImagesRequired  = errors.New("listing: at least one image is required")
	ErrTooManyImages   = errors.New("listing: image limit exceeded")
	ErrAddressRequired = errors.New("listing: address, city, state and country are required")
	ErrNotOwner        = errors.New("listing: caller does not own this listing")
)

// MaxImages caps the gallery size per listing.
const MaxImages = 10

type ListingID string
type HostID string

type PropertyType string

const (
	PropertyApartment PropertyType = "Apartment"
	PropertyHouse     PropertyType = "House"
	PropertyVilla     PropertyType = "Villa"
	PropertyCabin     PropertyType = "Cabin"
)

type Listing struct {
	ID            ListingID
	Host          HostID
	Title         string
	Description   string
	Address       string
	City          string
	State         string
	Country       string
	PricePerNight int64
	Bedrooms      int
	Bathrooms     int
	PropertyType  PropertyType
	Images        []string
	Amenities     []string
	HostPhone     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Repository interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
	ByHost(ctx context.Context, host HostID) ([]*Listing, error)
	All(ctx context.Context) ([]*Listing, error)
	Search(ctx context.Context, params SearchParams) ([]*Listing, error)
	Save(ctx context.Context, listing *Listing) error
	Delete(ctx context.Context, id ListingID) error
}

// SearchParams filters by a case-insensitive location substring and an
// optional price window. Date availability is layered on top by the caller.
type SearchParams struct {
	Location string
	PriceMin *int64
	PriceMax *int64
}

type CreateParams struct {
	ID           ListingID
	Host         HostID
	Title        string
	Description  string
	Address      string
	City         string
	State        string
	Country      string
	Price        int64
	Bedrooms     int
	Bathrooms    int
	PropertyType PropertyType
	Images       []string
	Amenities    []string
	HostPhone    string
	Now          time.Time
}

func New(params CreateParams) (*Listing, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("listing: id is required")
	}
	if strings.TrimSpace(string(params.Host)) == "" {
		return nil, ErrHostRequired
	}
	if strings.TrimSpace(params.Title) == "" {
		return nil, ErrTitleRequired
	}
	if params.Price < 0 {
		return nil, ErrNegativePrice
	}
	if !validAddress(params.Address, params.City, params.State, params.Country) {
		return nil, ErrAddressRequired
	}
	if !ValidPhone(params.HostPhone) {
		return nil, ErrInvalidPhone
	}
	if len(params.Images) == 0 {
		return nil, ErrImagesRequired
	}
	if len(params.Images) > MaxImages {
		return nil, ErrTooManyImages
	}
	now := params.Now.UTC()
	return &Listing{
		ID:            params.ID,
		Host:          params.Host,
		Title:         strings.TrimSpace(params.Title),
		Description:   strings.TrimSpace(params.Description),
		Address:       strings.TrimSpace(params.Address),
		City:          strings.TrimSpace(params.City),
		State:         strings.TrimSpace(params.State),
		Country:       strings.TrimSpace(params.Country),
		PricePerNight: params.Price,
		Bedrooms:      params.Bedrooms,
		Bathrooms:     params.Bathrooms,
		PropertyType:  normalizePropertyType(params.PropertyType),
		Images:        append([]string(nil), params.Images...),
		Amenities:     append([]string(nil), params.Amenities...),
		HostPhone:     params.HostPhone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// UpdateParams carries optional field changes; nil pointers leave the
// current value untouched.
type UpdateParams struct {
	Title        *string
	Description  *string
	Address      *string
	City         *string
	State        *string
	Country      *string
	Price        *int64
	Bedrooms     *int
	Bathrooms    *int
	PropertyType *PropertyType
	Amenities    []string
	HostPhone    *string
}

func (l *Listing) ApplyUpdate(params UpdateParams, now time.Time) error {
	if params.Title != nil {
		if strings.TrimSpace(*params.Title) == "" {
			return ErrTitleRequired
		}
		l.Title = strings.TrimSpace(*params.Title)
	}
	if params.Price != nil {
		if *params.Price < 0 {
			return ErrNegativePrice
		}
		l.PricePerNight = *params.Price
	}
	if params.HostPhone != nil {
		if !ValidPhone(*params.HostPhone) {
			return ErrInvalidPhone
		}
		l.HostPhone = *params.HostPhone
	}
	if params.Description != nil {
		l.Description = strings.TrimSpace(*params.Description)
	}
	if params.Address != nil {
		l.Address = strings.TrimSpace(*params.Address)
	}
	if params.City != nil {
		l.City = strings.TrimSpace(*params.City)
	}
	if params.State != nil {
		l.State = strings.TrimSpace(*params.State)
	}
	if params.Country != nil {
		l.Country = strings.TrimSpace(*params.Country)
	}
	if params.PropertyType != nil {
		l.PropertyType = normalizePropertyType(*params.PropertyType)
	}
	if params.Amenities != nil {
		l.Amenities = append([]string(nil), params.Amenities...)
	}
	l.UpdatedAt = now.UTC()
	return nil
}

// AddImages appends new gallery URLs, skipping duplicates and enforcing the cap.
func (l *Listing) AddImages(urls []string, now time.Time) error {
	if len(urls) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(l.Images))
	for _, img := range l.Images {
		seen[img] = struct{}{}
	}
	merged := append([]string(nil), l.Images...)
	for _, url := range urls {
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		merged = append(merged, url)
	}
	if len(merged) > MaxImages {
		return ErrTooManyImages
	}
	l.Images = merged
	l.UpdatedAt = now.UTC()
	return nil
}

func (l *Listing) OwnedBy(host HostID) bool {
	return l.Host == host
}

func ValidPhone(phone string) bool {
	if len(phone) != 10 {
		return false
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func validAddress(address, city, state, country string) bool {
	return strings.TrimSpace(address) != "" && strings.TrimSpace(city) != "" &&
		strings.TrimSpace(state) != "" && strings.TrimSpace(country) != ""
}

func normalizePropertyType(pt PropertyType) PropertyType {
	switch pt {
	case PropertyApartment, PropertyHouse, PropertyVilla, PropertyCabin:
		return pt
	default:
		return PropertyApartment
	}
}
