package listings

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"stayfinder/internal/app/policies"
	domainbooking "stayfinder/internal/domain/booking"
	domainlisting "stayfinder/internal/domain/listing"
	"stayfinder/internal/domain/shared/daterange"
)

// Service covers host-facing listing management, including the best-effort
// refund cascade that runs before a listing is removed.
type Service struct {
	Listings domainlisting.Repository
	Bookings domainbooking.Repository
	Payments policies.PaymentsPort
	Media    policies.MediaStore
	Logger   *slog.Logger
	Now      func() time.Time
}

type CreateParams struct {
	Title        string
	Description  string
	Address      string
	City         string
	State        string
	Country      string
	Price        int64
	Bedrooms     int
	Bathrooms    int
	PropertyType string
	Images       []string
	Amenities    []string
	HostPhone    string
}

// Create uploads the base64-encoded images and persists a new listing owned
// by the host.
func (s *Service) Create(ctx context.Context, hostID domainlisting.HostID, params CreateParams) (*domainlisting.Listing, error) {
	if len(params.Images) == 0 {
		return nil, domainlisting.ErrImagesRequired
	}
	urls, err := s.uploadImages(ctx, hostID, params.Images)
	if err != nil {
		return nil, err
	}
	l, err := domainlisting.New(domainlisting.CreateParams{
		ID:           domainlisting.ListingID(uuid.NewString()),
		Host:         hostID,
		Title:        params.Title,
		Description:  params.Description,
		Address:      params.Address,
		City:         params.City,
		State:        params.State,
		Country:      params.Country,
		Price:        params.Price,
		Bedrooms:     params.Bedrooms,
		Bathrooms:    params.Bathrooms,
		PropertyType: domainlisting.PropertyType(params.PropertyType),
		Images:       urls,
		Amenities:    params.Amenities,
		HostPhone:    params.HostPhone,
		Now:          s.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Listings.Save(ctx, l); err != nil {
		return nil, err
	}
	s.Logger.Info("listing created", "listing_id", l.ID, "host_id", hostID)
	return l, nil
}

type UpdateParams struct {
	Fields domainlisting.UpdateParams
	// Images are appended to the existing gallery, subject to the cap.
	Images []string
}

func (s *Service) Update(ctx context.Context, id domainlisting.ListingID, hostID domainlisting.HostID, params UpdateParams) (*domainlisting.Listing, error) {
	l, err := s.Listings.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !l.OwnedBy(hostID) {
		return nil, domainlisting.ErrNotOwner
	}
	if len(l.Images)+len(params.Images) > domainlisting.MaxImages {
		return nil, domainlisting.ErrTooManyImages
	}
	if err := l.ApplyUpdate(params.Fields, s.now()); err != nil {
		return nil, err
	}
	if len(params.Images) > 0 {
		urls, err := s.uploadImages(ctx, hostID, params.Images)
		if err != nil {
			return nil, err
		}
		if err := l.AddImages(urls, s.now()); err != nil {
			return nil, err
		}
	}
	if err := s.Listings.Save(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// RefundOutcome reports the fate of one confirmed booking during a listing
// deletion cascade. Failed refunds stay confirmed and are surfaced here for
// manual follow-up rather than blocking the deletion.
type RefundOutcome struct {
	BookingID string `json:"booking_id"`
	Refunded  bool   `json:"refunded"`
	Error     string `json:"error,omitempty"`
}

// Delete refunds and cancels every confirmed booking on the listing
// best-effort, then removes the listing regardless of individual outcomes.
func (s *Service) Delete(ctx context.Context, id domainlisting.ListingID, hostID domainlisting.HostID) ([]RefundOutcome, error) {
	l, err := s.Listings.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !l.OwnedBy(hostID) {
		return nil, domainlisting.ErrNotOwner
	}

	confirmed, err := s.Bookings.ListByListing(ctx, id, domainbooking.StatusConfirmed)
	if err != nil {
		return nil, err
	}
	outcomes := make([]RefundOutcome, 0, len(confirmed))
	for _, b := range confirmed {
		outcomes = append(outcomes, s.refundAndCancel(ctx, b))
	}

	if err := s.Listings.Delete(ctx, id); err != nil {
		return outcomes, err
	}
	s.Logger.Info("listing deleted", "listing_id", id, "refunded_bookings", len(outcomes))
	return outcomes, nil
}

func (s *Service) refundAndCancel(ctx context.Context, b *domainbooking.Booking) RefundOutcome {
	outcome := RefundOutcome{BookingID: string(b.ID)}
	if b.PaymentIntentID == "" {
		outcome.Error = domainbooking.ErrPaymentIntentRequired.Error()
		s.Logger.Error("confirmed booking has no payment intent, cannot refund", "booking_id", b.ID)
		return outcome
	}
	if err := s.Payments.Refund(ctx, b.PaymentIntentID); err != nil {
		outcome.Error = err.Error()
		s.Logger.Error("refund failed during listing deletion", "booking_id", b.ID, "error", err)
		return outcome
	}
	if err := b.Cancel(s.now()); err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	if err := s.Bookings.Update(ctx, b); err != nil {
		outcome.Error = err.Error()
		s.Logger.Error("refunded booking could not be marked cancelled", "booking_id", b.ID, "error", err)
		return outcome
	}
	outcome.Refunded = true
	return outcome
}

func (s *Service) Get(ctx context.Context, id domainlisting.ListingID) (*domainlisting.Listing, error) {
	return s.Listings.ByID(ctx, id)
}

func (s *Service) All(ctx context.Context) ([]*domainlisting.Listing, error) {
	return s.Listings.All(ctx)
}

func (s *Service) HostListings(ctx context.Context, hostID domainlisting.HostID) ([]*domainlisting.Listing, error) {
	return s.Listings.ByHost(ctx, hostID)
}

type SearchParams struct {
	Location string
	PriceMin *int64
	PriceMax *int64
	CheckIn  *time.Time
	CheckOut *time.Time
}

// Search filters by location and price, then drops listings with a
// confirmed booking overlapping the requested dates.
func (s *Service) Search(ctx context.Context, params SearchParams) ([]*domainlisting.Listing, error) {
	found, err := s.Listings.Search(ctx, domainlisting.SearchParams{
		Location: params.Location,
		PriceMin: params.PriceMin,
		PriceMax: params.PriceMax,
	})
	if err != nil {
		return nil, err
	}
	if params.CheckIn == nil || params.CheckOut == nil {
		return found, nil
	}
	dr, err := daterange.New(*params.CheckIn, *params.CheckOut)
	if err != nil {
		return nil, err
	}
	available := make([]*domainlisting.Listing, 0, len(found))
	for _, l := range found {
		taken, err := s.Bookings.AnyOverlapping(ctx, l.ID, dr)
		if err != nil {
			return nil, err
		}
		if !taken {
			available = append(available, l)
		}
	}
	return available, nil
}

func (s *Service) uploadImages(ctx context.Context, hostID domainlisting.HostID, images []string) ([]string, error) {
	urls := make([]string, 0, len(images))
	for _, encoded := range images {
		key := fmt.Sprintf("listings/host_%s/%s", hostID, uuid.NewString())
		url, err := s.Media.UploadBase64(ctx, key, encoded)
		if err != nil {
			return nil, fmt.Errorf("listings: image upload: %w", err)
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
