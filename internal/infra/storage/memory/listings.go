package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	domainlisting "stayfinder/internal/domain/listing"
)

// ListingRepository stores listings in memory. Dev and test use only.
type ListingRepository struct {
	mu   sync.RWMutex
	byID map[domainlisting.ListingID]*domainlisting.Listing
}

func NewListingRepository() *ListingRepository {
	return &ListingRepository{byID: make(map[domainlisting.ListingID]*domainlisting.Listing)}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlisting.ListingID) (*domainlisting.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if l, ok := r.byID[id]; ok {
		return cloneListing(l), nil
	}
	return nil, domainlisting.ErrNotFound
}

func (r *ListingRepository) ByHost(ctx context.Context, host domainlisting.HostID) ([]*domainlisting.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainlisting.Listing
	for _, l := range r.byID {
		if l.Host == host {
			out = append(out, cloneListing(l))
		}
	}
	sortListings(out)
	return out, nil
}

func (r *ListingRepository) All(ctx context.Context) ([]*domainlisting.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainlisting.Listing, 0, len(r.byID))
	for _, l := range r.byID {
		out = append(out, cloneListing(l))
	}
	sortListings(out)
	return out, nil
}

func (r *ListingRepository) Search(ctx context.Context, params domainlisting.SearchParams) ([]*domainlisting.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(params.Location))
	var out []*domainlisting.Listing
	for _, l := range r.byID {
		if needle != "" && !matchesLocation(l, needle) {
			continue
		}
		if params.PriceMin != nil && l.PricePerNight < *params.PriceMin {
			continue
		}
		if params.PriceMax != nil && l.PricePerNight > *params.PriceMax {
			continue
		}
		out = append(out, cloneListing(l))
	}
	sortListings(out)
	return out, nil
}

func (r *ListingRepository) Save(ctx context.Context, l *domainlisting.Listing) error {
	if l == nil || l.ID == "" {
		return domainlisting.ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[l.ID] = cloneListing(l)
	return nil
}

func (r *ListingRepository) Delete(ctx context.Context, id domainlisting.ListingID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return domainlisting.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *ListingRepository) exists(id domainlisting.ListingID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}

func matchesLocation(l *domainlisting.Listing, needle string) bool {
	return strings.Contains(strings.ToLower(l.City), needle) ||
		strings.Contains(strings.ToLower(l.State), needle) ||
		strings.Contains(strings.ToLower(l.Country), needle)
}

func sortListings(ls []*domainlisting.Listing) {
	sort.Slice(ls, func(i, j int) bool { return ls[i].ID < ls[j].ID })
}

func cloneListing(l *domainlisting.Listing) *domainlisting.Listing {
	if l == nil {
		return nil
	}
	copyListing := *l
	copyListing.Images = append([]string(nil), l.Images...)
	copyListing.Amenities = append([]string(nil), l.Amenities...)
	return &copyListing
}
