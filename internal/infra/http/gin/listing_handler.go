package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	gin "github.com/gin-gonic/gin"

	"stayfinder/internal/app/dto"
	listingsvc "stayfinder/internal/app/services/listings"
	domainlisting "stayfinder/internal/domain/listing"
)

type ListingHandler struct {
	Service *listingsvc.Service
	Logger  *slog.Logger
}

type createListingRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Address      string   `json:"address"`
	City         string   `json:"city"`
	State        string   `json:"state"`
	Country      string   `json:"country"`
	Price        int64    `json:"price_per_night"`
	Bedrooms     int      `json:"bedrooms"`
	Bathrooms    int      `json:"bathrooms"`
	PropertyType string   `json:"property_type"`
	Images       []string `json:"images"`
	Amenities    []string `json:"amenities"`
	HostPhone    string   `json:"host_phone"`
}

type updateListingRequest struct {
	Title        *string  `json:"title"`
	Description  *string  `json:"description"`
	Address      *string  `json:"address"`
	City         *string  `json:"city"`
	State        *string  `json:"state"`
	Country      *string  `json:"country"`
	Price        *int64   `json:"price_per_night"`
	Bedrooms     *int     `json:"bedrooms"`
	Bathrooms    *int     `json:"bathrooms"`
	PropertyType *string  `json:"property_type"`
	Amenities    []string `json:"amenities"`
	HostPhone    *string  `json:"host_phone"`
	Images       []string `json:"images"`
}

func (h ListingHandler) Catalog(c *gin.Context) {
	found, err := h.Service.All(c.Request.Context())
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapListingCollection(found))
}

func (h ListingHandler) Search(c *gin.Context) {
	params := listingsvc.SearchParams{Location: c.Query("location")}
	var err error
	if params.PriceMin, err = optionalInt64Query(c, "price_min"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price_min must be an integer"})
		return
	}
	if params.PriceMax, err = optionalInt64Query(c, "price_max"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price_max must be an integer"})
		return
	}
	if params.CheckIn, err = optionalTimeQuery(c, "check_in"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "check_in must be RFC3339 or YYYY-MM-DD"})
		return
	}
	if params.CheckOut, err = optionalTimeQuery(c, "check_out"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "check_out must be RFC3339 or YYYY-MM-DD"})
		return
	}
	found, err := h.Service.Search(c.Request.Context(), params)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapListingCollection(found))
}

func (h ListingHandler) Get(c *gin.Context) {
	l, err := h.Service.Get(c.Request.Context(), domainlisting.ListingID(c.Param("id")))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapListingSummary(l))
}

func (h ListingHandler) HostListings(c *gin.Context) {
	p, ok := requireUser(c)
	if !ok {
		return
	}
	found, err := h.Service.HostListings(c.Request.Context(), domainlisting.HostID(p.ID))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapListingCollection(found))
}

func (h ListingHandler) Create(c *gin.Context) {
	p, ok := requireUser(c)
	if !ok {
		return
	}
	var req createListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	l, err := h.Service.Create(c.Request.Context(), domainlisting.HostID(p.ID), listingsvc.CreateParams{
		Title:        req.Title,
		Description:  req.Description,
		Address:      req.Address,
		City:         req.City,
		State:        req.State,
		Country:      req.Country,
		Price:        req.Price,
		Bedrooms:     req.Bedrooms,
		Bathrooms:    req.Bathrooms,
		PropertyType: req.PropertyType,
		Images:       req.Images,
		Amenities:    req.Amenities,
		HostPhone:    req.HostPhone,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.MapListingSummary(l))
}

func (h ListingHandler) Update(c *gin.Context) {
	p, ok := requireUser(c)
	if !ok {
		return
	}
	var req updateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	fields := domainlisting.UpdateParams{
		Title:       req.Title,
		Description: req.Description,
		Address:     req.Address,
		City:        req.City,
		State:       req.State,
		Country:     req.Country,
		Price:       req.Price,
		Bedrooms:    req.Bedrooms,
		Bathrooms:   req.Bathrooms,
		Amenities:   req.Amenities,
		HostPhone:   req.HostPhone,
	}
	if req.PropertyType != nil {
		pt := domainlisting.PropertyType(*req.PropertyType)
		fields.PropertyType = &pt
	}
	l, err := h.Service.Update(c.Request.Context(),
		domainlisting.ListingID(c.Param("id")), domainlisting.HostID(p.ID),
		listingsvc.UpdateParams{Fields: fields, Images: req.Images})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapListingSummary(l))
}

func (h ListingHandler) Delete(c *gin.Context) {
	p, ok := requireUser(c)
	if !ok {
		return
	}
	outcomes, err := h.Service.Delete(c.Request.Context(),
		domainlisting.ListingID(c.Param("id")), domainlisting.HostID(p.ID))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true, "refunds": outcomes})
}

func optionalInt64Query(c *gin.Context, key string) (*int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func optionalTimeQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		t, err = time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, err
		}
	}
	return &t, nil
}

var _ ListingHTTP = (*ListingHandler)(nil)
