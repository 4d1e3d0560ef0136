package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainlisting "stayfinder/internal/domain/listing"
)

type ListingRepository struct {
	db *mongo.Database
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	return &ListingRepository{db: db}
}

func (r *ListingRepository) col() *mongo.Collection {
	return r.db.Collection(listingsCollection)
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlisting.ListingID) (*domainlisting.Listing, error) {
	var doc listingDocument
	if err := r.col().FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainlisting.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ListingRepository) ByHost(ctx context.Context, host domainlisting.HostID) ([]*domainlisting.Listing, error) {
	return r.list(ctx, bson.M{"host": string(host)})
}

func (r *ListingRepository) All(ctx context.Context) ([]*domainlisting.Listing, error) {
	return r.list(ctx, bson.M{})
}

func (r *ListingRepository) Search(ctx context.Context, params domainlisting.SearchParams) ([]*domainlisting.Listing, error) {
	filter := bson.M{}
	if params.Location != "" {
		pattern := bson.M{"$regex": params.Location, "$options": "i"}
		filter["$or"] = bson.A{
			bson.M{"city": pattern},
			bson.M{"state": pattern},
			bson.M{"country": pattern},
		}
	}
	price := bson.M{}
	if params.PriceMin != nil {
		price["$gte"] = *params.PriceMin
	}
	if params.PriceMax != nil {
		price["$lte"] = *params.PriceMax
	}
	if len(price) > 0 {
		filter["price_per_night"] = price
	}
	return r.list(ctx, filter)
}

// Save upserts the listing fields without touching availability_version,
// which booking confirmation owns.
func (r *ListingRepository) Save(ctx context.Context, l *domainlisting.Listing) error {
	doc := newListingDocument(l)
	_, err := r.col().UpdateOne(ctx,
		bson.M{"_id": doc.ID},
		bson.M{
			"$set":         doc,
			"$setOnInsert": bson.M{"availability_version": int64(0)},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *ListingRepository) Delete(ctx context.Context, id domainlisting.ListingID) error {
	res, err := r.col().DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domainlisting.ErrNotFound
	}
	return nil
}

func (r *ListingRepository) list(ctx context.Context, filter bson.M) ([]*domainlisting.Listing, error) {
	cursor, err := r.col().Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var docs []listingDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainlisting.Listing, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toAggregate())
	}
	return out, nil
}

type listingDocument struct {
	ID            string   `bson:"_id"`
	Host          string   `bson:"host"`
	HostPhone     string   `bson:"host_phone"`
	Title         string   `bson:"title"`
	Description   string   `bson:"description"`
	PropertyType  string   `bson:"property_type"`
	PricePerNight int64    `bson:"price_per_night"`
	Address       string   `bson:"address"`
	City          string   `bson:"city"`
	State         string   `bson:"state"`
	Country       string   `bson:"country"`
	Bedrooms      int      `bson:"bedrooms"`
	Bathrooms     int      `bson:"bathrooms"`
	Images        []string `bson:"images"`
	Amenities     []string `bson:"amenities"`
	CreatedAt     int64    `bson:"created_at"`
	UpdatedAt     int64    `bson:"updated_at"`
}

func newListingDocument(l *domainlisting.Listing) listingDocument {
	return listingDocument{
		ID:            string(l.ID),
		Host:          string(l.Host),
		HostPhone:     l.HostPhone,
		Title:         l.Title,
		Description:   l.Description,
		PropertyType:  string(l.PropertyType),
		PricePerNight: l.PricePerNight,
		Address:       l.Address,
		City:          l.City,
		State:         l.State,
		Country:       l.Country,
		Bedrooms:      l.Bedrooms,
		Bathrooms:     l.Bathrooms,
		Images:        l.Images,
		Amenities:     l.Amenities,
		CreatedAt:     l.CreatedAt.UnixMilli(),
		UpdatedAt:     l.UpdatedAt.UnixMilli(),
	}
}

func (d listingDocument) toAggregate() *domainlisting.Listing {
	return &domainlisting.Listing{
		ID:            domainlisting.ListingID(d.ID),
		Host:          domainlisting.HostID(d.Host),
		HostPhone:     d.HostPhone,
		Title:         d.Title,
		Description:   d.Description,
		PropertyType:  domainlisting.PropertyType(d.PropertyType),
		PricePerNight: d.PricePerNight,
		Address:       d.Address,
		City:          d.City,
		State:         d.State,
		Country:       d.Country,
		Bedrooms:      d.Bedrooms,
		Bathrooms:     d.Bathrooms,
		Images:        d.Images,
		Amenities:     d.Amenities,
		CreatedAt:     time.UnixMilli(d.CreatedAt).UTC(),
		UpdatedAt:     time.UnixMilli(d.UpdatedAt).UTC(),
	}
}
