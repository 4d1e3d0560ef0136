package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	domainbooking "stayfinder/internal/domain/booking"
	domainlisting "stayfinder/internal/domain/listing"
	"stayfinder/internal/domain/shared/daterange"
)

type BookingRepository struct {
	db *mongo.Database
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) col() *mongo.Collection {
	return r.db.Collection(bookingsCollection)
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col().FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	return r.list(ctx, bson.M{"guest_id": guestID})
}

func (r *BookingRepository) ListByListing(ctx context.Context, listingID domainlisting.ListingID, statuses ...domainbooking.Status) ([]*domainbooking.Booking, error) {
	filter := bson.M{"listing_id": string(listingID)}
	if len(statuses) > 0 {
		values := make(bson.A, 0, len(statuses))
		for _, s := range statuses {
			values = append(values, string(s))
		}
		filter["status"] = bson.M{"$in": values}
	}
	return r.list(ctx, filter)
}

func (r *BookingRepository) ListByListings(ctx context.Context, listingIDs []domainlisting.ListingID) ([]*domainbooking.Booking, error) {
	if len(listingIDs) == 0 {
		return nil, nil
	}
	values := make(bson.A, 0, len(listingIDs))
	for _, id := range listingIDs {
		values = append(values, string(id))
	}
	return r.list(ctx, bson.M{"listing_id": bson.M{"$in": values}})
}

func (r *BookingRepository) FindActive(ctx context.Context, guestID string, listingID domainlisting.ListingID, dr daterange.DateRange) (*domainbooking.Booking, error) {
	return r.findActive(ctx, r.col(), guestID, listingID, dr)
}

func (r *BookingRepository) AnyOverlapping(ctx context.Context, listingID domainlisting.ListingID, dr daterange.DateRange) (bool, error) {
	return r.anyOverlapping(ctx, r.col(), listingID, dr)
}

// CreateExclusive serializes the availability check and the insert for a
// listing through a transaction that bumps an optimistic token on the
// listing document. Two concurrent confirmations for the same listing write
// the same document, so one aborts with a transient error and retries after
// the other committed, observing its booking.
func (r *BookingRepository) CreateExclusive(ctx context.Context, b *domainbooking.Booking) error {
	session, err := r.db.Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		res, err := r.db.Collection(listingsCollection).UpdateOne(sc,
			bson.M{"_id": string(b.ListingID)},
			bson.M{"$inc": bson.M{"availability_version": 1}},
		)
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			return nil, domainlisting.ErrNotFound
		}
		if _, err := r.findActive(sc, r.col(), b.GuestID, b.ListingID, b.Range); err == nil {
			return nil, domainbooking.ErrDuplicate
		} else if !errors.Is(err, domainbooking.ErrNotFound) {
			return nil, err
		}
		taken, err := r.anyOverlapping(sc, r.col(), b.ListingID, b.Range)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, domainbooking.ErrDateConflict
		}
		if _, err := r.col().InsertOne(sc, newBookingDocument(b)); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainbooking.ErrDuplicate
		}
		return err
	}
	return nil
}

// Update applies a version-checked write; a lost race surfaces as
// ErrConcurrentUpdate rather than silently clobbering state.
func (r *BookingRepository) Update(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	res, err := r.col().UpdateOne(ctx, filter, bson.M{"$set": doc})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrConcurrentUpdate
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) list(ctx context.Context, filter bson.M) ([]*domainbooking.Booking, error) {
	cursor, err := r.col().Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var docs []bookingDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainbooking.Booking, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toAggregate())
	}
	return out, nil
}

func (r *BookingRepository) findActive(ctx context.Context, col *mongo.Collection, guestID string, listingID domainlisting.ListingID, dr daterange.DateRange) (*domainbooking.Booking, error) {
	filter := bson.M{
		"guest_id":   guestID,
		"listing_id": string(listingID),
		"check_in":   dr.CheckIn.UnixMilli(),
		"check_out":  dr.CheckOut.UnixMilli(),
		"status":     bson.M{"$ne": string(domainbooking.StatusCancelled)},
	}
	var doc bookingDocument
	if err := col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

// anyOverlapping applies the half-open predicate: [A,B) overlaps [C,D)
// iff A < D and B > C.
func (r *BookingRepository) anyOverlapping(ctx context.Context, col *mongo.Collection, listingID domainlisting.ListingID, dr daterange.DateRange) (bool, error) {
	filter := bson.M{
		"listing_id": string(listingID),
		"status":     bson.M{"$ne": string(domainbooking.StatusCancelled)},
		"check_in":   bson.M{"$lt": dr.CheckOut.UnixMilli()},
		"check_out":  bson.M{"$gt": dr.CheckIn.UnixMilli()},
	}
	count, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

type bookingDocument struct {
	ID               string `bson:"_id"`
	GuestID          string `bson:"guest_id"`
	ListingID        string `bson:"listing_id"`
	Phone            string `bson:"phone"`
	TotalPrice       int64  `bson:"total_price"`
	CheckIn          int64  `bson:"check_in"`
	CheckOut         int64  `bson:"check_out"`
	Status           string `bson:"status"`
	IsDeleted        bool   `bson:"is_deleted"`
	PaymentSessionID string `bson:"payment_session_id"`
	PaymentIntentID  string `bson:"payment_intent_id"`
	CreatedAt        int64  `bson:"created_at"`
	UpdatedAt        int64  `bson:"updated_at"`
	Version          int64  `bson:"version"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	return bookingDocument{
		ID:               string(b.ID),
		GuestID:          b.GuestID,
		ListingID:        string(b.ListingID),
		Phone:            b.Phone,
		TotalPrice:       b.TotalPrice,
		CheckIn:          b.Range.CheckIn.UnixMilli(),
		CheckOut:         b.Range.CheckOut.UnixMilli(),
		Status:           string(b.Status),
		IsDeleted:        b.IsDeleted,
		PaymentSessionID: b.PaymentSessionID,
		PaymentIntentID:  b.PaymentIntentID,
		CreatedAt:        b.CreatedAt.UnixMilli(),
		UpdatedAt:        b.UpdatedAt.UnixMilli(),
		Version:          b.Version,
	}
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	return &domainbooking.Booking{
		ID:         domainbooking.BookingID(d.ID),
		GuestID:    d.GuestID,
		ListingID:  domainlisting.ListingID(d.ListingID),
		Phone:      d.Phone,
		TotalPrice: d.TotalPrice,
		Range: daterange.DateRange{
			CheckIn:  timestampToTime(d.CheckIn),
			CheckOut: timestampToTime(d.CheckOut),
		},
		Status:           domainbooking.Status(d.Status),
		IsDeleted:        d.IsDeleted,
		PaymentSessionID: d.PaymentSessionID,
		PaymentIntentID:  d.PaymentIntentID,
		CreatedAt:        timestampToTime(d.CreatedAt),
		UpdatedAt:        timestampToTime(d.UpdatedAt),
		Version:          d.Version,
	}
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
