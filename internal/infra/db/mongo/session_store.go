package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	domainuser "stayfinder/internal/domain/user"
)

const sessionsCollection = "sessions"

// SessionStore persists bearer sessions keyed by token. Expiry is enforced
// by the auth service; a TTL index here only garbage-collects stale rows.
type SessionStore struct {
	db *mongo.Database
}

func NewSessionStore(db *mongo.Database) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) col() *mongo.Collection {
	return s.db.Collection(sessionsCollection)
}

func (s *SessionStore) Save(ctx context.Context, session *domainuser.Session) error {
	if session == nil || session.Token == "" {
		return domainuser.ErrTokenRequired
	}
	_, err := s.col().InsertOne(ctx, sessionDocument{
		Token:     string(session.Token),
		UserID:    string(session.UserID),
		ExpiresAt: session.ExpiresAt.UTC(),
	})
	return err
}

func (s *SessionStore) Get(ctx context.Context, token domainuser.Token) (*domainuser.Session, error) {
	var doc sessionDocument
	if err := s.col().FindOne(ctx, bson.M{"_id": string(token)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainuser.ErrSessionNotFound
		}
		return nil, err
	}
	return &domainuser.Session{
		Token:     domainuser.Token(doc.Token),
		UserID:    domainuser.ID(doc.UserID),
		ExpiresAt: doc.ExpiresAt.UTC(),
	}, nil
}

func (s *SessionStore) Delete(ctx context.Context, token domainuser.Token) error {
	_, err := s.col().DeleteOne(ctx, bson.M{"_id": string(token)})
	return err
}

type sessionDocument struct {
	Token     string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	ExpiresAt time.Time `bson:"expires_at"`
}
