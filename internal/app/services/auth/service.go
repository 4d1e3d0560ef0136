package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"stayfinder/internal/app/policies"
	domainuser "stayfinder/internal/domain/user"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrPasswordTooShort   = errors.New("auth: password must be at least 8 characters")
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

type TokenGenerator interface {
	NewToken() (string, error)
}

type Service struct {
	Users      domainuser.Repository
	Sessions   domainuser.SessionStore
	Passwords  PasswordHasher
	Tokens     TokenGenerator
	Media      policies.MediaStore
	SessionTTL time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

type RegisterParams struct {
	Email    string
	Name     string
	Password string
}

type AuthResult struct {
	User  *domainuser.User
	Token string
}

func (s *Service) Register(ctx context.Context, params RegisterParams) (*AuthResult, error) {
	if utf8.RuneCountInString(params.Password) < 8 {
		return nil, ErrPasswordTooShort
	}
	hash, err := s.Passwords.Hash(params.Password)
	if err != nil {
		return nil, err
	}
	u, err := domainuser.New(domainuser.CreateParams{
		ID:           domainuser.ID(uuid.NewString()),
		Email:        params.Email,
		Name:         params.Name,
		PasswordHash: hash,
		Now:          s.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Users.Save(ctx, u); err != nil {
		return nil, err
	}
	token, err := s.issueSession(ctx, u)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("user registered", "user_id", u.ID, "email", u.Email)
	return &AuthResult{User: u, Token: token}, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.Users.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domainuser.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := s.Passwords.Compare(u.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	token, err := s.issueSession(ctx, u)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("user authenticated", "user_id", u.ID)
	return &AuthResult{User: u, Token: token}, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return s.Sessions.Delete(ctx, domainuser.Token(token))
}

// ResolveToken maps a bearer token to its user, expiring stale sessions.
func (s *Service) ResolveToken(ctx context.Context, token string) (*domainuser.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domainuser.ErrTokenRequired
	}
	session, err := s.Sessions.Get(ctx, domainuser.Token(token))
	if err != nil {
		return nil, err
	}
	if session.ExpiresAt.Before(s.now()) {
		_ = s.Sessions.Delete(ctx, session.Token)
		return nil, domainuser.ErrSessionNotFound
	}
	u, err := s.Users.ByID(ctx, session.UserID)
	if err != nil {
		_ = s.Sessions.Delete(ctx, session.Token)
		if errors.Is(err, domainuser.ErrNotFound) {
			return nil, domainuser.ErrSessionNotFound
		}
		return nil, err
	}
	return u, nil
}

// UpdateAvatar uploads a base64-encoded avatar and stores its URL.
func (s *Service) UpdateAvatar(ctx context.Context, userID domainuser.ID, encoded string) (*domainuser.User, error) {
	u, err := s.Users.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("avatars/%s/%s", userID, uuid.NewString())
	url, err := s.Media.UploadBase64(ctx, key, encoded)
	if err != nil {
		return nil, fmt.Errorf("auth: avatar upload: %w", err)
	}
	u.SetAvatar(url, s.now())
	if err := s.Users.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) issueSession(ctx context.Context, u *domainuser.User) (string, error) {
	token, err := s.Tokens.NewToken()
	if err != nil {
		return "", err
	}
	ttl := s.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	session := &domainuser.Session{
		Token:     domainuser.Token(token),
		UserID:    u.ID,
		ExpiresAt: s.now().Add(ttl),
	}
	if err := s.Sessions.Save(ctx, session); err != nil {
		return "", err
	}
	return token, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
