package auth_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayfinder/internal/app/services/auth"
	domainuser "stayfinder/internal/domain/user"
	"stayfinder/internal/infra/security"
	"stayfinder/internal/infra/storage/memory"
)

type fakeMedia struct{}

func (fakeMedia) UploadBase64(_ context.Context, key, _ string) (string, error) {
	return "https://cdn.example/" + key, nil
}

func newService(now func() time.Time) *auth.Service {
	return &auth.Service{
		Users:      memory.NewUserRepository(),
		Sessions:   memory.NewSessionStore(),
		Passwords:  security.BcryptHasher{Cost: 4},
		Tokens:     security.RandomTokenGenerator{},
		Media:      fakeMedia{},
		SessionTTL: time.Hour,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:        now,
	}
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	svc := newService(nil)
	ctx := context.Background()

	result, err := svc.Register(ctx, auth.RegisterParams{
		Email:    "Ana@Example.com",
		Name:     "Ana",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", result.User.Email)
	assert.NotEmpty(t, result.Token)
	assert.NotEqual(t, "correct horse", result.User.PasswordHash)

	resolved, err := svc.ResolveToken(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, resolved.ID)

	login, err := svc.Login(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, login.User.ID)

	_, err = svc.Login(ctx, "ana@example.com", "wrong password")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody@example.com", "whatever")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestRegisterRejectsShortPasswordAndDuplicateEmail(t *testing.T) {
	svc := newService(nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, auth.RegisterParams{Email: "a@b.c", Name: "A", Password: "short"})
	require.ErrorIs(t, err, auth.ErrPasswordTooShort)

	_, err = svc.Register(ctx, auth.RegisterParams{Email: "a@b.c", Name: "A", Password: "long enough"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, auth.RegisterParams{Email: "a@b.c", Name: "B", Password: "long enough"})
	require.ErrorIs(t, err, domainuser.ErrEmailAlreadyUsed)
}

func TestResolveTokenExpiresSessions(t *testing.T) {
	current := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	svc := newService(func() time.Time { return current })
	ctx := context.Background()

	result, err := svc.Register(ctx, auth.RegisterParams{Email: "a@b.c", Name: "A", Password: "long enough"})
	require.NoError(t, err)

	current = current.Add(2 * time.Hour)
	_, err = svc.ResolveToken(ctx, result.Token)
	require.ErrorIs(t, err, domainuser.ErrSessionNotFound)
}

func TestLogoutInvalidatesToken(t *testing.T) {
	svc := newService(nil)
	ctx := context.Background()

	result, err := svc.Register(ctx, auth.RegisterParams{Email: "a@b.c", Name: "A", Password: "long enough"})
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, result.Token))

	_, err = svc.ResolveToken(ctx, result.Token)
	require.ErrorIs(t, err, domainuser.ErrSessionNotFound)
}

func TestUpdateAvatar(t *testing.T) {
	svc := newService(nil)
	ctx := context.Background()

	result, err := svc.Register(ctx, auth.RegisterParams{Email: "a@b.c", Name: "A", Password: "long enough"})
	require.NoError(t, err)

	updated, err := svc.UpdateAvatar(ctx, result.User.ID, "data:image/png;base64,aGk=")
	require.NoError(t, err)
	assert.Contains(t, updated.AvatarURL, "https://cdn.example/avatars/")
}
