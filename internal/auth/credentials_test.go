package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/users-backend/internal/domain"
	"github.com/spec-kit/users-backend/internal/repository"
)

type failingLookup struct{ err error }

func (f failingLookup) GetByUsername(context.Context, string) (*domain.User, error) {
	return nil, f.err
}

func seedUser(t *testing.T, repo repository.UserRepository, username, password string, roles ...domain.Role) {
	t.Helper()
	hash, err := HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), &domain.User{Username: username, PasswordHash: hash, Roles: roles}))
}

func TestPasswordAuthenticator(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	seedUser(t, repo, "admin", "s3cret!", domain.RoleUser, domain.RoleAdmin)
	seedUser(t, repo, "legacy", "pw")

	authn, err := NewPasswordAuthenticator(repo, bcrypt.MinCost)
	require.NoError(t, err)
	ctx := context.Background()

	identity, err := authn.Authenticate(ctx, "admin", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, "admin", identity.Subject)
	assert.ElementsMatch(t, []domain.Role{domain.RoleUser, domain.RoleAdmin}, identity.Roles)

	identity, err = authn.Authenticate(ctx, "legacy", "pw")
	require.NoError(t, err)
	assert.Equal(t, []domain.Role{domain.RoleUser}, identity.Roles, "base role is always present")

	for name, creds := range map[string][2]string{
		"wrong password": {"admin", "nope"},
		"unknown user":   {"ghost", "s3cret!"},
		"empty password": {"admin", ""},
		"empty username": {"", "s3cret!"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := authn.Authenticate(ctx, creds[0], creds[1])
			assert.ErrorIs(t, err, ErrBadCredentials)
		})
	}
}

func TestPasswordAuthenticatorStoreFailure(t *testing.T) {
	down := errors.New("connection refused")
	authn, err := NewPasswordAuthenticator(failingLookup{err: down}, bcrypt.MinCost)
	require.NoError(t, err)

	_, err = authn.Authenticate(context.Background(), "admin", "pw")
	assert.ErrorIs(t, err, down)
	assert.NotErrorIs(t, err, ErrBadCredentials)
}
