package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/spec-kit/users-backend/internal/domain"
	"github.com/spec-kit/users-backend/internal/repository"
)

// ErrBadCredentials covers both an unknown username and a wrong password.
var ErrBadCredentials = errors.New("bad credentials")

// CredentialAuthenticator resolves a username/password pair to an identity.
type CredentialAuthenticator interface {
	Authenticate(ctx context.Context, username, password string) (domain.Identity, error)
}

// UserLookup is the read side of the credential store.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// PasswordAuthenticator checks passwords against the bcrypt digests in the user store.
type PasswordAuthenticator struct {
	users     UserLookup
	dummyHash string
}

// NewPasswordAuthenticator builds an authenticator. cost is used for the digest compared
// against when the username is unknown, so both failure paths take similar time.
func NewPasswordAuthenticator(users UserLookup, cost int) (*PasswordAuthenticator, error) {
	dummy, err := HashPassword("unknown-user-placeholder", cost)
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}
	return &PasswordAuthenticator{users: users, dummyHash: dummy}, nil
}

// Authenticate returns ErrBadCredentials for any credential mismatch. Other errors
// come from the store itself.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, username, password string) (domain.Identity, error) {
	if username == "" || password == "" {
		return domain.Identity{}, ErrBadCredentials
	}

	user, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = ComparePassword(a.dummyHash, password)
			return domain.Identity{}, ErrBadCredentials
		}
		return domain.Identity{}, fmt.Errorf("credential lookup: %w", err)
	}
	if err := ComparePassword(user.PasswordHash, password); err != nil {
		return domain.Identity{}, ErrBadCredentials
	}

	identity := user.Identity()
	if !domain.HasRole(identity.Roles, domain.RoleUser) {
		identity.Roles = append(identity.Roles, domain.RoleUser)
	}
	return identity, nil
}
