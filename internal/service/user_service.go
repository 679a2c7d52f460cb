package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/users-backend/internal/auth"
	"github.com/spec-kit/users-backend/internal/domain"
	"github.com/spec-kit/users-backend/internal/repository"
	"github.com/spec-kit/users-backend/pkg/util"
)

const (
	minUsernameLength = 4
	maxUsernameLength = 20
)

// UserInput is the writable part of an account. Password is ignored on update.
type UserInput struct {
	Name     string
	Lastname string
	Email    string
	Username string
	Password string
	Admin    bool
}

// UserService manages accounts in the credential store.
type UserService struct {
	users      repository.UserRepository
	bcryptCost int
	logger     *zap.Logger
}

// NewUserService builds the service.
func NewUserService(users repository.UserRepository, bcryptCost int, logger *zap.Logger) *UserService {
	return &UserService{users: users, bcryptCost: bcryptCost, logger: logger}
}

func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, util.NewInternalError(err)
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, id)
	}
	return user, nil
}

// Create stores a new account. Every account gets ROLE_USER; ROLE_ADMIN is added when
// the admin flag is set.
func (s *UserService) Create(ctx context.Context, in UserInput) (*domain.User, error) {
	if err := validateUserInput(in, true); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, util.NewInternalError(err)
	}

	user := &domain.User{
		Name:         strings.TrimSpace(in.Name),
		Lastname:     strings.TrimSpace(in.Lastname),
		Email:        strings.TrimSpace(in.Email),
		Username:     strings.TrimSpace(in.Username),
		PasswordHash: hash,
		Roles:        rolesFor(in.Admin),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, mapRepoError(err, user.Username)
	}
	s.logger.Info("user created", zap.String("user_id", user.ID), zap.Bool("admin", in.Admin))
	return user, nil
}

// Update replaces profile fields and roles. The password is never changed here.
func (s *UserService) Update(ctx context.Context, id string, in UserInput) (*domain.User, error) {
	if err := validateUserInput(in, false); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, id)
	}

	user.Name = strings.TrimSpace(in.Name)
	user.Lastname = strings.TrimSpace(in.Lastname)
	user.Email = strings.TrimSpace(in.Email)
	user.Username = strings.TrimSpace(in.Username)
	user.Roles = rolesFor(in.Admin)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, mapRepoError(err, id)
	}
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return mapRepoError(err, id)
	}
	return nil
}

// EnsureAdmin creates the bootstrap administrator unless the username already exists.
func (s *UserService) EnsureAdmin(ctx context.Context, username, password string) error {
	_, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		s.logger.Info("bootstrap admin already present", zap.String("username", username))
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	_, err = s.Create(ctx, UserInput{Name: username, Username: username, Password: password, Admin: true})
	return err
}

func rolesFor(admin bool) []domain.Role {
	if admin {
		return []domain.Role{domain.RoleUser, domain.RoleAdmin}
	}
	return []domain.Role{domain.RoleUser}
}

func validateUserInput(in UserInput, requirePassword bool) error {
	details := map[string]any{}
	username := strings.TrimSpace(in.Username)
	if l := len(username); l < minUsernameLength || l > maxUsernameLength {
		details["username"] = "must be between 4 and 20 characters"
	}
	if strings.TrimSpace(in.Name) == "" {
		details["name"] = "is required"
	}
	if email := strings.TrimSpace(in.Email); email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			details["email"] = "is not a valid address"
		}
	}
	if requirePassword && in.Password == "" {
		details["password"] = "is required"
	}
	if len(details) > 0 {
		return util.NewValidationError("invalid user", details)
	}
	return nil
}

func mapRepoError(err error, ref string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return util.NewNotFound("user", map[string]any{"id": ref})
	case errors.Is(err, repository.ErrConflict):
		return util.NewConflict("username or email already registered", nil)
	default:
		return util.NewInternalError(err)
	}
}
