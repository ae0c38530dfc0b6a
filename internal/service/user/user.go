package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/cashbackmart/internal/apperrors"
	"github.com/nkiryanov/cashbackmart/internal/models"
	"github.com/nkiryanov/cashbackmart/internal/repository"
	"github.com/nkiryanov/cashbackmart/internal/service/auth"
)

type UserService struct {
	hasher   auth.PasswordHasher
	userRepo repository.UserRepo
}

func NewService(hasher auth.PasswordHasher, userRepo repository.UserRepo) *UserService {
	if hasher == nil {
		hasher = auth.DefaultHasher
	}

	return &UserService{
		hasher:   hasher,
		userRepo: userRepo,
	}
}

func (s *UserService) CreateUser(ctx context.Context, username string, password string, role string) (models.User, error) {
	var user models.User
	if role != models.RoleCustomer && role != models.RoleAdmin {
		return user, fmt.Errorf("unknown role %q: %w", role, apperrors.ErrInvalidInput)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	user, err = s.userRepo.CreateUser(ctx, username, hash, role)
	if err != nil {
		return user, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	return s.userRepo.GetUserByID(ctx, id)
}

// Make sure admin account exists, used at startup
// Existing customer with the same username is an error, it is never promoted silently
func (s *UserService) EnsureAdmin(ctx context.Context, username string, password string) (models.User, error) {
	user, err := s.userRepo.GetUserByUsername(ctx, username)

	switch {
	case err == nil && user.IsAdmin():
		return user, nil
	case err == nil:
		return user, fmt.Errorf("user %q exists and is not an admin: %w", username, apperrors.ErrConflict)
	case errors.Is(err, apperrors.ErrUserNotFound):
		return s.CreateUser(ctx, username, password, models.RoleAdmin)
	default:
		return user, err
	}
}
