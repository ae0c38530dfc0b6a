package auth

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/cashbackmart/internal/apperrors"
	"github.com/nkiryanov/cashbackmart/internal/models"
	"github.com/nkiryanov/cashbackmart/internal/repository"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

// Bcrypt over sha256 of the password, so passwords longer than 72 bytes are not truncated
type BcryptHasher struct{}

var DefaultHasher PasswordHasher = BcryptHasher{}

func (h BcryptHasher) Hash(password string) (string, error) {
	sum := sha256.Sum256([]byte(password))
	hash, err := bcrypt.GenerateFromPassword(sum[:], bcrypt.DefaultCost)
	return string(hash), err
}

func (h BcryptHasher) Compare(hashedPassword string, password string) error {
	sum := sha256.Sum256([]byte(password))
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), sum[:])
}

type tokenManager interface {
	Issue(user models.User) (models.IssuedToken, error)
	Parse(access string) (models.Actor, error)
}

type Service struct {
	hasher   PasswordHasher
	tokens   tokenManager
	userRepo repository.UserRepo
}

func NewService(hasher PasswordHasher, tokens tokenManager, userRepo repository.UserRepo) (*Service, error) {
	if tokens == nil || userRepo == nil {
		return nil, errors.New("token manager and user repo must not be nil")
	}
	if hasher == nil {
		hasher = DefaultHasher
	}

	return &Service{
		hasher:   hasher,
		tokens:   tokens,
		userRepo: userRepo,
	}, nil
}

// Register customer and log in
func (s *Service) Register(ctx context.Context, username string, password string) (models.IssuedToken, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("can't use this as password, error=%w", err)
	}

	user, err := s.userRepo.CreateUser(ctx, username, hash, models.RoleCustomer)
	if err != nil {
		return models.IssuedToken{}, err
	}

	return s.issue(user)
}

func (s *Service) Login(ctx context.Context, username string, password string) (models.IssuedToken, error) {
	user, err := s.userRepo.GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.IssuedToken{}, apperrors.ErrInvalidCredentials
	case err != nil:
		return models.IssuedToken{}, err
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.IssuedToken{}, apperrors.ErrInvalidCredentials
	}

	return s.issue(user)
}

// Resolve access token to the caller identity
func (s *Service) Authenticate(access string) (models.Actor, error) {
	return s.tokens.Parse(access)
}

func (s *Service) issue(user models.User) (models.IssuedToken, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return token, fmt.Errorf("token could not generated, sorry. %w", err)
	}
	return token, nil
}
