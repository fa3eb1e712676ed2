package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/onnwee/campusconnect/internal/apperr"
	"github.com/onnwee/campusconnect/internal/validate"
)

// RegisterInput is the signup form.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Service registers and authenticates users.
type Service struct {
	repo       Repository
	bcryptCost int
	now        func() time.Time
}

// NewService creates a Service using bcrypt.DefaultCost.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, bcryptCost: bcrypt.DefaultCost, now: time.Now}
}

// Register validates the form, hashes the password and creates the account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	username, err := validate.Username(in.Username)
	if err != nil {
		return nil, fmt.Errorf("%w: username: %v", apperr.ErrInvalidInput, err)
	}
	email, err := validate.Email(in.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: email: %v", apperr.ErrInvalidInput, err)
	}
	if err := validate.Password(in.Password); err != nil {
		return nil, fmt.Errorf("%w: password: %v", apperr.ErrInvalidInput, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		Username:     username,
		Email:        email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: string(hash),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "user registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// Authenticate checks a username and password. Unknown users and wrong
// passwords both return ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := s.repo.TouchLastSeen(ctx, u.ID, s.now().UTC()); err != nil {
		slog.WarnContext(ctx, "failed to update last_seen", "user_id", u.ID, "error", err)
	}
	return u, nil
}

// Get returns the user with id.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// Username resolves a user ID to its username.
func (s *Service) Username(ctx context.Context, id string) (string, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return u.Username, nil
}
