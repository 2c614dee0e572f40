package auth

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/duewell/duewell/internal/shared"
)

// RepositoryPort defines data access for users.
type RepositoryPort interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a new Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Authenticate validates email/password credentials. Failures are
// indistinguishable to callers regardless of cause.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// HashPassword produces a bcrypt hash for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}
