package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sumire/providerlab/internal/domain"
)

// UserStore defines the user data access interface consumed by UserService.
type UserStore interface {
	FindBySubject(ctx context.Context, subject string) (*domain.User, error)
	Create(ctx context.Context, user domain.User) (*domain.User, error)
}

// SubjectExtractor pulls the provider-specific subject id out of an identity
// payload.
type SubjectExtractor interface {
	Subject(provider domain.ProviderID, identity map[string]any) (string, error)
}

// UserService resolves end users from successful authorizations.
type UserService struct {
	users    UserStore
	subjects SubjectExtractor
	log      *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(users UserStore, subjects SubjectExtractor, log *slog.Logger) *UserService {
	if log == nil {
		log = slog.Default()
	}
	return &UserService{users: users, subjects: subjects, log: log}
}

// ResolveUser returns the user identified by the identity payload, creating
// it with the payload as metadata on first login. Existing metadata is not
// refreshed.
func (s *UserService) ResolveUser(ctx context.Context, provider string, identity map[string]any) (*domain.User, error) {
	id, err := domain.ParseProviderID(provider)
	if err != nil {
		return nil, err
	}

	sub, err := s.subjects.Subject(id, identity)
	if err != nil {
		return nil, fmt.Errorf("extract subject for %s: %w", id, err)
	}
	subject := domain.UserSubject(id, sub)

	user, err := s.users.FindBySubject(ctx, subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	user, err = s.users.Create(ctx, domain.User{
		Subject:  subject,
		Provider: id,
		Metadata: domain.Metadata(identity),
	})
	if errors.Is(err, domain.ErrConflict) {
		// Lost a race with a concurrent first login.
		return s.users.FindBySubject(ctx, subject)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("user created", "subject", subject)
	return user, nil
}

// GetUser retrieves a user by subject.
func (s *UserService) GetUser(ctx context.Context, subject string) (*domain.User, error) {
	return s.users.FindBySubject(ctx, subject)
}
