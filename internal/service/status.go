package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sumire/providerlab/internal/domain"
)

// ProviderStore defines the provider status data access consumed by
// StatusService.
type ProviderStore interface {
	FindByName(ctx context.Context, name domain.ProviderID) (*domain.Provider, error)
	List(ctx context.Context) ([]domain.Provider, error)
	ListByStatus(ctx context.Context, status domain.Status) ([]domain.Provider, error)
	UpdateStatusIf(ctx context.Context, name domain.ProviderID, column domain.Column, guard domain.Guard, status domain.Status) (*domain.Provider, error)
	ResetAll(ctx context.Context) (int64, error)
	Seed(ctx context.Context, ids []domain.ProviderID) (int64, error)
}

// StatusService applies guarded status transitions and serves the provider
// status table.
type StatusService struct {
	store ProviderStore
	log   *slog.Logger
}

// NewStatusService creates a new StatusService.
func NewStatusService(store ProviderStore, log *slog.Logger) *StatusService {
	if log == nil {
		log = slog.Default()
	}
	return &StatusService{store: store, log: log}
}

// UpdateStatus writes status into column of provider when the current value
// is accepted by guard, and returns the updated row.
//
// Only an unknown provider or a malformed transition is reported as an error.
// A guard miss, a missing row and a datastore failure all return (nil, nil);
// the latter is logged.
func (s *StatusService) UpdateStatus(ctx context.Context, provider domain.ProviderID, column domain.Column, guard domain.Guard, status domain.Status) (*domain.Provider, error) {
	if !provider.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidProvider, provider)
	}
	if err := validateTransition(column, guard, status); err != nil {
		return nil, err
	}

	p, err := s.store.UpdateStatusIf(ctx, provider, column, guard, status)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.Error("failed to update provider status",
				"provider", provider,
				"column", column,
				"status", status,
				"error", err,
			)
		}
		return nil, nil
	}

	s.log.Info("provider status updated",
		"provider", provider,
		"column", column,
		"status", status,
	)
	return p, nil
}

func validateTransition(column domain.Column, guard domain.Guard, status domain.Status) error {
	if !column.Valid() {
		return &domain.ValidationError{Field: "column", Message: fmt.Sprintf("unknown column %q", column)}
	}
	if len(guard) == 0 {
		return &domain.ValidationError{Field: "guard", Message: "at least one status is required"}
	}
	for _, g := range guard {
		if !g.Valid() {
			return &domain.ValidationError{Field: "guard", Message: fmt.Sprintf("unknown status %q", g)}
		}
	}
	if !status.Valid() {
		return &domain.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}
	return nil
}

// Get returns the status row of the named provider.
func (s *StatusService) Get(ctx context.Context, name string) (*domain.Provider, error) {
	id, err := domain.ParseProviderID(name)
	if err != nil {
		return nil, err
	}
	return s.store.FindByName(ctx, id)
}

// List returns every provider row.
func (s *StatusService) List(ctx context.Context) ([]domain.Provider, error) {
	return s.store.List(ctx)
}

// ListByStatus returns providers with at least one column in status.
func (s *StatusService) ListByStatus(ctx context.Context, status string) ([]domain.Provider, error) {
	st, err := domain.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return s.store.ListByStatus(ctx, st)
}

// Reset sets every status column of every provider back to untested.
func (s *StatusService) Reset(ctx context.Context) (int64, error) {
	n, err := s.store.ResetAll(ctx)
	if err != nil {
		return 0, err
	}
	s.log.Info("provider statuses reset", "rows", n)
	return n, nil
}

// Seed makes sure every supported provider has a status row.
func (s *StatusService) Seed(ctx context.Context) (int64, error) {
	n, err := s.store.Seed(ctx, domain.SupportedProviders())
	if err != nil {
		return 0, err
	}
	s.log.Info("providers seeded", "created", n)
	return n, nil
}
