package service

import (
	"context"
	"errors"
	"sync"

	"github.com/sumire/providerlab/internal/domain"
)

var errStoreDown = errors.New("store unavailable")

type fakeProviderStore struct {
	mu      sync.Mutex
	rows    map[domain.ProviderID]domain.Provider
	calls   int
	failing bool
}

func newFakeProviderStore(ids ...domain.ProviderID) *fakeProviderStore {
	s := &fakeProviderStore{rows: map[domain.ProviderID]domain.Provider{}}
	for _, id := range ids {
		s.rows[id] = domain.Provider{
			Name:            id,
			AuthorizeStatus: domain.StatusUntested,
			ProfileStatus:   domain.StatusUntested,
			RefreshStatus:   domain.StatusUntested,
			RevokeStatus:    domain.StatusUntested,
		}
	}
	return s
}

func (s *fakeProviderStore) set(id domain.ProviderID, c domain.Column, st domain.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[id] = s.rows[id].WithStatus(c, st)
}

func (s *fakeProviderStore) get(id domain.ProviderID) domain.Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id]
}

func (s *fakeProviderStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *fakeProviderStore) FindByName(_ context.Context, name domain.ProviderID) (*domain.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	p, ok := s.rows[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (s *fakeProviderStore) List(context.Context) ([]domain.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	out := make([]domain.Provider, 0, len(s.rows))
	for _, p := range s.rows {
		out = append(out, p)
	}
	return out, nil
}

func (s *fakeProviderStore) ListByStatus(_ context.Context, status domain.Status) ([]domain.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	var out []domain.Provider
	for _, p := range s.rows {
		for _, c := range domain.Columns {
			if p.Status(c) == status {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

func (s *fakeProviderStore) UpdateStatusIf(_ context.Context, name domain.ProviderID, column domain.Column, guard domain.Guard, status domain.Status) (*domain.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failing {
		return nil, errStoreDown
	}
	p, ok := s.rows[name]
	if !ok || !guard.Allows(p.Status(column)) {
		return nil, domain.ErrNotFound
	}
	p = p.WithStatus(column, status)
	s.rows[name] = p
	return &p, nil
}

func (s *fakeProviderStore) ResetAll(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	for id, p := range s.rows {
		for _, c := range domain.Columns {
			p = p.WithStatus(c, domain.StatusUntested)
		}
		s.rows[id] = p
	}
	return int64(len(s.rows)), nil
}

func (s *fakeProviderStore) Seed(_ context.Context, ids []domain.ProviderID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	var created int64
	for _, id := range ids {
		if _, ok := s.rows[id]; ok {
			continue
		}
		s.rows[id] = domain.Provider{
			Name:            id,
			AuthorizeStatus: domain.StatusUntested,
			ProfileStatus:   domain.StatusUntested,
			RefreshStatus:   domain.StatusUntested,
			RevokeStatus:    domain.StatusUntested,
		}
		created++
	}
	return created, nil
}

type fakeErrorLogStore struct {
	mu      sync.Mutex
	errors  []domain.ErrorLog
	unknown []domain.UnknownErrorLog
	failing bool
	block   chan struct{}
}

func (s *fakeErrorLogStore) wait(ctx context.Context) error {
	if s.block == nil {
		return nil
	}
	select {
	case <-s.block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *fakeErrorLogStore) CreateErrorLog(ctx context.Context, entry domain.ErrorLog) (*domain.ErrorLog, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, errStoreDown
	}
	entry.ID = "err-1"
	s.errors = append(s.errors, entry)
	return &entry, nil
}

func (s *fakeErrorLogStore) CreateUnknownErrorLog(ctx context.Context, entry domain.UnknownErrorLog) (*domain.UnknownErrorLog, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, errStoreDown
	}
	entry.ID = "unknown-1"
	s.unknown = append(s.unknown, entry)
	return &entry, nil
}

func (s *fakeErrorLogStore) ListErrorLogs(context.Context, int) ([]domain.ErrorLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ErrorLog(nil), s.errors...), nil
}

func (s *fakeErrorLogStore) ListUnknownErrorLogs(context.Context, int) ([]domain.UnknownErrorLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.UnknownErrorLog(nil), s.unknown...), nil
}

type recordedFailure struct {
	failure  any
	provider domain.ProviderID
}

type fakeRecorder struct {
	mu       sync.Mutex
	failures []recordedFailure
}

func (r *fakeRecorder) Dispatch(_ context.Context, failure any, provider domain.ProviderID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, recordedFailure{failure: failure, provider: provider})
}

type fieldSubject string

func (f fieldSubject) Subject(_ domain.ProviderID, identity map[string]any) (string, error) {
	v, ok := identity[string(f)].(string)
	if !ok || v == "" {
		return "", errors.New("subject missing")
	}
	return v, nil
}
