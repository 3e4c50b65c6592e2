package memory

import (
	"context"
	"sync"
	"time"

	"github.com/PabloGalante/resq-agent/internal/domain"
)

// CaseStore is the in-memory case table used in local mode and tests.
type CaseStore struct {
	mu    sync.RWMutex
	cases map[domain.CaseID]*domain.Case
}

func NewCaseStore() *CaseStore {
	return &CaseStore{
		cases: make(map[domain.CaseID]*domain.Case),
	}
}

func (s *CaseStore) UpsertCase(_ context.Context, c *domain.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := c.Clone()
	if prev, ok := s.cases[c.ID]; ok {
		// resolved cases are frozen
		if prev.Status == domain.StatusResolved {
			return nil
		}
		next.CreatedAt = prev.CreatedAt
	}
	s.cases[c.ID] = next
	return nil
}

func (s *CaseStore) GetCase(_ context.Context, id domain.CaseID) (*domain.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cases[id]
	if !ok {
		return nil, domain.ErrCaseNotFound
	}
	return c.Clone(), nil
}

func (s *CaseStore) ListOpenCases(_ context.Context) ([]*domain.Case, error) {
	return s.list(domain.StatusOpen), nil
}

func (s *CaseStore) ListResolvedCases(_ context.Context) ([]*domain.Case, error) {
	return s.list(domain.StatusResolved), nil
}

func (s *CaseStore) ResolveCase(_ context.Context, id domain.CaseID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cases[id]
	if !ok {
		return false, nil
	}
	c.Status = domain.StatusResolved
	c.InProgress = false
	c.ResolvedAt = &at
	return true, nil
}

func (s *CaseStore) list(status domain.CaseStatus) []*domain.Case {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Case
	for _, c := range s.cases {
		if c.Status == status {
			out = append(out, c.Clone())
		}
	}
	return out
}
