package repository

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/civicworks/be-pw-proposals/internal/domain"
	"github.com/civicworks/be-pw-proposals/internal/errors"
)

// MemoryStore is an in-memory implementation of the proposal and audit
// stores with the same optimistic-concurrency semantics as Postgres.
// It backs tests and the "memory" database driver.
type MemoryStore struct {
	mu        sync.Mutex
	proposals map[string]*domain.Proposal
	audit     []*domain.AuditEntry
	serials   map[int]int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		proposals: make(map[string]*domain.Proposal),
		serials:   make(map[int]int),
	}
}

// cloneProposal deep-copies via JSON so callers never share aggregate
// state with the store.
func cloneProposal(p *domain.Proposal) *domain.Proposal {
	data, _ := json.Marshal(p)
	out := &domain.Proposal{}
	_ = json.Unmarshal(data, out)
	return out
}

// Create inserts a new aggregate.
func (s *MemoryStore) Create(_ context.Context, p *domain.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.proposals[p.ID]; ok {
		return errors.New(errors.ErrCodeConflict, "proposal already exists")
	}
	for _, existing := range s.proposals {
		if existing.SerialNumber == p.SerialNumber {
			return errors.New(errors.ErrCodeConflict, "proposal serial number already exists")
		}
	}
	p.Version = 1
	s.proposals[p.ID] = cloneProposal(p)
	return nil
}

// GetByID retrieves an aggregate by id.
func (s *MemoryStore) GetByID(_ context.Context, id string) (*domain.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proposals[id]
	if !ok {
		return nil, errors.NotFound("proposal", id)
	}
	return cloneProposal(p), nil
}

// Update applies the aggregate if the version still matches.
func (s *MemoryStore) Update(_ context.Context, p *domain.Proposal, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.proposals[p.ID]
	if !ok {
		return errors.NotFound("proposal", p.ID)
	}
	if current.Version != expectedVersion {
		return errors.New(errors.ErrCodeConflict, "proposal was modified concurrently")
	}
	if n := p.WorkOrder.OrderNumber; n != "" {
		for id, existing := range s.proposals {
			if id != p.ID && existing.WorkOrder.OrderNumber == n {
				return errors.New(errors.ErrCodeConflict, "work order number already in use")
			}
		}
	}

	p.Version = expectedVersion + 1
	s.proposals[p.ID] = cloneProposal(p)
	return nil
}

// Delete removes an aggregate.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.proposals[id]; !ok {
		return errors.NotFound("proposal", id)
	}
	delete(s.proposals, id)
	return nil
}

// List returns proposals matching the filter, newest first.
func (s *MemoryStore) List(_ context.Context, filter domain.ListFilter) ([]*domain.Proposal, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]*domain.Proposal, 0)
	for _, p := range s.proposals {
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		if filter.FinancialYear != nil && p.FinancialYear != *filter.FinancialYear {
			continue
		}
		if filter.Agency != nil && p.Agency != *filter.Agency {
			continue
		}
		if filter.CreatedBy != nil && p.CreatedBy != *filter.CreatedBy {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[filter.Offset:]
		}
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	out := make([]*domain.Proposal, 0, len(matched))
	for _, p := range matched {
		out = append(out, cloneProposal(p))
	}
	return out, total, nil
}

// WorkOrderNumberExists reports whether another proposal uses number.
func (s *MemoryStore) WorkOrderNumberExists(_ context.Context, number, excludeProposalID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range s.proposals {
		if id != excludeProposalID && p.WorkOrder.OrderNumber == number {
			return true, nil
		}
	}
	return false, nil
}

// NextSerial atomically increments the per-year sequence.
func (s *MemoryStore) NextSerial(_ context.Context, year int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.serials[year]++
	return s.serials[year], nil
}

// Append records an audit entry.
func (s *MemoryStore) Append(_ context.Context, e *domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *e
	s.audit = append(s.audit, &copied)
	return nil
}

// ListByProposal returns the audit trail for one proposal, oldest first.
func (s *MemoryStore) ListByProposal(_ context.Context, proposalID string) ([]*domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]*domain.AuditEntry, 0)
	for _, e := range s.audit {
		if e.ProposalID == proposalID {
			copied := *e
			entries = append(entries, &copied)
		}
	}
	return entries, nil
}
