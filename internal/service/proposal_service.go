// Package service implements the proposal lifecycle engine: every
// guarded transition, the serial-number assignment and the ledger
// invariants, on top of a pluggable aggregate store.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/civicworks/be-pw-proposals/internal/domain"
	"github.com/civicworks/be-pw-proposals/internal/errors"
	"github.com/civicworks/be-pw-proposals/internal/logger"
	"github.com/civicworks/be-pw-proposals/internal/metrics"
)

const dateLayout = "2006-01-02"

// ProposalStore is the aggregate persistence contract. Update applies
// the whole aggregate only when expectedVersion still matches, so two
// writers can never both commit against the same loaded state.
type ProposalStore interface {
	Create(ctx context.Context, p *domain.Proposal) error
	GetByID(ctx context.Context, id string) (*domain.Proposal, error)
	Update(ctx context.Context, p *domain.Proposal, expectedVersion int64) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter domain.ListFilter) ([]*domain.Proposal, int64, error)
	WorkOrderNumberExists(ctx context.Context, number, excludeProposalID string) (bool, error)
	NextSerial(ctx context.Context, year int) (int, error)
}

// AuditStore records the append-only transition trail.
type AuditStore interface {
	Append(ctx context.Context, e *domain.AuditEntry) error
	ListByProposal(ctx context.Context, proposalID string) ([]*domain.AuditEntry, error)
}

// EventPublisher emits lifecycle events to downstream consumers.
// Publishing is always non-fatal.
type EventPublisher interface {
	Publish(t domain.Transition, p *domain.Proposal, caller domain.Caller, payload map[string]any)
}

// installmentRetries bounds the optimistic-concurrency retry loop for
// fund releases.
const installmentRetries = 3

// ProposalService is the lifecycle engine.
type ProposalService struct {
	store        ProposalStore
	audit        AuditStore
	events       EventPublisher
	metrics      *metrics.Metrics
	log          *logger.Logger
	validate     *validator.Validate
	serialPrefix string
}

// NewProposalService creates the lifecycle engine. events and m may be
// nil (tests, event-less deployments).
func NewProposalService(store ProposalStore, audit AuditStore, events EventPublisher, m *metrics.Metrics, log *logger.Logger, serialPrefix string) *ProposalService {
	return &ProposalService{
		store:        store,
		audit:        audit,
		events:       events,
		metrics:      m,
		log:          log,
		validate:     validator.New(),
		serialPrefix: serialPrefix,
	}
}

// CreateProposalRequest carries the descriptive fields of a submission.
type CreateProposalRequest struct {
	WorkType            string `json:"workType" validate:"required"`
	Name                string `json:"name" validate:"required"`
	Agency              string `json:"agency" validate:"required"`
	Scheme              string `json:"scheme"`
	Description         string `json:"description"`
	FinancialYear       string `json:"financialYear" validate:"required"`
	WorkDepartment      string `json:"workDepartment"`
	UserDepartment      string `json:"userDepartment"`
	ApprovingDepartment string `json:"approvingDepartment" validate:"required"`
	District            string `json:"district"`
	Block               string `json:"block"`
	Location            string `json:"location"`
	ProposedAmount      int64  `json:"proposedAmount" validate:"required,gt=0"`
	RequiresDPR         bool   `json:"requiresDPR"`
	RequiresTender      bool   `json:"requiresTender"`
}

// Submit creates a proposal in pending_technical_approval, assigns the
// serial number and sets the caller as owner.
func (s *ProposalService) Submit(ctx context.Context, req *CreateProposalRequest, caller domain.Caller) (*domain.Proposal, error) {
	if err := domain.Authorize(caller, domain.TransitionSubmit, nil); err != nil {
		s.observeFailure(domain.TransitionSubmit, err)
		return nil, err
	}
	if err := s.validateStruct(req); err != nil {
		s.observeFailure(domain.TransitionSubmit, err)
		return nil, err
	}

	now := time.Now().UTC()
	serial, err := s.nextSerialNumber(ctx, now)
	if err != nil {
		return nil, err
	}

	p := domain.NewProposal(now)
	p.ID = uuid.NewString()
	p.SerialNumber = serial
	p.WorkType = req.WorkType
	p.Name = req.Name
	p.Agency = req.Agency
	p.Scheme = req.Scheme
	p.Description = req.Description
	p.FinancialYear = req.FinancialYear
	p.WorkDepartment = req.WorkDepartment
	p.UserDepartment = req.UserDepartment
	p.ApprovingDepartment = req.ApprovingDepartment
	p.District = req.District
	p.Block = req.Block
	p.Location = req.Location
	p.ProposedAmount = req.ProposedAmount
	p.RequiresDPR = req.RequiresDPR
	p.RequiresTender = req.RequiresTender
	p.CreatedBy = caller.ID

	if err := s.store.Create(ctx, p); err != nil {
		s.observeFailure(domain.TransitionSubmit, err)
		return nil, err
	}

	s.recordAudit(ctx, p, domain.TransitionSubmit, caller, "", p.Status, "")
	s.observeSuccess(domain.TransitionSubmit)
	s.publish(domain.TransitionSubmit, p, caller, map[string]any{"serial_number": p.SerialNumber})

	s.log.Info().
		Str("proposal_id", p.ID).
		Str("serial_number", p.SerialNumber).
		Str("agency", p.Agency).
		Int64("proposed_amount", p.ProposedAmount).
		Bool("requires_tender", p.RequiresTender).
		Str("created_by", caller.ID).
		Msg("Proposal submitted")

	return p, nil
}

// Get retrieves a proposal by id.
func (s *ProposalService) Get(ctx context.Context, id string) (*domain.Proposal, error) {
	return s.store.GetByID(ctx, id)
}

// List retrieves proposals with filtering and pagination.
func (s *ProposalService) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Proposal, int64, error) {
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.store.List(ctx, filter)
}

// AuditTrail returns the transition history for one proposal.
func (s *ProposalService) AuditTrail(ctx context.Context, id string) ([]*domain.AuditEntry, error) {
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.audit.ListByProposal(ctx, id)
}

// Delete removes a proposal. Owners may delete only while the proposal
// is still pending technical approval; the override role may delete in
// any state.
func (s *ProposalService) Delete(ctx context.Context, id string, caller domain.Caller) error {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if caller.Role != domain.RoleAdmin {
		if err := p.Guard(domain.TransitionDelete); err != nil {
			s.observeFailure(domain.TransitionDelete, err)
			return err
		}
	}
	if err := domain.Authorize(caller, domain.TransitionDelete, p); err != nil {
		s.observeFailure(domain.TransitionDelete, err)
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		s.observeFailure(domain.TransitionDelete, err)
		return err
	}

	s.recordAudit(ctx, p, domain.TransitionDelete, caller, p.Status, p.Status, "proposal deleted")
	s.observeSuccess(domain.TransitionDelete)
	s.publish(domain.TransitionDelete, p, caller, nil)

	s.log.Info().
		Str("proposal_id", id).
		Str("serial_number", p.SerialNumber).
		Str("deleted_by", caller.ID).
		Msg("Proposal deleted")
	return nil
}

// ── internals ────────────────────────────────────────────────────────────────

// nextSerialNumber builds <prefix><year><zero-padded sequence> from the
// atomic per-year counter.
func (s *ProposalService) nextSerialNumber(ctx context.Context, now time.Time) (string, error) {
	year := now.Year()
	seq, err := s.store.NextSerial(ctx, year)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d%04d", s.serialPrefix, year, seq), nil
}

// transition runs one guarded lifecycle operation: load, state guard,
// role/department guard, mutation, version-checked write. Either the
// whole transition commits or nothing does.
func (s *ProposalService) transition(ctx context.Context, id string, t domain.Transition, caller domain.Caller, note string, mutate func(p *domain.Proposal, now time.Time) error) (*domain.Proposal, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		s.observeFailure(t, err)
		return nil, err
	}

	if err := p.Guard(t); err != nil {
		s.observeFailure(t, err)
		return nil, err
	}
	if err := domain.Authorize(caller, t, p); err != nil {
		s.observeFailure(t, err)
		return nil, err
	}

	before := p.Status
	loadedVersion := p.Version
	now := time.Now().UTC()
	if err := mutate(p, now); err != nil {
		s.observeFailure(t, err)
		return nil, err
	}
	p.UpdatedAt = now

	if err := s.store.Update(ctx, p, loadedVersion); err != nil {
		s.observeFailure(t, err)
		return nil, err
	}

	s.recordAudit(ctx, p, t, caller, before, p.Status, note)
	s.observeSuccess(t)
	s.publish(t, p, caller, nil)
	return p, nil
}

func (s *ProposalService) recordAudit(ctx context.Context, p *domain.Proposal, t domain.Transition, caller domain.Caller, before, after domain.Status, note string) {
	entry := &domain.AuditEntry{
		ID:           uuid.NewString(),
		ProposalID:   p.ID,
		Transition:   t,
		Actor:        caller.ID,
		ActorRole:    caller.Role,
		StatusBefore: before,
		StatusAfter:  after,
		Note:         note,
		At:           time.Now().UTC(),
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("proposal_id", p.ID).
			Str("transition", string(t)).
			Msg("failed to append audit entry (non-fatal)")
	}
}

func (s *ProposalService) publish(t domain.Transition, p *domain.Proposal, caller domain.Caller, payload map[string]any) {
	if s.events != nil {
		s.events.Publish(t, p, caller, payload)
	}
}

func (s *ProposalService) observeSuccess(t domain.Transition) {
	if s.metrics != nil {
		s.metrics.Transitions.WithLabelValues(string(t)).Inc()
	}
}

func (s *ProposalService) observeFailure(t domain.Transition, err error) {
	if s.metrics != nil {
		s.metrics.TransitionFailures.WithLabelValues(string(t), errors.CodeOf(err)).Inc()
	}
}

// validateStruct maps validator failures onto the validation error code.
func (s *ProposalService) validateStruct(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		f := verrs[0]
		return errors.InvalidInput(f.Field(), fmt.Sprintf("failed %q validation", f.Tag()))
	}
	return errors.Wrap(err, errors.ErrCodeValidation, "invalid request")
}

// parseDate validates the YYYY-MM-DD fields carried by payloads.
func parseDate(field, value string) error {
	if value == "" {
		return errors.InvalidInput(field, "date is required")
	}
	if _, err := time.Parse(dateLayout, value); err != nil {
		return errors.InvalidInput(field, "invalid date format, expected YYYY-MM-DD")
	}
	return nil
}
