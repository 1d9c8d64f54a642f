package service

import (
	"context"
	"time"

	"github.com/civicworks/be-pw-proposals/internal/domain"
	"github.com/civicworks/be-pw-proposals/internal/errors"
)

// Decision actions accepted by the approval operations.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// DecideTechnicalRequest carries a technical approval decision.
type DecideTechnicalRequest struct {
	Action          string `json:"action" validate:"required,oneof=approve reject"`
	ApprovalNumber  string `json:"approvalNumber"`
	ApprovalDate    string `json:"approvalDate"`
	SanctionAmount  int64  `json:"sanctionAmount"`
	Remarks         string `json:"remarks"`
	RejectionReason string `json:"rejectionReason"`
}

// DecideTechnical approves or rejects the technical approval stage.
func (s *ProposalService) DecideTechnical(ctx context.Context, id string, req *DecideTechnicalRequest, caller domain.Caller) (*domain.Proposal, error) {
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}

	t := domain.TransitionApproveTechnical
	if req.Action == ActionReject {
		t = domain.TransitionRejectTechnical
	}

	p, err := s.transition(ctx, id, t, caller, req.Remarks, func(p *domain.Proposal, now time.Time) error {
		if req.Action == ActionApprove {
			if req.ApprovalNumber == "" {
				return errors.InvalidInput("approvalNumber", "approval number is required to approve")
			}
			if req.SanctionAmount <= 0 {
				return errors.InvalidInput("sanctionAmount", "sanction amount must be positive")
			}
			if err := parseDate("approvalDate", req.ApprovalDate); err != nil {
				return err
			}
			p.Technical = domain.TechnicalApproval{
				Status:         domain.StageApproved,
				ApprovalNumber: req.ApprovalNumber,
				ApprovalDate:   req.ApprovalDate,
				SanctionAmount: req.SanctionAmount,
				Remarks:        req.Remarks,
				DecidedBy:      caller.ID,
				DecidedAt:      &now,
			}
			p.SetStatus(domain.StatusPendingAdministrativeApproval, now)
			return nil
		}

		if req.RejectionReason == "" {
			return errors.InvalidInput("rejectionReason", "rejection reason is required to reject")
		}
		p.Technical = domain.TechnicalApproval{
			Status:          domain.StageRejected,
			RejectionReason: req.RejectionReason,
			Remarks:         req.Remarks,
			DecidedBy:       caller.ID,
			DecidedAt:       &now,
		}
		p.SetStatus(domain.StatusRejectedTechnicalApproval, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("proposal_id", p.ID).
		Str("serial_number", p.SerialNumber).
		Str("action", req.Action).
		Str("decided_by", caller.ID).
		Str("status", string(p.Status)).
		Msg("Technical approval decided")
	return p, nil
}

// DecideAdministrativeRequest carries an administrative approval decision.
type DecideAdministrativeRequest struct {
	Action          string `json:"action" validate:"required,oneof=approve reject"`
	ApprovalNumber  string `json:"approvalNumber"`
	ApprovalDate    string `json:"approvalDate"`
	ApprovedAmount  int64  `json:"approvedAmount"`
	Remarks         string `json:"remarks"`
	RejectionReason string `json:"rejectionReason"`
}

// DecideAdministrative approves or rejects the administrative approval
// stage. Approval branches on requiresTender.
func (s *ProposalService) DecideAdministrative(ctx context.Context, id string, req *DecideAdministrativeRequest, caller domain.Caller) (*domain.Proposal, error) {
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}

	t := domain.TransitionApproveAdministrative
	if req.Action == ActionReject {
		t = domain.TransitionRejectAdministrative
	}

	p, err := s.transition(ctx, id, t, caller, req.Remarks, func(p *domain.Proposal, now time.Time) error {
		if req.Action == ActionApprove {
			if req.ApprovalNumber == "" {
				return errors.InvalidInput("approvalNumber", "approval number is required to approve")
			}
			if req.ApprovedAmount <= 0 {
				return errors.InvalidInput("approvedAmount", "approved amount must be positive")
			}
			if err := parseDate("approvalDate", req.ApprovalDate); err != nil {
				return err
			}
			p.Administrative = domain.AdministrativeApproval{
				Status:         domain.StageApproved,
				ApprovalNumber: req.ApprovalNumber,
				ApprovalDate:   req.ApprovalDate,
				ApprovedAmount: req.ApprovedAmount,
				Remarks:        req.Remarks,
				DecidedBy:      caller.ID,
				DecidedAt:      &now,
			}
			if p.RequiresTender {
				p.SetStatus(domain.StatusPendingTender, now)
			} else {
				p.SetStatus(domain.StatusPendingWorkOrder, now)
			}
			return nil
		}

		if req.RejectionReason == "" {
			return errors.InvalidInput("rejectionReason", "rejection reason is required to reject")
		}
		p.Administrative = domain.AdministrativeApproval{
			Status:          domain.StageRejected,
			RejectionReason: req.RejectionReason,
			Remarks:         req.Remarks,
			DecidedBy:       caller.ID,
			DecidedAt:       &now,
		}
		p.SetStatus(domain.StatusRejectedAdministrativeApproval, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("proposal_id", p.ID).
		Str("serial_number", p.SerialNumber).
		Str("action", req.Action).
		Str("decided_by", caller.ID).
		Str("status", string(p.Status)).
		Msg("Administrative approval decided")
	return p, nil
}

// StartTenderRequest opens the tender process.
type StartTenderRequest struct {
	TenderNumber string `json:"tenderNumber" validate:"required"`
	OpenedDate   string `json:"openedDate" validate:"required"`
}

// StartTender moves the proposal into tender_in_progress.
func (s *ProposalService) StartTender(ctx context.Context, id string, req *StartTenderRequest, caller domain.Caller) (*domain.Proposal, error) {
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}
	if err := parseDate("openedDate", req.OpenedDate); err != nil {
		return nil, err
	}

	return s.transition(ctx, id, domain.TransitionStartTender, caller, "", func(p *domain.Proposal, now time.Time) error {
		p.Tender.Status = domain.StageInProgress
		p.Tender.TenderNumber = req.TenderNumber
		p.Tender.OpenedDate = req.OpenedDate
		p.SetStatus(domain.StatusTenderInProgress, now)
		return nil
	})
}

// AdvanceTenderRequest moves the tender sub-status detail forward.
type AdvanceTenderRequest struct {
	Stage string `json:"stage" validate:"required"`
}

// AdvanceTender records tender progress (published, bids opened,
// evaluation, ...) without changing the proposal status.
func (s *ProposalService) AdvanceTender(ctx context.Context, id string, req *AdvanceTenderRequest, caller domain.Caller) (*domain.Proposal, error) {
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}

	return s.transition(ctx, id, domain.TransitionAdvanceTender, caller, req.Stage, func(p *domain.Proposal, now time.Time) error {
		p.Tender.Stage = req.Stage
		return nil
	})
}

// AwardTenderRequest awards the tender to a contractor.
type AwardTenderRequest struct {
	Contractor string `json:"contractor" validate:"required"`
	Amount     int64  `json:"amount" validate:"required,gt=0"`
}

// AwardTender closes the tender and moves to pending_work_order.
func (s *ProposalService) AwardTender(ctx context.Context, id string, req *AwardTenderRequest, caller domain.Caller) (*domain.Proposal, error) {
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}

	p, err := s.transition(ctx, id, domain.TransitionAwardTender, caller, "", func(p *domain.Proposal, now time.Time) error {
		p.Tender.Status = domain.StageAwarded
		p.Tender.Contractor = req.Contractor
		p.Tender.AwardedAmount = req.Amount
		p.Tender.AwardedBy = caller.ID
		p.Tender.AwardedAt = &now
		p.SetStatus(domain.StatusPendingWorkOrder, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("proposal_id", p.ID).
		Str("serial_number", p.SerialNumber).
		Str("contractor", req.Contractor).
		Int64("awarded_amount", req.Amount).
		Msg("Tender awarded")
	return p, nil
}

// CancelTenderRequest cancels an in-progress tender.
type CancelTenderRequest struct {
	Reason string `json:"reason"`
}

// CancelTender resets the tender record and returns the proposal to
// pending_tender.
func (s *ProposalService) CancelTender(ctx context.Context, id string, req *CancelTenderRequest, caller domain.Caller) (*domain.Proposal, error) {
	return s.transition(ctx, id, domain.TransitionCancelTender, caller, req.Reason, func(p *domain.Proposal, now time.Time) error {
		p.Tender.Reset()
		p.SetStatus(domain.StatusPendingTender, now)
		return nil
	})
}

// CreateWorkOrderRequest issues the work order.
type CreateWorkOrderRequest struct {
	Number     string `json:"number" validate:"required"`
	Date       string `json:"date" validate:"required"`
	Amount     int64  `json:"amount" validate:"required,gt=0"`
	Contractor string `json:"contractor" validate:"required"`
}

// CreateWorkOrder issues the work order and initializes the ledger with
// the order amount as the sanctioned ceiling. Work-order numbers are
// unique across all proposals.
func (s *ProposalService) CreateWorkOrder(ctx context.Context, id string, req *CreateWorkOrderRequest, caller domain.Caller) (*domain.Proposal, error) {
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}
	if err := parseDate("date", req.Date); err != nil {
		return nil, err
	}

	exists, err := s.store.WorkOrderNumberExists(ctx, req.Number, id)
	if err != nil {
		return nil, err
	}
	if exists {
		err := errors.Newf(errors.ErrCodeConflict, "work order number %q already in use", req.Number)
		s.observeFailure(domain.TransitionCreateWorkOrder, err)
		return nil, err
	}

	p, err := s.transition(ctx, id, domain.TransitionCreateWorkOrder, caller, "", func(p *domain.Proposal, now time.Time) error {
		p.WorkOrder = domain.WorkOrder{
			Status:      domain.StageIssued,
			OrderNumber: req.Number,
			OrderDate:   req.Date,
			Amount:      req.Amount,
			Contractor:  req.Contractor,
			IssuedBy:    caller.ID,
			IssuedAt:    &now,
		}
		p.Ledger.Init(req.Amount)
		p.SetStatus(domain.StatusWorkOrderCreated, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("proposal_id", p.ID).
		Str("serial_number", p.SerialNumber).
		Str("work_order_number", req.Number).
		Int64("sanctioned_amount", req.Amount).
		Str("contractor", req.Contractor).
		Msg("Work order created")
	return p, nil
}

// UpdateWorkOrderRequest revises an issued work order before work starts.
type UpdateWorkOrderRequest struct {
	Amount     *int64  `json:"amount"`
	Contractor *string `json:"contractor"`
}

// UpdateWorkOrder revises the order amount and/or contractor while the
// proposal is still in work_order_created. An amount change re-derives
// the remaining balance from the amount already released.
func (s *ProposalService) UpdateWorkOrder(ctx context.Context, id string, req *UpdateWorkOrderRequest, caller domain.Caller) (*domain.Proposal, error) {
	if req.Amount == nil && req.Contractor == nil {
		return nil, errors.InvalidInput("amount", "nothing to update")
	}
	if req.Amount != nil && *req.Amount <= 0 {
		return nil, errors.InvalidInput("amount", "work order amount must be positive")
	}

	return s.transition(ctx, id, domain.TransitionUpdateWorkOrder, caller, "", func(p *domain.Proposal, now time.Time) error {
		if req.Amount != nil {
			if err := p.Ledger.Revise(*req.Amount); err != nil {
				return err
			}
			p.WorkOrder.Amount = *req.Amount
		}
		if req.Contractor != nil {
			if *req.Contractor == "" {
				return errors.InvalidInput("contractor", "contractor cannot be empty")
			}
			p.WorkOrder.Contractor = *req.Contractor
		}
		return nil
	})
}

// StartWork moves the proposal from work_order_created to work_in_progress.
func (s *ProposalService) StartWork(ctx context.Context, id string, caller domain.Caller) (*domain.Proposal, error) {
	return s.transition(ctx, id, domain.TransitionStartWork, caller, "", func(p *domain.Proposal, now time.Time) error {
		p.SetStatus(domain.StatusWorkInProgress, now)
		return nil
	})
}

// UpdateProgressRequest reports physical progress.
type UpdateProgressRequest struct {
	Percentage        float64 `json:"percentage" validate:"gte=0,lte=100"`
	ExpenditureAmount *int64  `json:"expenditureAmount"`
	Remarks           string  `json:"remarks"`
}

// UpdateProgress sets the progress percentage. The first report moves
// work_order_created to work_in_progress; reaching 100 completes the
// work, stamping the completion date and final cost.
func (s *ProposalService) UpdateProgress(ctx context.Context, id string, req *UpdateProgressRequest, caller domain.Caller) (*domain.Proposal, error) {
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}

	p, err := s.transition(ctx, id, domain.TransitionUpdateProgress, caller, req.Remarks, func(p *domain.Proposal, now time.Time) error {
		if err := p.Ledger.SetProgress(req.Percentage); err != nil {
			return err
		}
		if req.ExpenditureAmount != nil {
			if *req.ExpenditureAmount < 0 {
				return errors.InvalidInput("expenditureAmount", "expenditure cannot be negative")
			}
			p.Ledger.ExpenditureAmount = *req.ExpenditureAmount
		}

		if req.Percentage >= 100 {
			completeProposal(p, now)
			return nil
		}
		if p.Status == domain.StatusWorkOrderCreated {
			p.SetStatus(domain.StatusWorkInProgress, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("proposal_id", p.ID).
		Str("serial_number", p.SerialNumber).
		Float64("percentage", req.Percentage).
		Str("status", string(p.Status)).
		Msg("Progress updated")
	return p, nil
}

// AddInstallmentRequest releases one installment of funds.
type AddInstallmentRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Date   string `json:"date" validate:"required"`
}

// AddInstallmentResult is the ledger view returned after a release.
type AddInstallmentResult struct {
	Installment      *domain.Installment `json:"installment"`
	TotalReleased    int64               `json:"totalReleased"`
	RemainingBalance int64               `json:"remainingBalance"`
}

// AddInstallment appends an installment, guarded by the sanctioned
// ceiling. The whole load-validate-append cycle retries on a version
// conflict so concurrent releases can never jointly overrun the cap.
func (s *ProposalService) AddInstallment(ctx context.Context, id string, req *AddInstallmentRequest, caller domain.Caller) (*AddInstallmentResult, error) {
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}
	if err := parseDate("date", req.Date); err != nil {
		return nil, err
	}

	var result *AddInstallmentResult
	var lastErr error
	for attempt := 0; attempt < installmentRetries; attempt++ {
		p, err := s.transition(ctx, id, domain.TransitionAddInstallment, caller, "", func(p *domain.Proposal, now time.Time) error {
			inst, err := p.Ledger.Release(req.Amount, req.Date, caller.ID, now)
			if err != nil {
				return err
			}
			result = &AddInstallmentResult{
				Installment:      inst,
				TotalReleased:    p.Ledger.TotalReleased,
				RemainingBalance: p.Ledger.RemainingBalance,
			}
			return nil
		})
		if err == nil {
			if s.metrics != nil {
				s.metrics.FundsReleased.Add(float64(req.Amount))
			}
			s.log.Info().
				Str("proposal_id", p.ID).
				Str("serial_number", p.SerialNumber).
				Int("installment_no", result.Installment.InstallmentNo).
				Int64("amount", req.Amount).
				Int64("total_released", result.TotalReleased).
				Int64("remaining_balance", result.RemainingBalance).
				Msg("Installment released")
			return result, nil
		}
		lastErr = err
		if !errors.IsCode(err, errors.ErrCodeConflict) {
			return nil, err
		}
	}
	return nil, lastErr
}

// CompleteWorkRequest closes out the work.
type CompleteWorkRequest struct {
	FinalExpenditure *int64 `json:"finalExpenditure"`
}

// CompleteWork forces progress to 100, stamps the completion date and
// final cost, and moves to work_completed.
func (s *ProposalService) CompleteWork(ctx context.Context, id string, req *CompleteWorkRequest, caller domain.Caller) (*domain.Proposal, error) {
	if req.FinalExpenditure != nil && *req.FinalExpenditure < 0 {
		return nil, errors.InvalidInput("finalExpenditure", "final expenditure cannot be negative")
	}

	p, err := s.transition(ctx, id, domain.TransitionCompleteWork, caller, "", func(p *domain.Proposal, now time.Time) error {
		if req.FinalExpenditure != nil {
			p.Ledger.ExpenditureAmount = *req.FinalExpenditure
		}
		completeProposal(p, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("proposal_id", p.ID).
		Str("serial_number", p.SerialNumber).
		Int64("final_cost", p.FinalCost).
		Str("completion_date", p.CompletionDate).
		Msg("Work completed")
	return p, nil
}

// CancelWorkRequest cancels work after the order stage. Override role only.
type CancelWorkRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// CancelWork moves the proposal to the terminal work_cancelled state.
// No regular role holds this transition; only the override role may
// trigger it.
func (s *ProposalService) CancelWork(ctx context.Context, id string, req *CancelWorkRequest, caller domain.Caller) (*domain.Proposal, error) {
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}

	p, err := s.transition(ctx, id, domain.TransitionCancelWork, caller, req.Reason, func(p *domain.Proposal, now time.Time) error {
		p.SetStatus(domain.StatusWorkCancelled, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("proposal_id", p.ID).
		Str("serial_number", p.SerialNumber).
		Str("cancelled_by", caller.ID).
		Str("reason", req.Reason).
		Msg("Work cancelled")
	return p, nil
}

// completeProposal applies the shared completion semantics: progress at
// 100, final cost from expenditure when present else the order amount,
// completion date stamped.
func completeProposal(p *domain.Proposal, now time.Time) {
	p.Ledger.ProgressPercentage = 100
	if p.Ledger.ExpenditureAmount > 0 {
		p.FinalCost = p.Ledger.ExpenditureAmount
	} else {
		p.FinalCost = p.WorkOrder.Amount
	}
	p.CompletionDate = now.Format(dateLayout)
	p.SetStatus(domain.StatusWorkCompleted, now)
}
