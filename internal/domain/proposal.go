// Package domain holds the proposal aggregate, its stage records and
// ledger, and the lifecycle rules (transition table and role policy).
// Everything here is pure in-memory logic; persistence and transport
// live elsewhere.
package domain

import (
	"time"

	"github.com/civicworks/be-pw-proposals/internal/errors"
)

// StageStatus is the small per-stage status carried by each stage record.
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageApproved   StageStatus = "approved"
	StageRejected   StageStatus = "rejected"
	StageNotStarted StageStatus = "not_started"
	StageInProgress StageStatus = "in_progress"
	StageAwarded    StageStatus = "awarded"
	StageIssued     StageStatus = "issued"
)

// TechnicalApproval records the outcome of the technical approval stage.
type TechnicalApproval struct {
	Status          StageStatus `json:"status"`
	ApprovalNumber  string      `json:"approvalNumber,omitempty"`
	ApprovalDate    string      `json:"approvalDate,omitempty"`
	SanctionAmount  int64       `json:"sanctionAmount,omitempty"`
	Remarks         string      `json:"remarks,omitempty"`
	RejectionReason string      `json:"rejectionReason,omitempty"`
	DecidedBy       string      `json:"decidedBy,omitempty"`
	DecidedAt       *time.Time  `json:"decidedAt,omitempty"`
}

// AdministrativeApproval records the outcome of the administrative
// approval stage.
type AdministrativeApproval struct {
	Status          StageStatus `json:"status"`
	ApprovalNumber  string      `json:"approvalNumber,omitempty"`
	ApprovalDate    string      `json:"approvalDate,omitempty"`
	ApprovedAmount  int64       `json:"approvedAmount,omitempty"`
	Remarks         string      `json:"remarks,omitempty"`
	RejectionReason string      `json:"rejectionReason,omitempty"`
	DecidedBy       string      `json:"decidedBy,omitempty"`
	DecidedAt       *time.Time  `json:"decidedAt,omitempty"`
}

// TenderProcess records the competitive tender stage. Stage carries the
// free-form detail set by advance (published, bids_opened, evaluation).
type TenderProcess struct {
	Status        StageStatus `json:"status"`
	Stage         string      `json:"stage,omitempty"`
	TenderNumber  string      `json:"tenderNumber,omitempty"`
	OpenedDate    string      `json:"openedDate,omitempty"`
	Contractor    string      `json:"contractor,omitempty"`
	AwardedAmount int64       `json:"awardedAmount,omitempty"`
	AwardedBy     string      `json:"awardedBy,omitempty"`
	AwardedAt     *time.Time  `json:"awardedAt,omitempty"`
}

// Reset returns the tender record to its initial state after cancellation.
func (t *TenderProcess) Reset() {
	*t = TenderProcess{Status: StageNotStarted}
}

// WorkOrder records the issued work order.
type WorkOrder struct {
	Status      StageStatus `json:"status"`
	OrderNumber string      `json:"orderNumber,omitempty"`
	OrderDate   string      `json:"orderDate,omitempty"`
	Amount      int64       `json:"amount,omitempty"`
	Contractor  string      `json:"contractor,omitempty"`
	IssuedBy    string      `json:"issuedBy,omitempty"`
	IssuedAt    *time.Time  `json:"issuedAt,omitempty"`
}

// Installment is one disbursement against the sanctioned amount.
// Immutable once recorded; InstallmentNo is 1-based and contiguous.
type Installment struct {
	InstallmentNo int       `json:"installmentNo"`
	Amount        int64     `json:"amount"`
	Date          string    `json:"date"`
	ReleasedBy    string    `json:"releasedBy,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Ledger tracks fund release against the sanctioned amount for one
// proposal. It is initialized when the work order is created.
type Ledger struct {
	Initialized        bool          `json:"initialized"`
	SanctionedAmount   int64         `json:"sanctionedAmount"`
	TotalReleased      int64         `json:"totalReleased"`
	RemainingBalance   int64         `json:"remainingBalance"`
	ProgressPercentage float64       `json:"progressPercentage"`
	ExpenditureAmount  int64         `json:"expenditureAmount"`
	Installments       []Installment `json:"installments"`
}

// Init sets the sanctioned amount from the work-order amount.
func (l *Ledger) Init(amount int64) {
	l.Initialized = true
	l.SanctionedAmount = amount
	l.TotalReleased = 0
	l.Installments = nil
	l.recompute()
}

// Release appends an installment, enforcing the overrun invariant.
func (l *Ledger) Release(amount int64, date, actor string, now time.Time) (*Installment, error) {
	if !l.Initialized {
		return nil, errors.New(errors.ErrCodeInvalidState, "ledger is not initialized")
	}
	if amount <= 0 {
		return nil, errors.InvalidInput("amount", "installment amount must be positive")
	}
	if l.TotalReleased+amount > l.SanctionedAmount {
		return nil, errors.Overrun(amount, l.RemainingBalance)
	}

	inst := Installment{
		InstallmentNo: len(l.Installments) + 1,
		Amount:        amount,
		Date:          date,
		ReleasedBy:    actor,
		CreatedAt:     now,
	}
	l.Installments = append(l.Installments, inst)
	l.TotalReleased += amount
	l.recompute()
	return &l.Installments[len(l.Installments)-1], nil
}

// Revise changes the sanctioned amount, never below what is already
// released, and re-derives the remaining balance.
func (l *Ledger) Revise(amount int64) error {
	if !l.Initialized {
		return errors.New(errors.ErrCodeInvalidState, "ledger is not initialized")
	}
	if amount < l.TotalReleased {
		return errors.InvalidInput("amount",
			"sanctioned amount cannot be reduced below the amount already released")
	}
	l.SanctionedAmount = amount
	l.recompute()
	return nil
}

// SetProgress updates the progress percentage. Progress never decreases.
func (l *Ledger) SetProgress(pct float64) error {
	if pct < 0 || pct > 100 {
		return errors.InvalidInput("percentage", "progress must be between 0 and 100")
	}
	if pct < l.ProgressPercentage {
		return errors.InvalidInput("percentage", "progress cannot decrease")
	}
	l.ProgressPercentage = pct
	return nil
}

func (l *Ledger) recompute() {
	l.RemainingBalance = l.SanctionedAmount - l.TotalReleased
}

// Validate checks the ledger invariants: derived balance, installment
// sum and contiguous 1-based numbering.
func (l *Ledger) Validate() error {
	if l.RemainingBalance != l.SanctionedAmount-l.TotalReleased {
		return errors.New(errors.ErrCodeInternal, "remaining balance does not match sanctioned minus released")
	}
	if l.RemainingBalance < 0 {
		return errors.New(errors.ErrCodeInternal, "remaining balance is negative")
	}
	var sum int64
	for i, inst := range l.Installments {
		if inst.InstallmentNo != i+1 {
			return errors.Newf(errors.ErrCodeInternal, "installment %d has sequence %d", i, inst.InstallmentNo)
		}
		sum += inst.Amount
	}
	if sum != l.TotalReleased {
		return errors.New(errors.ErrCodeInternal, "installment sum does not match total released")
	}
	return nil
}

// Proposal is the aggregate root: one capital-works item moving through
// the approval and execution pipeline. It owns exactly one of each
// stage record and one ledger.
type Proposal struct {
	ID           string `json:"id"`
	SerialNumber string `json:"serialNumber"`

	WorkType            string `json:"workType"`
	Name                string `json:"name"`
	Agency              string `json:"agency"`
	Scheme              string `json:"scheme,omitempty"`
	Description         string `json:"description,omitempty"`
	FinancialYear       string `json:"financialYear"`
	WorkDepartment      string `json:"workDepartment,omitempty"`
	UserDepartment      string `json:"userDepartment,omitempty"`
	ApprovingDepartment string `json:"approvingDepartment"`
	District            string `json:"district,omitempty"`
	Block               string `json:"block,omitempty"`
	Location            string `json:"location,omitempty"`
	ProposedAmount      int64  `json:"proposedAmount"`
	RequiresDPR         bool   `json:"requiresDPR"`
	RequiresTender      bool   `json:"requiresTender"`

	Status    Status `json:"status"`
	CreatedBy string `json:"createdBy"`

	CompletionDate string `json:"completionDate,omitempty"`
	FinalCost      int64  `json:"finalCost,omitempty"`

	Technical      TechnicalApproval      `json:"technicalApproval"`
	Administrative AdministrativeApproval `json:"administrativeApproval"`
	Tender         TenderProcess          `json:"tenderProcess"`
	WorkOrder      WorkOrder              `json:"workOrder"`
	Ledger         Ledger                 `json:"ledger"`

	Version            int64     `json:"version"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
	LastStatusChangeAt time.Time `json:"lastStatusChangeAt"`
}

// NewProposal creates an aggregate in the initial state with empty
// stage records.
func NewProposal(now time.Time) *Proposal {
	return &Proposal{
		Status:             StatusPendingTechnicalApproval,
		Technical:          TechnicalApproval{Status: StagePending},
		Administrative:     AdministrativeApproval{Status: StagePending},
		Tender:             TenderProcess{Status: StageNotStarted},
		WorkOrder:          WorkOrder{Status: StagePending},
		CreatedAt:          now,
		UpdatedAt:          now,
		LastStatusChangeAt: now,
	}
}

// SetStatus moves the proposal to s, stamping the status-change time.
func (p *Proposal) SetStatus(s Status, now time.Time) {
	p.Status = s
	p.LastStatusChangeAt = now
	p.UpdatedAt = now
}

// Guard verifies the proposal's current status is a legal source for t.
func (p *Proposal) Guard(t Transition) error {
	if !CanApply(t, p.Status) {
		return errors.InvalidState(string(t), string(p.Status))
	}
	return nil
}
