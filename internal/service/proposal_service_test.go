package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicworks/be-pw-proposals/internal/domain"
	"github.com/civicworks/be-pw-proposals/internal/errors"
	"github.com/civicworks/be-pw-proposals/internal/logger"
	"github.com/civicworks/be-pw-proposals/internal/repository"
)

var (
	submitter     = domain.Caller{ID: "user-1", Role: domain.RoleSubmitter, Department: "Agency A"}
	techApprover  = domain.Caller{ID: "tech-1", Role: domain.RoleTechnicalApprover, Department: "PWD"}
	adminApprover = domain.Caller{ID: "adm-1", Role: domain.RoleAdministrativeApprover, Department: "PWD"}
	tenderManager = domain.Caller{ID: "tm-1", Role: domain.RoleTenderManager, Department: "PWD"}
	woManager     = domain.Caller{ID: "wom-1", Role: domain.RoleWorkOrderManager, Department: "PWD"}
	monitor       = domain.Caller{ID: "pm-1", Role: domain.RoleProgressMonitor, Department: "PWD"}
	overrideAdmin = domain.Caller{ID: "root-1", Role: domain.RoleAdmin, Department: "HQ"}
)

func newTestEngine(t *testing.T) *ProposalService {
	t.Helper()
	store := repository.NewMemoryStore()
	return NewProposalService(store, store, nil, nil, logger.Nop(), "PW")
}

func createRequest(requiresTender bool) *CreateProposalRequest {
	return &CreateProposalRequest{
		WorkType:            "road",
		Name:                "Village link road",
		Agency:              "Agency A",
		Scheme:              "RDF",
		FinancialYear:       "2026-27",
		ApprovingDepartment: "PWD",
		District:            "North",
		Block:               "Block 3",
		ProposedAmount:      100000,
		RequiresTender:      requiresTender,
	}
}

func submitProposal(t *testing.T, svc *ProposalService, requiresTender bool) *domain.Proposal {
	t.Helper()
	p, err := svc.Submit(context.Background(), createRequest(requiresTender), submitter)
	require.NoError(t, err)
	return p
}

// toPendingWorkOrder walks a no-tender proposal through both approvals.
func toPendingWorkOrder(t *testing.T, svc *ProposalService) *domain.Proposal {
	t.Helper()
	ctx := context.Background()
	p := submitProposal(t, svc, false)

	_, err := svc.DecideTechnical(ctx, p.ID, &DecideTechnicalRequest{
		Action:         ActionApprove,
		ApprovalNumber: "TA1",
		ApprovalDate:   "2026-01-10",
		SanctionAmount: 95000,
	}, techApprover)
	require.NoError(t, err)

	p, err = svc.DecideAdministrative(ctx, p.ID, &DecideAdministrativeRequest{
		Action:         ActionApprove,
		ApprovalNumber: "AA1",
		ApprovalDate:   "2026-01-20",
		ApprovedAmount: 90000,
	}, adminApprover)
	require.NoError(t, err)
	return p
}

// toWorkOrderCreated additionally issues the work order.
func toWorkOrderCreated(t *testing.T, svc *ProposalService, number string) *domain.Proposal {
	t.Helper()
	p := toPendingWorkOrder(t, svc)
	p, err := svc.CreateWorkOrder(context.Background(), p.ID, &CreateWorkOrderRequest{
		Number:     number,
		Date:       "2026-02-01",
		Amount:     90000,
		Contractor: "BuildCo",
	}, woManager)
	require.NoError(t, err)
	return p
}

func TestSubmitCreatesProposal(t *testing.T) {
	svc := newTestEngine(t)
	p := submitProposal(t, svc, false)

	assert.Equal(t, domain.StatusPendingTechnicalApproval, p.Status)
	assert.Equal(t, fmt.Sprintf("PW%d0001", time.Now().Year()), p.SerialNumber)
	assert.Equal(t, submitter.ID, p.CreatedBy)
	assert.Equal(t, int64(1), p.Version)
	assert.Equal(t, domain.StagePending, p.Technical.Status)
	assert.Equal(t, domain.StagePending, p.Administrative.Status)
	assert.Equal(t, domain.StageNotStarted, p.Tender.Status)
	assert.Equal(t, domain.StagePending, p.WorkOrder.Status)
	assert.False(t, p.Ledger.Initialized)
}

func TestSubmitValidation(t *testing.T) {
	svc := newTestEngine(t)
	req := createRequest(false)
	req.Name = ""

	_, err := svc.Submit(context.Background(), req, submitter)
	assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))
}

func TestSubmitForbiddenRole(t *testing.T) {
	svc := newTestEngine(t)
	_, err := svc.Submit(context.Background(), createRequest(false), techApprover)
	assert.Equal(t, errors.ErrCodeForbidden, errors.CodeOf(err))
}

func TestSerialNumbersSequential(t *testing.T) {
	svc := newTestEngine(t)
	first := submitProposal(t, svc, false)
	second := submitProposal(t, svc, false)

	year := time.Now().Year()
	assert.Equal(t, fmt.Sprintf("PW%d0001", year), first.SerialNumber)
	assert.Equal(t, fmt.Sprintf("PW%d0002", year), second.SerialNumber)
}

func TestSerialNumbersUniqueUnderConcurrentSubmit(t *testing.T) {
	svc := newTestEngine(t)
	const n = 20

	serials := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := svc.Submit(context.Background(), createRequest(false), submitter)
			if err == nil {
				serials <- p.SerialNumber
			}
		}()
	}
	wg.Wait()
	close(serials)

	seen := map[string]bool{}
	for s := range serials {
		assert.False(t, seen[s], "duplicate serial %s", s)
		seen[s] = true
	}
	assert.Len(t, seen, n)
}

// Scenario: no-tender pipeline lands in pending_work_order.
func TestApprovalPipelineWithoutTender(t *testing.T) {
	svc := newTestEngine(t)
	p := toPendingWorkOrder(t, svc)

	assert.Equal(t, domain.StatusPendingWorkOrder, p.Status)
	assert.Equal(t, domain.StageApproved, p.Technical.Status)
	assert.Equal(t, "TA1", p.Technical.ApprovalNumber)
	assert.Equal(t, int64(95000), p.Technical.SanctionAmount)
	assert.Equal(t, techApprover.ID, p.Technical.DecidedBy)
	assert.Equal(t, domain.StageApproved, p.Administrative.Status)
	assert.Equal(t, "AA1", p.Administrative.ApprovalNumber)
	assert.Equal(t, int64(90000), p.Administrative.ApprovedAmount)
}

func TestTechnicalApproveRequiresFields(t *testing.T) {
	svc := newTestEngine(t)
	p := submitProposal(t, svc, false)
	ctx := context.Background()

	_, err := svc.DecideTechnical(ctx, p.ID, &DecideTechnicalRequest{
		Action:       ActionApprove,
		ApprovalDate: "2026-01-10",
	}, techApprover)
	assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))

	_, err = svc.DecideTechnical(ctx, p.ID, &DecideTechnicalRequest{
		Action: ActionReject,
	}, techApprover)
	assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))

	// Nothing was applied.
	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingTechnicalApproval, got.Status)
	assert.Equal(t, domain.StagePending, got.Technical.Status)
}

func TestTechnicalApprovalDepartmentGuard(t *testing.T) {
	svc := newTestEngine(t)
	p := submitProposal(t, svc, false)

	wrongDept := domain.Caller{ID: "tech-2", Role: domain.RoleTechnicalApprover, Department: "Irrigation"}
	_, err := svc.DecideTechnical(context.Background(), p.ID, &DecideTechnicalRequest{
		Action:         ActionApprove,
		ApprovalNumber: "TA1",
		ApprovalDate:   "2026-01-10",
		SanctionAmount: 95000,
	}, wrongDept)
	assert.Equal(t, errors.ErrCodeForbidden, errors.CodeOf(err))
}

// Scenario: rejection is terminal; the next stage cannot proceed.
func TestRejectTechnicalThenAdministrativeFails(t *testing.T) {
	svc := newTestEngine(t)
	p := submitProposal(t, svc, false)
	ctx := context.Background()

	rejected, err := svc.DecideTechnical(ctx, p.ID, &DecideTechnicalRequest{
		Action:          ActionReject,
		RejectionReason: "estimate not supported by site survey",
	}, techApprover)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejectedTechnicalApproval, rejected.Status)
	assert.Equal(t, domain.StageRejected, rejected.Technical.Status)

	_, err = svc.DecideAdministrative(ctx, p.ID, &DecideAdministrativeRequest{
		Action:         ActionApprove,
		ApprovalNumber: "AA1",
		ApprovalDate:   "2026-01-20",
		ApprovedAmount: 90000,
	}, adminApprover)
	assert.Equal(t, errors.ErrCodeInvalidState, errors.CodeOf(err))

	// A second decision on the rejected stage also fails.
	_, err = svc.DecideTechnical(ctx, p.ID, &DecideTechnicalRequest{
		Action:          ActionReject,
		RejectionReason: "again",
	}, techApprover)
	assert.Equal(t, errors.ErrCodeInvalidState, errors.CodeOf(err))
}

func TestTenderFlow(t *testing.T) {
	svc := newTestEngine(t)
	ctx := context.Background()
	p := submitProposal(t, svc, true)

	_, err := svc.DecideTechnical(ctx, p.ID, &DecideTechnicalRequest{
		Action:         ActionApprove,
		ApprovalNumber: "TA1",
		ApprovalDate:   "2026-01-10",
		SanctionAmount: 95000,
	}, techApprover)
	require.NoError(t, err)

	afterAdmin, err := svc.DecideAdministrative(ctx, p.ID, &DecideAdministrativeRequest{
		Action:         ActionApprove,
		ApprovalNumber: "AA1",
		ApprovalDate:   "2026-01-20",
		ApprovedAmount: 90000,
	}, adminApprover)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingTender, afterAdmin.Status)

	started, err := svc.StartTender(ctx, p.ID, &StartTenderRequest{
		TenderNumber: "TN-7",
		OpenedDate:   "2026-02-01",
	}, tenderManager)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTenderInProgress, started.Status)
	assert.Equal(t, domain.StageInProgress, started.Tender.Status)

	advanced, err := svc.AdvanceTender(ctx, p.ID, &AdvanceTenderRequest{Stage: "bids_opened"}, tenderManager)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTenderInProgress, advanced.Status)
	assert.Equal(t, "bids_opened", advanced.Tender.Stage)

	awarded, err := svc.AwardTender(ctx, p.ID, &AwardTenderRequest{
		Contractor: "BuildCo",
		Amount:     85000,
	}, tenderManager)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingWorkOrder, awarded.Status)
	assert.Equal(t, domain.StageAwarded, awarded.Tender.Status)
	assert.Equal(t, "BuildCo", awarded.Tender.Contractor)
	assert.Equal(t, int64(85000), awarded.Tender.AwardedAmount)
}

func TestCancelTenderResetsSubStatus(t *testing.T) {
	svc := newTestEngine(t)
	ctx := context.Background()
	p := submitProposal(t, svc, true)

	_, err := svc.DecideTechnical(ctx, p.ID, &DecideTechnicalRequest{
		Action: ActionApprove, ApprovalNumber: "TA1", ApprovalDate: "2026-01-10", SanctionAmount: 95000,
	}, techApprover)
	require.NoError(t, err)
	_, err = svc.DecideAdministrative(ctx, p.ID, &DecideAdministrativeRequest{
		Action: ActionApprove, ApprovalNumber: "AA1", ApprovalDate: "2026-01-20", ApprovedAmount: 90000,
	}, adminApprover)
	require.NoError(t, err)
	_, err = svc.StartTender(ctx, p.ID, &StartTenderRequest{TenderNumber: "TN-8", OpenedDate: "2026-02-01"}, tenderManager)
	require.NoError(t, err)

	cancelled, err := svc.CancelTender(ctx, p.ID, &CancelTenderRequest{Reason: "single bid"}, tenderManager)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingTender, cancelled.Status)
	assert.Equal(t, domain.StageNotStarted, cancelled.Tender.Status)
	assert.Empty(t, cancelled.Tender.TenderNumber)

	// The tender can be restarted after cancellation.
	restarted, err := svc.StartTender(ctx, p.ID, &StartTenderRequest{TenderNumber: "TN-9", OpenedDate: "2026-03-01"}, tenderManager)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTenderInProgress, restarted.Status)
}

// Scenario: work order creation initializes the ledger.
func TestCreateWorkOrderInitializesLedger(t *testing.T) {
	svc := newTestEngine(t)
	p := toWorkOrderCreated(t, svc, "WO1")

	assert.Equal(t, domain.StatusWorkOrderCreated, p.Status)
	assert.Equal(t, domain.StageIssued, p.WorkOrder.Status)
	assert.Equal(t, "WO1", p.WorkOrder.OrderNumber)
	assert.True(t, p.Ledger.Initialized)
	assert.Equal(t, int64(90000), p.Ledger.SanctionedAmount)
	assert.Equal(t, int64(0), p.Ledger.TotalReleased)
	assert.Equal(t, int64(90000), p.Ledger.RemainingBalance)
}

func TestCreateWorkOrderDuplicateNumber(t *testing.T) {
	svc := newTestEngine(t)
	toWorkOrderCreated(t, svc, "WO1")

	second := toPendingWorkOrder(t, svc)
	_, err := svc.CreateWorkOrder(context.Background(), second.ID, &CreateWorkOrderRequest{
		Number:     "WO1",
		Date:       "2026-02-05",
		Amount:     50000,
		Contractor: "OtherCo",
	}, woManager)
	assert.Equal(t, errors.ErrCodeConflict, errors.CodeOf(err))

	got, err := svc.Get(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingWorkOrder, got.Status)
}

// Scenario: installments against the sanctioned amount, overrun rejected.
func TestAddInstallmentOverrun(t *testing.T) {
	svc := newTestEngine(t)
	p := toWorkOrderCreated(t, svc, "WO1")
	ctx := context.Background()

	result, err := svc.AddInstallment(ctx, p.ID, &AddInstallmentRequest{Amount: 50000, Date: "2026-03-01"}, woManager)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Installment.InstallmentNo)
	assert.Equal(t, int64(50000), result.TotalReleased)
	assert.Equal(t, int64(40000), result.RemainingBalance)

	_, err = svc.AddInstallment(ctx, p.ID, &AddInstallmentRequest{Amount: 45000, Date: "2026-04-01"}, woManager)
	assert.Equal(t, errors.ErrCodeOverrun, errors.CodeOf(err))

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), got.Ledger.TotalReleased)
	assert.Equal(t, int64(40000), got.Ledger.RemainingBalance)
	assert.Len(t, got.Ledger.Installments, 1)
	assert.NoError(t, got.Ledger.Validate())
}

func TestConcurrentInstallmentsNeverOverrun(t *testing.T) {
	svc := newTestEngine(t)
	p := toWorkOrderCreated(t, svc, "WO1") // sanctioned 90000
	ctx := context.Background()

	const workers = 10
	const amount = 20000

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddInstallment(ctx, p.ID, &AddInstallmentRequest{Amount: amount, Date: "2026-03-01"}, woManager)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(amount*successes), got.Ledger.TotalReleased)
	assert.LessOrEqual(t, got.Ledger.TotalReleased, got.Ledger.SanctionedAmount)
	assert.Len(t, got.Ledger.Installments, successes)
	assert.NoError(t, got.Ledger.Validate())
}

func TestUpdateWorkOrder(t *testing.T) {
	svc := newTestEngine(t)
	p := toWorkOrderCreated(t, svc, "WO1")
	ctx := context.Background()

	_, err := svc.AddInstallment(ctx, p.ID, &AddInstallmentRequest{Amount: 50000, Date: "2026-03-01"}, woManager)
	require.NoError(t, err)

	raised := int64(120000)
	updated, err := svc.UpdateWorkOrder(ctx, p.ID, &UpdateWorkOrderRequest{Amount: &raised}, woManager)
	require.NoError(t, err)
	assert.Equal(t, int64(120000), updated.WorkOrder.Amount)
	assert.Equal(t, int64(120000), updated.Ledger.SanctionedAmount)
	assert.Equal(t, int64(70000), updated.Ledger.RemainingBalance)

	lowered := int64(40000)
	_, err = svc.UpdateWorkOrder(ctx, p.ID, &UpdateWorkOrderRequest{Amount: &lowered}, woManager)
	assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))

	// Revision is closed once work starts.
	_, err = svc.StartWork(ctx, p.ID, woManager)
	require.NoError(t, err)
	contractor := "NewCo"
	_, err = svc.UpdateWorkOrder(ctx, p.ID, &UpdateWorkOrderRequest{Contractor: &contractor}, woManager)
	assert.Equal(t, errors.ErrCodeInvalidState, errors.CodeOf(err))
}

// Scenario: progress reaching 100 completes the work.
func TestUpdateProgressCompletion(t *testing.T) {
	svc := newTestEngine(t)
	p := toWorkOrderCreated(t, svc, "WO1")
	ctx := context.Background()

	inProgress, err := svc.UpdateProgress(ctx, p.ID, &UpdateProgressRequest{Percentage: 40}, monitor)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWorkInProgress, inProgress.Status)
	assert.Equal(t, float64(40), inProgress.Ledger.ProgressPercentage)

	done, err := svc.UpdateProgress(ctx, p.ID, &UpdateProgressRequest{Percentage: 100}, monitor)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWorkCompleted, done.Status)
	assert.Equal(t, float64(100), done.Ledger.ProgressPercentage)
	assert.NotEmpty(t, done.CompletionDate)
	assert.Equal(t, int64(90000), done.FinalCost, "final cost falls back to the work-order amount")

	// Terminal: no further progress reports.
	_, err = svc.UpdateProgress(ctx, p.ID, &UpdateProgressRequest{Percentage: 100}, monitor)
	assert.Equal(t, errors.ErrCodeInvalidState, errors.CodeOf(err))
}

func TestUpdateProgressUsesExpenditureForFinalCost(t *testing.T) {
	svc := newTestEngine(t)
	p := toWorkOrderCreated(t, svc, "WO1")
	ctx := context.Background()

	exp := int64(87000)
	done, err := svc.UpdateProgress(ctx, p.ID, &UpdateProgressRequest{Percentage: 100, ExpenditureAmount: &exp}, monitor)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWorkCompleted, done.Status)
	assert.Equal(t, int64(87000), done.FinalCost)
}

func TestProgressCannotDecrease(t *testing.T) {
	svc := newTestEngine(t)
	p := toWorkOrderCreated(t, svc, "WO1")
	ctx := context.Background()

	_, err := svc.UpdateProgress(ctx, p.ID, &UpdateProgressRequest{Percentage: 60}, monitor)
	require.NoError(t, err)

	_, err = svc.UpdateProgress(ctx, p.ID, &UpdateProgressRequest{Percentage: 30}, monitor)
	assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(60), got.Ledger.ProgressPercentage)
}

func TestCompleteWork(t *testing.T) {
	svc := newTestEngine(t)
	p := toWorkOrderCreated(t, svc, "WO1")
	ctx := context.Background()

	// complete_work requires work_in_progress.
	_, err := svc.CompleteWork(ctx, p.ID, &CompleteWorkRequest{}, monitor)
	assert.Equal(t, errors.ErrCodeInvalidState, errors.CodeOf(err))

	_, err = svc.StartWork(ctx, p.ID, woManager)
	require.NoError(t, err)

	exp := int64(88000)
	done, err := svc.CompleteWork(ctx, p.ID, &CompleteWorkRequest{FinalExpenditure: &exp}, monitor)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWorkCompleted, done.Status)
	assert.Equal(t, float64(100), done.Ledger.ProgressPercentage)
	assert.Equal(t, int64(88000), done.FinalCost)
	assert.NotEmpty(t, done.CompletionDate)
}

func TestCancelWorkOverrideOnly(t *testing.T) {
	svc := newTestEngine(t)
	p := toWorkOrderCreated(t, svc, "WO1")
	ctx := context.Background()

	_, err := svc.CancelWork(ctx, p.ID, &CancelWorkRequest{Reason: "funding withdrawn"}, monitor)
	assert.Equal(t, errors.ErrCodeForbidden, errors.CodeOf(err))

	cancelled, err := svc.CancelWork(ctx, p.ID, &CancelWorkRequest{Reason: "funding withdrawn"}, overrideAdmin)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWorkCancelled, cancelled.Status)

	// Terminal: no releases after cancellation.
	_, err = svc.AddInstallment(ctx, p.ID, &AddInstallmentRequest{Amount: 1000, Date: "2026-03-01"}, woManager)
	assert.Equal(t, errors.ErrCodeInvalidState, errors.CodeOf(err))
}

func TestDeleteRules(t *testing.T) {
	svc := newTestEngine(t)
	ctx := context.Background()

	// Owner deletes while still pending technical approval.
	p := submitProposal(t, svc, false)
	require.NoError(t, svc.Delete(ctx, p.ID, submitter))
	_, err := svc.Get(ctx, p.ID)
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))

	// Past the first state the owner may no longer delete.
	p2 := toPendingWorkOrder(t, svc)
	err = svc.Delete(ctx, p2.ID, submitter)
	assert.Equal(t, errors.ErrCodeInvalidState, errors.CodeOf(err))

	// The override role may.
	require.NoError(t, svc.Delete(ctx, p2.ID, overrideAdmin))

	// A stranger may not delete even in the first state.
	p3 := submitProposal(t, svc, false)
	other := domain.Caller{ID: "user-9", Role: domain.RoleSubmitter}
	err = svc.Delete(ctx, p3.ID, other)
	assert.Equal(t, errors.ErrCodeForbidden, errors.CodeOf(err))
}

func TestAuditTrail(t *testing.T) {
	svc := newTestEngine(t)
	p := toWorkOrderCreated(t, svc, "WO1")
	ctx := context.Background()

	entries, err := svc.AuditTrail(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, domain.TransitionSubmit, entries[0].Transition)
	assert.Equal(t, domain.TransitionApproveTechnical, entries[1].Transition)
	assert.Equal(t, domain.TransitionApproveAdministrative, entries[2].Transition)
	assert.Equal(t, domain.TransitionCreateWorkOrder, entries[3].Transition)

	// Each entry records the status edge it crossed.
	assert.Equal(t, domain.StatusPendingTechnicalApproval, entries[1].StatusBefore)
	assert.Equal(t, domain.StatusPendingAdministrativeApproval, entries[1].StatusAfter)
	assert.Equal(t, woManager.ID, entries[3].Actor)
}

func TestGetNotFound(t *testing.T) {
	svc := newTestEngine(t)
	_, err := svc.Get(context.Background(), "no-such-id")
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))
}

func TestListFilters(t *testing.T) {
	svc := newTestEngine(t)
	ctx := context.Background()
	submitProposal(t, svc, false)
	toPendingWorkOrder(t, svc)

	status := domain.StatusPendingWorkOrder
	proposals, total, err := svc.List(ctx, domain.ListFilter{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, proposals, 1)
	assert.Equal(t, domain.StatusPendingWorkOrder, proposals[0].Status)

	_, total, err = svc.List(ctx, domain.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}
