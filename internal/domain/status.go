package domain

// Status is the single canonical lifecycle state of a proposal. The
// human-readable form is derived by Display, never stored.
type Status string

const (
	StatusPendingTechnicalApproval       Status = "pending_technical_approval"
	StatusRejectedTechnicalApproval      Status = "rejected_technical_approval"
	StatusPendingAdministrativeApproval  Status = "pending_administrative_approval"
	StatusRejectedAdministrativeApproval Status = "rejected_administrative_approval"
	StatusPendingTender                  Status = "pending_tender"
	StatusTenderInProgress               Status = "tender_in_progress"
	StatusPendingWorkOrder               Status = "pending_work_order"
	StatusWorkOrderCreated               Status = "work_order_created"
	StatusWorkInProgress                 Status = "work_in_progress"
	StatusWorkCompleted                  Status = "work_completed"
	StatusWorkCancelled                  Status = "work_cancelled"
)

// AllStatuses lists every lifecycle state, used by the closure tests.
var AllStatuses = []Status{
	StatusPendingTechnicalApproval,
	StatusRejectedTechnicalApproval,
	StatusPendingAdministrativeApproval,
	StatusRejectedAdministrativeApproval,
	StatusPendingTender,
	StatusTenderInProgress,
	StatusPendingWorkOrder,
	StatusWorkOrderCreated,
	StatusWorkInProgress,
	StatusWorkCompleted,
	StatusWorkCancelled,
}

var statusDisplay = map[Status]string{
	StatusPendingTechnicalApproval:       "Pending Technical Approval",
	StatusRejectedTechnicalApproval:      "Technical Approval Rejected",
	StatusPendingAdministrativeApproval:  "Pending Administrative Approval",
	StatusRejectedAdministrativeApproval: "Administrative Approval Rejected",
	StatusPendingTender:                  "Pending Tender",
	StatusTenderInProgress:               "Tender In Progress",
	StatusPendingWorkOrder:               "Pending Work Order",
	StatusWorkOrderCreated:               "Work Order Created",
	StatusWorkInProgress:                 "Work In Progress",
	StatusWorkCompleted:                  "Work Completed",
	StatusWorkCancelled:                  "Work Cancelled",
}

// Display returns the human-readable status label.
func (s Status) Display() string {
	if d, ok := statusDisplay[s]; ok {
		return d
	}
	return string(s)
}

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	_, ok := statusDisplay[s]
	return ok
}

// Terminal reports whether no further transition leaves s.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejectedTechnicalApproval,
		StatusRejectedAdministrativeApproval,
		StatusWorkCompleted,
		StatusWorkCancelled:
		return true
	}
	return false
}

// Transition names every guarded lifecycle operation.
type Transition string

const (
	TransitionSubmit                Transition = "submit"
	TransitionApproveTechnical      Transition = "approve_technical"
	TransitionRejectTechnical       Transition = "reject_technical"
	TransitionApproveAdministrative Transition = "approve_administrative"
	TransitionRejectAdministrative  Transition = "reject_administrative"
	TransitionStartTender           Transition = "start_tender"
	TransitionAdvanceTender         Transition = "advance_tender"
	TransitionAwardTender           Transition = "award_tender"
	TransitionCancelTender          Transition = "cancel_tender"
	TransitionCreateWorkOrder       Transition = "create_work_order"
	TransitionUpdateWorkOrder       Transition = "update_work_order"
	TransitionStartWork             Transition = "start_work"
	TransitionUpdateProgress        Transition = "update_progress"
	TransitionAddInstallment        Transition = "add_installment"
	TransitionCompleteWork          Transition = "complete_work"
	TransitionCancelWork            Transition = "cancel_work"
	TransitionDelete                Transition = "delete"
)

// AllTransitions lists every transition, used by the closure tests.
var AllTransitions = []Transition{
	TransitionSubmit,
	TransitionApproveTechnical,
	TransitionRejectTechnical,
	TransitionApproveAdministrative,
	TransitionRejectAdministrative,
	TransitionStartTender,
	TransitionAdvanceTender,
	TransitionAwardTender,
	TransitionCancelTender,
	TransitionCreateWorkOrder,
	TransitionUpdateWorkOrder,
	TransitionStartWork,
	TransitionUpdateProgress,
	TransitionAddInstallment,
	TransitionCompleteWork,
	TransitionCancelWork,
	TransitionDelete,
}

// Transitions maps each transition to the states it may be applied
// from. The table is closed: a (transition, state) pair not listed here
// always fails with an invalid-state error and no mutation.
//
// Operations that do not change the lifecycle status (update_work_order,
// add_installment, advance_tender) still appear here; they share the
// same source-state guard as everything else.
var Transitions = map[Transition][]Status{
	TransitionSubmit: nil, // creates the aggregate; no source state

	TransitionApproveTechnical: {StatusPendingTechnicalApproval},
	TransitionRejectTechnical:  {StatusPendingTechnicalApproval},

	TransitionApproveAdministrative: {StatusPendingAdministrativeApproval},
	TransitionRejectAdministrative:  {StatusPendingAdministrativeApproval},

	TransitionStartTender:   {StatusPendingTender},
	TransitionAdvanceTender: {StatusTenderInProgress},
	TransitionAwardTender:   {StatusTenderInProgress},
	TransitionCancelTender:  {StatusTenderInProgress},

	TransitionCreateWorkOrder: {StatusPendingWorkOrder},
	TransitionUpdateWorkOrder: {StatusWorkOrderCreated},
	TransitionStartWork:       {StatusWorkOrderCreated},

	TransitionUpdateProgress: {StatusWorkOrderCreated, StatusWorkInProgress},
	TransitionAddInstallment: {StatusWorkOrderCreated, StatusWorkInProgress},
	TransitionCompleteWork:   {StatusWorkInProgress},
	TransitionCancelWork:     {StatusWorkOrderCreated, StatusWorkInProgress},

	TransitionDelete: {StatusPendingTechnicalApproval},
}

// CanApply reports whether t may be applied from state from.
func CanApply(t Transition, from Status) bool {
	for _, s := range Transitions[t] {
		if s == from {
			return true
		}
	}
	return false
}
