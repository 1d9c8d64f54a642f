package domain

import "github.com/civicworks/be-pw-proposals/internal/errors"

// Role is a caller role recognized by the lifecycle guards.
type Role string

const (
	RoleSubmitter              Role = "submitter"
	RoleTechnicalApprover      Role = "technical_approver"
	RoleAdministrativeApprover Role = "administrative_approver"
	RoleTenderManager          Role = "tender_manager"
	RoleWorkOrderManager       Role = "work_order_manager"
	RoleProgressMonitor        Role = "progress_monitor"
	// RoleAdmin has unrestricted authority: it passes every role,
	// department and deletion guard.
	RoleAdmin Role = "admin"
)

// Caller is the identity context resolved by the identity collaborator.
type Caller struct {
	ID         string `json:"id"`
	Role       Role   `json:"role"`
	Department string `json:"department"`
}

// RolePolicy maps each role to the transitions it may trigger. Guard
// logic is table-driven so it can be tested independently of the
// transition handlers.
var RolePolicy = map[Role]map[Transition]bool{
	RoleSubmitter: {
		TransitionSubmit: true,
		TransitionDelete: true,
	},
	RoleTechnicalApprover: {
		TransitionApproveTechnical: true,
		TransitionRejectTechnical:  true,
	},
	RoleAdministrativeApprover: {
		TransitionApproveAdministrative: true,
		TransitionRejectAdministrative:  true,
	},
	RoleTenderManager: {
		TransitionStartTender:   true,
		TransitionAdvanceTender: true,
		TransitionAwardTender:   true,
		TransitionCancelTender:  true,
	},
	RoleWorkOrderManager: {
		TransitionCreateWorkOrder: true,
		TransitionUpdateWorkOrder: true,
		TransitionStartWork:       true,
		TransitionAddInstallment:  true,
	},
	RoleProgressMonitor: {
		TransitionUpdateProgress: true,
		TransitionCompleteWork:   true,
	},
	// cancel_work is deliberately absent from every regular role;
	// only the override role reaches work_cancelled.
}

// departmentGuarded lists the transitions requiring the caller's
// department to match the proposal's approving department.
var departmentGuarded = map[Transition]bool{
	TransitionApproveTechnical:      true,
	TransitionRejectTechnical:       true,
	TransitionApproveAdministrative: true,
	TransitionRejectAdministrative:  true,
}

// Authorize checks the role and department guards for applying t to p.
// It does not check the source state; that is Guard's job.
func Authorize(caller Caller, t Transition, p *Proposal) error {
	if caller.Role == RoleAdmin {
		return nil
	}
	if !RolePolicy[caller.Role][t] {
		return errors.Forbidden("role " + string(caller.Role) + " may not " + string(t))
	}
	if departmentGuarded[t] && p != nil && caller.Department != p.ApprovingDepartment {
		return errors.Forbidden("caller department does not match the approving department")
	}
	if t == TransitionDelete && p != nil && caller.ID != p.CreatedBy {
		return errors.Forbidden("only the submitting identity may delete a proposal")
	}
	return nil
}
