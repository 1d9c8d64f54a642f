package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/civicworks/be-pw-proposals/internal/errors"
)

func testProposal() *Proposal {
	p := NewProposal(time.Now())
	p.ID = "p-1"
	p.CreatedBy = "user-1"
	p.ApprovingDepartment = "PWD"
	return p
}

func TestRolePolicy(t *testing.T) {
	p := testProposal()

	tests := []struct {
		role       Role
		department string
		transition Transition
		allowed    bool
	}{
		{RoleSubmitter, "", TransitionSubmit, true},
		{RoleSubmitter, "", TransitionApproveTechnical, false},
		{RoleTechnicalApprover, "PWD", TransitionApproveTechnical, true},
		{RoleTechnicalApprover, "PWD", TransitionRejectTechnical, true},
		{RoleTechnicalApprover, "PWD", TransitionApproveAdministrative, false},
		{RoleAdministrativeApprover, "PWD", TransitionApproveAdministrative, true},
		{RoleAdministrativeApprover, "PWD", TransitionCreateWorkOrder, false},
		{RoleTenderManager, "", TransitionStartTender, true},
		{RoleTenderManager, "", TransitionAwardTender, true},
		{RoleTenderManager, "", TransitionAddInstallment, false},
		{RoleWorkOrderManager, "", TransitionCreateWorkOrder, true},
		{RoleWorkOrderManager, "", TransitionAddInstallment, true},
		{RoleWorkOrderManager, "", TransitionUpdateProgress, false},
		{RoleProgressMonitor, "", TransitionUpdateProgress, true},
		{RoleProgressMonitor, "", TransitionCompleteWork, true},
		{RoleProgressMonitor, "", TransitionCancelWork, false},
		// cancel_work belongs to no regular role.
		{RoleWorkOrderManager, "", TransitionCancelWork, false},
		{RoleTenderManager, "", TransitionCancelWork, false},
	}

	for _, tt := range tests {
		caller := Caller{ID: "user-1", Role: tt.role, Department: tt.department}
		err := Authorize(caller, tt.transition, p)
		if tt.allowed {
			assert.NoError(t, err, "%s / %s", tt.role, tt.transition)
		} else {
			assert.Equal(t, errors.ErrCodeForbidden, errors.CodeOf(err), "%s / %s", tt.role, tt.transition)
		}
	}
}

func TestAuthorizeDepartmentGuard(t *testing.T) {
	p := testProposal()

	wrongDept := Caller{ID: "u", Role: RoleTechnicalApprover, Department: "Irrigation"}
	err := Authorize(wrongDept, TransitionApproveTechnical, p)
	assert.Equal(t, errors.ErrCodeForbidden, errors.CodeOf(err))

	// The department guard only applies to approval decisions.
	wrongDeptTender := Caller{ID: "u", Role: RoleTenderManager, Department: "Irrigation"}
	assert.NoError(t, Authorize(wrongDeptTender, TransitionStartTender, p))
}

func TestAuthorizeAdminOverride(t *testing.T) {
	p := testProposal()
	admin := Caller{ID: "root", Role: RoleAdmin, Department: "Elsewhere"}

	for _, tr := range AllTransitions {
		assert.NoError(t, Authorize(admin, tr, p), "admin should pass %s", tr)
	}
}

func TestAuthorizeDeleteOwnerOnly(t *testing.T) {
	p := testProposal()

	owner := Caller{ID: "user-1", Role: RoleSubmitter}
	assert.NoError(t, Authorize(owner, TransitionDelete, p))

	other := Caller{ID: "user-2", Role: RoleSubmitter}
	err := Authorize(other, TransitionDelete, p)
	assert.Equal(t, errors.ErrCodeForbidden, errors.CodeOf(err))
}
