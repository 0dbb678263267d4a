package actor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schoolhub/discipline-core/internal/domain/incident"
)

func TestCanAct_AdminRolesAlwaysAllowed(t *testing.T) {
	for _, role := range []Role{RoleAdmin, RoleICTAdmin, RoleSuperAdmin} {
		decision := CanAct(RoleSet{role}, false, incident.StatusResolved)
		assert.Truef(t, decision.Allowed, "role %s", role)
		assert.Equal(t, "admin_override", decision.Rule)
	}
}

func TestCanAct_AssigneeAllowed(t *testing.T) {
	decision := CanAct(RoleSet{RoleTeacher}, true, incident.StatusUnderReview)
	assert.True(t, decision.Allowed)
	assert.Equal(t, "assignee", decision.Rule)
}

func TestCanAct_SeniorRolesAllowedWithoutAssignment(t *testing.T) {
	for _, role := range []Role{RolePrincipal, RoleAcademicDirector} {
		decision := CanAct(RoleSet{role}, false, incident.StatusDismissed)
		assert.Truef(t, decision.Allowed, "role %s", role)
		assert.Equal(t, "senior_override", decision.Rule)
	}
}

func TestCanAct_UnprivilegedDenied(t *testing.T) {
	decision := CanAct(RoleSet{RoleTeacher, RoleCounselor}, false, incident.StatusEscalated)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "denied", decision.Rule)

	decision = CanAct(nil, false, incident.StatusResolved)
	assert.False(t, decision.Allowed)
}

func TestCanAct_AdminRuleWinsOverAssignee(t *testing.T) {
	// The rule that grants access is recorded for audit logging; admin
	// override is checked before assignment.
	decision := CanAct(RoleSet{RoleAdmin}, true, incident.StatusResolved)
	assert.True(t, decision.Allowed)
	assert.Equal(t, "admin_override", decision.Rule)
}

func TestRoleSet_Has(t *testing.T) {
	roles := RoleSet{RoleTeacher, RolePrincipal}

	assert.True(t, roles.Has(RoleTeacher))
	assert.True(t, roles.HasAny(RoleCounselor, RolePrincipal))
	assert.False(t, roles.Has(RoleAdmin))
	assert.False(t, roles.HasAny(RoleAdmin, RoleSuperAdmin))
}
