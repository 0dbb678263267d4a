package actor

import (
	"github.com/schoolhub/discipline-core/internal/domain/incident"
)

// Decision is the outcome of an authorization check, with the rule that
// produced it for audit logging.
type Decision struct {
	Allowed bool
	Rule    string
}

const (
	ruleAdminOverride  = "admin_override"
	ruleAssignee       = "assignee"
	ruleSeniorOverride = "senior_override"
	ruleDenied         = "denied"
)

// adminRoles act on any incident unconditionally.
var adminRoles = []Role{RoleAdmin, RoleICTAdmin, RoleSuperAdmin}

// seniorRoles act on any incident regardless of assignment.
var seniorRoles = []Role{RolePrincipal, RoleAcademicDirector}

// CanAct decides whether an actor may move an incident to the target
// status. It is a pure function over the actor's roles and their
// relationship to the incident; it reads no storage and checks none of
// the status-specific preconditions (those run after this gate).
//
// Rules, in order:
//  1. admin, ict_admin or super_admin: allowed.
//  2. current assignee: allowed.
//  3. principal or academic_director: allowed.
//  4. otherwise: denied.
func CanAct(roles RoleSet, isAssignee bool, target incident.Status) Decision {
	if roles.HasAny(adminRoles...) {
		return Decision{Allowed: true, Rule: ruleAdminOverride}
	}
	if isAssignee {
		return Decision{Allowed: true, Rule: ruleAssignee}
	}
	if roles.HasAny(seniorRoles...) {
		return Decision{Allowed: true, Rule: ruleSeniorOverride}
	}
	return Decision{Allowed: false, Rule: ruleDenied}
}
