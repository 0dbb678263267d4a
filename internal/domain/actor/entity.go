// Package actor models the people who interact with the incident
// lifecycle: staff roles, the authorization policy over status
// transitions, and the directory used to look them up.
package actor

import (
	"time"

	"github.com/schoolhub/discipline-core/internal/domain/shared"
)

// Role is a staff role within a school. An actor may hold several.
type Role string

const (
	RoleAdmin            Role = "admin"
	RoleICTAdmin         Role = "ict_admin"
	RoleSuperAdmin       Role = "super_admin"
	RolePrincipal        Role = "principal"
	RoleAcademicDirector Role = "academic_director"
	RoleTeacher          Role = "teacher"
	RoleCounselor        Role = "counselor"
)

// IsValid checks that the role is one of the defined staff roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleICTAdmin, RoleSuperAdmin, RolePrincipal,
		RoleAcademicDirector, RoleTeacher, RoleCounselor:
		return true
	default:
		return false
	}
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// RoleSet is the set of roles an actor holds.
type RoleSet []Role

// Has reports whether the set contains the given role.
func (s RoleSet) Has(role Role) bool {
	for _, r := range s {
		if r == role {
			return true
		}
	}
	return false
}

// HasAny reports whether the set contains at least one of the given roles.
func (s RoleSet) HasAny(roles ...Role) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// ErrActorNotFound - the referenced actor does not exist in the directory.
var ErrActorNotFound = shared.NewDomainError("actor", "Find", shared.ErrNotFound, "actor not found")

// Actor is a staff member known to the platform.
type Actor struct {
	ID        string
	SchoolID  string
	FullName  string
	Email     string
	Roles     RoleSet
	Active    bool
	CreatedAt time.Time
}

// Guardian is a parent or guardian linked to a student. Only guardians
// with portal access enabled are notification targets.
type Guardian struct {
	ID           string
	StudentID    string
	FullName     string
	Email        string
	PortalAccess bool
}
