// Role hierarchy for moderation permission checks.
//
// Roles form a total order: user < moderator < admin < super_admin <
// owner. Owner is granted out of band (deploy configuration) and is never
// assignable through the registry.
package roles

import (
	"fmt"
)

type Role string

const (
	RoleUser       Role = "user"
	RoleModerator  Role = "moderator"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
	RoleOwner      Role = "owner"
)

var ranks = map[Role]int{
	RoleUser:       0,
	RoleModerator:  1,
	RoleAdmin:      2,
	RoleSuperAdmin: 3,
	RoleOwner:      4,
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := ranks[r]; !ok {
		return "", fmt.Errorf("unknown role: %q", s)
	}
	return r, nil
}

func (r Role) Rank() int {
	return ranks[r]
}

func (r Role) Valid() bool {
	_, ok := ranks[r]
	return ok
}

// The three roles the registry may assign. Owner is excluded; "user" is
// the implicit tier an identity lands in when removed from all sets.
var AssignableRoles = []Role{RoleModerator, RoleAdmin, RoleSuperAdmin}

// Valid targets for a demote command.
var DemotableRoles = []Role{RoleUser, RoleModerator, RoleAdmin}

// CanModerate reports whether an actor may take a destructive action
// against a target. Strictly greater: a role can never act on an equal or
// higher role, including itself.
func CanModerate(actor, target Role) bool {
	return actor.Rank() > target.Rank()
}

// Higher-ranked of the two. Used to merge a webhook-supplied actor role
// with the registry's view of the same identity.
func Max(a, b Role) Role {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}
