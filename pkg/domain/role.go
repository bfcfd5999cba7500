package domain

import (
	"strings"

	dErrors "renewals/pkg/domain-errors"
)

// Role is the closed set of roles the identity service assigns to employees.
type Role string

const (
	RoleDRM       Role = "DRM"
	RoleARM       Role = "ARM"
	RoleHOD       Role = "HOD"
	RoleED        Role = "ED"
	RoleNetOps    Role = "NETOPS"
	RoleWebmaster Role = "WEBMASTER"
	RoleHODHPC    Role = "HODHPC"
)

var roles = map[Role]struct{}{
	RoleDRM:       {},
	RoleARM:       {},
	RoleHOD:       {},
	RoleED:        {},
	RoleNetOps:    {},
	RoleWebmaster: {},
	RoleHODHPC:    {},
}

// ParseRole validates a role name, case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := roles[r]; !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role")
	}
	return r, nil
}

func (r Role) String() string { return string(r) }

// Actor is the authenticated caller of a workflow operation.
type Actor struct {
	ID   EmployeeID
	Role Role
}

// IsZero reports whether no actor is present.
func (a Actor) IsZero() bool {
	return a.ID.IsNil() || a.Role == ""
}

// Is reports whether the actor holds the given role.
func (a Actor) Is(r Role) bool {
	return a.Role == r
}
