package domain

import "time"

// Role is the single role held by a user.
type Role string

const (
	RoleStudent Role = "student"
	RoleSupport Role = "support"
	RoleAdmin   Role = "admin"
	// RoleSystem is used for transitions applied by background sweeps.
	RoleSystem Role = "system"
)

// Valid reports whether r is an assignable user role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleSupport, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role belongs to support staff.
func (r Role) IsStaff() bool {
	return r == RoleSupport || r == RoleAdmin
}

// RoleAssignment binds a user to a role at provisioning time.
type RoleAssignment struct {
	UserID    string
	Role      Role
	CreatedAt time.Time
}

// Actor identifies who invokes an operation. It is passed explicitly to every
// service call instead of being read from session state.
type Actor struct {
	UserID string
	Role   Role
}

// SystemActor is the actor used by sweeps.
func SystemActor() Actor {
	return Actor{Role: RoleSystem}
}

// IsStaff reports whether the actor is support or admin.
func (a Actor) IsStaff() bool {
	return a.Role.IsStaff()
}

// IsSystem reports whether the actor is a background job.
func (a Actor) IsSystem() bool {
	return a.Role == RoleSystem
}
