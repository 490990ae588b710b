package models

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

const (
	PositionDirector       = "Giam doc"
	PositionDeputyDirector = "Pho Giam doc"
	PositionDepartmentHead = "Truong phong"
	PositionStaff          = "Nhan vien"
)

// Principal is the already-authenticated caller identity the core consumes.
// Authentication itself happens upstream at the gateway.
type Principal struct {
	ID           string `json:"id"`
	Role         Role   `json:"role"`
	Position     string `json:"position,omitempty"`
	DepartmentID string `json:"departmentId,omitempty"`
}

// Elevated reports whether the principal holds an organization-wide
// approval role or position.
func (p Principal) Elevated() bool {
	if p.Role == RoleAdmin || p.Role == RoleManager {
		return true
	}
	return p.Position == PositionDirector || p.Position == PositionDeputyDirector
}
