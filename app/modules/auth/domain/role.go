package authdomain

// Role represents a caller's role for authorization purposes.
type Role string

const (
	RoleViewer Role = "viewer"
	RolePlayer Role = "player"
	RoleAdmin  Role = "admin"
)

// IsValid checks if the role is a valid value.
func (r Role) IsValid() bool {
	switch r {
	case RoleViewer, RolePlayer, RoleAdmin:
		return true
	default:
		return false
	}
}

// CanSubmit reports whether the role may record scores.
func (r Role) CanSubmit() bool {
	return r == RolePlayer || r == RoleAdmin
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}
