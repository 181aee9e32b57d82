package auth

// UserRole is the user's global role
type UserRole = string

const (
	// RoleUser is the default role granted through registration approval
	RoleUser UserRole = "user"
	// RoleAdmin may manage users, registrations, and templates
	RoleAdmin UserRole = "admin"
)

// ParseRole returns the role and whether it is one we recognize
func ParseRole(s string) (UserRole, bool) {
	switch s {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleUser:
		return RoleUser, true
	default:
		return "", false
	}
}

// IsValidRole checks the role against the known set
func IsValidRole(s string) bool {
	_, ok := ParseRole(s)
	return ok
}
