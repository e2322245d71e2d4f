package metadata

// PrincipalKey is the fiber Locals key holding the authenticated *Principal.
const PrincipalKey = "principal"

type Role string

const (
	RoleDirector  Role = "director"
	RoleManager   Role = "manager"
	RoleChef      Role = "chef"
	RoleHRManager Role = "hr_manager"
)

// Roles lists every business role.
var Roles = []Role{RoleDirector, RoleManager, RoleChef, RoleHRManager}

// ParseRole maps a stored role name to a Role. The empty string is "no role".
func ParseRole(s string) (Role, bool) {
	if s == "" {
		return "", true
	}
	for _, r := range Roles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// Principal represents the authenticated user, set by auth middleware.
type Principal struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      Role   `json:"role,omitempty"`
	Superuser bool   `json:"superuser"`
}

// HasRole checks whether the principal holds a specific role.
func (p *Principal) HasRole(role Role) bool {
	return p != nil && p.Role == role
}

// Unrestricted reports whether every capability is granted.
func (p *Principal) Unrestricted() bool {
	return p != nil && (p.Superuser || p.Role == RoleDirector)
}
