package permission

// Role is the closed set of platform roles. Values outside AllRoles are
// rejected by ParseRole and never resolve to a permission set.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleFarmer    Role = "farmer"
	RoleInspector Role = "inspector"
	RoleReviewer  Role = "reviewer"
	RoleTrainer   Role = "trainer"
	RoleOfficer   Role = "officer"
)

var allRoles = []Role{
	RoleAdmin,
	RoleFarmer,
	RoleInspector,
	RoleReviewer,
	RoleTrainer,
	RoleOfficer,
}

// AllRoles returns every role in declaration order.
func AllRoles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

// ParseRole maps a stored role string to a Role.
func ParseRole(s string) (Role, bool) {
	for _, r := range allRoles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// Valid reports whether r is one of AllRoles.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

func (r Role) String() string {
	return string(r)
}

// isAdministrative is the single place the admin bypass is decided.
// Administrators are granted every permission regardless of the table so
// an incomplete table can never lock them out.
func isAdministrative(r Role) bool {
	return r == RoleAdmin
}
