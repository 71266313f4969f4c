package permission

import (
	"errors"
	"fmt"
	"strings"
)

// Scope suffixes for ownership-scoped permissions.
const (
	ScopeOwn = "own"
	ScopeAll = "all"
)

// Table is the static role to permission mapping. It is validated once when
// a Resolver is built and never mutated afterwards.
type Table map[Role][]string

// DefaultTable returns the certification platform's permission table.
func DefaultTable() Table {
	return Table{
		RoleAdmin: {
			"user:manage:all",
			"system:configure",
		},
		RoleFarmer: {
			"application:create",
			"application:read:own",
			"application:update:own",
			"document:upload:own",
			"document:read:own",
			"training:enroll:own",
			"training:read:own",
			"audit:read:own",
			"booking:create:own",
			"booking:read:own",
			"booking:cancel:own",
			"certificate:read:own",
			"payment:create:own",
			"payment:read:own",
		},
		RoleInspector: {
			"application:read:all",
			"document:read:all",
			"audit:read:own",
			"audit:conduct:own",
			"audit:report:own",
			"booking:read:all",
		},
		RoleReviewer: {
			"application:read:all",
			"application:review:all",
			"document:read:all",
			"document:verify:all",
			"audit:read:all",
			"audit:schedule:all",
			"certificate:issue:all",
			"certificate:read:all",
		},
		RoleTrainer: {
			"training:read:all",
			"training:manage:own",
			"training:grade:all",
		},
		RoleOfficer: {
			"application:read:all",
			"audit:read:all",
			"certificate:read:all",
			"certificate:revoke:all",
			"report:read:all",
		},
	}
}

// Validate checks that every role of AllRoles is present with a non-empty,
// well formed permission set and that no unknown role is listed.
func (t Table) Validate() error {
	for _, role := range allRoles {
		perms, ok := t[role]
		if !ok {
			return fmt.Errorf("permission table: role %q missing", role)
		}
		if len(perms) == 0 {
			return fmt.Errorf("permission table: role %q has no permissions", role)
		}
		for _, p := range perms {
			if err := ValidateName(p); err != nil {
				return fmt.Errorf("permission table: role %q: %w", role, err)
			}
		}
	}
	for role := range t {
		if !role.Valid() {
			return fmt.Errorf("permission table: unknown role %q", role)
		}
	}
	return nil
}

// ValidateName checks the resource:action[:own|:all] format.
func ValidateName(name string) error {
	parts := strings.Split(name, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return fmt.Errorf("invalid permission %q", name)
	}
	for _, part := range parts {
		if !validSegment(part) {
			return fmt.Errorf("invalid permission %q", name)
		}
	}
	if len(parts) == 3 && parts[2] != ScopeOwn && parts[2] != ScopeAll {
		return fmt.Errorf("invalid permission scope in %q", name)
	}
	return nil
}

func validSegment(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '_' && c != '-' {
			return false
		}
	}
	return true
}

// splitScope returns the permission without its scope suffix and the suffix.
func splitScope(name string) (base, scope string) {
	i := strings.LastIndexByte(name, ':')
	if i < 0 {
		return name, ""
	}
	switch name[i+1:] {
	case ScopeOwn, ScopeAll:
		return name[:i], name[i+1:]
	}
	return name, ""
}

var errEmptyTable = errors.New("permission table is empty")
