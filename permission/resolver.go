package permission

import (
	"sort"
)

// Subject is the acting principal as seen by the resolver.
type Subject struct {
	ID   string
	Role Role
}

// Resource describes the target of an ownership-scoped check.
type Resource struct {
	OwnerID string
}

// Resolver answers permission questions from a validated, frozen Table.
// It is safe for concurrent use.
type Resolver struct {
	registry *Registry
	roles    *RoleManager
	names    map[Role][]string
}

// NewResolver validates table and compiles it into per-role masks.
func NewResolver(table Table) (*Resolver, error) {
	if len(table) == 0 {
		return nil, errEmptyTable
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}

	reg := NewRegistry()
	names := make(map[Role][]string, len(table))
	for _, role := range allRoles {
		for _, p := range table[role] {
			if _, err := reg.Register(p); err != nil {
				return nil, err
			}
		}
	}
	reg.Freeze()

	rm := NewRoleManager(reg)
	for _, role := range allRoles {
		if err := rm.RegisterRole(role, table[role]); err != nil {
			return nil, err
		}
		mask, _ := rm.Mask(role)
		list := make([]string, 0, mask.Count())
		for _, bit := range mask.Bits() {
			name, _ := reg.Name(bit)
			list = append(list, name)
		}
		sort.Strings(list)
		names[role] = list
	}
	rm.Freeze()

	return &Resolver{registry: reg, roles: rm, names: names}, nil
}

// PermissionsFor returns the sorted permission set of role, or nil for an
// unknown role. The returned slice is a copy.
func (r *Resolver) PermissionsFor(role Role) []string {
	list, ok := r.names[role]
	if !ok {
		return nil
	}
	out := make([]string, len(list))
	copy(out, list)
	return out
}

// Has reports whether subject may exercise permission on resource.
//
// The administrative role is granted everything. A ":own" permission held
// as such requires resource to be nil or owned by subject; holding the
// matching ":all" permission grants it regardless of ownership. Any other
// permission needs exact membership.
func (r *Resolver) Has(subject Subject, permission string, resource *Resource) bool {
	if isAdministrative(subject.Role) {
		return true
	}

	mask, ok := r.roles.Mask(subject.Role)
	if !ok {
		return false
	}

	base, scope := splitScope(permission)
	if scope != ScopeOwn {
		return r.holds(mask, permission)
	}

	if r.holds(mask, permission) && owns(subject, resource) {
		return true
	}
	return r.holds(mask, base+":"+ScopeAll)
}

func (r *Resolver) holds(mask Mask64, permission string) bool {
	bit, ok := r.registry.Bit(permission)
	return ok && mask.Has(bit)
}

func owns(subject Subject, resource *Resource) bool {
	if resource == nil {
		return true
	}
	return subject.ID != "" && resource.OwnerID == subject.ID
}
