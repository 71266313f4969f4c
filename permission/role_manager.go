package permission

import (
	"errors"
	"fmt"
	"sync"
)

// RoleManager holds the permission mask of every role, keyed by Role.
type RoleManager struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[Role]Mask64
	frozen bool
}

// NewRoleManager returns a manager resolving names through registry.
func NewRoleManager(registry *Registry) *RoleManager {
	return &RoleManager{
		registry: registry,
		roles:    make(map[Role]Mask64),
	}
}

// RegisterRole builds the mask for role from already registered permission
// names.
func (rm *RoleManager) RegisterRole(role Role, permissionNames []string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return errors.New("role manager frozen")
	}
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	if _, exists := rm.roles[role]; exists {
		return fmt.Errorf("role %q already registered", role)
	}

	var mask Mask64
	for _, name := range permissionNames {
		bit, ok := rm.registry.Bit(name)
		if !ok {
			return fmt.Errorf("permission not registered: %s", name)
		}
		mask.Set(bit)
	}
	rm.roles[role] = mask
	return nil
}

// Mask returns the permission mask of role.
func (rm *RoleManager) Mask(role Role) (Mask64, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	m, ok := rm.roles[role]
	return m, ok
}

// Freeze rejects further role registrations.
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.frozen = true
}

// Count returns the number of registered roles.
func (rm *RoleManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.roles)
}
