package permission

import (
	"errors"
	"fmt"
	"sync"
)

const maxPermissions = 64

// Registry maps permission names to bit positions in a Mask64. Bits are
// assigned in registration order and never change once frozen.
type Registry struct {
	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName []string
	frozen    bool
}

// NewRegistry returns an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{nameToBit: make(map[string]int)}
}

// Register assigns the next free bit to name. Registering a name twice
// returns its existing bit.
func (r *Registry) Register(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, errors.New("permission registry frozen")
	}
	if err := ValidateName(name); err != nil {
		return -1, err
	}
	if bit, ok := r.nameToBit[name]; ok {
		return bit, nil
	}
	if len(r.bitToName) >= maxPermissions {
		return -1, fmt.Errorf("permission limit exceeded (%d)", maxPermissions)
	}

	bit := len(r.bitToName)
	r.nameToBit[name] = bit
	r.bitToName = append(r.bitToName, name)
	return bit, nil
}

// Bit returns the bit index for name.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Name returns the permission registered at bit.
func (r *Registry) Name(bit int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if bit < 0 || bit >= len(r.bitToName) {
		return "", false
	}
	return r.bitToName[bit], true
}

// Freeze rejects further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered permissions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bitToName)
}
