package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	authcore "github.com/jonmaxmore/Botanical-Audit-Framework-sub006"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/permission"
)

// ErrDuplicateEmail is returned by Put when another principal already uses
// the email.
var ErrDuplicateEmail = errors.New("email already registered")

// MemoryStore is a map-backed CredentialStore. Emails are matched
// case-insensitively.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]authcore.Principal
	byEmail map[string]string
}

var _ authcore.CredentialStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]authcore.Principal),
		byEmail: make(map[string]string),
	}
}

// Put inserts or replaces a principal.
func (s *MemoryStore) Put(p authcore.Principal) error {
	if p.ID == "" {
		return errors.New("principal id required")
	}
	if _, ok := permission.ParseRole(string(p.Role)); !ok {
		return fmt.Errorf("unknown role %q", p.Role)
	}
	email := normalize(p.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.byEmail[email]; ok && owner != p.ID {
		return ErrDuplicateEmail
	}
	if prev, ok := s.byID[p.ID]; ok {
		delete(s.byEmail, normalize(prev.Email))
	}
	s.byID[p.ID] = p
	s.byEmail[email] = p.ID
	return nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*authcore.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[normalize(email)]
	if !ok {
		return nil, authcore.ErrPrincipalNotFound
	}
	p := s.byID[id]
	return &p, nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*authcore.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, authcore.ErrPrincipalNotFound
	}
	return &p, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, u authcore.PrincipalUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return authcore.ErrPrincipalNotFound
	}
	if u.PasswordHash != nil {
		p.PasswordHash = *u.PasswordHash
	}
	if u.PasswordChangedAt != nil {
		p.PasswordChangedAt = *u.PasswordChangedAt
	}
	if u.LastLoginAt != nil {
		p.LastLoginAt = *u.LastLoginAt
	}
	if u.LastLoginIP != nil {
		p.LastLoginIP = *u.LastLoginIP
	}
	s.byID[id] = p
	return nil
}

// SetActive enables or disables a principal.
func (s *MemoryStore) SetActive(id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return authcore.ErrPrincipalNotFound
	}
	p.Active = active
	s.byID[id] = p
	return nil
}

// Len returns the number of stored principals.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
