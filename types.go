package authcore

import (
	"context"
	"time"

	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/internal/limiters"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/permission"
)

// Role is a member of the closed role enum. See [permission.Role].
type Role = permission.Role

// Principal is an account as held by the credential store. The engine never
// creates or deletes principals.
type Principal struct {
	ID                string
	Email             string
	Role              Role
	Active            bool
	PasswordHash      string
	PasswordChangedAt time.Time
	LastLoginAt       time.Time
	LastLoginIP       string
}

// PrincipalUpdate lists the fields the engine writes back. Nil fields are
// left unchanged.
type PrincipalUpdate struct {
	PasswordHash      *string
	PasswordChangedAt *time.Time
	LastLoginAt       *time.Time
	LastLoginIP       *string
}

// CredentialStore is the host application's account storage.
//
// Lookups of an unknown principal must return an error matching
// ErrPrincipalNotFound. Any other error is treated as a backend failure and
// is never reported to callers as "not found".
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*Principal, error)
	FindByID(ctx context.Context, id string) (*Principal, error)
	Update(ctx context.Context, id string, update PrincipalUpdate) error
}

// ClientContext describes the caller of an operation. SessionID is the
// session the request was made under, when there is one.
type ClientContext struct {
	IP        string
	UserAgent string
	SessionID string
}

// TokenPair is the pair issued by a successful authentication.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	SessionID        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// AuthenticateResult is returned by [Engine.Authenticate].
//
// When RequirePasswordChange is true, Tokens is nil and the call also
// returned ErrPasswordExpired.
type AuthenticateResult struct {
	Principal             *Principal
	Tokens                *TokenPair
	RequirePasswordChange bool
}

// RefreshResult carries the new access token. The refresh token is not
// rotated and stays valid.
type RefreshResult struct {
	AccessToken string
	SessionID   string
	ExpiresAt   time.Time
}

// TokenInfo is the validated identity behind an access token.
type TokenInfo struct {
	PrincipalID string
	Role        Role
	Permissions []string
	SessionID   string
	ExpiresAt   time.Time
}

// ResourceContext scopes a permission check to one resource. A nil
// ResourceContext means no ownership constraint.
type ResourceContext struct {
	OwnerID string
}

// LockoutState is the lockout view of one principal.
type LockoutState = limiters.LockoutState

// LockoutNotifier is called once when a principal crosses the failure
// threshold. It runs on the authenticating goroutine and must not block.
type LockoutNotifier func(ctx context.Context, state LockoutState)
