package authcore

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/password"
)

var (
	// ErrInvalidCredentials covers both an unknown email and a wrong
	// password. Callers cannot tell the two apart.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while a lockout is in force.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountInactive is returned for a disabled principal.
	ErrAccountInactive = errors.New("account inactive")
	// ErrPasswordExpired is returned with a result that requires a password change.
	ErrPasswordExpired = errors.New("password expired")

	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token expired")
	ErrWrongTokenType = errors.New("wrong token type")
	// ErrSessionNotFound means the session behind a token no longer exists.
	ErrSessionNotFound = errors.New("session not found")

	ErrInsufficientPermission = errors.New("insufficient permission")

	// ErrBackingStoreUnavailable wraps any credential store or Redis failure.
	// Operations fail closed with it.
	ErrBackingStoreUnavailable = errors.New("backing store unavailable")

	ErrPasswordPolicy = errors.New("password policy violation")
	ErrPasswordReuse  = errors.New("new password must differ from current password")
	// ErrSessionInvalidationFailed is joined with the cause when a password
	// change was persisted but other sessions could not be dropped.
	ErrSessionInvalidationFailed = errors.New("session invalidation failed")

	// ErrPrincipalNotFound is the sentinel CredentialStore implementations
	// return for an unknown principal.
	ErrPrincipalNotFound = errors.New("principal not found")

	ErrEngineNotReady = errors.New("engine not initialized")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// LockedError reports a refused authentication and when the lock lapses.
// A zero Until means the lock has no expiry.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	if e.Until.IsZero() {
		return ErrAccountLocked.Error()
	}
	return fmt.Sprintf("%s until %s", ErrAccountLocked, e.Until.UTC().Format(time.RFC3339))
}

func (e *LockedError) Unwrap() error {
	return ErrAccountLocked
}

// PolicyError lists every rule a rejected password broke.
type PolicyError struct {
	Violations []password.Violation
}

func (e *PolicyError) Error() string {
	codes := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		codes = append(codes, v.Code)
	}
	return ErrPasswordPolicy.Error() + ": " + strings.Join(codes, ",")
}

func (e *PolicyError) Unwrap() error {
	return ErrPasswordPolicy
}

// PublicMessage maps an engine error to text that is safe to show an end
// user. Every login refusal (unknown principal, wrong password, inactive or
// locked account) shares one message; callers that want to tell a user
// about a lock can still match ErrAccountLocked.
func PublicMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrAccountInactive),
		errors.Is(err, ErrAccountLocked):
		return "invalid email or password"
	case errors.Is(err, ErrPasswordExpired):
		return "password expired, a password change is required"
	case errors.Is(err, ErrPasswordPolicy):
		return "password does not meet the password policy"
	case errors.Is(err, ErrPasswordReuse):
		return "new password must differ from the current password"
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrExpiredToken),
		errors.Is(err, ErrWrongTokenType), errors.Is(err, ErrSessionNotFound):
		return "authentication required"
	case errors.Is(err, ErrInsufficientPermission):
		return "forbidden"
	case errors.Is(err, ErrBackingStoreUnavailable), errors.Is(err, ErrSessionInvalidationFailed):
		return "service temporarily unavailable"
	default:
		return "request failed"
	}
}

func backendError(err error) error {
	if err == nil || errors.Is(err, ErrBackingStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrBackingStoreUnavailable, err)
}
