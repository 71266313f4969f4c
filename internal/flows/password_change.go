package flows

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/password"
)

// PasswordChangeFailureKind classifies password change failures.
type PasswordChangeFailureKind int

const (
	PasswordChangeFailureNone PasswordChangeFailureKind = iota
	PasswordChangeFailureNotFound
	PasswordChangeFailureInactive
	PasswordChangeFailureBackend
	PasswordChangeFailureInvalidCurrent
	PasswordChangeFailureReuse
	PasswordChangeFailurePolicy
	PasswordChangeFailureHash
	PasswordChangeFailurePersist
	PasswordChangeFailureInvalidate
)

// PasswordChangeInput identifies the principal and the session to keep.
type PasswordChangeInput struct {
	PrincipalID   string
	Current       string
	Next          string
	KeepSessionID string
}

// PasswordChangeResult reports how far the change got. Failure is
// PasswordChangeFailureInvalidate only after the new hash was persisted.
type PasswordChangeResult struct {
	Failure     PasswordChangeFailureKind
	Err         error
	Violations  []password.Violation
	Invalidated int
	ChangedAt   time.Time
}

// PasswordChangeDeps captures password change dependencies.
type PasswordChangeDeps struct {
	Now              func() time.Time
	FindByID         func(context.Context, string) (*PrincipalRecord, error)
	IsNotFound       func(error) bool
	VerifyPassword   func(password, encoded string) (bool, error)
	ValidatePolicy   func(string) password.Result
	HashPassword     func(string) (string, error)
	UpdatePassword   func(ctx context.Context, principalID, encoded string, changedAt time.Time) error
	InvalidateOthers func(ctx context.Context, principalID, keepSessionID string) (int, error)
}

// RunPasswordChange re-verifies the current password, checks the new one
// against reuse and policy, persists it and then drops every other session.
func RunPasswordChange(ctx context.Context, in PasswordChangeInput, deps PasswordChangeDeps) PasswordChangeResult {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.IsNotFound == nil {
		deps.IsNotFound = func(error) bool { return false }
	}

	p, err := deps.FindByID(ctx, in.PrincipalID)
	if err != nil {
		if deps.IsNotFound(err) {
			return PasswordChangeResult{Failure: PasswordChangeFailureNotFound, Err: err}
		}
		return PasswordChangeResult{Failure: PasswordChangeFailureBackend, Err: err}
	}
	if p == nil {
		return PasswordChangeResult{Failure: PasswordChangeFailureNotFound}
	}
	if !p.Active {
		return PasswordChangeResult{Failure: PasswordChangeFailureInactive}
	}

	if in.Current == "" {
		return PasswordChangeResult{Failure: PasswordChangeFailureInvalidCurrent}
	}
	ok, err := deps.VerifyPassword(in.Current, p.PasswordHash)
	if err != nil || !ok {
		return PasswordChangeResult{Failure: PasswordChangeFailureInvalidCurrent, Err: err}
	}

	if subtle.ConstantTimeCompare([]byte(in.Current), []byte(in.Next)) == 1 {
		return PasswordChangeResult{Failure: PasswordChangeFailureReuse}
	}

	if res := deps.ValidatePolicy(in.Next); !res.Valid {
		return PasswordChangeResult{Failure: PasswordChangeFailurePolicy, Violations: res.Violations}
	}

	encoded, err := deps.HashPassword(in.Next)
	if err != nil {
		return PasswordChangeResult{Failure: PasswordChangeFailureHash, Err: err}
	}

	changedAt := deps.Now()
	if err := deps.UpdatePassword(ctx, p.ID, encoded, changedAt); err != nil {
		if deps.IsNotFound(err) {
			return PasswordChangeResult{Failure: PasswordChangeFailureNotFound, Err: err}
		}
		return PasswordChangeResult{Failure: PasswordChangeFailurePersist, Err: err}
	}

	n, err := deps.InvalidateOthers(ctx, p.ID, in.KeepSessionID)
	if err != nil {
		return PasswordChangeResult{Failure: PasswordChangeFailureInvalidate, Err: err, ChangedAt: changedAt}
	}

	return PasswordChangeResult{Invalidated: n, ChangedAt: changedAt}
}
