package flows

import (
	"context"
	"errors"

	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/jwt"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/session"
)

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureToken
	ValidateFailureSessionNotFound
	ValidateFailureSessionMismatch
	ValidateFailureBackend
)

// ValidateResult returns either claims/session success payload or classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *jwt.Claims
	Session *session.Session
}

// ValidateDeps captures access-token validation dependencies.
type ValidateDeps struct {
	VerifyAccess func(string) (*jwt.Claims, error)
	GetSession   func(context.Context, string) (*session.Session, error)
	NotFound     error
}

// RunValidate checks an access token and confirms its session is still
// live. A token whose session was logged out is rejected even if its
// signature and expiry are fine.
func RunValidate(ctx context.Context, tokenStr string, deps ValidateDeps) ValidateResult {
	claims, err := deps.VerifyAccess(tokenStr)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureToken, Err: err}
	}

	sess, err := deps.GetSession(ctx, claims.SessionID)
	if err != nil {
		if deps.NotFound != nil && errors.Is(err, deps.NotFound) {
			return ValidateResult{Failure: ValidateFailureSessionNotFound, Err: err, Claims: claims}
		}
		return ValidateResult{Failure: ValidateFailureBackend, Err: err, Claims: claims}
	}
	if sess.PrincipalID != claims.PrincipalID {
		return ValidateResult{Failure: ValidateFailureSessionMismatch, Claims: claims}
	}

	return ValidateResult{Claims: claims, Session: sess}
}
