package flows

import (
	"context"
	"errors"
	"time"

	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/jwt"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/session"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureToken
	RefreshFailureSessionNotFound
	RefreshFailureSessionMismatch
	RefreshFailureBackend
	RefreshFailureIssueAccess
)

// RefreshResult carries either the new access token or failure metadata.
type RefreshResult struct {
	Failure     RefreshFailureKind
	Err         error
	Claims      *jwt.Claims
	Session     *session.Session
	AccessToken string
	ExpiresAt   time.Time
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	VerifyRefresh func(string) (*jwt.Claims, error)
	GetSession    func(context.Context, string) (*session.Session, error)
	TouchSession  func(ctx context.Context, sessionID, clientIP, userAgent string) (*session.Session, error)
	IssueAccess   func(principalID, role, sessionID string) (string, time.Time, error)
	NotFound      error
}

// RunRefresh exchanges a refresh token for a new access token bound to the
// same session. The refresh token itself is not rotated.
func RunRefresh(ctx context.Context, refreshToken, clientIP, userAgent string, deps RefreshDeps) RefreshResult {
	claims, err := deps.VerifyRefresh(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureToken, Err: err}
	}

	sess, err := deps.GetSession(ctx, claims.SessionID)
	if err != nil {
		return RefreshResult{Failure: sessionFailure(err, deps.NotFound), Err: err, Claims: claims}
	}
	if sess.PrincipalID != claims.PrincipalID {
		return RefreshResult{Failure: RefreshFailureSessionMismatch, Claims: claims}
	}

	access, exp, err := deps.IssueAccess(sess.PrincipalID, sess.Role, sess.SessionID)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssueAccess, Err: err, Claims: claims}
	}

	// Touch confirms the session again; a logout that raced the issue above
	// discards the new token.
	touched, err := deps.TouchSession(ctx, sess.SessionID, clientIP, userAgent)
	if err != nil {
		return RefreshResult{Failure: sessionFailure(err, deps.NotFound), Err: err, Claims: claims}
	}

	return RefreshResult{
		Claims:      claims,
		Session:     touched,
		AccessToken: access,
		ExpiresAt:   exp,
	}
}

func sessionFailure(err, notFound error) RefreshFailureKind {
	if notFound != nil && errors.Is(err, notFound) {
		return RefreshFailureSessionNotFound
	}
	return RefreshFailureBackend
}
