package flows

import "context"

// LogoutSessionStore is the subset of the session store logout needs.
type LogoutSessionStore interface {
	Invalidate(ctx context.Context, sessionID string) error
	InvalidateAllForPrincipal(ctx context.Context, principalID, keepSessionID string) (int, error)
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	SessionStore LogoutSessionStore
}

// RunLogout invalidates one session. Invalidating a session that does not
// exist succeeds.
func RunLogout(ctx context.Context, sessionID string, deps LogoutDeps) error {
	if sessionID == "" {
		return nil
	}
	return deps.SessionStore.Invalidate(ctx, sessionID)
}

// RunLogoutAll invalidates every session of a principal and reports how
// many were removed.
func RunLogoutAll(ctx context.Context, principalID string, deps LogoutDeps) (int, error) {
	return deps.SessionStore.InvalidateAllForPrincipal(ctx, principalID, "")
}
