package authcore

import (
	"context"
	"strconv"
)

// Logout invalidates one session. Every token bound to it stops validating
// immediately. Logging out a session that is already gone succeeds.
func (e *Engine) Logout(ctx context.Context, principalID, sessionID string, client ClientContext) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	if err := e.flows.Logout(ctx, sessionID); err != nil {
		e.metricInc(MetricBackendUnavailable)
		return backendError(err)
	}

	e.metricInc(MetricLogout)
	e.metricInc(MetricSessionInvalidated)
	e.emitAudit(ctx, auditRecord{
		event:       auditEventLogoutSession,
		success:     true,
		principalID: principalID,
		sessionID:   sessionID,
		client:      client,
	})
	return nil
}

// ActiveSessions lists the live session ids of a principal. Index entries
// whose sessions already expired are pruned as a side effect.
func (e *Engine) ActiveSessions(ctx context.Context, principalID string) ([]string, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ids, err := e.sessions.ActiveSessionIDs(ctx, principalID)
	if err != nil {
		e.metricInc(MetricBackendUnavailable)
		return nil, backendError(err)
	}
	return ids, nil
}

// LogoutAll invalidates every session of a principal, for example after an
// administrator disables the account. It returns how many were removed.
func (e *Engine) LogoutAll(ctx context.Context, principalID string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}

	n, err := e.flows.LogoutAll(ctx, principalID)
	if err != nil {
		e.metricInc(MetricBackendUnavailable)
		return 0, backendError(err)
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditRecord{
		event:       auditEventLogoutAll,
		success:     true,
		principalID: principalID,
		metadata: func() map[string]string {
			return map[string]string{"sessions_invalidated": strconv.Itoa(n)}
		},
	})
	return n, nil
}
