package authcore

import "context"

// UnlockPrincipal clears the failure counter and any lock marker, letting
// the principal authenticate immediately.
func (e *Engine) UnlockPrincipal(ctx context.Context, principalID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.lockout.Clear(ctx, principalID); err != nil {
		e.metricInc(MetricBackendUnavailable)
		return backendError(err)
	}

	e.metricInc(MetricAccountUnlocked)
	e.emitAudit(ctx, auditRecord{
		event:       auditEventAccountUnlocked,
		success:     true,
		principalID: principalID,
	})
	return nil
}

// LockoutStatus reports the current failure count and lock of a principal.
func (e *Engine) LockoutStatus(ctx context.Context, principalID string) (LockoutState, error) {
	if !e.ready() {
		return LockoutState{}, ErrEngineNotReady
	}
	st, err := e.lockout.State(ctx, principalID)
	if err != nil {
		return st, backendError(err)
	}
	return st, nil
}
