package authcore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/internal/flows"
)

// ChangePassword replaces a principal's password.
//
// Checks run in a fixed order: the current password is re-verified
// (ErrInvalidCredentials), a new password equal to the current one is
// rejected (ErrPasswordReuse), then the policy is applied (*PolicyError).
// After the new hash is persisted every other session of the principal is
// invalidated; client.SessionID, when set, is kept. If that last step fails
// the password is already changed and the error is
// errors.Join(ErrSessionInvalidationFailed, cause).
func (e *Engine) ChangePassword(ctx context.Context, principalID, current, next string, client ClientContext) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	res := e.flows.ChangePassword(ctx, flows.PasswordChangeInput{
		PrincipalID:   principalID,
		Current:       current,
		Next:          next,
		KeepSessionID: client.SessionID,
	})

	if res.Failure == flows.PasswordChangeFailureNone {
		e.metricInc(MetricPasswordChangeSuccess)
		e.emitAudit(ctx, auditRecord{
			event:       auditEventPasswordChangeSuccess,
			success:     true,
			principalID: principalID,
			client:      client,
			metadata: func() map[string]string {
				return map[string]string{"sessions_invalidated": strconv.Itoa(res.Invalidated)}
			},
		})
		return nil
	}

	event := auditEventPasswordChangeFailure
	var (
		err    error
		reason string
	)
	switch res.Failure {
	case flows.PasswordChangeFailureNotFound:
		err, reason = ErrInvalidCredentials, reasonPrincipalNotFound
	case flows.PasswordChangeFailureInactive:
		err, reason = ErrAccountInactive, reasonAccountInactive
	case flows.PasswordChangeFailureInvalidCurrent:
		e.metricInc(MetricPasswordChangeInvalidOld)
		if res.Err != nil {
			e.logger.Warn().Err(res.Err).Str("principal_id", principalID).Msg("stored password hash could not be verified")
		}
		event, err, reason = auditEventPasswordChangeInvalidOld, ErrInvalidCredentials, reasonInvalidCurrent
	case flows.PasswordChangeFailureReuse:
		e.metricInc(MetricPasswordChangeReuseRejected)
		event, err, reason = auditEventPasswordChangeReuse, ErrPasswordReuse, reasonPasswordReuse
	case flows.PasswordChangeFailurePolicy:
		e.metricInc(MetricPasswordChangePolicyRejected)
		err, reason = &PolicyError{Violations: res.Violations}, reasonPasswordPolicy
	case flows.PasswordChangeFailureHash:
		err, reason = fmt.Errorf("authcore: hash password: %w", res.Err), reasonPasswordNotPersist
	case flows.PasswordChangeFailureBackend, flows.PasswordChangeFailurePersist:
		e.metricInc(MetricBackendUnavailable)
		err, reason = backendError(res.Err), reasonBackendUnavailable
	case flows.PasswordChangeFailureInvalidate:
		e.metricInc(MetricBackendUnavailable)
		e.logger.Error().Err(res.Err).Str("principal_id", principalID).Msg("password changed but other sessions are still live")
		err, reason = errors.Join(ErrSessionInvalidationFailed, backendError(res.Err)), reasonSessionInvalidation
	default:
		err, reason = ErrEngineNotReady, reasonBackendUnavailable
	}

	e.emitAudit(ctx, auditRecord{
		event:       event,
		principalID: principalID,
		reason:      reason,
		client:      client,
	})
	return err
}
