package authcore

import (
	"context"
	"time"

	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/internal/ids"
)

const (
	auditEventLoginSuccess             = "login_success"
	auditEventLoginFailure             = "login_failure"
	auditEventAccountLocked            = "account_locked"
	auditEventAccountUnlocked          = "account_unlocked"
	auditEventRefreshSuccess           = "refresh_success"
	auditEventRefreshInvalid           = "refresh_invalid"
	auditEventPasswordChangeSuccess    = "password_change_success"
	auditEventPasswordChangeInvalidOld = "password_change_invalid_old"
	auditEventPasswordChangeReuse      = "password_change_reuse_attempt"
	auditEventPasswordChangeFailure    = "password_change_failure"
	auditEventPasswordHashUpgraded     = "password_hash_upgraded"
	auditEventLogoutSession            = "logout_session"
	auditEventLogoutAll                = "logout_all"
	auditEventPermissionDenied         = "permission_denied"
)

// Reason codes outside the authentication state machine.
const (
	reasonInvalidToken        = "INVALID_TOKEN"
	reasonSessionNotFound     = "SESSION_NOT_FOUND"
	reasonBackendUnavailable  = "BACKEND_UNAVAILABLE"
	reasonInvalidCurrent      = "INVALID_CURRENT_PASSWORD"
	reasonPasswordReuse       = "PASSWORD_REUSE"
	reasonPasswordPolicy      = "PASSWORD_POLICY"
	reasonPasswordNotPersist  = "PASSWORD_PERSIST_FAILED"
	reasonSessionInvalidation = "SESSION_INVALIDATION_FAILED"
	reasonAccountInactive     = "ACCOUNT_INACTIVE"
	reasonPrincipalNotFound   = "USER_NOT_FOUND"
	reasonThresholdReached    = "THRESHOLD_REACHED"
	reasonInsufficient        = "INSUFFICIENT_PERMISSION"
)

type auditRecord struct {
	event       string
	success     bool
	principalID string
	sessionID   string
	reason      string
	client      ClientContext
	metadata    func() map[string]string
}

// emitAudit builds the event only when a dispatcher is configured.
func (e *Engine) emitAudit(ctx context.Context, rec auditRecord) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if rec.metadata != nil {
		metadata = rec.metadata()
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata["request_id"] = rid
	}

	sessionID := rec.sessionID
	if sessionID == "" {
		sessionID = rec.client.SessionID
	}

	e.audit.Emit(ctx, AuditEvent{
		ID:          ids.New(),
		Type:        AuditTypeSecurity,
		Event:       rec.event,
		Timestamp:   e.now().UTC(),
		PrincipalID: rec.principalID,
		SessionID:   sessionID,
		IP:          rec.client.IP,
		UserAgent:   rec.client.UserAgent,
		Success:     rec.success,
		Reason:      rec.reason,
		Metadata:    metadata,
	})
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
