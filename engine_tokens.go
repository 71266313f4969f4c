package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/internal/flows"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/jwt"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/permission"
)

// RefreshToken exchanges a refresh token for a new access token bound to
// the same session. The session must still exist and belong to the
// token's principal; its activity timestamp and TTL are refreshed.
func (e *Engine) RefreshToken(ctx context.Context, refreshToken string, client ClientContext) (*RefreshResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.Refresh(ctx, refreshToken, client.IP, client.UserAgent)
	if res.Failure != flows.RefreshFailureNone {
		reason, err := e.refreshFailed(res)
		e.metricInc(MetricRefreshFailure)

		var principalID, sessionID string
		if res.Claims != nil {
			principalID, sessionID = res.Claims.PrincipalID, res.Claims.SessionID
		}
		e.emitAudit(ctx, auditRecord{
			event:       auditEventRefreshInvalid,
			principalID: principalID,
			sessionID:   sessionID,
			reason:      reason,
			client:      client,
		})
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditRecord{
		event:       auditEventRefreshSuccess,
		success:     true,
		principalID: res.Session.PrincipalID,
		sessionID:   res.Session.SessionID,
		client:      client,
	})

	return &RefreshResult{
		AccessToken: res.AccessToken,
		SessionID:   res.Session.SessionID,
		ExpiresAt:   res.ExpiresAt,
	}, nil
}

func (e *Engine) refreshFailed(res flows.RefreshResult) (string, error) {
	switch res.Failure {
	case flows.RefreshFailureToken:
		if errors.Is(res.Err, jwt.ErrWrongTokenType) {
			e.metricInc(MetricTokenTypeMismatch)
		}
		return reasonInvalidToken, tokenError(res.Err)
	case flows.RefreshFailureSessionNotFound:
		return reasonSessionNotFound, ErrSessionNotFound
	case flows.RefreshFailureSessionMismatch:
		return reasonInvalidToken, ErrInvalidToken
	case flows.RefreshFailureBackend:
		e.metricInc(MetricBackendUnavailable)
		return reasonBackendUnavailable, backendError(res.Err)
	default:
		return string(flows.ReasonTokenIssueFailed), fmt.Errorf("authcore: issue access token: %w", res.Err)
	}
}

// ValidateToken checks an access token and resolves the permissions of its
// role. The session named by the token must still exist, so a logged-out
// session rejects every token issued for it. When the session store cannot
// be reached the call fails with ErrBackingStoreUnavailable; it never
// falls back to accepting the signature alone.
func (e *Engine) ValidateToken(ctx context.Context, accessToken string) (*TokenInfo, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}

	res := e.flows.Validate(ctx, accessToken)
	switch res.Failure {
	case flows.ValidateFailureNone:
	case flows.ValidateFailureToken:
		e.metricInc(MetricValidateFailure)
		if errors.Is(res.Err, jwt.ErrWrongTokenType) {
			e.metricInc(MetricTokenTypeMismatch)
		}
		return nil, tokenError(res.Err)
	case flows.ValidateFailureSessionNotFound:
		e.metricInc(MetricValidateFailure)
		return nil, ErrSessionNotFound
	case flows.ValidateFailureBackend:
		e.metricInc(MetricValidateFailure)
		e.metricInc(MetricBackendUnavailable)
		return nil, backendError(res.Err)
	default:
		e.metricInc(MetricValidateFailure)
		return nil, ErrInvalidToken
	}

	role, ok := permission.ParseRole(res.Session.Role)
	if !ok {
		e.metricInc(MetricValidateFailure)
		return nil, ErrInvalidToken
	}

	info := &TokenInfo{
		PrincipalID: res.Claims.PrincipalID,
		Role:        role,
		Permissions: e.resolver.PermissionsFor(role),
		SessionID:   res.Claims.SessionID,
	}
	if res.Claims.ExpiresAt != nil {
		info.ExpiresAt = res.Claims.ExpiresAt.Time
	}

	e.metricInc(MetricValidateSuccess)
	return info, nil
}
