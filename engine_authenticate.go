package authcore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/internal/flows"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/internal/limiters"
)

// Authenticate verifies an email and password and, on success, issues a
// token pair bound to a new session.
//
// An unknown email and a wrong password both return ErrInvalidCredentials.
// A locked principal gets a *LockedError even when the password is right.
// An expired password returns a result with RequirePasswordChange set,
// no tokens, and ErrPasswordExpired. Backend failures return
// ErrBackingStoreUnavailable and are never reported as bad credentials.
func (e *Engine) Authenticate(ctx context.Context, email, password string, client ClientContext) (*AuthenticateResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	email = normalizeEmail(email)

	res := e.flows.Authenticate(ctx, flows.AuthenticateInput{
		Email:     email,
		Password:  password,
		ClientIP:  client.IP,
		UserAgent: client.UserAgent,
	})

	if res.NewlyLocked {
		e.lockoutTriggered(ctx, res, client)
	}

	if !res.Succeeded() {
		err := e.authenticateFailed(ctx, email, res, client)
		if res.Reason == flows.ReasonPasswordExpired {
			return &AuthenticateResult{
				Principal:             withoutHash(fromRecord(res.Principal)),
				RequirePasswordChange: true,
			}, err
		}
		return nil, err
	}

	principal := fromRecord(res.Principal)
	if res.ClearErr != nil {
		e.logger.Warn().Err(res.ClearErr).Str("principal_id", principal.ID).Msg("failed to reset lockout counter")
	}
	e.recordLogin(ctx, principal, password, client)
	principal = withoutHash(principal)

	e.metricInc(MetricAuthSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditRecord{
		event:       auditEventLoginSuccess,
		success:     true,
		principalID: principal.ID,
		sessionID:   res.Pair.SessionID,
		client:      client,
		metadata: func() map[string]string {
			return map[string]string{"role": string(principal.Role)}
		},
	})

	return &AuthenticateResult{
		Principal: principal,
		Tokens: &TokenPair{
			AccessToken:      res.Pair.AccessToken,
			RefreshToken:     res.Pair.RefreshToken,
			SessionID:        res.Pair.SessionID,
			AccessExpiresAt:  res.Pair.AccessExpiresAt,
			RefreshExpiresAt: res.Pair.RefreshExpiresAt,
		},
	}, nil
}

// authenticateFailed records the failure and maps the reason code onto the
// public error.
func (e *Engine) authenticateFailed(ctx context.Context, email string, res flows.AuthenticateResult, client ClientContext) error {
	var principalID string
	if res.Principal != nil {
		principalID = res.Principal.ID
	}

	var err error
	switch res.Reason {
	case flows.ReasonUserNotFound:
		e.metricInc(MetricAuthUserNotFound)
		err = ErrInvalidCredentials
	case flows.ReasonAccountLocked:
		e.metricInc(MetricAuthLockedRejected)
		err = &LockedError{Until: res.LockedUntil}
	case flows.ReasonAccountInactive:
		e.metricInc(MetricAuthInactiveRejected)
		err = ErrAccountInactive
	case flows.ReasonInvalidPassword:
		e.metricInc(MetricAuthInvalidPassword)
		err = ErrInvalidCredentials
		if errors.Is(res.Err, limiters.ErrLockoutUnavailable) {
			e.metricInc(MetricBackendUnavailable)
			err = backendError(res.Err)
		} else if res.Err != nil {
			e.logger.Warn().Err(res.Err).Str("principal_id", principalID).Msg("stored password hash could not be verified")
		}
	case flows.ReasonPasswordExpired:
		e.metricInc(MetricAuthPasswordExpired)
		err = ErrPasswordExpired
	case flows.ReasonTokenIssueFailed:
		err = fmt.Errorf("authcore: issue tokens: %w", res.Err)
	case flows.ReasonBackendUnavailable, flows.ReasonSessionCreateFailed:
		e.metricInc(MetricBackendUnavailable)
		err = backendError(res.Err)
	default:
		err = ErrEngineNotReady
	}
	e.metricInc(MetricAuthFailure)

	e.emitAudit(ctx, auditRecord{
		event:       auditEventLoginFailure,
		principalID: principalID,
		reason:      string(res.Reason),
		client:      client,
		metadata: func() map[string]string {
			md := map[string]string{
				"email": email,
				"state": res.FailedAt.String(),
			}
			if res.Reason == flows.ReasonInvalidPassword && res.FailureCount > 0 {
				md["failed_attempts"] = strconv.FormatInt(res.FailureCount, 10)
			}
			if !res.LockedUntil.IsZero() {
				md["locked_until"] = formatTime(res.LockedUntil)
			}
			return md
		},
	})

	return err
}

// lockoutTriggered runs once per lock, for the attempt that crossed the
// threshold.
func (e *Engine) lockoutTriggered(ctx context.Context, res flows.AuthenticateResult, client ClientContext) {
	state := LockoutState{
		PrincipalID:    res.Principal.ID,
		FailedAttempts: res.FailureCount,
		Locked:         true,
		LockedUntil:    res.LockedUntil,
	}

	e.metricInc(MetricLockoutTriggered)
	e.emitAudit(ctx, auditRecord{
		event:       auditEventAccountLocked,
		principalID: state.PrincipalID,
		reason:      reasonThresholdReached,
		client:      client,
		metadata: func() map[string]string {
			return map[string]string{
				"failed_attempts": strconv.FormatInt(state.FailedAttempts, 10),
				"locked_until":    formatTime(state.LockedUntil),
			}
		},
	})

	if e.onLockout == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Str("principal_id", state.PrincipalID).Msg("lockout notifier panicked")
		}
	}()
	e.onLockout(ctx, state)
}

// recordLogin writes back login metadata and, when the stored hash is a
// legacy or weaker one, the rehashed password. Failures are logged only;
// the caller already holds valid tokens.
func (e *Engine) recordLogin(ctx context.Context, p *Principal, plaintext string, client ClientContext) {
	now := e.now().UTC()
	update := PrincipalUpdate{LastLoginAt: &now}
	if client.IP != "" {
		ip := client.IP
		update.LastLoginIP = &ip
	}

	upgraded := false
	if e.config.Password.UpgradeOnLogin {
		if needs, err := e.hasher.NeedsUpgrade(p.PasswordHash); err == nil && needs {
			if encoded, err := e.hasher.Hash(plaintext); err != nil {
				e.logger.Warn().Err(err).Str("principal_id", p.ID).Msg("password rehash failed")
			} else {
				update.PasswordHash = &encoded
				upgraded = true
			}
		}
	}

	if err := e.store.Update(ctx, p.ID, update); err != nil {
		e.logger.Warn().Err(err).Str("principal_id", p.ID).Bool("hash_upgrade", upgraded).Msg("login write-back failed")
		return
	}

	p.LastLoginAt = now
	if update.LastLoginIP != nil {
		p.LastLoginIP = *update.LastLoginIP
	}
	if upgraded {
		p.PasswordHash = *update.PasswordHash
		e.metricInc(MetricPasswordHashUpgraded)
		e.emitAudit(ctx, auditRecord{
			event:       auditEventPasswordHashUpgraded,
			success:     true,
			principalID: p.ID,
			client:      client,
		})
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
