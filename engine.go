package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	internalaudit "github.com/jonmaxmore/Botanical-Audit-Framework-sub006/internal/audit"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/internal/flows"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/internal/limiters"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/internal/retry"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/jwt"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/password"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/permission"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/session"
)

// Engine is the authentication and access-control core. It holds no
// per-principal state; everything lives in the credential store and Redis,
// so any number of engines may share one backend.
//
// Engine is safe for concurrent use. Build it with [New].
type Engine struct {
	config    Config
	store     CredentialStore
	sessions  *session.Store
	lockout   *limiters.LockoutTracker
	tokens    *jwt.Manager
	hasher    *password.Hasher
	dummyHash string
	policy    *password.Policy
	resolver  *permission.Resolver
	audit     *internalaudit.Dispatcher
	metrics   *Metrics
	logger    zerolog.Logger
	onLockout LockoutNotifier
	flows     flows.Service
	now       func() time.Time
}

// Close drains pending audit events and stops the dispatcher. It does not
// close the Redis client or the credential store.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditSinkPanics returns the number of audit sink calls that panicked.
func (e *Engine) AuditSinkPanics() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.SinkPanics()
}

// Ping checks that the Redis backend answers. It does not touch the
// credential store.
func (e *Engine) Ping(ctx context.Context) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.sessions.Ping(ctx); err != nil {
		return backendError(err)
	}
	return nil
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the configuration the engine was built with.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.flows.Initialized()
}

func (e *Engine) initFlows() {
	e.flows = flows.New(flows.Deps{
		Authenticate: flows.AuthenticateDeps{
			Now: func() time.Time { return e.now() },
			FindByEmail: func(ctx context.Context, email string) (*flows.PrincipalRecord, error) {
				p, err := e.findByEmail(ctx, email)
				if err != nil {
					return nil, err
				}
				return toRecord(p), nil
			},
			IsNotFound:      isPrincipalNotFound,
			LockState:       e.lockout.IsLocked,
			RecordFailure:   e.lockout.RecordFailure,
			ClearFailures:   e.lockout.Clear,
			VerifyPassword:  e.hasher.Verify,
			DummyHash:       e.dummyHash,
			PasswordExpired: e.policy.Expired,
			IssueTokens:     e.tokens.Issue,
			CreateSession:   e.sessions.Create,
		},
		Refresh: flows.RefreshDeps{
			VerifyRefresh: func(token string) (*jwt.Claims, error) {
				return e.tokens.Verify(token, jwt.TypeRefresh)
			},
			GetSession:   e.sessions.Get,
			TouchSession: e.sessions.Touch,
			IssueAccess:  e.tokens.IssueAccess,
			NotFound:     session.ErrNotFound,
		},
		Validate: flows.ValidateDeps{
			VerifyAccess: func(token string) (*jwt.Claims, error) {
				return e.tokens.Verify(token, jwt.TypeAccess)
			},
			GetSession: e.sessions.Get,
			NotFound:   session.ErrNotFound,
		},
		Logout: flows.LogoutDeps{
			SessionStore: e.sessions,
		},
		PasswordChange: flows.PasswordChangeDeps{
			Now: func() time.Time { return e.now() },
			FindByID: func(ctx context.Context, id string) (*flows.PrincipalRecord, error) {
				p, err := e.findByID(ctx, id)
				if err != nil {
					return nil, err
				}
				return toRecord(p), nil
			},
			IsNotFound:     isPrincipalNotFound,
			VerifyPassword: e.hasher.Verify,
			ValidatePolicy: e.policy.Validate,
			HashPassword:   e.hasher.Hash,
			UpdatePassword: func(ctx context.Context, id, encoded string, changedAt time.Time) error {
				return e.store.Update(ctx, id, PrincipalUpdate{
					PasswordHash:      &encoded,
					PasswordChangedAt: &changedAt,
				})
			},
			InvalidateOthers: e.sessions.InvalidateAllForPrincipal,
		},
	})
}

// findByEmail and findByID are idempotent reads and get one retry on a
// transient store failure. Not found is never retried.
func (e *Engine) findByEmail(ctx context.Context, email string) (*Principal, error) {
	var p *Principal
	err := retry.Once(ctx, retryableStore, func(ctx context.Context) error {
		var err error
		p, err = e.store.FindByEmail(ctx, email)
		return err
	})
	if err == nil && p == nil {
		err = ErrPrincipalNotFound
	}
	return p, err
}

func (e *Engine) findByID(ctx context.Context, id string) (*Principal, error) {
	if id == "" {
		return nil, ErrPrincipalNotFound
	}
	var p *Principal
	err := retry.Once(ctx, retryableStore, func(ctx context.Context) error {
		var err error
		p, err = e.store.FindByID(ctx, id)
		return err
	})
	if err == nil && p == nil {
		err = ErrPrincipalNotFound
	}
	return p, err
}

func retryableStore(err error) bool {
	return retry.Transient(err, ErrPrincipalNotFound)
}

func isPrincipalNotFound(err error) bool {
	return errors.Is(err, ErrPrincipalNotFound)
}

func toRecord(p *Principal) *flows.PrincipalRecord {
	if p == nil {
		return nil
	}
	return &flows.PrincipalRecord{
		ID:                p.ID,
		Email:             p.Email,
		Role:              string(p.Role),
		Active:            p.Active,
		PasswordHash:      p.PasswordHash,
		PasswordChangedAt: p.PasswordChangedAt,
		LastLoginAt:       p.LastLoginAt,
		LastLoginIP:       p.LastLoginIP,
	}
}

func fromRecord(r *flows.PrincipalRecord) *Principal {
	if r == nil {
		return nil
	}
	return &Principal{
		ID:                r.ID,
		Email:             r.Email,
		Role:              Role(r.Role),
		Active:            r.Active,
		PasswordHash:      r.PasswordHash,
		PasswordChangedAt: r.PasswordChangedAt,
		LastLoginAt:       r.LastLoginAt,
		LastLoginIP:       r.LastLoginIP,
	}
}

// withoutHash strips the stored password hash before a principal leaves the
// engine.
func withoutHash(p *Principal) *Principal {
	if p == nil {
		return nil
	}
	out := *p
	out.PasswordHash = ""
	return &out
}

// tokenError maps jwt verification failures onto the public sentinels.
func tokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpiredToken
	case errors.Is(err, jwt.ErrWrongTokenType):
		return ErrWrongTokenType
	default:
		return ErrInvalidToken
	}
}
