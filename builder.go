package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	internalaudit "github.com/jonmaxmore/Botanical-Audit-Framework-sub006/internal/audit"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/internal/ids"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/internal/limiters"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/jwt"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/password"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/permission"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/session"
)

// Builder assembles an Engine. A Builder can be built once.
//
//	engine, err := authcore.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithCredentialStore(store).
//		Build()
type Builder struct {
	config Config
	redis  redis.UniversalClient

	table permission.Table

	store     CredentialStore
	auditSink AuditSink
	logger    *zerolog.Logger
	notifier  LockoutNotifier

	built bool
}

// New returns a Builder seeded with DefaultConfig and DefaultTable.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the cache backend. Single node, cluster and sentinel
// clients all satisfy redis.UniversalClient.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithPermissionTable replaces the default role table. The table is
// validated in Build.
func (b *Builder) WithPermissionTable(table permission.Table) *Builder {
	b.table = table
	return b
}

// WithAuditSink sets the audit sink and enables the audit dispatcher.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithLogger sets the logger used for non-fatal warnings. The default
// discards everything.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

func (b *Builder) WithLockoutNotifier(fn LockoutNotifier) *Builder {
	b.notifier = fn
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component. Any invalid
// key, TTL or permission table is a startup failure.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, fmt.Errorf("%w: redis client required", ErrInvalidConfig)
	}
	if b.store == nil {
		return nil, fmt.Errorf("%w: credential store required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	table := b.table
	if table == nil {
		table = permission.DefaultTable()
	}
	resolver, err := permission.NewResolver(table)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	jm, err := jwt.NewManager(jwt.Config{
		SigningMethod: cfg.JWT.SigningMethod,
		Secret:        cloneBytes(cfg.JWT.Secret),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	hasher, err := password.NewHasher(cfg.Password.Argon2)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	policy, err := password.NewPolicy(cfg.Password.Policy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	dummyHash, err := hasher.Hash(ids.New())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	logger := zerolog.Nop()
	if b.logger != nil {
		logger = *b.logger
	}

	engine := &Engine{
		config:    cloneConfig(cfg),
		store:     b.store,
		tokens:    jm,
		hasher:    hasher,
		dummyHash: dummyHash,
		policy:    policy,
		resolver:  resolver,
		logger:    logger.With().Str("component", "authcore").Logger(),
		onLockout: b.notifier,
		now:       time.Now,
	}
	engine.sessions = session.NewStore(b.redis, cfg.Redis.Namespace, cfg.Session.Timeout)
	engine.lockout = limiters.NewLockoutTracker(b.redis, limiters.LockoutConfig{
		Enabled:   cfg.Lockout.Enabled,
		Threshold: cfg.Lockout.Threshold,
		Window:    cfg.Lockout.Window,
		Duration:  cfg.Lockout.Duration,
		KeyPrefix: cfg.Redis.Namespace,
	})
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.initFlows()

	b.built = true

	return engine, nil
}
