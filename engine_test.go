package authcore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/password"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testPassword = "Correct-Horse1"
)

// mockCredentialStore is an in-memory CredentialStore with fault injection.
type mockCredentialStore struct {
	mu        sync.Mutex
	byID      map[string]Principal
	findErr   error
	updateErr error

	findByEmailCalls int
	findByIDCalls    int
	updates          []PrincipalUpdate
}

func newMockStore(principals ...Principal) *mockCredentialStore {
	m := &mockCredentialStore{byID: make(map[string]Principal)}
	for _, p := range principals {
		m.byID[p.ID] = p
	}
	return m
}

func (m *mockCredentialStore) FindByEmail(_ context.Context, email string) (*Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findByEmailCalls++

	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, p := range m.byID {
		if strings.EqualFold(p.Email, email) {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrPrincipalNotFound
}

func (m *mockCredentialStore) FindByID(_ context.Context, id string) (*Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findByIDCalls++

	if m.findErr != nil {
		return nil, m.findErr
	}
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrPrincipalNotFound
	}
	return &p, nil
}

func (m *mockCredentialStore) Update(_ context.Context, id string, u PrincipalUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return m.updateErr
	}
	p, ok := m.byID[id]
	if !ok {
		return ErrPrincipalNotFound
	}
	if u.PasswordHash != nil {
		p.PasswordHash = *u.PasswordHash
	}
	if u.PasswordChangedAt != nil {
		p.PasswordChangedAt = *u.PasswordChangedAt
	}
	if u.LastLoginAt != nil {
		p.LastLoginAt = *u.LastLoginAt
	}
	if u.LastLoginIP != nil {
		p.LastLoginIP = *u.LastLoginIP
	}
	m.byID[id] = p
	m.updates = append(m.updates, u)
	return nil
}

func (m *mockCredentialStore) get(id string) Principal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

func (m *mockCredentialStore) setFindErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findErr = err
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte(testSecret)
	cfg.JWT.Issuer = "authcore-test"
	cfg.Password.Argon2 = password.Argon2Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
	cfg.Metrics.Enabled = true
	return cfg
}

func hashFor(t testing.TB, plaintext string) string {
	t.Helper()
	h, err := password.NewHasher(testConfig().Password.Argon2)
	require.NoError(t, err)
	encoded, err := h.Hash(plaintext)
	require.NoError(t, err)
	return encoded
}

func testPrincipal(t testing.TB, id, email string, role Role) Principal {
	return Principal{
		ID:                id,
		Email:             email,
		Role:              role,
		Active:            true,
		PasswordHash:      hashFor(t, testPassword),
		PasswordChangedAt: time.Now().Add(-24 * time.Hour),
	}
}

type testEnv struct {
	engine *Engine
	store  *mockCredentialStore
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	audit  *ChannelSink
}

func newTestEnv(t *testing.T, cfg Config, principals ...Principal) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	store := newMockStore(principals...)
	sink := NewChannelSink(256)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(store).
		WithAuditSink(sink).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, store: store, mr: mr, rdb: rdb, audit: sink}
}

// drainAudit closes the dispatcher and returns every delivered event.
func (env *testEnv) drainAudit() []AuditEvent {
	env.engine.Close()
	var out []AuditEvent
	for {
		select {
		case ev := <-env.audit.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func eventsNamed(events []AuditEvent, name string) []AuditEvent {
	var out []AuditEvent
	for _, ev := range events {
		if ev.Event == name {
			out = append(out, ev)
		}
	}
	return out
}

var errStoreDown = errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")
