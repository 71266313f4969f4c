package authcore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/permission"
)

func login(t *testing.T, env *testEnv, email string) *TokenPair {
	t.Helper()
	res, err := env.engine.Authenticate(context.Background(), email, testPassword, client)
	require.NoError(t, err)
	require.NotNil(t, res.Tokens)
	return res.Tokens
}

func TestValidateToken(t *testing.T) {
	env := newTestEnv(t, testConfig(), testPrincipal(t, "u1", "farmer@example.com", permission.RoleFarmer))
	pair := login(t, env, "farmer@example.com")

	info, err := env.engine.ValidateToken(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", info.PrincipalID)
	assert.Equal(t, permission.RoleFarmer, info.Role)
	assert.Equal(t, pair.SessionID, info.SessionID)
	assert.Contains(t, info.Permissions, "application:read:own")
	assert.NotContains(t, info.Permissions, "application:read:all")
	assert.WithinDuration(t, pair.AccessExpiresAt, info.ExpiresAt, time.Second)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	env := newTestEnv(t, testConfig())

	_, err := env.engine.ValidateToken(context.Background(), "not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = env.engine.ValidateToken(context.Background(), "")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenForeignSecret(t *testing.T) {
	env := newTestEnv(t, testConfig(), testPrincipal(t, "u1", "farmer@example.com", permission.RoleFarmer))
	other := testConfig()
	other.JWT.Secret = []byte("ffffffffffffffffffffffffffffffff")
	otherEnv := newTestEnv(t, other, testPrincipal(t, "u1", "farmer@example.com", permission.RoleFarmer))

	pair := login(t, otherEnv, "farmer@example.com")
	_, err := env.engine.ValidateToken(context.Background(), pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenTypeConfusion(t *testing.T) {
	env := newTestEnv(t, testConfig(), testPrincipal(t, "u1", "farmer@example.com", permission.RoleFarmer))
	pair := login(t, env, "farmer@example.com")
	ctx := context.Background()

	_, err := env.engine.ValidateToken(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrWrongTokenType)

	_, err = env.engine.RefreshToken(ctx, pair.AccessToken, client)
	require.ErrorIs(t, err, ErrWrongTokenType)

	assert.Equal(t, uint64(2), env.engine.MetricsSnapshot().Counters[MetricTokenTypeMismatch])
}

func TestRefreshTokenKeepsSession(t *testing.T) {
	env := newTestEnv(t, testConfig(), testPrincipal(t, "u1", "farmer@example.com", permission.RoleFarmer))
	pair := login(t, env, "farmer@example.com")
	ctx := context.Background()

	env.mr.FastForward(20 * time.Hour)

	res, err := env.engine.RefreshToken(ctx, pair.RefreshToken, ClientContext{IP: "198.51.100.9", UserAgent: "mobile/2"})
	require.NoError(t, err)
	assert.Equal(t, pair.SessionID, res.SessionID)
	assert.NotEmpty(t, res.AccessToken)

	// touching the session restarted its idle timeout
	ttl := env.mr.TTL("session:" + pair.SessionID)
	assert.Greater(t, ttl, 23*time.Hour)

	info, err := env.engine.ValidateToken(ctx, res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, pair.SessionID, info.SessionID)

	// the refresh token is not rotated
	_, err = env.engine.RefreshToken(ctx, pair.RefreshToken, client)
	require.NoError(t, err)

	assert.Len(t, eventsNamed(env.drainAudit(), auditEventRefreshSuccess), 2)
}

func TestRefreshAfterLogout(t *testing.T) {
	env := newTestEnv(t, testConfig(), testPrincipal(t, "u1", "farmer@example.com", permission.RoleFarmer))
	pair := login(t, env, "farmer@example.com")
	ctx := context.Background()

	require.NoError(t, env.engine.Logout(ctx, "u1", pair.SessionID, client))

	_, err := env.engine.RefreshToken(ctx, pair.RefreshToken, client)
	require.ErrorIs(t, err, ErrSessionNotFound)

	invalid := eventsNamed(env.drainAudit(), auditEventRefreshInvalid)
	require.Len(t, invalid, 1)
	assert.Equal(t, reasonSessionNotFound, invalid[0].Reason)
}

func TestSessionIdleTimeout(t *testing.T) {
	env := newTestEnv(t, testConfig(), testPrincipal(t, "u1", "farmer@example.com", permission.RoleFarmer))
	pair := login(t, env, "farmer@example.com")

	env.mr.FastForward(24*time.Hour + time.Second)

	_, err := env.engine.ValidateToken(context.Background(), pair.AccessToken)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestLogoutIsIdempotent(t *testing.T) {
	env := newTestEnv(t, testConfig(), testPrincipal(t, "u1", "farmer@example.com", permission.RoleFarmer))
	pair := login(t, env, "farmer@example.com")
	ctx := context.Background()

	require.NoError(t, env.engine.Logout(ctx, "u1", pair.SessionID, client))
	require.NoError(t, env.engine.Logout(ctx, "u1", pair.SessionID, client))

	_, err := env.engine.ValidateToken(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestLogoutLeavesOtherSessions(t *testing.T) {
	env := newTestEnv(t, testConfig(), testPrincipal(t, "u1", "farmer@example.com", permission.RoleFarmer))
	first := login(t, env, "farmer@example.com")
	second := login(t, env, "farmer@example.com")
	require.NotEqual(t, first.SessionID, second.SessionID)
	ctx := context.Background()

	require.NoError(t, env.engine.Logout(ctx, "u1", first.SessionID, client))

	_, err := env.engine.ValidateToken(ctx, second.AccessToken)
	require.NoError(t, err)
}

func TestLogoutAll(t *testing.T) {
	env := newTestEnv(t, testConfig(),
		testPrincipal(t, "u1", "farmer@example.com", permission.RoleFarmer),
		testPrincipal(t, "u2", "inspector@example.com", permission.RoleInspector),
	)
	a := login(t, env, "farmer@example.com")
	b := login(t, env, "farmer@example.com")
	other := login(t, env, "inspector@example.com")
	ctx := context.Background()

	n, err := env.engine.LogoutAll(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, tok := range []string{a.AccessToken, b.AccessToken} {
		_, err := env.engine.ValidateToken(ctx, tok)
		require.ErrorIs(t, err, ErrSessionNotFound)
	}
	_, err = env.engine.ValidateToken(ctx, other.AccessToken)
	require.NoError(t, err)

	n, err = env.engine.LogoutAll(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestValidateFailsClosedWhenRedisDown(t *testing.T) {
	env := newTestEnv(t, testConfig(), testPrincipal(t, "u1", "farmer@example.com", permission.RoleFarmer))
	pair := login(t, env, "farmer@example.com")
	ctx := context.Background()

	env.mr.Close()

	_, err := env.engine.ValidateToken(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrBackingStoreUnavailable)
	assert.NotErrorIs(t, err, ErrSessionNotFound)

	_, err = env.engine.RefreshToken(ctx, pair.RefreshToken, client)
	require.ErrorIs(t, err, ErrBackingStoreUnavailable)

	err = env.engine.Logout(ctx, "u1", pair.SessionID, client)
	require.ErrorIs(t, err, ErrBackingStoreUnavailable)
}

func TestValidateLatencyHistogram(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.EnableLatencyHistograms = true
	env := newTestEnv(t, cfg, testPrincipal(t, "u1", "farmer@example.com", permission.RoleFarmer))
	pair := login(t, env, "farmer@example.com")

	for i := 0; i < 3; i++ {
		_, err := env.engine.ValidateToken(context.Background(), pair.AccessToken)
		require.NoError(t, err)
	}

	snap := env.engine.MetricsSnapshot()
	var total uint64
	for _, n := range snap.Histograms[MetricValidateLatency] {
		total += n
	}
	assert.Equal(t, uint64(3), total)
	assert.Equal(t, uint64(3), snap.Counters[MetricValidateSuccess])
}

func TestEngineNotReady(t *testing.T) {
	var e *Engine
	ctx := context.Background()

	_, err := e.Authenticate(ctx, "a@example.com", "x", client)
	assert.ErrorIs(t, err, ErrEngineNotReady)
	_, err = e.ValidateToken(ctx, "x")
	assert.ErrorIs(t, err, ErrEngineNotReady)
	_, err = (&Engine{}).RefreshToken(ctx, "x", client)
	assert.ErrorIs(t, err, ErrEngineNotReady)
	assert.NotPanics(t, e.Close)
	assert.Empty(t, e.MetricsSnapshot().Counters)
}
