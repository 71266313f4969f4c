package authcore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/permission"
)

func permissionEnv(t *testing.T) *testEnv {
	inactive := testPrincipal(t, "u9", "gone@example.com", permission.RoleFarmer)
	inactive.Active = false
	return newTestEnv(t, testConfig(),
		testPrincipal(t, "u1", "farmer@example.com", permission.RoleFarmer),
		testPrincipal(t, "u2", "inspector@example.com", permission.RoleInspector),
		testPrincipal(t, "u3", "admin@example.com", permission.RoleAdmin),
		testPrincipal(t, "u4", "trainer@example.com", permission.RoleTrainer),
		inactive,
	)
}

func TestHasPermission(t *testing.T) {
	env := permissionEnv(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		principal string
		perm      string
		resource  *ResourceContext
		want      bool
	}{
		{"farmer own resource", "u1", "application:read:own", &ResourceContext{OwnerID: "u1"}, true},
		{"farmer foreign resource", "u1", "application:read:own", &ResourceContext{OwnerID: "u2"}, false},
		{"farmer without resource", "u1", "application:read:own", nil, true},
		{"farmer all scope", "u1", "application:read:all", nil, false},
		{"farmer unscoped", "u1", "application:create", nil, true},
		{"inspector all covers own", "u2", "application:read:own", &ResourceContext{OwnerID: "u1"}, true},
		{"inspector all", "u2", "application:read:all", nil, true},
		{"inspector outside role", "u2", "certificate:issue:all", nil, false},
		{"admin bypass", "u3", "certificate:revoke:all", nil, true},
		{"admin unknown permission", "u3", "anything:at:all", nil, true},
		{"trainer own course", "u4", "training:manage:own", &ResourceContext{OwnerID: "u4"}, true},
		{"trainer foreign course", "u4", "training:manage:own", &ResourceContext{OwnerID: "u1"}, false},
		{"unknown permission", "u1", "nope:read:own", nil, false},
		{"unknown principal", "ghost", "application:read:own", nil, false},
		{"inactive principal", "u9", "application:read:own", nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := env.engine.HasPermission(ctx, tc.principal, tc.perm, tc.resource)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHasPermissionStoreDown(t *testing.T) {
	env := permissionEnv(t)
	env.store.setFindErr(errStoreDown)

	ok, err := env.engine.HasPermission(context.Background(), "u3", "system:configure", nil)
	require.ErrorIs(t, err, ErrBackingStoreUnavailable)
	assert.False(t, ok)
}

func TestAuthorize(t *testing.T) {
	env := permissionEnv(t)
	pair := login(t, env, "farmer@example.com")
	ctx := context.Background()

	info, err := env.engine.ValidateToken(ctx, pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, env.engine.Authorize(ctx, info, "document:read:own", &ResourceContext{OwnerID: "u1"}))

	err = env.engine.Authorize(ctx, info, "document:read:own", &ResourceContext{OwnerID: "u2"})
	require.ErrorIs(t, err, ErrInsufficientPermission)

	require.ErrorIs(t, env.engine.Authorize(ctx, nil, "document:read:own", nil), ErrInvalidToken)

	denied := eventsNamed(env.drainAudit(), auditEventPermissionDenied)
	require.Len(t, denied, 1)
	assert.Equal(t, "u1", denied[0].PrincipalID)
	assert.Equal(t, "document:read:own", denied[0].Metadata["permission"])
	assert.Equal(t, "u2", denied[0].Metadata["owner_id"])
}

func TestEnginePermissionsFor(t *testing.T) {
	env := permissionEnv(t)

	perms := env.engine.PermissionsFor(permission.RoleTrainer)
	assert.Equal(t, []string{"training:grade:all", "training:manage:own", "training:read:all"}, perms)
	assert.Nil(t, env.engine.PermissionsFor(Role("ghost")))
}

func TestCustomPermissionTable(t *testing.T) {
	table := permission.DefaultTable()
	table[permission.RoleFarmer] = append(table[permission.RoleFarmer], "report:read:all")

	base := newTestEnv(t, testConfig())
	e, err := New().
		WithConfig(testConfig()).
		WithRedis(base.rdb).
		WithCredentialStore(newMockStore(testPrincipal(t, "u1", "farmer@example.com", permission.RoleFarmer))).
		WithPermissionTable(table).
		Build()
	require.NoError(t, err)
	t.Cleanup(e.Close)

	ok, err := e.HasPermission(context.Background(), "u1", "report:read:all", nil)
	require.NoError(t, err)
	assert.True(t, ok)
}
