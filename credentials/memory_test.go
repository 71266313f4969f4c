package credentials

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authcore "github.com/jonmaxmore/Botanical-Audit-Framework-sub006"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/permission"
)

func TestMemoryStoreLookups(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Put(authcore.Principal{ID: "u1", Email: "Farmer@Example.com", Role: permission.RoleFarmer, Active: true}))
	ctx := context.Background()

	p, err := s.FindByEmail(ctx, "farmer@example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "u1", p.ID)

	_, err = s.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, authcore.ErrPrincipalNotFound)
	_, err = s.FindByID(ctx, "u2")
	assert.ErrorIs(t, err, authcore.ErrPrincipalNotFound)

	// returned values are copies
	p.Active = false
	again, err := s.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, again.Active)
}

func TestMemoryStorePutRules(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Put(authcore.Principal{ID: "u1", Email: "a@example.com", Role: permission.RoleFarmer}))

	assert.ErrorIs(t, s.Put(authcore.Principal{ID: "u2", Email: "A@example.com", Role: permission.RoleFarmer}), ErrDuplicateEmail)
	assert.Error(t, s.Put(authcore.Principal{ID: "u3", Email: "c@example.com", Role: "gardener"}))
	assert.Error(t, s.Put(authcore.Principal{Email: "d@example.com", Role: permission.RoleFarmer}))

	// re-keying an email frees the old one
	require.NoError(t, s.Put(authcore.Principal{ID: "u1", Email: "b@example.com", Role: permission.RoleFarmer}))
	require.NoError(t, s.Put(authcore.Principal{ID: "u2", Email: "a@example.com", Role: permission.RoleInspector}))
	assert.Equal(t, 2, s.Len())
}

func TestMemoryStoreUpdate(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Put(authcore.Principal{ID: "u1", Email: "a@example.com", Role: permission.RoleFarmer, PasswordHash: "old"}))
	ctx := context.Background()

	now := time.Now()
	ip := "10.1.1.1"
	require.NoError(t, s.Update(ctx, "u1", authcore.PrincipalUpdate{LastLoginAt: &now, LastLoginIP: &ip}))

	p, _ := s.FindByID(ctx, "u1")
	assert.Equal(t, "old", p.PasswordHash)
	assert.Equal(t, ip, p.LastLoginIP)
	assert.True(t, p.LastLoginAt.Equal(now))

	assert.ErrorIs(t, s.Update(ctx, "ghost", authcore.PrincipalUpdate{}), authcore.ErrPrincipalNotFound)
	require.NoError(t, s.SetActive("u1", false))
	p, _ = s.FindByID(ctx, "u1")
	assert.False(t, p.Active)
}
