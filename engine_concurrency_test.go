package authcore

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/permission"
)

func TestConcurrentFailuresLockExactlyOnce(t *testing.T) {
	env := newTestEnv(t, testConfig(), testPrincipal(t, "u1", "farmer@example.com", permission.RoleFarmer))
	ctx := context.Background()

	var notified atomic.Int32
	env.engine.onLockout = func(context.Context, LockoutState) { notified.Add(1) }

	const workers = 20
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := env.engine.Authenticate(ctx, "farmer@example.com", "Wrong-Horse1", client)
			assert.Error(t, err)
			assert.NotErrorIs(t, err, ErrBackingStoreUnavailable)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), notified.Load())

	st, err := env.engine.LockoutStatus(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, st.Locked)

	_, err = env.engine.Authenticate(ctx, "farmer@example.com", testPassword, client)
	require.ErrorIs(t, err, ErrAccountLocked)
}

func TestConcurrentRefreshKeepsSessionLive(t *testing.T) {
	env := newTestEnv(t, testConfig(), testPrincipal(t, "u1", "farmer@example.com", permission.RoleFarmer))
	pair := login(t, env, "farmer@example.com")
	ctx := context.Background()

	const workers = 16
	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := env.engine.RefreshToken(ctx, pair.RefreshToken, ClientContext{IP: fmt.Sprintf("10.0.0.%d", i)})
			errs <- err
		}(i)
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	_, err := env.engine.ValidateToken(ctx, pair.AccessToken)
	require.NoError(t, err)
}

func TestConcurrentLogoutAllRacesLogin(t *testing.T) {
	env := newTestEnv(t, testConfig(), testPrincipal(t, "u1", "farmer@example.com", permission.RoleFarmer))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.engine.Authenticate(ctx, "farmer@example.com", testPassword, client)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := env.engine.LogoutAll(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Empty(t, env.mr.Keys())
}

// cmdCounter is a go-redis hook recording every command name sent.
type cmdCounter struct {
	mu        sync.Mutex
	commands  []string
	pipelines int
}

func (h *cmdCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *cmdCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.mu.Lock()
		h.commands = append(h.commands, strings.ToLower(cmd.Name()))
		h.mu.Unlock()
		return next(ctx, cmd)
	}
}

func (h *cmdCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		h.mu.Lock()
		h.pipelines++
		for _, c := range cmds {
			h.commands = append(h.commands, strings.ToLower(c.Name()))
		}
		h.mu.Unlock()
		return next(ctx, cmds)
	}
}

func (h *cmdCounter) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = nil
	h.pipelines = 0
}

func (h *cmdCounter) snapshot() ([]string, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.commands...), h.pipelines
}

func TestValidateTokenRedisBudget(t *testing.T) {
	env := newTestEnv(t, testConfig(), testPrincipal(t, "u1", "farmer@example.com", permission.RoleFarmer))
	pair := login(t, env, "farmer@example.com")

	counter := &cmdCounter{}
	env.rdb.AddHook(counter)

	_, err := env.engine.ValidateToken(context.Background(), pair.AccessToken)
	require.NoError(t, err)

	cmds, pipelines := counter.snapshot()
	assert.Equal(t, []string{"get"}, cmds)
	assert.Zero(t, pipelines)

	// a rejected signature never reaches Redis
	counter.reset()
	_, err = env.engine.ValidateToken(context.Background(), pair.AccessToken+"x")
	require.Error(t, err)
	cmds, _ = counter.snapshot()
	assert.Empty(t, cmds)
}

func TestLockedAttemptSkipsFailureCounter(t *testing.T) {
	env := newTestEnv(t, testConfig(), testPrincipal(t, "u1", "farmer@example.com", permission.RoleFarmer))
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _ = env.engine.Authenticate(ctx, "farmer@example.com", "Wrong-Horse1", client)
	}

	counter := &cmdCounter{}
	env.rdb.AddHook(counter)

	_, err := env.engine.Authenticate(ctx, "farmer@example.com", "Wrong-Horse1", client)
	require.ErrorIs(t, err, ErrAccountLocked)

	cmds, _ := counter.snapshot()
	assert.NotContains(t, cmds, "evalsha")
	assert.NotContains(t, cmds, "eval")
	assert.NotContains(t, cmds, "incr")
}
