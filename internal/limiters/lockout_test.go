package limiters

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLockoutTest(t *testing.T, cfg LockoutConfig) (*LockoutTracker, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewLockoutTracker(rdb, cfg), mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func defaultLockoutConfig() LockoutConfig {
	return LockoutConfig{
		Enabled:   true,
		Threshold: 5,
		Window:    time.Hour,
		Duration:  30 * time.Minute,
	}
}

func TestLockoutLocksAtThreshold(t *testing.T) {
	tr, mr, done := newLockoutTest(t, defaultLockoutConfig())
	defer done()
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		res, err := tr.RecordFailure(ctx, "u1")
		if err != nil {
			t.Fatalf("RecordFailure %d: %v", i, err)
		}
		if res.Count != int64(i) || res.Locked {
			t.Fatalf("attempt %d: unexpected result %+v", i, res)
		}
	}
	if ttl := mr.TTL("failed_attempts:{u1}"); ttl != time.Hour {
		t.Fatalf("expected window TTL 1h, got %v", ttl)
	}

	res, err := tr.RecordFailure(ctx, "u1")
	if err != nil {
		t.Fatalf("RecordFailure 5: %v", err)
	}
	if !res.Locked || !res.NewlyLocked || res.Count != 5 || res.LockedUntil.IsZero() {
		t.Fatalf("expected newly locked at threshold, got %+v", res)
	}
	if mr.Exists("failed_attempts:{u1}") {
		t.Fatal("expected counter to be reset once the lock is set")
	}
	if ttl := mr.TTL("lockout:{u1}"); ttl != 30*time.Minute {
		t.Fatalf("expected lock TTL 30m, got %v", ttl)
	}

	locked, until, err := tr.IsLocked(ctx, "u1")
	if err != nil || !locked || until.IsZero() {
		t.Fatalf("IsLocked = %v %v %v", locked, until, err)
	}
}

func TestLockoutFailuresWhileLockedDoNotRenotify(t *testing.T) {
	tr, _, done := newLockoutTest(t, defaultLockoutConfig())
	defer done()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := tr.RecordFailure(ctx, "u1"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}
	res, err := tr.RecordFailure(ctx, "u1")
	if err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if !res.Locked || res.NewlyLocked {
		t.Fatalf("expected locked without new notification, got %+v", res)
	}
}

func TestLockoutExpiresAndCountResets(t *testing.T) {
	tr, mr, done := newLockoutTest(t, defaultLockoutConfig())
	defer done()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = tr.RecordFailure(ctx, "u1")
	}
	mr.FastForward(31 * time.Minute)

	st, err := tr.State(ctx, "u1")
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if st.Locked || st.FailedAttempts != 0 {
		t.Fatalf("expected unlocked with zero count, got %+v", st)
	}

	res, err := tr.RecordFailure(ctx, "u1")
	if err != nil || res.Count != 1 {
		t.Fatalf("expected fresh count 1, got %+v err=%v", res, err)
	}
}

func TestLockoutWindowExpiry(t *testing.T) {
	tr, mr, done := newLockoutTest(t, defaultLockoutConfig())
	defer done()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, _ = tr.RecordFailure(ctx, "u1")
	}
	mr.FastForward(61 * time.Minute)

	n, err := tr.FailureCount(ctx, "u1")
	if err != nil || n != 0 {
		t.Fatalf("expected window to expire the counter, n=%d err=%v", n, err)
	}
}

func TestLockoutConcurrentFailuresAreExact(t *testing.T) {
	cfg := defaultLockoutConfig()
	cfg.Threshold = 50
	tr, _, done := newLockoutTest(t, cfg)
	defer done()
	ctx := context.Background()

	var (
		wg    sync.WaitGroup
		newly atomic.Int64
		highest atomic.Int64
	)
	for i := 0; i < 49; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := tr.RecordFailure(ctx, "u1")
			if err != nil {
				t.Errorf("RecordFailure: %v", err)
				return
			}
			for {
				cur := highest.Load()
				if res.Count <= cur || highest.CompareAndSwap(cur, res.Count) {
					break
				}
			}
		}()
	}
	wg.Wait()
	if highest.Load() != 49 {
		t.Fatalf("expected 49 counted failures, got %d", highest.Load())
	}

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := tr.RecordFailure(ctx, "u1")
			if err != nil {
				t.Errorf("RecordFailure: %v", err)
				return
			}
			if res.NewlyLocked {
				newly.Add(1)
			}
		}()
	}
	wg.Wait()
	if newly.Load() != 1 {
		t.Fatalf("expected exactly one lock notification, got %d", newly.Load())
	}
}

func TestLockoutClear(t *testing.T) {
	tr, mr, done := newLockoutTest(t, defaultLockoutConfig())
	defer done()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = tr.RecordFailure(ctx, "u1")
	}
	if err := tr.Clear(ctx, "u1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if mr.Exists("lockout:{u1}") || mr.Exists("failed_attempts:{u1}") {
		t.Fatal("expected both keys removed")
	}
}

func TestLockoutKeyPrefix(t *testing.T) {
	cfg := defaultLockoutConfig()
	cfg.KeyPrefix = "cert:"
	tr, mr, done := newLockoutTest(t, cfg)
	defer done()

	if _, err := tr.RecordFailure(context.Background(), "u1"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if !mr.Exists("cert:failed_attempts:{u1}") {
		t.Fatal("expected prefixed counter key")
	}
}

func TestLockoutDisabledIsNoop(t *testing.T) {
	cfg := defaultLockoutConfig()
	cfg.Enabled = false
	tr, mr, done := newLockoutTest(t, cfg)
	defer done()

	res, err := tr.RecordFailure(context.Background(), "u1")
	if err != nil || res.Count != 0 {
		t.Fatalf("expected no-op, got %+v err=%v", res, err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("expected no keys, got %v", mr.Keys())
	}

	var nilTracker *LockoutTracker
	if err := nilTracker.Clear(context.Background(), "u1"); err != nil {
		t.Fatalf("nil tracker Clear: %v", err)
	}
}

func TestLockoutBackendDown(t *testing.T) {
	tr, mr, done := newLockoutTest(t, defaultLockoutConfig())
	defer done()
	mr.Close()

	if _, err := tr.RecordFailure(context.Background(), "u1"); !errors.Is(err, ErrLockoutUnavailable) {
		t.Fatalf("expected ErrLockoutUnavailable, got %v", err)
	}
	if _, _, err := tr.IsLocked(context.Background(), "u1"); !errors.Is(err, ErrLockoutUnavailable) {
		t.Fatalf("expected ErrLockoutUnavailable, got %v", err)
	}
}

func hashTag(key string) string {
	start := strings.IndexByte(key, '{')
	if start < 0 {
		return key
	}
	end := strings.IndexByte(key[start+1:], '}')
	if end <= 0 {
		return key
	}
	return key[start+1 : start+1+end]
}

func TestLockoutKeysShareClusterSlot(t *testing.T) {
	cfg := defaultLockoutConfig()
	cfg.KeyPrefix = "cert:"
	tr := NewLockoutTracker(nil, cfg)

	for _, pid := range []string{"u1", "farmer-42", "01HZX3"} {
		counter, lock := tr.counterKey(pid), tr.lockKey(pid)
		if hashTag(counter) != pid || hashTag(lock) != pid {
			t.Fatalf("keys %q and %q do not hash on %q", counter, lock, pid)
		}
	}
}
