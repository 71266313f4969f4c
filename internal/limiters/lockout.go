package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/internal/retry"
)

// LockoutConfig controls failed-attempt counting and the lock window.
type LockoutConfig struct {
	Enabled   bool
	Threshold int
	// Window is the fixed window over which failures are counted.
	Window time.Duration
	// Duration is how long the lock marker lives once Threshold is reached.
	Duration time.Duration
	// KeyPrefix namespaces keys for shared Redis deployments.
	KeyPrefix string
}

// ErrLockoutUnavailable indicates the lockout backend is unreachable.
var ErrLockoutUnavailable = errors.New("lockout backend unavailable")

// FailureResult is the outcome of a single RecordFailure call.
type FailureResult struct {
	Count       int64
	Locked      bool
	NewlyLocked bool
	LockedUntil time.Time
}

// LockoutState is the lockout view of one principal.
type LockoutState struct {
	PrincipalID    string
	FailedAttempts int64
	Locked         bool
	LockedUntil    time.Time
}

// recordFailureScript counts a failure and sets the lock marker in one round
// trip. A principal that is already locked is not counted again.
//
// KEYS[1] failure counter, KEYS[2] lock marker
// ARGV[1] window ms, ARGV[2] threshold, ARGV[3] lock duration ms
// returns {count, locked, newly_locked, lock_ttl_ms}
var recordFailureScript = redis.NewScript(`
local ttl = redis.call("PTTL", KEYS[2])
if ttl ~= -2 then
  local held = tonumber(redis.call("GET", KEYS[2]) or "0") or 0
  return {held, 1, 0, ttl}
end
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if count >= tonumber(ARGV[2]) then
  redis.call("SET", KEYS[2], count, "PX", ARGV[3])
  redis.call("DEL", KEYS[1])
  return {count, 1, 1, tonumber(ARGV[3])}
end
return {count, 0, 0, 0}
`)

// LockoutTracker counts failed authentications per principal in Redis and
// locks the principal once the threshold is reached inside the window.
type LockoutTracker struct {
	redis  redis.UniversalClient
	config LockoutConfig
	now    func() time.Time
}

// NewLockoutTracker creates a tracker. A nil tracker or a disabled config
// turns every method into a no-op.
func NewLockoutTracker(redisClient redis.UniversalClient, cfg LockoutConfig) *LockoutTracker {
	return &LockoutTracker{redis: redisClient, config: cfg, now: time.Now}
}

func (l *LockoutTracker) enabled() bool {
	return l != nil && l.config.Enabled
}

func (l *LockoutTracker) counterKey(principalID string) string {
	return l.config.KeyPrefix + "failed_attempts:{" + principalID + "}"
}

func (l *LockoutTracker) lockKey(principalID string) string {
	return l.config.KeyPrefix + "lockout:{" + principalID + "}"
}

// RecordFailure atomically counts one failure. NewlyLocked is true only for
// the call that set the lock marker. Never retried.
func (l *LockoutTracker) RecordFailure(ctx context.Context, principalID string) (FailureResult, error) {
	if !l.enabled() || principalID == "" {
		return FailureResult{}, nil
	}

	raw, err := recordFailureScript.Run(ctx, l.redis,
		[]string{l.counterKey(principalID), l.lockKey(principalID)},
		l.config.Window.Milliseconds(),
		l.config.Threshold,
		l.config.Duration.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return FailureResult{}, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	if len(raw) != 4 {
		return FailureResult{}, fmt.Errorf("%w: unexpected script reply", ErrLockoutUnavailable)
	}

	res := FailureResult{
		Count:       raw[0],
		Locked:      raw[1] == 1,
		NewlyLocked: raw[2] == 1,
	}
	if res.Locked {
		res.LockedUntil = l.until(raw[3])
	}
	return res, nil
}

// IsLocked reports whether principalID is currently locked and until when.
func (l *LockoutTracker) IsLocked(ctx context.Context, principalID string) (bool, time.Time, error) {
	st, err := l.State(ctx, principalID)
	if err != nil {
		return false, time.Time{}, err
	}
	return st.Locked, st.LockedUntil, nil
}

// State reads the counter and lock marker together. It is an idempotent
// read and is retried once on a transient backend failure.
func (l *LockoutTracker) State(ctx context.Context, principalID string) (LockoutState, error) {
	st := LockoutState{PrincipalID: principalID}
	if !l.enabled() || principalID == "" {
		return st, nil
	}

	var (
		ttl   *redis.DurationCmd
		count *redis.StringCmd
	)
	err := retry.Once(ctx, retryableRedis, func(ctx context.Context) error {
		_, err := l.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			ttl = pipe.PTTL(ctx, l.lockKey(principalID))
			count = pipe.Get(ctx, l.counterKey(principalID))
			return nil
		})
		if errors.Is(err, redis.Nil) {
			err = nil
		}
		return err
	})
	if err != nil {
		return st, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}

	if n, err := count.Int64(); err == nil {
		st.FailedAttempts = n
	}
	switch d := ttl.Val(); {
	case d > 0:
		st.Locked = true
		st.LockedUntil = l.now().Add(d)
	case d == -1:
		// marker without expiry; locked until cleared
		st.Locked = true
	}
	return st, nil
}

// FailureCount returns the failures counted in the current window.
func (l *LockoutTracker) FailureCount(ctx context.Context, principalID string) (int64, error) {
	st, err := l.State(ctx, principalID)
	return st.FailedAttempts, err
}

// Clear removes both the failure counter and the lock marker. Called after
// a successful authentication and by administrative unlock.
func (l *LockoutTracker) Clear(ctx context.Context, principalID string) error {
	if !l.enabled() || principalID == "" {
		return nil
	}
	if err := l.redis.Del(ctx, l.counterKey(principalID), l.lockKey(principalID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

func (l *LockoutTracker) until(ttlMillis int64) time.Time {
	if ttlMillis <= 0 {
		return time.Time{}
	}
	return l.now().Add(time.Duration(ttlMillis) * time.Millisecond)
}

func retryableRedis(err error) bool {
	return retry.Transient(err, redis.Nil)
}
