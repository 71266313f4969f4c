package session

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/redis/go-redis/v9"

	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/internal/retry"
)

var (
	// ErrNotFound is returned when the session row does not exist.
	ErrNotFound = errors.New("session not found")
	// ErrRedisUnavailable wraps any backend failure, timeouts included.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// MaxUserAgentLength bounds the stored user agent; longer values are cut.
const MaxUserAgentLength = 512

// maxTouchRetries bounds the optimistic WATCH loop in Touch.
const maxTouchRetries = 4

// Store keeps sessions in Redis under {prefix}session:{id} with a TTL equal
// to the session timeout, plus a per-principal index set.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewStore creates a session Store. ttl is the idle timeout that every
// Create and Touch resets.
func NewStore(redisClient redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	return &Store{
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + "session:" + sessionID
}

func (s *Store) indexKey(principalID string) string {
	return s.prefix + "session_index:" + principalID
}

// Create persists a new session. It is a write and is never retried.
func (s *Store) Create(ctx context.Context, sess *Session) error {
	if sess == nil || sess.SessionID == "" || sess.PrincipalID == "" {
		return errors.New("session: id and principal id required")
	}

	now := s.now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	if sess.LastActivity.IsZero() {
		sess.LastActivity = now
	}
	sess.UserAgent = truncate(sess.UserAgent, MaxUserAgentLength)
	sess.Active = true

	data, err := Encode(sess)
	if err != nil {
		return err
	}

	idx := s.indexKey(sess.PrincipalID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.SessionID), data, s.ttl)
		pipe.SAdd(ctx, idx, sess.SessionID)
		pipe.PExpire(ctx, idx, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get loads a session. A missing or inactive row is ErrNotFound; a backend
// failure is ErrRedisUnavailable and never reported as not found. The read
// is retried once on a transient failure.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrNotFound
	}

	var data []byte
	err := retry.Once(ctx, retryable, func(ctx context.Context) error {
		var err error
		data, err = s.redis.Get(ctx, s.key(sessionID)).Bytes()
		return err
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if !sess.Active {
		return nil, ErrNotFound
	}
	sess.SessionID = sessionID
	return sess, nil
}

// Touch records activity on a session: LastActivity, and ClientIP/UserAgent
// when non-empty. The TTL is reset to the full session timeout.
//
// The update is an optimistic WATCH transaction on the session key alone,
// so it stays inside one cluster slot. A conflict is retried up to
// maxTouchRetries times. If every attempt loses, a concurrent writer has
// just touched the same session, so the current row is returned instead of
// an error. The index TTL is extended afterwards outside the transaction.
func (s *Store) Touch(ctx context.Context, sessionID, clientIP, userAgent string) (*Session, error) {
	key := s.key(sessionID)

	var updated *Session
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			return err
		}
		sess, err := Decode(data)
		if err != nil {
			return err
		}
		if !sess.Active {
			return redis.Nil
		}

		sess.SessionID = sessionID
		sess.LastActivity = s.now()
		if clientIP != "" {
			sess.ClientIP = clientIP
		}
		if userAgent != "" {
			sess.UserAgent = truncate(userAgent, MaxUserAgentLength)
		}
		next, err := Encode(sess)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, s.ttl)
			return nil
		})
		if err == nil {
			updated = sess
		}
		return err
	}

	var err error
	for i := 0; i < maxTouchRetries; i++ {
		err = s.redis.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if errors.Is(err, redis.TxFailedErr) {
		return s.Get(ctx, sessionID)
	}

	switch {
	case err == nil:
		if err := s.redis.PExpire(ctx, s.indexKey(updated.PrincipalID), s.ttl).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return updated, nil
	case errors.Is(err, redis.Nil):
		return nil, ErrNotFound
	case errors.Is(err, ErrCorrupt):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
}

// Invalidate deletes a session and then its index entry. The two keys live
// in different cluster slots, so the steps are separate commands; an index
// entry left behind by a failure between them points at a missing row and is
// pruned by ActiveSessionIDs. Deleting a session that does not exist
// succeeds.
func (s *Store) Invalidate(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	key := s.key(sessionID)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		// unreadable rows still have to go
		if err := s.redis.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil
	}

	return s.deleteSessionAndIndex(ctx, sess.PrincipalID, sessionID)
}

// InvalidateAllForPrincipal deletes every session of principalID except
// keepSessionID (which may be empty) and returns how many rows it removed.
//
// Not atomic with respect to concurrent logins: a session created after the
// index is read survives this call.
func (s *Store) InvalidateAllForPrincipal(ctx context.Context, principalID, keepSessionID string) (int, error) {
	idx := s.indexKey(principalID)

	ids, err := s.redis.SMembers(ctx, idx).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	targets := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != keepSessionID {
			targets = append(targets, id)
		}
	}
	if len(targets) == 0 {
		return 0, nil
	}

	dels := make([]*redis.IntCmd, 0, len(targets))
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		members := make([]any, 0, len(targets))
		for _, id := range targets {
			dels = append(dels, pipe.Del(ctx, s.key(id)))
			members = append(members, id)
		}
		pipe.SRem(ctx, idx, members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	removed := 0
	for _, cmd := range dels {
		removed += int(cmd.Val())
	}
	return removed, nil
}

// ActiveSessionIDs lists the live sessions of principalID, pruning index
// entries whose rows have expired.
func (s *Store) ActiveSessionIDs(ctx context.Context, principalID string) ([]string, error) {
	idx := s.indexKey(principalID)

	ids, err := s.redis.SMembers(ctx, idx).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	exists := make([]*redis.IntCmd, len(ids))
	_, err = s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			exists[i] = pipe.Exists(ctx, s.key(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	live := make([]string, 0, len(ids))
	stale := make([]any, 0)
	for i, id := range ids {
		if exists[i].Val() == 1 {
			live = append(live, id)
		} else {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, idx, stale...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return live, nil
}

// Ping checks backend connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *Store) deleteSessionAndIndex(ctx context.Context, principalID, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if err := s.redis.SRem(ctx, s.indexKey(principalID), sessionID).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func retryable(err error) bool {
	return retry.Transient(err, redis.Nil)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
