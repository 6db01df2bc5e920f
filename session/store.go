package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned when a store command fails or times out.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrRefreshSessionNotFound is returned when no refresh token is stored for a slot.
var ErrRefreshSessionNotFound = errors.New("refresh session not found")

// ErrRefreshHashMismatch is returned when the presented refresh token is not
// the one stored for its slot. The slot has been purged when this is returned.
var ErrRefreshHashMismatch = errors.New("refresh hash mismatch")

const (
	rotateStatusNotFound int64 = 0
	rotateStatusRotated  int64 = 1
	rotateStatusMismatch int64 = 2
)

// KEYS[1] slot key; ARGV[1] presented digest; ARGV[2] next digest; ARGV[3] ttl ms.
const rotateRefreshScript = `
local stored = redis.call("GET", KEYS[1])
if not stored then
  return 0
end
if stored ~= ARGV[1] then
  redis.call("DEL", KEYS[1])
  return 2
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

// Store keeps refresh-token slots and the access-token blacklist in Redis.
type Store struct {
	redis redis.UniversalClient
}

// NewStore creates a [Store] backed by the given Redis client.
func NewStore(rdb redis.UniversalClient) *Store {
	return &Store{redis: rdb}
}

// SaveRefresh records token as the only live refresh token of slot,
// overwriting whatever the slot held before.
//
//	Performance: 1 Redis SET.
func (s *Store) SaveRefresh(ctx context.Context, slot Slot, token string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, slot.Key(), Digest(token), ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RotateRefresh atomically replaces presented with next in slot. When the
// slot is empty it returns [ErrRefreshSessionNotFound]; when it holds a
// different token the slot is deleted and [ErrRefreshHashMismatch] is
// returned. Concurrent rotations of the same token have exactly one winner.
//
//	Performance: 1 Lua script (GET + SET or DEL).
func (s *Store) RotateRefresh(ctx context.Context, slot Slot, presented, next string, ttl time.Duration) error {
	status, err := rotateRefreshLua.Run(
		ctx,
		s.redis,
		[]string{slot.Key()},
		Digest(presented),
		Digest(next),
		ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch status {
	case rotateStatusRotated:
		return nil
	case rotateStatusNotFound:
		return ErrRefreshSessionNotFound
	case rotateStatusMismatch:
		return ErrRefreshHashMismatch
	default:
		return fmt.Errorf("%w: unexpected rotate status %d", ErrRedisUnavailable, status)
	}
}

// DeleteRefresh removes the slot. It reports whether a token was stored.
func (s *Store) DeleteRefresh(ctx context.Context, slot Slot) (bool, error) {
	n, err := s.redis.Del(ctx, slot.Key()).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// DeleteAllForSubject removes the single-session slot and every
// per-session slot of subject within tenant.
//
// This scans refresh:{tenant}:{subject}:* and is O(keys) per call. A slot
// written between the scan and the delete survives until its own TTL.
func (s *Store) DeleteAllForSubject(ctx context.Context, tenantID, subject string) (int, error) {
	keys := []string{Slot{TenantID: tenantID, Subject: subject}.Key()}

	iter := s.redis.Scan(ctx, 0, subjectPattern(tenantID, subject), 256).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	n, err := s.redis.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(n), nil
}

// Blacklist marks an access token revoked for ttl. A non-positive ttl is
// a no-op and reports false: the token has already expired on its own.
func (s *Store) Blacklist(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, nil
	}
	if err := s.redis.Set(ctx, blacklistKey(token), "1", ttl).Err(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return true, nil
}

// IsBlacklisted reports whether token has a blacklist entry. Presence of
// the entry means the token is revoked.
//
//	Performance: 1 Redis EXISTS.
func (s *Store) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	n, err := s.redis.Exists(ctx, blacklistKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
