package permission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goIdentity/internal"
)

const (
	cachePrefix = "permission:"
	epochPrefix = "permissionEpoch:"
)

// KEYS[1] cache key; KEYS[2] epoch key; ARGV[1] epoch observed before
// enforcing; ARGV[2] value; ARGV[3] ttl ms. The write is skipped when a
// mutation bumped the epoch in between, so a decision computed against an
// older policy is never cached.
const cacheSetScript = `
local cur = redis.call("GET", KEYS[2]) or ""
if cur ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`

var cacheSetLua = redis.NewScript(cacheSetScript)

type decisionCache struct {
	redis redis.UniversalClient
	ttl   time.Duration
}

func checkKeyParts(parts ...string) error {
	for _, p := range parts {
		if strings.IndexByte(p, ':') >= 0 {
			return fmt.Errorf("%w: %q", ErrInvalidKeyPart, p)
		}
	}
	return nil
}

func cacheKey(tenantID, subject, resource, action string) string {
	var b strings.Builder
	b.Grow(len(cachePrefix) + len(tenantID) + len(subject) + len(resource) + len(action) + 3)
	b.WriteString(cachePrefix)
	b.WriteString(tenantID)
	b.WriteByte(':')
	b.WriteString(subject)
	b.WriteByte(':')
	b.WriteString(resource)
	b.WriteByte(':')
	b.WriteString(action)
	return b.String()
}

func subjectPattern(tenantID, subject string) string {
	return cachePrefix + internal.EscapeGlob(tenantID) + ":" + internal.EscapeGlob(subject) + ":*"
}

func epochKey(tenantID, subject string) string {
	return epochPrefix + tenantID + ":" + subject
}

// get returns the cached decision and whether there was one.
func (c *decisionCache) get(ctx context.Context, key string) (bool, bool, error) {
	v, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, false, nil
		}
		return false, false, err
	}
	switch v {
	case "true":
		return true, true, nil
	case "false":
		return false, true, nil
	default:
		// Unknown payloads are treated as a miss and overwritten.
		return false, false, nil
	}
}

func (c *decisionCache) epoch(ctx context.Context, tenantID, subject string) (string, error) {
	v, err := c.redis.Get(ctx, epochKey(tenantID, subject)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return v, nil
}

func (c *decisionCache) set(ctx context.Context, tenantID, subject, key, epoch string, allowed bool) error {
	value := "false"
	if allowed {
		value = "true"
	}
	return cacheSetLua.Run(ctx, c.redis,
		[]string{key, epochKey(tenantID, subject)},
		epoch, value, c.ttl.Milliseconds(),
	).Err()
}

// bump advances the subject's epoch so in-flight checks drop their write.
func (c *decisionCache) bump(ctx context.Context, tenantID, subject string) error {
	key := epochKey(tenantID, subject)
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	return err
}

// evict deletes every cached decision of subject within tenant and returns
// the keys it found. On error the returned keys are the ones that may
// still be present.
func (c *decisionCache) evict(ctx context.Context, tenantID, subject string) ([]string, error) {
	var keys []string
	iter := c.redis.Scan(ctx, 0, subjectPattern(tenantID, subject), 256).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return keys, err
	}
	return keys, nil
}
