package rate

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is the shared-store variant behind the same interface.
// Fixed-window semantics: one counter per identifier per window, TTL set on
// the first hit. Slightly coarser than the sliding window but correct
// across any number of instances.
type RedisLimiter struct {
	redis  redis.UniversalClient
	prefix string
	cfg    Config
}

// NewRedisLimiter creates a Redis-backed fixed-window limiter.
func NewRedisLimiter(client redis.UniversalClient, prefix string, cfg Config) *RedisLimiter {
	if prefix == "" {
		prefix = "irl"
	}
	return &RedisLimiter{
		redis:  client,
		prefix: prefix,
		cfg:    cfg,
	}
}

func (l *RedisLimiter) key(identifier string) string {
	return l.prefix + ":" + identifier
}

// IsRateLimited increments the window counter and compares it to the
// budget. Backend failures are returned so callers can deny the request.
func (l *RedisLimiter) IsRateLimited(ctx context.Context, identifier string) (bool, error) {
	if l.cfg.MaxRequests <= 0 {
		return false, nil
	}

	key := l.key(identifier)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return true, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.cfg.Window).Err(); err != nil {
			return true, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count > int64(l.cfg.MaxRequests), nil
}
