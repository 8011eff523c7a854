package httpmiddleware

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the window counter and returns it together with
// the remaining TTL in milliseconds.
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
return {count, ttl}
`)

// redisLimiter is a fixed window limiter shared by every replica through Redis.
type redisLimiter struct {
	client redis.Scripter
	prefix string
	max    int
	window time.Duration
}

func (rl *redisLimiter) allow(ctx context.Context, key string, now time.Time) (int, time.Time, bool, error) {
	res, err := fixedWindowScript.Run(ctx, rl.client,
		[]string{rl.prefix + key},
		rl.window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return 0, time.Time{}, false, errors.Wrap(err, "run rate limit script")
	}
	if len(res) != 2 {
		return 0, time.Time{}, false, errors.Errorf("unexpected rate limit reply: %v", res)
	}

	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	if ttl < 0 {
		ttl = rl.window
	}
	resetAt := now.Add(ttl)
	if count > rl.max {
		return 0, resetAt, false, nil
	}
	return rl.max - count, resetAt, true, nil
}

// RedisRateLimit is like RateLimit but keeps fixed window counters in Redis
// under prefix so the limit holds across replicas. Redis errors let the
// request through.
func RedisRateLimit(client redis.Scripter, prefix string, cfg RateLimitConfig) Middleware {
	return rateLimitMiddleware(cfg, &redisLimiter{
		client: client,
		prefix: prefix,
		max:    cfg.Max,
		window: cfg.Window,
	})
}
