package ratelimit

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// incrementScript increments a window counter and starts its expiry on the
// first hit, returning the count and the remaining window in milliseconds.
var incrementScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisCounter shares windows between server instances through Redis.
type RedisCounter struct {
	client redis.UniversalClient
}

// NewRedisCounter creates a counter backed by client.
func NewRedisCounter(client redis.UniversalClient) *RedisCounter {
	return &RedisCounter{client: client}
}

// Increment implements Counter. The increment and the expiry are applied
// in a single script so concurrent callers never observe the same count.
func (c *RedisCounter) Increment(ctx context.Context, key string, window time.Duration, now time.Time) (int64, time.Time, error) {
	res, err := incrementScript.Run(ctx, c.client, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, time.Time{}, errors.Wrap(err, "redis rate limit increment")
	}
	if len(res) != 2 {
		return 0, time.Time{}, errors.Errorf("redis rate limit increment: unexpected reply %v", res)
	}
	return res[0], now.Add(time.Duration(res[1]) * time.Millisecond), nil
}
