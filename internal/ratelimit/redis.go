package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// hitScript applies Step atomically to a hash at KEYS[1].
// ARGV: now (ms), window (ms), limit, block (ms), ttl (ms).
// Fields: window_start (ms), count, blocked_until (ms, 0 when not blocked).
// Returns {allowed, blocked_until}.
var hitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local block = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local state = redis.call("HMGET", key, "window_start", "count", "blocked_until")
local windowStart = tonumber(state[1])
local count = tonumber(state[2])
local blockedUntil = tonumber(state[3]) or 0

if not windowStart or not count then
    redis.call("HSET", key, "window_start", now, "count", 1, "blocked_until", 0)
    redis.call("PEXPIRE", key, ttl)
    return {1, 0}
end

if blockedUntil > now then
    return {0, blockedUntil}
end

if windowStart < now - window then
    redis.call("HSET", key, "window_start", now, "count", 1, "blocked_until", 0)
    redis.call("PEXPIRE", key, ttl)
    return {1, 0}
end

count = count + 1
if count > limit then
    blockedUntil = now + block
    redis.call("HSET", key, "count", count, "blocked_until", blockedUntil)
    redis.call("PEXPIRE", key, ttl)
    return {0, blockedUntil}
end

redis.call("HSET", key, "count", count)
redis.call("PEXPIRE", key, ttl)
return {1, 0}
`)

// RedisStore keeps counters in Redis hashes under a prefix. Keys expire once both the
// window and any block have lapsed.
type RedisStore struct {
	client redis.Scripter
	prefix string
}

// NewRedisStore returns a Store using client.
func NewRedisStore(client redis.Scripter) *RedisStore {
	return &RedisStore{client: client, prefix: "ratelimit:"}
}

// NewRedisClient parses a redis:// URL and returns a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Hit implements Store.
func (s *RedisStore) Hit(ctx context.Context, key string, rule Rule, now time.Time) (Result, error) {
	ttl := rule.Window + rule.Block
	res, err := hitScript.Run(ctx, s.client, []string{s.prefix + key},
		now.UnixMilli(), rule.Window.Milliseconds(), rule.Limit, rule.Block.Milliseconds(), ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: redis: %w", err)
	}
	if len(res) != 2 {
		return Result{}, fmt.Errorf("ratelimit: redis: unexpected script reply %v", res)
	}
	if res[0] == 1 {
		return Result{Allowed: true}, nil
	}
	until := time.UnixMilli(res[1]).UTC()
	return Result{Allowed: false, BlockedUntil: &until}, nil
}
