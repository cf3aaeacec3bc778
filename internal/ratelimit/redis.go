package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "mirror:ratelimit:"

// slidingWindow trims the key's sorted set to the window, then admits the
// request if the remaining count is under the limit. A denial carries the
// score of the oldest request still in the window.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)
	if count >= limit then
		local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
		return {0, 0, tonumber(oldest[2])}
	end

	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, window_ms)

	return {1, limit - count - 1, 0}
`)

// RedisLimiter shares counters between instances through Redis.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	seq    func() string
}

func NewRedisLimiter(client redis.UniversalClient, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		seq:    func() string { return fmt.Sprintf("%d", time.Now().UnixNano()) },
	}
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	now := time.Now()

	result, err := slidingWindow.Run(ctx, l.client, []string{l.prefix + key},
		now.UnixMilli(),
		now.Add(-window).UnixMilli(),
		limit,
		window.Milliseconds(),
		l.seq(),
	).Int64Slice()
	if err != nil {
		return 0, fmt.Errorf("redis rate limit: %w", err)
	}
	if len(result) != 3 {
		return 0, fmt.Errorf("redis rate limit: unexpected result %v", result)
	}

	if result[0] != 1 {
		oldest := time.UnixMilli(result[2])
		return 0, &LimitError{Limit: limit, RetryAfter: oldest.Add(window).Sub(now)}
	}
	return int(result[1]), nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis rate limit: reset: %w", err)
	}
	return nil
}
