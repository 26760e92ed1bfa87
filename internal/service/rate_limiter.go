package service

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const rateLimitKeyPrefix = "ratelimit:"

// Sliding window over a sorted set scored in milliseconds. Returns
// {allowed, remaining, resetAtMs}.
var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)
if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local resetAt = now + window
    if #oldest >= 2 then
        resetAt = tonumber(oldest[2]) + window
    end
    return {0, 0, resetAt}
end

redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window + 1000)

return {1, limit - count - 1, now + window}
`)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter is a Redis sliding-window limiter shared by every instance.
// It fails closed: when Redis cannot answer, the request is denied.
type RateLimiter struct {
	client *redis.Client
	now    func() time.Time
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// Check records one hit against key and reports whether it fits in limit
// hits per window.
func (rl *RateLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) Decision {
	now := rl.now()
	denied := Decision{Limit: limit, ResetAt: now.Add(window)}

	nowMs := now.UnixMilli()
	member := strconv.FormatInt(now.UnixNano(), 10)
	result, err := rateLimitScript.Run(
		ctx,
		rl.client,
		[]string{rateLimitKeyPrefix + key},
		nowMs,
		window.Milliseconds(),
		limit,
		member,
	).Int64Slice()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("rate limit check failed, denying request")
		return denied
	}
	if len(result) != 3 {
		log.Warn().Str("key", key).Int("len", len(result)).Msg("unexpected rate limit result, denying request")
		return denied
	}

	return Decision{
		Allowed:   result[0] == 1,
		Limit:     limit,
		Remaining: int(result[1]),
		ResetAt:   time.UnixMilli(result[2]),
	}
}

// CheckLimit is Check reduced to the allow flag and the reset time.
func (rl *RateLimiter) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Time) {
	d := rl.Check(ctx, key, limit, window)
	return d.Allowed, d.ResetAt
}
