package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const connectTimeout = 5 * time.Second

// Client adds the key helpers and slot lock on top of go-redis.
type Client struct {
	*redis.Client
}

// NewClient parses a redis:// URL and fails fast when the server does not
// answer a PING.
func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	return &Client{Client: rdb}, nil
}

// UserChannel is the pub/sub channel carrying live events for one user.
func UserChannel(userID string) string {
	return fmt.Sprintf("events:user:%s", userID)
}

// SlotLockKey identifies a therapist's slot while a booking is being written.
func SlotLockKey(therapistID, date, startTime string) string {
	return fmt.Sprintf("lock:slot:%s:%s:%s", therapistID, date, startTime)
}

// releaseScript deletes the key only when it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// AcquireLock sets key to token if it is not already held.
func (c *Client) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return c.SetNX(ctx, key, token, ttl).Result()
}

func (c *Client) ReleaseLock(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, c.Client, []string{key}, token).Err()
}
