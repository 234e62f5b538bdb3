package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// LoginAttempts counts failed logins per email in Redis. The counter expires
// window after the first failure, so a locked email unlocks on its own.
type LoginAttempts struct {
	client      *redisv9.Client
	maxFailures int
	window      time.Duration
}

func NewLoginAttempts(client *redisv9.Client, maxFailures int, window time.Duration) *LoginAttempts {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &LoginAttempts{
		client:      client,
		maxFailures: maxFailures,
		window:      window,
	}
}

func (c *LoginAttempts) Locked(ctx context.Context, email string) (bool, error) {
	raw, err := c.client.Get(ctx, c.failuresKey(email)).Result()
	if err == redisv9.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get login failures failed: %w", err)
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		return false, fmt.Errorf("parse login failures %q failed: %w", raw, err)
	}
	return count >= c.maxFailures, nil
}

func (c *LoginAttempts) RecordFailure(ctx context.Context, email string) error {
	key := c.failuresKey(email)
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis record login failure failed: %w", err)
	}
	if count == 1 {
		if err := c.client.Expire(ctx, key, c.window).Err(); err != nil {
			return fmt.Errorf("redis expire login failures failed: %w", err)
		}
	}
	return nil
}

func (c *LoginAttempts) Reset(ctx context.Context, email string) error {
	if err := c.client.Del(ctx, c.failuresKey(email)).Err(); err != nil {
		return fmt.Errorf("redis reset login failures failed: %w", err)
	}
	return nil
}

func (c *LoginAttempts) failuresKey(email string) string {
	return fmt.Sprintf("auth:login:failures:%s", email)
}
