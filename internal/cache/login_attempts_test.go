package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoginAttempts_Defaults(t *testing.T) {
	c := NewLoginAttempts(nil, 0, 0)
	assert.Equal(t, 5, c.maxFailures)
	assert.Equal(t, 15*time.Minute, c.window)
}

func TestLoginAttempts_Key(t *testing.T) {
	c := NewLoginAttempts(nil, 3, time.Minute)
	assert.Equal(t, "auth:login:failures:jane@x.com", c.failuresKey("jane@x.com"))
}

func TestLoginAttempts_UnreachableRedisReturnsError(t *testing.T) {
	client := redisv9.NewClient(&redisv9.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	c := NewLoginAttempts(client, 3, time.Minute)
	ctx := context.Background()

	locked, err := c.Locked(ctx, "jane@x.com")
	assert.Error(t, err)
	assert.False(t, locked)
	assert.Error(t, c.RecordFailure(ctx, "jane@x.com"))
	assert.Error(t, c.Reset(ctx, "jane@x.com"))
}

func newMiniredisAttempts(t *testing.T, maxFailures int, window time.Duration) (*LoginAttempts, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLoginAttempts(client, maxFailures, window), mr
}

func TestLoginAttempts_Lifecycle(t *testing.T) {
	const email = "jane@x.com"
	tests := []struct {
		name       string
		failures   int
		reset      bool
		forward    time.Duration
		wantLocked bool
	}{
		{name: "below limit", failures: 2},
		{name: "at limit", failures: 3, wantLocked: true},
		{name: "past limit", failures: 5, wantLocked: true},
		{name: "reset clears counter", failures: 3, reset: true},
		{name: "window expiry unlocks", failures: 3, forward: 2 * time.Minute},
		{name: "still locked inside window", failures: 3, forward: 30 * time.Second, wantLocked: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mr := newMiniredisAttempts(t, 3, time.Minute)
			ctx := context.Background()

			for i := 0; i < tt.failures; i++ {
				locked, err := c.Locked(ctx, email)
				require.NoError(t, err)
				assert.Equal(t, i >= 3, locked, "after %d failures", i)
				require.NoError(t, c.RecordFailure(ctx, email))
			}
			if tt.reset {
				require.NoError(t, c.Reset(ctx, email))
			}
			if tt.forward > 0 {
				mr.FastForward(tt.forward)
			}

			locked, err := c.Locked(ctx, email)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLocked, locked)
		})
	}
}

func TestLoginAttempts_WindowStartsAtFirstFailure(t *testing.T) {
	c, mr := newMiniredisAttempts(t, 3, time.Minute)
	ctx := context.Background()
	key := c.failuresKey("jane@x.com")

	require.NoError(t, c.RecordFailure(ctx, "jane@x.com"))
	assert.Equal(t, time.Minute, mr.TTL(key))

	mr.FastForward(40 * time.Second)
	require.NoError(t, c.RecordFailure(ctx, "jane@x.com"))
	assert.Equal(t, 20*time.Second, mr.TTL(key), "later failures must not extend the window")

	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "2", got)
}

func TestLoginAttempts_PerEmail(t *testing.T) {
	c, _ := newMiniredisAttempts(t, 1, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.RecordFailure(ctx, "jane@x.com"))

	locked, err := c.Locked(ctx, "jane@x.com")
	require.NoError(t, err)
	assert.True(t, locked)

	locked, err = c.Locked(ctx, "john@x.com")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestLoginAttempts_CorruptCounter(t *testing.T) {
	c, mr := newMiniredisAttempts(t, 3, time.Minute)
	require.NoError(t, mr.Set(c.failuresKey("jane@x.com"), "lots"))

	_, err := c.Locked(context.Background(), "jane@x.com")
	assert.ErrorContains(t, err, "parse login failures")
}
