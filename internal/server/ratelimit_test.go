package server

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(cfg RateLimitConfig) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(cfg)
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiter_MinuteLimit(t *testing.T) {
	rl, clock := newTestLimiter(RateLimitConfig{Enabled: true, RequestsPerMinute: 2, Burst: 2})

	require.NoError(t, rl.CheckRateLimit("client", 0))
	require.NoError(t, rl.CheckRateLimit("client", 0))

	err := rl.CheckRateLimit("client", 0)
	var rlErr *RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, "minute", rlErr.Type)
	assert.Equal(t, 2, rlErr.Limit)
	assert.Greater(t, rlErr.RetryAfter, time.Duration(0))

	// Rejected requests are not counted.
	assert.Equal(t, 2, rl.GetUsage("client").RequestsToday)

	// Other clients have their own bucket.
	assert.NoError(t, rl.CheckRateLimit("other", 0))

	clock.advance(30 * time.Second)
	assert.NoError(t, rl.CheckRateLimit("client", 0))
}

func TestRateLimiter_BurstDefaultsToRate(t *testing.T) {
	rl, _ := newTestLimiter(RateLimitConfig{Enabled: true, RequestsPerMinute: 3})
	for range 3 {
		require.NoError(t, rl.CheckRateLimit("client", 0))
	}
	assert.Error(t, rl.CheckRateLimit("client", 0))
}

func TestRateLimiter_DailyQuotas(t *testing.T) {
	tests := []struct {
		name     string
		cfg      RateLimitConfig
		size     int64
		allowed  int
		wantType string
	}{
		{"requests", RateLimitConfig{MaxRequestsPerDay: 3}, 10, 3, "requests"},
		{"data", RateLimitConfig{MaxDataPerDay: 250}, 100, 2, "data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl, clock := newTestLimiter(tt.cfg)
			for i := range tt.allowed {
				require.NoError(t, rl.CheckRateLimit("client", tt.size), "request %d", i)
			}

			err := rl.CheckRateLimit("client", tt.size)
			var quotaErr *QuotaExceededError
			require.True(t, errors.As(err, &quotaErr))
			assert.Equal(t, tt.wantType, quotaErr.Type)
			assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), quotaErr.Resets)

			// Counters reset on the next calendar day.
			clock.advance(14 * time.Hour)
			assert.NoError(t, rl.CheckRateLimit("client", tt.size))
			usage := rl.GetUsage("client")
			assert.Equal(t, 1, usage.RequestsToday)
			assert.Equal(t, tt.size, usage.DataToday)
		})
	}
}

func TestRateLimiter_Prune(t *testing.T) {
	rl, clock := newTestLimiter(RateLimitConfig{RequestsPerMinute: 10})

	require.NoError(t, rl.CheckRateLimit("old", 0))
	clock.advance(time.Hour)
	require.NoError(t, rl.CheckRateLimit("new", 0))

	assert.Equal(t, 1, rl.Prune(30*time.Minute))
	assert.Equal(t, Usage{}, rl.GetUsage("old"))
	assert.Equal(t, 1, rl.GetUsage("new").RequestsToday)
}

func TestSameDay(t *testing.T) {
	base := time.Date(2026, 1, 31, 23, 59, 0, 0, time.UTC)
	assert.True(t, sameDay(base, base.Add(30*time.Second)))
	assert.False(t, sameDay(base, base.Add(2*time.Minute)))
}
