package proxy

import (
	"testing"
	"time"

	"github.com/raaihank/chatpsy/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	now := time.Date(2024, 3, 12, 12, 0, 0, 0, time.UTC)
	l := newRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerMin: 6, Burst: 2})
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "buckets are per client")

	// one token every 10 seconds
	now = now.Add(10 * time.Second)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	now = now.Add(2 * time.Hour)
	l.cleanup(time.Hour)
	assert.Empty(t, l.visitors)
}

func TestRateLimiterDisabled(t *testing.T) {
	l := newRateLimiter(config.RateLimitConfig{Enabled: false, RequestsPerMin: 1})
	for range 10 {
		assert.True(t, l.Allow("a"))
	}
}
