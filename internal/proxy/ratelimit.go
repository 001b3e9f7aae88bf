package proxy

import (
	"context"
	"sync"
	"time"

	"github.com/raaihank/chatpsy/internal/config"
	"golang.org/x/time/rate"
)

const (
	limiterCleanupInterval = 10 * time.Minute
	limiterIdleTTL         = time.Hour
)

// rateLimiter keeps one token bucket per client IP.
type rateLimiter struct {
	enabled bool
	limit   rate.Limit
	burst   int

	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiter(cfg config.RateLimitConfig) *rateLimiter {
	l := &rateLimiter{
		enabled:  cfg.Enabled && cfg.RequestsPerMin > 0,
		burst:    max(cfg.Burst, 1),
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
	if l.enabled {
		l.limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMin))
	}
	return l
}

// Allow reports whether clientIP may make another request now.
func (l *rateLimiter) Allow(clientIP string) bool {
	if !l.enabled {
		return true
	}

	l.mu.Lock()
	now := l.now()
	v, ok := l.visitors[clientIP]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[clientIP] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// cleanup drops visitors idle for longer than ttl.
func (l *rateLimiter) cleanup(ttl time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-ttl)
	for ip, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, ip)
		}
	}
}

func (l *rateLimiter) run(ctx context.Context) {
	if !l.enabled {
		return
	}
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.cleanup(limiterIdleTTL)
		}
	}
}
