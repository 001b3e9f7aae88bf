package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"

	"github.com/raaihank/chatpsy/internal/config"
	"github.com/raaihank/chatpsy/internal/logger"
)

// Cache stores analysis responses keyed by a hash of the anonymized text.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// Stats represents cache performance statistics
type Stats struct {
	Backend     string  `json:"backend"`
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
	TotalKeys   int64   `json:"total_keys"`
	MemoryUsage int64   `json:"memory_usage_bytes"`
}

// counters tracks hits and misses for any backend.
type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (c *counters) record(hit bool) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
}

func (c *counters) stats(backend string) *Stats {
	s := &Stats{Backend: backend, Hits: c.hits.Load(), Misses: c.misses.Load()}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total) * 100
	}
	return s
}

// New creates the backend selected by cfg.Backend.
func New(cfg config.CacheConfig, log *logger.Logger) (Cache, error) {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.WithComponent("cache")

	switch cfg.Backend {
	case "", "none":
		return Nop{}, nil
	case "memory":
		return NewMemoryCache(cfg.DefaultTTL), nil
	case "redis":
		return NewRedisCache(cfg, log)
	case "bbolt":
		return NewBoltCache(cfg.BoltPath, cfg.DefaultTTL, log)
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Backend)
	}
}

// AnalysisKey derives the cache key for an analysis of text restricted to
// [from, to]. text must already be anonymized.
func AnalysisKey(prefix, text, from, to string) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write([]byte(from))
	h.Write([]byte{0})
	h.Write([]byte(to))
	return fmt.Sprintf("%s:analysis:%s", prefix, hex.EncodeToString(h.Sum(nil)))
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte) error { return nil }
func (Nop) Stats(context.Context) (*Stats, error) { return &Stats{Backend: "none"}, nil }
func (Nop) Close() error { return nil }
