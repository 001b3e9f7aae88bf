package cache

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/raaihank/chatpsy/internal/logger"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var boltBucket = []byte("analyses")

// BoltCache persists responses in an embedded bbolt file. Each value is
// prefixed with its expiry as big-endian unix nanoseconds (0 = never).
type BoltCache struct {
	db     *bolt.DB
	ttl    time.Duration
	logger *logger.Logger
	counters
}

// NewBoltCache opens (or creates) the database at path.
func NewBoltCache(path string, ttl time.Duration, log *logger.Logger) (*BoltCache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt cache %q: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bbolt bucket: %w", err)
	}

	log.Info("Persistent cache opened", zap.String("path", path), zap.Duration("default_ttl", ttl))

	return &BoltCache{db: db, ttl: ttl, logger: log}, nil
}

func (c *BoltCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	var (
		value   []byte
		expired bool
	)
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(boltBucket).Get([]byte(key))
		if len(v) < 8 {
			return nil
		}
		if exp := int64(binary.BigEndian.Uint64(v[:8])); exp != 0 && time.Now().UnixNano() > exp {
			expired = true
			return nil
		}
		// v is only valid inside the transaction.
		value = append([]byte(nil), v[8:]...)
		return nil
	})
	if err != nil {
		c.record(false)
		return nil, false, fmt.Errorf("bbolt get: %w", err)
	}

	if expired {
		if err := c.delete(key); err != nil {
			c.logger.Warn("Failed to drop expired entry", zap.Error(err))
		}
	}

	c.record(value != nil)
	return value, value != nil, nil
}

func (c *BoltCache) Set(_ context.Context, key string, value []byte) error {
	buf := make([]byte, 8+len(value))
	if c.ttl > 0 {
		binary.BigEndian.PutUint64(buf[:8], uint64(time.Now().Add(c.ttl).UnixNano()))
	}
	copy(buf[8:], value)

	if err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), buf)
	}); err != nil {
		return fmt.Errorf("bbolt set: %w", err)
	}
	return nil
}

func (c *BoltCache) delete(key string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(key))
	})
}

func (c *BoltCache) Stats(_ context.Context) (*Stats, error) {
	s := c.stats("bbolt")
	err := c.db.View(func(tx *bolt.Tx) error {
		s.TotalKeys = int64(tx.Bucket(boltBucket).Stats().KeyN)
		s.MemoryUsage = tx.Size()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bbolt stats: %w", err)
	}
	return s, nil
}

func (c *BoltCache) Close() error {
	return c.db.Close()
}
