// Package rediscache implements ports.Cache on top of Redis.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"tradeJournal/internal/ports"
)

// Ensure Cache implements the ports.Cache interface.
var _ ports.Cache = (*Cache)(nil)

const scanBatch = 200

// Config configures the Redis cache.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
	// KeyPrefix namespaces every key, so several journals can share one Redis.
	KeyPrefix string

	BreakerMaxFailures  int
	BreakerResetTimeout time.Duration
	// OnBreakerChange is notified on circuit breaker transitions.
	OnBreakerChange func(from, to State)

	Logger ports.Logger
}

// Cache is a Redis-backed cache guarded by a circuit breaker. Every backend
// error, including a rejection by the open breaker, is returned wrapped in
// ports.ErrCacheUnavailable.
type Cache struct {
	client  *goredis.Client
	prefix  string
	breaker *Breaker
	logger  ports.Logger
}

// New connects to Redis and pings the server.
func New(ctx context.Context, cfg Config) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: redis ping %s: %v", ports.ErrCacheUnavailable, cfg.Addr, err)
	}
	return NewWithClient(client, cfg), nil
}

// NewWithClient wraps an existing client without pinging it.
func NewWithClient(client *goredis.Client, cfg Config) *Cache {
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}
	reset := cfg.BreakerResetTimeout
	if reset <= 0 {
		reset = 10 * time.Second
	}
	c := &Cache{
		client:  client,
		prefix:  cfg.KeyPrefix,
		breaker: NewBreaker(maxFailures, reset),
		logger:  cfg.Logger,
	}
	c.breaker.OnStateChange = func(from, to State) {
		if c.logger != nil {
			c.logger.Warn(context.Background(), "Redis cache circuit breaker changed state", map[string]interface{}{
				"from": from.String(),
				"to":   to.String(),
			})
		}
		if cfg.OnBreakerChange != nil {
			cfg.OnBreakerChange(from, to)
		}
	}
	return c
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// BreakerState reports the current circuit breaker state.
func (c *Cache) BreakerState() State {
	return c.breaker.CurrentState()
}

// Get implements ports.Cache.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	found := false
	err := c.do(func() error {
		b, err := c.client.Get(ctx, c.prefix+key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		value, found = b, true
		return nil
	})
	if err != nil {
		return nil, false, c.wrap("get", err)
	}
	return value, found, nil
}

// Set implements ports.Cache.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	err := c.do(func() error {
		return c.client.Set(ctx, c.prefix+key, value, ttl).Err()
	})
	return c.wrap("set", err)
}

// Delete implements ports.Cache.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	err := c.do(func() error {
		return c.client.Del(ctx, full...).Err()
	})
	return c.wrap("delete", err)
}

// FlushPrefix implements ports.Cache using SCAN so the server is never blocked by KEYS.
// Matching keys are collected over the whole scan before any is deleted, since
// deleting mid-scan can shift the cursor past keys that still match.
func (c *Cache) FlushPrefix(ctx context.Context, prefix string) error {
	pattern := escapeGlob(c.prefix+prefix) + "*"
	err := c.do(func() error {
		var keys []string
		iter := c.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return err
		}
		for start := 0; start < len(keys); start += scanBatch {
			end := start + scanBatch
			if end > len(keys) {
				end = len(keys)
			}
			if err := c.client.Del(ctx, keys[start:end]...).Err(); err != nil {
				return err
			}
		}
		return nil
	})
	return c.wrap("flush", err)
}

func (c *Cache) do(fn func() error) error {
	return c.breaker.Execute(fn, countsAsFailure)
}

// countsAsFailure excludes caller cancellations from tripping the breaker.
func countsAsFailure(err error) bool {
	return !errors.Is(err, context.Canceled)
}

func (c *Cache) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: redis %s: %v", ports.ErrCacheUnavailable, op, err)
}

// escapeGlob escapes the characters SCAN MATCH treats as glob syntax.
func escapeGlob(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
