package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/onco-rwe-platform/internal/domain"
)

// RedisCache is the shared cache tier. Every call runs through a circuit
// breaker so a flapping Redis cannot stall request handling.
type RedisCache struct {
	redis      *redis.Client
	breaker    *gobreaker.CircuitBreaker
	defaultTTL time.Duration
}

// NewRedisCache connects to Redis using the cache configuration.
func NewRedisCache(config domain.CacheConfig, logger *logrus.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing Redis URL: %w", err)
	}

	opts.PoolSize = config.PoolSize
	opts.PoolTimeout = config.PoolTimeout
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Cache circuit breaker state changed")
		},
	})

	return &RedisCache{
		redis:      client,
		breaker:    breaker,
		defaultTTL: config.DefaultTTL,
	}, nil
}

// GetJSON fetches a key and decodes it into dest. The second return value
// reports whether the key was present.
func (c *RedisCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		val, err := c.redis.Get(ctx, key).Result()
		if err == redis.Nil {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return val, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return false, fmt.Errorf("cache unavailable (circuit breaker open)")
		}
		return false, fmt.Errorf("getting cache key %s: %w", key, err)
	}
	if result == nil {
		return false, nil
	}

	if err := json.Unmarshal([]byte(result.(string)), dest); err != nil {
		// Corrupted entry, drop it rather than keep failing.
		c.redis.Del(ctx, key)
		return false, nil
	}
	return true, nil
}

// SetJSON encodes a value and stores it under the key. A zero ttl uses the
// configured default.
func (c *RedisCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding cache value for %s: %w", key, err)
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.redis.Set(ctx, key, data, ttl).Err()
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return fmt.Errorf("cache unavailable (circuit breaker open)")
		}
		return fmt.Errorf("setting cache key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key.
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.redis.Del(ctx, keys...).Err()
	})
	if err != nil && err != gobreaker.ErrOpenState {
		return fmt.Errorf("deleting cache keys: %w", err)
	}
	return nil
}

// BreakerState exposes the circuit breaker state for health reporting.
func (c *RedisCache) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// Ping checks the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.redis.Close()
}
