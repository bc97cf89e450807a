package cache

import (
	"context"
	"fmt"
	"time"

	redisv8 "github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// HealthChecker probes the Redis deployment on its own connection, separate
// from the request-path client, so health reads never compete with cache
// traffic for pool slots.
type HealthChecker struct {
	client  *redisv8.Client
	timeout time.Duration
	log     *logrus.Logger
}

// NewHealthChecker builds a checker from the cache Redis URL.
func NewHealthChecker(redisURL string, timeout time.Duration, logger *logrus.Logger) (*HealthChecker, error) {
	opts, err := redisv8.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing Redis URL: %w", err)
	}
	opts.PoolSize = 1

	return &HealthChecker{
		client:  redisv8.NewClient(opts),
		timeout: timeout,
		log:     logger,
	}, nil
}

// Check pings Redis and returns the observed latency.
func (h *HealthChecker) Check(ctx context.Context) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	if err := h.client.Ping(ctx).Err(); err != nil {
		h.log.WithError(err).Warn("Redis health check failed")
		return 0, err
	}
	return time.Since(start), nil
}

// Close closes the checker's connection.
func (h *HealthChecker) Close() error {
	return h.client.Close()
}
