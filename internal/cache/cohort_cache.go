// Package cache keeps generated cohorts and rendered tables hot. A small
// in-process LRU fronts Redis, so repeated dashboard reads for the same run
// never touch the stores, and a Redis outage degrades to LRU-only service.
package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/onco-rwe-platform/internal/domain"
)

// CohortCache is the two-tier cohort cache.
type CohortCache struct {
	local *lru.LRU[string, *domain.Cohort]
	redis *RedisCache // nil when Redis is not configured
	log   *logrus.Logger
}

// NewCohortCache builds the cache. redisCache may be nil for LRU-only mode.
func NewCohortCache(size int, ttl time.Duration, redisCache *RedisCache, logger *logrus.Logger) *CohortCache {
	return &CohortCache{
		local: lru.NewLRU[string, *domain.Cohort](size, nil, ttl),
		redis: redisCache,
		log:   logger,
	}
}

// Get looks up a cohort by run ID, local tier first.
func (c *CohortCache) Get(ctx context.Context, runID string) (*domain.Cohort, bool) {
	if cohort, ok := c.local.Get(runID); ok {
		return cohort, true
	}

	if c.redis == nil {
		return nil, false
	}

	var cohort domain.Cohort
	found, err := c.redis.GetJSON(ctx, cohortKey(runID), &cohort)
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"run_id": runID,
			"error":  err,
		}).Warn("Redis cohort lookup failed, serving without cache")
		return nil, false
	}
	if !found {
		return nil, false
	}

	c.local.Add(runID, &cohort)
	return &cohort, true
}

// Put stores a cohort in both tiers. Redis failures are logged, not returned:
// a cache write must never fail a generation request.
func (c *CohortCache) Put(ctx context.Context, cohort *domain.Cohort) {
	c.local.Add(cohort.RunID, cohort)

	if c.redis == nil {
		return
	}
	if err := c.redis.SetJSON(ctx, cohortKey(cohort.RunID), cohort, 0); err != nil {
		c.log.WithFields(logrus.Fields{
			"run_id": cohort.RunID,
			"error":  err,
		}).Warn("Failed to cache cohort in Redis")
	}
}

// Invalidate drops a cohort from both tiers.
func (c *CohortCache) Invalidate(ctx context.Context, runID string) {
	c.local.Remove(runID)

	if c.redis == nil {
		return
	}
	if err := c.redis.Delete(ctx, cohortKey(runID)); err != nil {
		c.log.WithFields(logrus.Fields{
			"run_id": runID,
			"error":  err,
		}).Warn("Failed to invalidate cohort in Redis")
	}
}

func cohortKey(runID string) string {
	return "cohort:" + runID
}
