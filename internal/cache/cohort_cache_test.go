package cache

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onco-rwe-platform/internal/simulate"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestCohortCache_LocalHit(t *testing.T) {
	c := NewCohortCache(4, time.Minute, nil, quietLogger())
	ctx := context.Background()

	cohort := simulate.New(1, quietLogger()).GenerateCohort(3)
	c.Put(ctx, &cohort)

	got, ok := c.Get(ctx, cohort.RunID)
	require.True(t, ok)
	assert.Equal(t, cohort.RunID, got.RunID)
	assert.Len(t, got.Patients, 3)
}

func TestCohortCache_MissWithoutRedis(t *testing.T) {
	c := NewCohortCache(4, time.Minute, nil, quietLogger())

	_, ok := c.Get(context.Background(), "never-stored")
	assert.False(t, ok)
}

func TestCohortCache_Invalidate(t *testing.T) {
	c := NewCohortCache(4, time.Minute, nil, quietLogger())
	ctx := context.Background()

	cohort := simulate.New(2, quietLogger()).GenerateCohort(2)
	c.Put(ctx, &cohort)
	c.Invalidate(ctx, cohort.RunID)

	_, ok := c.Get(ctx, cohort.RunID)
	assert.False(t, ok)
}

func TestCohortCache_EvictsOldestBeyondCapacity(t *testing.T) {
	c := NewCohortCache(2, time.Minute, nil, quietLogger())
	ctx := context.Background()

	gen := simulate.New(3, quietLogger())
	first := gen.GenerateCohort(1)
	second := gen.GenerateCohort(1)
	third := gen.GenerateCohort(1)

	c.Put(ctx, &first)
	c.Put(ctx, &second)
	c.Put(ctx, &third)

	_, ok := c.Get(ctx, first.RunID)
	assert.False(t, ok, "oldest entry should be evicted")

	_, ok = c.Get(ctx, third.RunID)
	assert.True(t, ok)
}

func TestCohortKey(t *testing.T) {
	assert.Equal(t, "cohort:abc", cohortKey("abc"))
}
