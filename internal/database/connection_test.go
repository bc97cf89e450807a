package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startWarehouse spins up a throwaway PostgreSQL container. Tests using it are
// skipped unless RWE_PG_INTEGRATION is set, so the suite passes without Docker.
func startWarehouse(t *testing.T, ctx context.Context) Config {
	t.Helper()
	if os.Getenv("RWE_PG_INTEGRATION") == "" {
		t.Skip("set RWE_PG_INTEGRATION to run warehouse container tests")
	}

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("rwe_test"),
		postgres.WithUsername("rwe"),
		postgres.WithPassword("rwe"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "starting PostgreSQL container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminating PostgreSQL container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return Config{
		Host:        host,
		Port:        port.Int(),
		Database:    "rwe_test",
		Username:    "rwe",
		Password:    "rwe",
		MaxConns:    10,
		MinConns:    2,
		MaxConnLife: time.Hour,
		MaxConnIdle: 30 * time.Minute,
		SSLMode:     "disable",
	}
}

func TestWarehouseConnection(t *testing.T) {
	ctx := context.Background()
	config := startWarehouse(t, ctx)

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	db, err := NewConnection(ctx, config, logger)
	require.NoError(t, err, "creating warehouse connection")
	defer db.Close()

	assert.NoError(t, db.Health(ctx))

	stats := db.Stats()
	assert.NotZero(t, stats.TotalConns(), "expected at least one pooled connection")
}

func TestNewConnection_BadHost(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	_, err := NewConnection(ctx, Config{
		Host:     "127.0.0.1",
		Port:     1, // nothing listens here
		Database: "nope",
		Username: "nope",
		Password: "nope",
		MaxConns: 1,
		MinConns: 0,
		SSLMode:  "disable",
	}, logger)
	assert.Error(t, err)
}
