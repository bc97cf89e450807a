package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/onco-rwe-platform/internal/api"
	"github.com/onco-rwe-platform/internal/cache"
	"github.com/onco-rwe-platform/internal/config"
	"github.com/onco-rwe-platform/internal/database"
	"github.com/onco-rwe-platform/internal/repository"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Warehouse is optional; the server runs cache-only without it.
	var db *database.DB
	var warehouse api.CohortStore
	if cfg.Database.Enabled {
		db, err = database.NewConnection(ctx, database.Config{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			Database:    cfg.Database.Database,
			Username:    cfg.Database.Username,
			Password:    cfg.Database.Password,
			MaxConns:    int32(cfg.Database.MaxOpenConns),
			MinConns:    int32(cfg.Database.MaxIdleConns),
			MaxConnLife: cfg.Database.ConnMaxLifetime,
			MaxConnIdle: 30 * time.Minute,
			SSLMode:     cfg.Database.SSLMode,
		}, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to warehouse")
		}
		defer db.Close()

		migrationURL := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			cfg.Database.Username, cfg.Database.Password,
			cfg.Database.Host, cfg.Database.Port,
			cfg.Database.Database, cfg.Database.SSLMode)
		runner, err := database.NewMigrationRunner(migrationURL, cfg.Database.MigrationsPath, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create migration runner")
		}
		if err := runner.Up(); err != nil {
			logger.WithError(err).Fatal("Failed to run migrations")
		}
		runner.Close()

		warehouse = repository.NewCohortRepository(db.Pool, logger)
	}

	// Redis is best-effort: startup continues LRU-only if it is unreachable.
	var redisCache *cache.RedisCache
	var redisHealth *cache.HealthChecker
	if rc, err := cache.NewRedisCache(cfg.Cache, logger); err != nil {
		logger.WithError(err).Warn("Redis unavailable, running with in-process cache only")
	} else {
		redisCache = rc
		defer redisCache.Close()

		redisHealth, err = cache.NewHealthChecker(cfg.Cache.RedisURL, 2*time.Second, logger)
		if err != nil {
			logger.WithError(err).Warn("Redis health checker disabled")
		} else {
			defer redisHealth.Close()
		}
	}

	cohorts := cache.NewCohortCache(cfg.Cache.LRUSize, cfg.Cache.LRUTTL, redisCache, logger)

	server, err := api.NewServer(api.Options{
		Config:    cfg,
		Logger:    logger,
		Cohorts:   cohorts,
		DB:        db,
		Warehouse: warehouse,
		Redis:     redisHealth,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to build server")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting oncology RWE data server")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

func newLogger(level, format string) *logrus.Logger {
	logger := logrus.New()

	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
