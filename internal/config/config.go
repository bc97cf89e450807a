package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/onco-rwe-platform/internal/domain"
)

// Manager loads and validates platform configuration using Viper
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from file, environment, and defaults
func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/onco-rwe-platform/")

	viper.SetEnvPrefix("ONCO_RWE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and env vars carry a bare setup.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.request_timeout", "25s")
	viper.SetDefault("server.rate_limit", 50)
	viper.SetDefault("server.rate_burst", 100)

	// Warehouse defaults
	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "onco_rwe")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.migrations_path", "migrations")

	// Cache defaults
	viper.SetDefault("cache.redis_url", "redis://localhost:6379")
	viper.SetDefault("cache.default_ttl", "1h")
	viper.SetDefault("cache.max_retries", 3)
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.pool_timeout", "4s")
	viper.SetDefault("cache.lru_size", 64)
	viper.SetDefault("cache.lru_ttl", "15m")

	// Generator defaults
	viper.SetDefault("generator.default_patients", 600)
	viper.SetDefault("generator.min_cycles", 3)
	viper.SetDefault("generator.max_cycles", 6)
	viper.SetDefault("generator.cycle_gap_days", 21)
	viper.SetDefault("generator.start_year", 2021)
	viper.SetDefault("generator.end_year", 2024)
	viper.SetDefault("generator.max_cohort_size", 10000)

	// Epidemiology dataset defaults
	viper.SetDefault("epi.start_year", 2014)
	viper.SetDefault("epi.end_year", 2021)

	// Market dataset defaults
	viper.SetDefault("market.start_month", "2014-01")
	viper.SetDefault("market.end_month", "2024-06")

	// Export defaults
	viper.SetDefault("export.directory", "exports")
	viper.SetDefault("export.s3_bucket", "")
	viper.SetDefault("export.s3_prefix", "onco-rwe")
	viper.SetDefault("export.s3_region", "us-east-1")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetDatabaseConfig returns warehouse configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetCacheConfig returns cache configuration
func (m *Manager) GetCacheConfig() *domain.CacheConfig {
	return &m.config.Cache
}

// GetGeneratorConfig returns cohort generation defaults
func (m *Manager) GetGeneratorConfig() *domain.GeneratorConfig {
	return &m.config.Generator
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Database.Enabled {
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	}

	if config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required")
	}

	if config.Generator.MinCycles < 1 {
		return fmt.Errorf("generator.min_cycles must be at least 1")
	}
	if config.Generator.MaxCycles < config.Generator.MinCycles {
		return fmt.Errorf("generator.max_cycles must not be below generator.min_cycles")
	}
	if config.Generator.CycleGapDays < 0 {
		return fmt.Errorf("generator.cycle_gap_days must not be negative")
	}
	if config.Generator.MaxCohortSize < 1 {
		return fmt.Errorf("generator.max_cohort_size must be at least 1")
	}

	if config.Epi.EndYear < config.Epi.StartYear {
		return fmt.Errorf("epi.end_year must not precede epi.start_year")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted warehouse connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(viper.GetString("environment")) == "production"
}
