package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the IntegrityOS server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Model     ModelConfig
	Analytics AnalyticsConfig
}

type ServerConfig struct {
	Port              int
	Env               string
	RequestsPerMinute int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

type RedisConfig struct {
	URL string
}

// KafkaConfig configures the optional inspection event consumer.
// The consumer is disabled when Brokers is empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Enabled reports whether inspection events should be consumed.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type ModelConfig struct {
	// Store selects where model artifacts live: "postgres" or "file".
	Store   string
	Dir     string
	LockTTL time.Duration
}

type AnalyticsConfig struct {
	WindowDays   int
	TopRiskLimit int
	YearFrom     int
	YearTo       int
}

const (
	ModelStorePostgres = "postgres"
	ModelStoreFile     = "file"
)

// Load reads configuration from environment variables and returns a validated Config.
// Variables from a .env file in the working directory are loaded first when the file
// exists; variables already set in the environment take precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env file: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:              envInt("INTEGRITY_PORT", 8080),
			Env:               envString("INTEGRITY_ENV", "development"),
			RequestsPerMinute: envInt("INTEGRITY_REQUESTS_PER_MINUTE", 120),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsDir:   envString("DATABASE_MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Kafka: KafkaConfig{
			Brokers: envList("KAFKA_BROKERS"),
			Topic:   envString("KAFKA_TOPIC", "inspections"),
			GroupID: envString("KAFKA_GROUP_ID", "integrityos"),
		},
		Model: ModelConfig{
			Store:   envString("MODEL_STORE", ModelStorePostgres),
			Dir:     envString("MODEL_DIR", "./ml_models"),
			LockTTL: envDuration("MODEL_LOCK_TTL", 2*time.Minute),
		},
		Analytics: AnalyticsConfig{
			WindowDays:   envInt("ANALYTICS_WINDOW_DAYS", 180),
			TopRiskLimit: envInt("ANALYTICS_TOP_RISK_LIMIT", 5),
			YearFrom:     envInt("ANALYTICS_YEAR_FROM", 2018),
			YearTo:       envInt("ANALYTICS_YEAR_TO", 2023),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("INTEGRITY_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Model.Store {
	case ModelStorePostgres:
	case ModelStoreFile:
		if c.Model.Dir == "" {
			return fmt.Errorf("MODEL_DIR is required when MODEL_STORE is file")
		}
	default:
		return fmt.Errorf("MODEL_STORE must be one of postgres, file; got %q", c.Model.Store)
	}
	if c.Model.LockTTL <= 0 {
		return fmt.Errorf("MODEL_LOCK_TTL must be positive")
	}

	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	if c.Analytics.WindowDays <= 0 {
		return fmt.Errorf("ANALYTICS_WINDOW_DAYS must be positive, got %d", c.Analytics.WindowDays)
	}
	if c.Analytics.YearFrom > c.Analytics.YearTo {
		return fmt.Errorf("ANALYTICS_YEAR_FROM (%d) must not be after ANALYTICS_YEAR_TO (%d)",
			c.Analytics.YearFrom, c.Analytics.YearTo)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// envList splits a comma-separated variable, dropping empty entries.
func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
