package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/punchamoorthee/invosafe/internal/logger"
)

type Config struct {
	DBSource    string
	Port        string
	Env         string
	AutoMigrate bool

	JWTSecret string
	JWTTTL    time.Duration
	NodeID    int64

	LogLevel  string
	LogFormat string
	LogOutput string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DirectoryBaseURL  string
	DirectoryCacheTTL time.Duration

	BulkConcurrency int
	BulkRowDelay    time.Duration

	OTLPEndpoint string
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first without overriding set variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		DBSource:         os.Getenv("DB_SOURCE"),
		Port:             getEnv("SERVER_PORT", "8080"),
		Env:              getEnv("ENVIRONMENT", "development"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "console"),
		LogOutput:        getEnv("LOG_OUTPUT", "stdout"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		DirectoryBaseURL: os.Getenv("DIRECTORY_BASE_URL"),
		OTLPEndpoint:     os.Getenv("OTLP_ENDPOINT"),
	}

	var err error
	if cfg.AutoMigrate, err = getBool("AUTO_MIGRATE", true); err != nil {
		return nil, err
	}
	if cfg.JWTTTL, err = getDuration("JWT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.DirectoryCacheTTL, err = getDuration("DIRECTORY_CACHE_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.BulkRowDelay, err = getDuration("BULK_ROW_DELAY", 0); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.BulkConcurrency, err = getInt("BULK_CONCURRENCY", 1); err != nil {
		return nil, err
	}
	nodeID, err := getInt("NODE_ID", 1)
	if err != nil {
		return nil, err
	}
	cfg.NodeID = int64(nodeID)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DBSource == "" {
		return fmt.Errorf("DB_SOURCE environment variable is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if c.Env == "production" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	if c.BulkConcurrency < 1 {
		return fmt.Errorf("BULK_CONCURRENCY must be at least 1")
	}
	if c.NodeID < 0 || c.NodeID > 1023 {
		return fmt.Errorf("NODE_ID must be between 0 and 1023")
	}
	return nil
}

// LoggerConfig converts the log settings for logger.Setup.
func (c *Config) LoggerConfig() logger.LogConfig {
	cfg := logger.DefaultConfig()
	cfg.Level = c.LogLevel
	cfg.Format = c.LogFormat
	cfg.Output = c.LogOutput
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
