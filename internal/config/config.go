package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Focalpoint server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Analyzer AnalyzerConfig
	Worker   WorkerConfig
	Auth     AuthConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// AnalyzerConfig points at the external analysis service.
// CallbackBaseURL is the address the analysis service uses to reach this
// server's progress-relay endpoint.
type AnalyzerConfig struct {
	BaseURL         string
	CallbackBaseURL string
	Timeout         time.Duration
}

// WorkerConfig tunes the dispatch loop and the recovery scanner.
type WorkerConfig struct {
	PollInterval       time.Duration
	ScanInterval       time.Duration
	StalenessThreshold time.Duration
}

// AuthConfig carries bcrypt hashes of the client API key and the relay token.
// Plaintext secrets never live in the environment of a deployed server.
type AuthConfig struct {
	APIKeyHash     string
	RelayTokenHash string
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("FOCALPOINT_PORT", 8080),
			Env:  envString("FOCALPOINT_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Analyzer: AnalyzerConfig{
			BaseURL:         os.Getenv("ANALYZER_BASE_URL"),
			CallbackBaseURL: envString("ANALYZER_CALLBACK_BASE_URL", "http://localhost:8080"),
			Timeout:         envDurationSecs("ANALYZER_TIMEOUT_SECS", 120*time.Second),
		},
		Worker: WorkerConfig{
			PollInterval:       envDuration("WORKER_POLL_INTERVAL", 2*time.Second),
			ScanInterval:       envDuration("RECOVERY_SCAN_INTERVAL", time.Minute),
			StalenessThreshold: envDuration("RECOVERY_STALENESS_THRESHOLD", 5*time.Minute),
		},
		Auth: AuthConfig{
			APIKeyHash:     os.Getenv("FOCALPOINT_API_KEY_HASH"),
			RelayTokenHash: os.Getenv("FOCALPOINT_RELAY_TOKEN_HASH"),
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

	if c.Analyzer.BaseURL == "" {
		return fmt.Errorf("ANALYZER_BASE_URL is required")
	}
	if !strings.HasPrefix(c.Analyzer.BaseURL, "http://") && !strings.HasPrefix(c.Analyzer.BaseURL, "https://") {
		return fmt.Errorf("ANALYZER_BASE_URL must start with http:// or https://, got %q", c.Analyzer.BaseURL)
	}

	if c.Analyzer.Timeout <= 0 {
		return fmt.Errorf("ANALYZER_TIMEOUT_SECS must be positive")
	}
	if c.Worker.StalenessThreshold <= 0 {
		return fmt.Errorf("RECOVERY_STALENESS_THRESHOLD must be positive")
	}

	if c.Auth.APIKeyHash == "" {
		return fmt.Errorf("FOCALPOINT_API_KEY_HASH is required")
	}
	if c.Auth.RelayTokenHash == "" {
		return fmt.Errorf("FOCALPOINT_RELAY_TOKEN_HASH is required")
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

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
