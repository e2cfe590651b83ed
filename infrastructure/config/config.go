// Package config loads the service configuration from the environment,
// with an optional YAML tuning file that can be hot-reloaded.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Source backends for the relation graph.
const (
	SourceSQLite = "sqlite"
	SourceHTTP   = "http"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// Graph source configuration
	SourceBackend string // "sqlite" or "http"
	SQLitePath    string
	AgentBaseURL  string
	AgentTimeout  time.Duration

	// Session configuration
	SessionTickInterval time.Duration
	DefaultSpread       float64

	// Tuning file (optional, hot-reloaded when set)
	TuningPath string

	// Logging
	LogLevel string

	// Feature flags
	EnableCORS    bool
	EnableMetrics bool

	// Metrics namespace
	MetricsNamespace string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		SourceBackend: getEnv("GRAPH_SOURCE", SourceSQLite),
		SQLitePath:    getEnv("SQLITE_PATH", "novel.db"),
		AgentBaseURL:  getEnv("AGENT_BASE_URL", "http://127.0.0.1:8100"),
		AgentTimeout:  time.Duration(getEnvInt("AGENT_TIMEOUT_MS", 15000)) * time.Millisecond,

		SessionTickInterval: time.Duration(getEnvInt("SESSION_TICK_MS", 33)) * time.Millisecond,
		DefaultSpread:       getEnvFloat("DEFAULT_SPREAD", 1.0),

		TuningPath: getEnv("TUNING_PATH", ""),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
		EnableMetrics: getEnvBool("ENABLE_METRICS", true),

		MetricsNamespace: getEnv("METRICS_NAMESPACE", "storygraph"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.SourceBackend {
	case SourceSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite source")
		}
	case SourceHTTP:
		if c.AgentBaseURL == "" {
			return fmt.Errorf("AGENT_BASE_URL is required for the http source")
		}
	default:
		return fmt.Errorf("GRAPH_SOURCE must be %q or %q, got %q", SourceSQLite, SourceHTTP, c.SourceBackend)
	}

	if c.SessionTickInterval <= 0 {
		return fmt.Errorf("SESSION_TICK_MS must be positive")
	}
	if c.DefaultSpread <= 0 {
		return fmt.Errorf("DEFAULT_SPREAD must be positive")
	}
	return nil
}

// IsDevelopment checks if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
