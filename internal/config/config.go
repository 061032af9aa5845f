package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	LogLevel        slog.Level
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	TopologySource         string
	TopologyReloadInterval time.Duration
	TopologyFetchRetries   int
	TopologyCacheDir       string

	SearchMaxIterations int
	SearchTimeout       time.Duration

	RouteCacheSize int
	RouteCacheTTL  time.Duration

	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitPerWindow int
	RateLimitWindow    time.Duration
	RateLimitWhitelist []string
}

func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:        getLogLevelEnv("LOG_LEVEL", slog.LevelInfo),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		ReadTimeout:     getDurationEnv("READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getDurationEnv("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),

		TopologySource:         getEnv("TOPOLOGY_SOURCE", ""),
		TopologyReloadInterval: getDurationEnv("TOPOLOGY_RELOAD_INTERVAL", 0),
		TopologyFetchRetries:   getIntEnv("TOPOLOGY_FETCH_RETRIES", 3),
		TopologyCacheDir:       getEnv("TOPOLOGY_CACHE_DIR", ""),

		SearchMaxIterations: getIntEnv("SEARCH_MAX_ITERATIONS", 200_000),
		SearchTimeout:       getDurationEnv("SEARCH_TIMEOUT", 2*time.Second),

		RouteCacheSize: getIntEnv("ROUTE_CACHE_SIZE", 10_000),
		RouteCacheTTL:  getDurationEnv("ROUTE_CACHE_TTL", 30*time.Minute),

		RedisEnabled:  getBoolEnv("REDIS_ENABLED", false),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		RateLimitPerWindow: getIntEnv("RATE_LIMIT_PER_WINDOW", 120),
		RateLimitWindow:    getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitWhitelist: getCSVEnv("RATE_LIMIT_WHITELIST"),
	}
	return cfg, nil
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	if c.TopologySource == "" {
		return fmt.Errorf("TOPOLOGY_SOURCE environment variable is required")
	}
	if c.SearchMaxIterations <= 0 {
		return fmt.Errorf("SEARCH_MAX_ITERATIONS must be positive, got %d", c.SearchMaxIterations)
	}
	if c.RouteCacheSize <= 0 {
		return fmt.Errorf("ROUTE_CACHE_SIZE must be positive, got %d", c.RouteCacheSize)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getLogLevelEnv(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}

	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return defaultVal
	}
}

func getCSVEnv(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			result = append(result, t)
		}
	}
	return result
}
