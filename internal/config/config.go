package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Database
	DatabaseURL   string
	MigrationsDir string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Tracking
	HeartbeatInterval   time.Duration
	ScrollFlushEvery    int
	CompletionThreshold int
	SessionIdleTimeout  time.Duration
	SweepInterval       time.Duration
	FlushWorkers        int

	// Analytics
	AnalyticsTimezone      string
	AnalyticsCacheTTL      time.Duration
	AnalyticsCacheMaxMB    int
	AnalyticsCacheCounters int

	// Rate limiting (tracking routes, per client)
	RateLimitRPS   float64
	RateLimitBurst int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:     getEnvOrDefault("PORT", "8080"),
		Env:      getEnvOrDefault("ENV", "development"),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),

		DatabaseURL:   mustGetEnv("DATABASE_URL"),
		MigrationsDir: getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		RedisURL:      mustGetEnv("REDIS_URL"),
		JWTSecret:     mustGetEnv("JWT_SECRET"),

		HeartbeatInterval:   getEnvAsDurationOrDefault("HEARTBEAT_INTERVAL", 5*time.Second),
		ScrollFlushEvery:    getEnvAsIntOrDefault("SCROLL_FLUSH_EVERY", 10),
		CompletionThreshold: getEnvAsIntOrDefault("COMPLETION_THRESHOLD", 80),
		SessionIdleTimeout:  getEnvAsDurationOrDefault("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		SweepInterval:       getEnvAsDurationOrDefault("SWEEP_INTERVAL", time.Minute),
		FlushWorkers:        getEnvAsIntOrDefault("FLUSH_WORKERS", 3),

		AnalyticsTimezone:      getEnvOrDefault("ANALYTICS_TIMEZONE", "UTC"),
		AnalyticsCacheTTL:      time.Duration(getEnvAsIntOrDefault("ANALYTICS_CACHE_TTL_SECONDS", 60)) * time.Second,
		AnalyticsCacheMaxMB:    getEnvAsIntOrDefault("ANALYTICS_CACHE_MAX_MB", 16),
		AnalyticsCacheCounters: getEnvAsIntOrDefault("ANALYTICS_CACHE_COUNTERS", 10000),

		RateLimitRPS:   getEnvAsFloatOrDefault("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvAsIntOrDefault("RATE_LIMIT_BURST", 40),

		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

// Location resolves AnalyticsTimezone, falling back to UTC for unknown names.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.AnalyticsTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

// getEnvAsDurationOrDefault accepts Go duration strings ("5s", "30m").
func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
