package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"tradeJournal/internal/adapters/logger"
)

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Config holds all application configuration.
type Config struct {
	// Database
	DBPath string

	// Logging
	LogLevel  zerolog.Level
	LogPretty bool // console output instead of JSON

	// Cache
	CacheBackend        string // memory or redis
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	CacheTradeTTL       time.Duration
	CacheSummaryTTL     time.Duration
	CacheSymbolsTTL     time.Duration
	BreakerMaxFailures  int
	BreakerResetTimeout time.Duration

	// Risk metrics
	RiskFreeRate   float64 // annual, e.g. 0.065 for 6.5%
	PeriodsPerYear int
	VaRConfidence  float64

	// Listing
	DefaultPageSize int
	MaxPageSize     int
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/journal.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogPretty = getEnvAsBool("LOG_PRETTY", false)

	// Cache
	cfg.CacheBackend = strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendMemory))
	switch cfg.CacheBackend {
	case CacheBackendMemory:
	case CacheBackendRedis:
		cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
		if cfg.RedisAddr == "" {
			errs = append(errs, "REDIS_ADDR must be set when CACHE_BACKEND is redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("CACHE_BACKEND must be %q or %q, got %q", CacheBackendMemory, CacheBackendRedis, cfg.CacheBackend))
	}
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB, err = getEnvAsIntRequired("REDIS_DB", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid REDIS_DB: %v", err))
	} else if cfg.RedisDB < 0 {
		errs = append(errs, "REDIS_DB cannot be negative")
	}

	ttls := []struct {
		key  string
		def  int
		dest *time.Duration
	}{
		{"CACHE_TRADE_TTL_SECONDS", 300, &cfg.CacheTradeTTL},
		{"CACHE_SUMMARY_TTL_SECONDS", 60, &cfg.CacheSummaryTTL},
		{"CACHE_SYMBOLS_TTL_SECONDS", 300, &cfg.CacheSymbolsTTL},
	}
	for _, ttl := range ttls {
		seconds, err := getEnvAsIntRequired(ttl.key, ttl.def)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", ttl.key, err))
			continue
		}
		if seconds <= 0 {
			errs = append(errs, ttl.key+" must be positive")
			continue
		}
		*ttl.dest = time.Duration(seconds) * time.Second
	}

	cfg.BreakerMaxFailures = getEnvAsInt("CACHE_BREAKER_MAX_FAILURES", 5)
	if cfg.BreakerMaxFailures <= 0 {
		errs = append(errs, "CACHE_BREAKER_MAX_FAILURES must be positive")
	}
	resetSeconds := getEnvAsInt("CACHE_BREAKER_RESET_SECONDS", 10)
	if resetSeconds <= 0 {
		errs = append(errs, "CACHE_BREAKER_RESET_SECONDS must be positive")
	}
	cfg.BreakerResetTimeout = time.Duration(resetSeconds) * time.Second

	// Risk metrics
	cfg.RiskFreeRate, err = getEnvAsFloatRequired("RISK_FREE_RATE", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RISK_FREE_RATE: %v", err))
	} else if cfg.RiskFreeRate < 0 || cfg.RiskFreeRate >= 1 {
		errs = append(errs, "RISK_FREE_RATE must be between 0.0 (inclusive) and 1.0 (exclusive)")
	}

	cfg.PeriodsPerYear, err = getEnvAsIntRequired("PERIODS_PER_YEAR", 252)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid PERIODS_PER_YEAR: %v", err))
	} else if cfg.PeriodsPerYear <= 0 {
		errs = append(errs, "PERIODS_PER_YEAR must be positive")
	}

	cfg.VaRConfidence, err = getEnvAsFloatRequired("VAR_CONFIDENCE", 0.95)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid VAR_CONFIDENCE: %v", err))
	} else if cfg.VaRConfidence <= 0 || cfg.VaRConfidence >= 1 {
		errs = append(errs, "VAR_CONFIDENCE must be between 0.0 and 1.0 (exclusive)")
	}

	// Listing
	cfg.DefaultPageSize = getEnvAsInt("DEFAULT_PAGE_SIZE", 20)
	cfg.MaxPageSize = getEnvAsInt("MAX_PAGE_SIZE", 100)
	if cfg.DefaultPageSize <= 0 || cfg.MaxPageSize <= 0 {
		errs = append(errs, "DEFAULT_PAGE_SIZE and MAX_PAGE_SIZE must be positive")
	} else if cfg.DefaultPageSize > cfg.MaxPageSize {
		errs = append(errs, "DEFAULT_PAGE_SIZE cannot exceed MAX_PAGE_SIZE")
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
