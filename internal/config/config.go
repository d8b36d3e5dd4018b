package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

type Config struct {
	// HTTP Server
	Port               string
	LogLevel           string
	RateLimitPerMinute int
	DefaultUserID      string
	// CalendarTimezone is the IANA zone the month grid marks today in
	CalendarTimezone string

	// Backend selection
	DataBackend  string
	SQLiteDBPath string
	// SeedDir holds seed.json for the memory backend
	SeedDir string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	// WorkerMetricsAddr serves /metrics from the worker when set
	WorkerMetricsAddr string

	// Cache
	RedisURL  string
	CacheTTL  time.Duration
	CacheSize int

	// Spoonacular
	SpoonacularAPIKey  string
	SpoonacularBaseURL string
	SpoonacularTimeout time.Duration

	// Grocery
	CatalogPath      string
	FetchConcurrency int

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		DefaultUserID:      getEnv("DEFAULT_USER_ID", "demo"),
		CalendarTimezone:   getEnv("CALENDAR_TIMEZONE", "UTC"),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/smartplates.db"),
		SeedDir:      getEnv("SEED_DIR", "./data"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "smartplates"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "meal_plan.changed"),

		WorkerMetricsAddr: getEnv("WORKER_METRICS_ADDR", ""),

		RedisURL:  getEnv("REDIS_URL", ""),
		CacheTTL:  getEnvDuration("CACHE_TTL", 10*time.Minute),
		CacheSize: getEnvInt("CACHE_SIZE", 500),

		SpoonacularAPIKey:  getEnv("SPOONACULAR_API_KEY", ""),
		SpoonacularBaseURL: getEnv("SPOONACULAR_BASE_URL", "https://api.spoonacular.com"),
		SpoonacularTimeout: getEnvDuration("SPOONACULAR_TIMEOUT", 10*time.Second),

		CatalogPath:      getEnv("CATALOG_PATH", ""),
		FetchConcurrency: getEnvInt("FETCH_CONCURRENCY", 4),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
	}
}

// SheetsEnabled reports whether the Google Sheets export is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != "" && (c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != "")
}

// Location returns the calendar time zone, UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.CalendarTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLevels))
	}

	validBackends := []string{"memory", "sqlite"}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RedisURL != "" {
		if parsedURL, err := url.Parse(c.RedisURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid Redis URL '%s': %v", c.RedisURL, err))
		} else if parsedURL.Scheme != "redis" && parsedURL.Scheme != "rediss" {
			errors = append(errors, fmt.Sprintf("invalid Redis URL scheme '%s': must be 'redis' or 'rediss'", parsedURL.Scheme))
		}
	}

	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}
	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}

	if c.SpoonacularAPIKey != "" {
		if _, err := url.ParseRequestURI(c.SpoonacularBaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid Spoonacular base URL '%s': %v", c.SpoonacularBaseURL, err))
		}
	}
	if c.SpoonacularTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid Spoonacular timeout %v: must be positive", c.SpoonacularTimeout))
	}

	if c.CatalogPath != "" {
		if _, err := os.Stat(c.CatalogPath); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("grocery catalog file does not exist: %s", c.CatalogPath))
		}
	}

	if c.FetchConcurrency < 1 || c.FetchConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid fetch concurrency %d: must be between 1 and 64", c.FetchConcurrency))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
	}
	if strings.TrimSpace(c.DefaultUserID) == "" {
		errors = append(errors, "default user id cannot be empty")
	}
	if _, err := time.LoadLocation(c.CalendarTimezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid calendar timezone '%s': %v", c.CalendarTimezone, err))
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets export")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
