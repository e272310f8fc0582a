package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"tally/internal/core"
)

var validBackends = []string{"memory", "sqlite"}

var validLogLevels = []string{"debug", "info", "warn", "warning", "error"}

type Config struct {
	// HTTP Server
	Port string

	// Ledger
	DataBackend  string
	SQLiteDBPath string
	SeedDir      string

	// Statistics
	Timezone      string
	DefaultPeriod string

	// Logging
	LogLevel string

	// AMQP, disabled when AMQPURL is empty
	AMQPURL           string
	AMQPExchange      string
	AMQPSnapshotQueue string
	AMQPLedgerQueue   string

	// Snapshot cache
	CacheTTL           time.Duration
	CacheSize          int
	CacheSweepInterval time.Duration

	// Google Sheets export, disabled when GoogleSpreadsheetID is empty
	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/tally.db"),
		SeedDir:      getEnv("SEED_DIR", ""),

		Timezone:      getEnv("TIMEZONE", "Local"),
		DefaultPeriod: getEnv("DEFAULT_PERIOD", string(core.Month)),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		AMQPURL:           getEnv("AMQP_URL", ""),
		AMQPExchange:      getEnv("AMQP_EXCHANGE", "tally"),
		AMQPSnapshotQueue: getEnv("AMQP_SNAPSHOT_QUEUE", "tally.snapshots"),
		AMQPLedgerQueue:   getEnv("AMQP_LEDGER_QUEUE", "tally.ledger"),

		CacheTTL:           getEnvDuration("CACHE_TTL", 5*time.Minute),
		CacheSize:          getEnvInt("CACHE_SIZE", 64),
		CacheSweepInterval: getEnvDuration("CACHE_SWEEP_INTERVAL", time.Minute),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:       getEnv("GOOGLE_SHEET_NAME", "Stats"),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		GoogleCredentialsJSON: getEnv("GOOGLE_CREDENTIALS_JSON", ""),
	}
}

// AMQPEnabled reports whether snapshot publishing and ledger change
// consumption should run.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// ExportEnabled reports whether snapshots are exported to Google Sheets.
func (c *Config) ExportEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Location resolves Timezone. "Local" and "" mean the process location.
func (c *Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Period returns the configured default period kind.
func (c *Config) Period() core.PeriodKind {
	return core.ParsePeriodKind(c.DefaultPeriod)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}
	if c.DataBackend == "sqlite" && c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
	}
	if c.SeedDir != "" {
		if info, err := os.Stat(c.SeedDir); err != nil || !info.IsDir() {
			errors = append(errors, fmt.Sprintf("seed directory does not exist: %s", c.SeedDir))
		}
	}

	// Validate statistics settings
	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s'", c.Timezone))
	}
	if !c.Period().IsValid() {
		errors = append(errors, fmt.Sprintf("invalid default period '%s': must be one of %v", c.DefaultPeriod, core.PeriodKinds))
	}
	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}

	// Validate AMQP settings if enabled
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPSnapshotQueue == "" || c.AMQPLedgerQueue == "" {
			errors = append(errors, "AMQP snapshot and ledger queue names cannot be empty when AMQP URL is provided")
		}
		if c.AMQPSnapshotQueue != "" && c.AMQPSnapshotQueue == c.AMQPLedgerQueue {
			errors = append(errors, "AMQP snapshot and ledger queues must differ")
		}
	}

	// Validate cache settings
	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must not be negative", c.CacheTTL))
	}
	if c.CacheSweepInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache sweep interval %v: must be at least 1 second", c.CacheSweepInterval))
	}

	// Validate Google Sheets export if enabled
	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when exporting")
		}
		if c.GoogleCredentialsFile == "" && c.GoogleCredentialsJSON == "" {
			errors = append(errors, "either GOOGLE_CREDENTIALS_FILE or GOOGLE_CREDENTIALS_JSON must be provided for export")
		}
		if c.GoogleCredentialsFile != "" {
			if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google credentials file does not exist: %s", c.GoogleCredentialsFile))
			}
		}
	}

	// Return combined errors
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
