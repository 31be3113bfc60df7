// Package config has the configuration file for the app
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment is the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
)

// Storage drivers
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Config holds all application configuration
type Config struct {
	Port              string
	Address           string
	Env               Environment
	LogLevel          string
	LogDir            string
	LogRetentionWeeks int   // Number of weeks to keep log files
	MaxLogFileSize    int64 // Maximum log file size in bytes
	MaxRequestBody    int64 // Maximum request body size in bytes
	MaxHeaderSize     int64 // Maximum header size in bytes

	StorageDriver string
	DatabasePath  string

	LookupBaseURL      string
	InteractionBaseURL string
	ExternalTimeout    time.Duration // Bound of every single external call
	ComputeTimeout     time.Duration // Bound of a whole shared cache computation
	ResolveConcurrency int
	OutboundRate       float64 // External calls per second
	OutboundBurst      int64

	RefreshWeekday    time.Weekday
	RefreshAt         string // HH:MM, local time
	RefreshStaleAfter time.Duration
}

// Load reads an optional .env file, then loads and validates configuration from environment variables
func Load() (*Config, error) {
	// A missing .env file is fine, the environment may be set by the process manager
	_ = godotenv.Load()

	weekday, err := parseWeekday(getEnvWithDefault("REFRESH_WEEKDAY", "sunday"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid REFRESH_WEEKDAY: %w", err)
	}

	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:               Environment(strings.ToLower(getEnvWithDefault("ENV", "dev"))),
		LogLevel:          strings.ToLower(getEnvWithDefault("LOG_LEVEL", "info")),
		LogDir:            getEnvWithDefault("LOG_DIR", "logs"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),         // 4 weeks default
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB default
		MaxRequestBody:    getInt64EnvWithDefault("MAX_REQUEST_BODY", 1048576),    // 1MB default
		MaxHeaderSize:     getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),     // 1MB default

		StorageDriver: strings.ToLower(getEnvWithDefault("STORAGE_DRIVER", StorageSQLite)),
		DatabasePath:  getEnvWithDefault("DATABASE_PATH", "data/interactions.db"),

		LookupBaseURL:      getEnvWithDefault("LOOKUP_BASE_URL", "https://www.medscape.com/api/quickreflookup/LookupService.ashx"),
		InteractionBaseURL: getEnvWithDefault("INTERACTION_BASE_URL", "https://reference.medscape.com/druginteraction.do"),
		ExternalTimeout:    getDurationEnvWithDefault("EXTERNAL_TIMEOUT", 10*time.Second),
		ComputeTimeout:     getDurationEnvWithDefault("COMPUTE_TIMEOUT", 45*time.Second),
		ResolveConcurrency: getIntEnvWithDefault("RESOLVE_CONCURRENCY", 8),
		OutboundRate:       getFloatEnvWithDefault("OUTBOUND_RATE", 5),
		OutboundBurst:      getInt64EnvWithDefault("OUTBOUND_BURST", 20),

		RefreshWeekday:    weekday,
		RefreshAt:         getEnvWithDefault("REFRESH_AT", "03:00"),
		RefreshStaleAfter: getDurationEnvWithDefault("REFRESH_STALE_AFTER", 8*24*time.Hour),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	if err := validateEnv(cfg.Env); err != nil {
		return fmt.Errorf("invalid ENV: %w", err)
	}

	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxRequestBody, "MAX_REQUEST_BODY"); err != nil {
		return fmt.Errorf("invalid MAX_REQUEST_BODY: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: %w", err)
	}

	if cfg.LogRetentionWeeks <= 0 || cfg.LogRetentionWeeks > 52 {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: must be between 1 and 52, got: %d", cfg.LogRetentionWeeks)
	}

	if cfg.MaxLogFileSize < 1024*1024 || cfg.MaxLogFileSize > 1024*1024*1024 {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: must be between 1MB and 1GB, got: %d bytes", cfg.MaxLogFileSize)
	}

	if cfg.StorageDriver != StorageSQLite && cfg.StorageDriver != StorageMemory {
		return fmt.Errorf("invalid STORAGE_DRIVER: must be %q or %q, got: %s", StorageSQLite, StorageMemory, cfg.StorageDriver)
	}

	if cfg.StorageDriver == StorageSQLite && strings.TrimSpace(cfg.DatabasePath) == "" {
		return fmt.Errorf("invalid DATABASE_PATH: required with the sqlite driver")
	}

	for name, raw := range map[string]string{"LOOKUP_BASE_URL": cfg.LookupBaseURL, "INTERACTION_BASE_URL": cfg.InteractionBaseURL} {
		if err := validateBaseURL(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	if cfg.ExternalTimeout <= 0 || cfg.ExternalTimeout > 2*time.Minute {
		return fmt.Errorf("invalid EXTERNAL_TIMEOUT: must be between 0 and 2m, got: %s", cfg.ExternalTimeout)
	}

	// A shared computation runs one lookup round and one provider call
	if cfg.ComputeTimeout < cfg.ExternalTimeout {
		return fmt.Errorf("invalid COMPUTE_TIMEOUT: must be at least EXTERNAL_TIMEOUT (%s), got: %s", cfg.ExternalTimeout, cfg.ComputeTimeout)
	}

	if cfg.ResolveConcurrency < 1 || cfg.ResolveConcurrency > 64 {
		return fmt.Errorf("invalid RESOLVE_CONCURRENCY: must be between 1 and 64, got: %d", cfg.ResolveConcurrency)
	}

	if cfg.OutboundRate <= 0 {
		return fmt.Errorf("invalid OUTBOUND_RATE: must be positive, got: %g", cfg.OutboundRate)
	}

	if cfg.OutboundBurst < 1 {
		return fmt.Errorf("invalid OUTBOUND_BURST: must be positive, got: %d", cfg.OutboundBurst)
	}

	if _, err := time.Parse("15:04", cfg.RefreshAt); err != nil {
		return fmt.Errorf("invalid REFRESH_AT: must be HH:MM, got: %s", cfg.RefreshAt)
	}

	if cfg.RefreshStaleAfter < time.Hour {
		return fmt.Errorf("invalid REFRESH_STALE_AFTER: must be at least 1h, got: %s", cfg.RefreshStaleAfter)
	}

	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	if address == "127.0.0.1" || address == "::1" || address == "localhost" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	if !ip.IsLoopback() && !ip.IsPrivate() && !ip.IsUnspecified() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

// validateEnv validates the ENV environment variable
func validateEnv(env Environment) error {
	valid := []Environment{EnvDevelopment, EnvStaging, EnvProduction, EnvTest}
	if !slices.Contains(valid, env) {
		return fmt.Errorf("ENV must be one of: %v, got: %s", valid, env)
	}
	return nil
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(logLevel string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, logLevel) {
		return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
	}
	return nil
}

// validateSizeLimit validates size limit configuration values
func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 { // 100MB
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got: %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is missing in %q", raw)
	}
	return nil
}

func parseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == s {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64EnvWithDefault gets an environment variable as int64 with a default value
func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnvWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnvWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"PORT",
		"ADDRESS",
		"ENV",
		"LOG_LEVEL",
		"LOG_DIR",
		"LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE",
		"MAX_REQUEST_BODY",
		"MAX_HEADER_SIZE",
		"STORAGE_DRIVER",
		"DATABASE_PATH",
		"LOOKUP_BASE_URL",
		"INTERACTION_BASE_URL",
		"EXTERNAL_TIMEOUT",
		"COMPUTE_TIMEOUT",
		"RESOLVE_CONCURRENCY",
		"OUTBOUND_RATE",
		"OUTBOUND_BURST",
		"REFRESH_WEEKDAY",
		"REFRESH_AT",
		"REFRESH_STALE_AFTER",
	}
}
