package config

import (
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every known variable for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range GetEnvVars() {
		t.Setenv(key, "")
	}
}

func TestLoadValidConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8002")
	t.Setenv("ADDRESS", "127.0.0.1")
	t.Setenv("ENV", "dev")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("EXTERNAL_TIMEOUT", "3s")
	t.Setenv("COMPUTE_TIMEOUT", "20s")
	t.Setenv("REFRESH_WEEKDAY", "Monday")
	t.Setenv("REFRESH_AT", "04:30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.Port != "8002" {
		t.Errorf("Expected port 8002, got %s", cfg.Port)
	}
	if cfg.Env != EnvDevelopment {
		t.Errorf("Expected env dev, got %s", cfg.Env)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.LogLevel)
	}
	if cfg.StorageDriver != StorageMemory {
		t.Errorf("Expected memory storage, got %s", cfg.StorageDriver)
	}
	if cfg.ExternalTimeout != 3*time.Second {
		t.Errorf("Expected external timeout 3s, got %s", cfg.ExternalTimeout)
	}
	if cfg.ComputeTimeout != 20*time.Second {
		t.Errorf("Expected compute timeout 20s, got %s", cfg.ComputeTimeout)
	}
	if cfg.RefreshWeekday != time.Monday {
		t.Errorf("Expected refresh on Monday, got %s", cfg.RefreshWeekday)
	}
	if cfg.RefreshAt != "04:30" {
		t.Errorf("Expected refresh at 04:30, got %s", cfg.RefreshAt)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("Expected default port 8000, got %s", cfg.Port)
	}
	if cfg.Address != "127.0.0.1" {
		t.Errorf("Expected default address 127.0.0.1, got %s", cfg.Address)
	}
	if cfg.StorageDriver != StorageSQLite {
		t.Errorf("Expected default storage sqlite, got %s", cfg.StorageDriver)
	}
	if cfg.DatabasePath == "" {
		t.Error("Expected a default database path")
	}
	if cfg.RefreshWeekday != time.Sunday {
		t.Errorf("Expected default refresh weekday Sunday, got %s", cfg.RefreshWeekday)
	}
	if cfg.ResolveConcurrency != 8 {
		t.Errorf("Expected default resolve concurrency 8, got %d", cfg.ResolveConcurrency)
	}
	if !strings.HasPrefix(cfg.LookupBaseURL, "https://") {
		t.Errorf("Expected an https lookup URL, got %s", cfg.LookupBaseURL)
	}
}

func TestInvalidValues(t *testing.T) {
	testCases := []struct {
		key      string
		value    string
		expected string
	}{
		{"PORT", "abc", "PORT must be a valid number"},
		{"PORT", "65536", "PORT must be between 1 and 65535"},
		{"PORT", "80", "PORT 80 is privileged"},
		{"ADDRESS", "not-an-ip", "ADDRESS must be a valid IP address"},
		{"ADDRESS", "8.8.8.8", "is a public IP"},
		{"ENV", "qa", "ENV must be one of"},
		{"LOG_LEVEL", "trace", "LOG_LEVEL must be one of"},
		{"LOG_RETENTION_WEEKS", "60", "invalid LOG_RETENTION_WEEKS"},
		{"MAX_REQUEST_BODY", "-1", "MAX_REQUEST_BODY must be positive"},
		{"STORAGE_DRIVER", "postgres", "invalid STORAGE_DRIVER"},
		{"LOOKUP_BASE_URL", "ftp://example.com", "invalid LOOKUP_BASE_URL"},
		{"INTERACTION_BASE_URL", "https://", "invalid INTERACTION_BASE_URL"},
		{"COMPUTE_TIMEOUT", "1s", "invalid COMPUTE_TIMEOUT"},
		{"RESOLVE_CONCURRENCY", "0", "invalid RESOLVE_CONCURRENCY"},
		{"OUTBOUND_RATE", "-2", "invalid OUTBOUND_RATE"},
		{"REFRESH_WEEKDAY", "someday", "invalid REFRESH_WEEKDAY"},
		{"REFRESH_AT", "25:99", "invalid REFRESH_AT"},
		{"REFRESH_STALE_AFTER", "5m", "invalid REFRESH_STALE_AFTER"},
	}

	for _, tc := range testCases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			if err == nil {
				t.Fatalf("Expected error for %s=%q, got none", tc.key, tc.value)
			}
			if !strings.Contains(err.Error(), tc.expected) {
				t.Errorf("Expected error containing %q, got %q", tc.expected, err.Error())
			}
		})
	}
}

func TestSQLiteRequiresDatabasePath(t *testing.T) {
	cfg := &Config{
		Port:               "8000",
		Address:            "127.0.0.1",
		Env:                EnvTest,
		LogLevel:           "info",
		LogRetentionWeeks:  4,
		MaxLogFileSize:     10 * 1024 * 1024,
		MaxRequestBody:     1024,
		MaxHeaderSize:      1024,
		StorageDriver:      StorageSQLite,
		DatabasePath:       "  ",
		LookupBaseURL:      "http://localhost/lookup",
		InteractionBaseURL: "http://localhost/interactions",
		ExternalTimeout:    time.Second,
		ComputeTimeout:     time.Second,
		ResolveConcurrency: 1,
		OutboundRate:       1,
		OutboundBurst:      1,
		RefreshAt:          "03:00",
		RefreshStaleAfter:  time.Hour,
	}

	err := validateConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), "DATABASE_PATH") {
		t.Fatalf("Expected DATABASE_PATH error, got %v", err)
	}

	cfg.StorageDriver = StorageMemory
	if err := validateConfig(cfg); err != nil {
		t.Errorf("Expected memory storage to ignore DATABASE_PATH, got %v", err)
	}
}

func TestParseWeekday(t *testing.T) {
	tests := []struct {
		in   string
		want time.Weekday
	}{
		{"sunday", time.Sunday},
		{" Wednesday ", time.Wednesday},
		{"SATURDAY", time.Saturday},
	}
	for _, tt := range tests {
		got, err := parseWeekday(tt.in)
		if err != nil {
			t.Errorf("parseWeekday(%q) returned error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseWeekday(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if _, err := parseWeekday("tues"); err == nil {
		t.Error("Expected error for abbreviated weekday")
	}
}
