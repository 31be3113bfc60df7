package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseLevel(tt.input)
			if got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPackageFunctionsWithoutInit(t *testing.T) {
	saved := DefaultLoggingService
	DefaultLoggingService = nil
	defer func() { DefaultLoggingService = saved }()

	// Must fall back to a console logger instead of panicking
	Info("info message", "key", "value")
	Warn("warn message")
	Error("error message")
	Debug("debug message")
}

func TestInitLoggerWritesToFile(t *testing.T) {
	saved := DefaultLoggingService
	savedDefault := slog.Default()
	defer func() {
		DefaultLoggingService = saved
		slog.SetDefault(savedDefault)
	}()

	dir := t.TempDir()
	InitLogger(Options{Dir: dir, Level: slog.LevelInfo, RetentionWeeks: 1, MaxFileSize: 1024 * 1024})

	Info("cache warmed", "entries", 3)
	Debug("not written at info level")

	if err := Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "interactions-*.log"))
	if err != nil || len(files) != 1 {
		t.Fatalf("expected one log file, got %v (err %v)", files, err)
	}

	content, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), `"msg":"cache warmed"`) {
		t.Errorf("expected JSON record in log file, got: %s", content)
	}
	if strings.Contains(string(content), "not written") {
		t.Errorf("debug record should be filtered at info level, got: %s", content)
	}
}

func TestSetupLoggerWithoutDirUsesConsoleOnly(t *testing.T) {
	logger, rotator := SetupLogger(Options{Level: slog.LevelWarn})
	if logger == nil {
		t.Fatal("expected a logger")
	}
	if rotator != nil {
		t.Error("expected no rotating logger without a directory")
	}
}
