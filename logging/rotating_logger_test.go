package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestRotator(t *testing.T, maxSize int64) (*RotatingLogger, string) {
	t.Helper()
	dir := t.TempDir()
	rl := NewRotatingLoggerWithSizeLimit(dir, 1, maxSize)

	rl.mu.Lock()
	err := rl.doRotate(getWeekKey(time.Now()))
	rl.mu.Unlock()
	if err != nil {
		t.Fatalf("Failed to rotate: %v", err)
	}
	t.Cleanup(func() { _ = rl.Close() })
	return rl, dir
}

func TestRotatingLoggerWritesWeeklyFile(t *testing.T) {
	rl, dir := newTestRotator(t, 0)

	if _, err := rl.Write([]byte("refresh completed\n")); err != nil {
		t.Fatalf("Failed to write to log: %v", err)
	}

	expected := filepath.Join(dir, "interactions-"+getWeekKey(time.Now())+".log")
	content, err := os.ReadFile(expected)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "refresh completed") {
		t.Errorf("Log file does not contain message: %s", content)
	}
}

func TestGetWeekKey(t *testing.T) {
	tests := []struct {
		date     time.Time
		expected string
	}{
		{time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "2026-W01"},
		{time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC), "2026-W42"},
		{time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), "2025-W01"},
	}

	for _, tt := range tests {
		if got := getWeekKey(tt.date); got != tt.expected {
			t.Errorf("getWeekKey(%s) = %s, want %s", tt.date.Format(time.DateOnly), got, tt.expected)
		}
	}
}

func TestRotatingLoggerSizeRotation(t *testing.T) {
	rl, dir := newTestRotator(t, 64)

	line := []byte(strings.Repeat("x", 40) + "\n")
	for i := 0; i < 4; i++ {
		if _, err := rl.Write(line); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	files, _ := filepath.Glob(filepath.Join(dir, "interactions-*.log"))
	if len(files) < 2 {
		t.Errorf("expected size rotation to create numbered files, got %v", files)
	}
}

func TestParseNumberedFile(t *testing.T) {
	rl, dir := newTestRotator(t, 0)

	path := filepath.Join(dir, "interactions-2026-W42_03.log")
	if err := os.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}

	num, size := rl.parseNumberedFile(path)
	if num != 3 || size != 3 {
		t.Errorf("parseNumberedFile() = (%d, %d), want (3, 3)", num, size)
	}

	num, _ = rl.parseNumberedFile(filepath.Join(dir, "app-2026-W42_03.log"))
	if num != 0 {
		t.Errorf("foreign file names must not parse, got %d", num)
	}
}

func TestCleanupOldLogs(t *testing.T) {
	rl, dir := newTestRotator(t, 0)

	old := filepath.Join(dir, "interactions-2020-W01.log")
	unrelated := filepath.Join(dir, "other.log")
	for _, p := range []string{old, unrelated} {
		if err := os.WriteFile(p, []byte("old"), 0644); err != nil {
			t.Fatal(err)
		}
		past := time.Now().Add(-30 * 24 * time.Hour)
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatal(err)
		}
	}

	if err := rl.cleanupOldLogs(); err != nil {
		t.Fatalf("cleanupOldLogs() error: %v", err)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Errorf("expected %s to be removed", old)
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Errorf("unrelated file must be kept: %v", err)
	}
}

func TestRotatingLoggerConcurrentWrites(t *testing.T) {
	rl, dir := newTestRotator(t, 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _ = rl.Write([]byte(fmt.Sprintf("line %d\n", n)))
		}(i)
	}
	wg.Wait()

	content, err := os.ReadFile(filepath.Join(dir, "interactions-"+getWeekKey(time.Now())+".log"))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(content), "\n"); got != 20 {
		t.Errorf("expected 20 lines, got %d", got)
	}
}

func TestRotatingLoggerCloseWithoutCleanupGoroutine(t *testing.T) {
	rl := NewRotatingLoggerWithSizeLimit(t.TempDir(), 1, 0)

	start := time.Now()
	if err := rl.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Close() should not wait for a cleanup goroutine that never started")
	}
}
