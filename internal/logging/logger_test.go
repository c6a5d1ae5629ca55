// Package logging includes tests for the zap logger helpers.
package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestNewDevelopmentLogger confirms the development logger builds and logs.
func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true, "")
	if err != nil {
		t.Fatalf("New(true, \"\") error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("development logger ready")
}

// TestNewProductionLogger ensures the production logger configuration succeeds.
func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(false, "")
	if err != nil {
		t.Fatalf("New(false, \"\") error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("production logger ready")
}

// TestNewWithLogFile verifies log lines are mirrored to the given file.
func TestNewWithLogFile(t *testing.T) {
	t.Parallel()

	logFile := filepath.Join(t.TempDir(), "scraper.log")
	logger, err := New(false, logFile)
	if err != nil {
		t.Fatalf("New(false, %q) error = %v", logFile, err)
	}
	logger.Info("mirrored line")
	logger.Sync() //nolint:errcheck // best-effort flush

	raw, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(raw), "mirrored line") {
		t.Fatalf("log file missing entry, got: %s", raw)
	}
}
