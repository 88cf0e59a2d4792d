package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(Config{Level: "warn"}, &buf)

	logger.Info().Msg("hidden")
	logger.Warn().Str("component", "test").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info entry should be filtered: %s", out)
	}
	if !strings.Contains(out, `"component":"test"`) {
		t.Fatalf("warn entry should be JSON encoded: %s", out)
	}
}

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraper.log")
	var buf bytes.Buffer
	logger := newLogger(Config{Level: "info", File: path, MaxSizeMB: 1}, &buf)

	logger.Info().Msg("to both")

	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file should exist: %v", err)
	}
	if !strings.Contains(string(body), "to both") || !strings.Contains(buf.String(), "to both") {
		t.Fatalf("entry should reach stdout and file, file=%q stdout=%q", body, buf.String())
	}
}
