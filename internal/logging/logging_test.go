package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, closeLog, err := New(Options{Level: "debug", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer closeLog()

	logger.WithField("mode", "both").Debug("request started")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON line, got %q", buf.String())
	}
	if entry["msg"] != "request started" || entry["mode"] != "both" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Options{Level: "warn", Output: &buf})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info entry should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn entry missing")
	}
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "allora.log")
	logger, closeLog, err := New(Options{File: path})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	logger.Info("to file")
	if err := closeLog(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file = %q", data)
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, _, err := New(Options{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}
