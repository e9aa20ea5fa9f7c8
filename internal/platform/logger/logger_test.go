package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ogurasousui/company-registry/internal/platform/config"
)

func TestNewWithWriter_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, config.LogConfig{Level: "debug", Format: "json"})
	if err != nil {
		t.Fatalf("NewWithWriter returned error: %v", err)
	}

	log.Debug("refreshed", "code", "12345")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json output, got %q: %v", buf.String(), err)
	}
	if entry["code"] != "12345" || entry["msg"] != "refreshed" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewWithWriter_LevelFilters(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, config.LogConfig{Level: "warn", Format: "text"})
	if err != nil {
		t.Fatalf("NewWithWriter returned error: %v", err)
	}

	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestNewWithWriter_InvalidLevel(t *testing.T) {
	t.Parallel()

	if _, err := NewWithWriter(&bytes.Buffer{}, config.LogConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error for invalid level")
	}
}
