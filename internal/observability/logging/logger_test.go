package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLoggerJSONCarriesService(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "harvester", "info", "json")
	logger.Info("address_skipped", "address", "513 MALAGA DRIVE")
	logger.Debug("hidden")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected a single json line, got %q: %v", buf.String(), err)
	}
	if line["service"] != "harvester" || line["msg"] != "address_skipped" {
		t.Fatalf("unexpected line %v", line)
	}
}

func TestNewLoggerText(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "harvester", "debug", "TEXT").Debug("strategy_matched", "step", "download")
	if !strings.Contains(buf.String(), "msg=strategy_matched") || !strings.Contains(buf.String(), "service=harvester") {
		t.Fatalf("unexpected text output %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel(" Warning ").String() != "WARN" || parseLevel("bogus").String() != "INFO" {
		t.Fatalf("unexpected level parsing")
	}
}
