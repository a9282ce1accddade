package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{DefaultLevel: LevelWarn, Output: &buf})

	l.Statement().Info("hidden")
	l.Statement().Warn("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Error("expected INFO entry to be filtered at WARN")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("expected WARN entry to be written")
	}

	l.SetLevel(CategoryStatement, LevelDebug)
	if !l.Enabled(CategoryStatement, LevelDebug) {
		t.Error("expected DEBUG to be enabled after SetLevel")
	}
	if l.Enabled(CategoryConversion, LevelDebug) {
		t.Error("expected other categories to keep their level")
	}
}

func TestLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{DefaultLevel: LevelDebug, Output: &buf})

	l.Statement().ForHandle("stmt-1").Debug("fetch", "rows", 3, "column", 2)
	line := buf.String()
	if !strings.Contains(line, "[statement] <stmt-1> fetch") {
		t.Errorf("expected category and handle, got %q", line)
	}
	if !strings.Contains(line, "column=2 rows=3") {
		t.Errorf("expected sorted fields, got %q", line)
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{DefaultLevel: LevelDebug, Output: &buf, Format: FormatJSON})

	l.Conversion().Debug("conversion anomaly", "sqlstate", "22003")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode entry: %v", err)
	}
	if entry["level"] != "DEBUG" || entry["category"] != "conversion" {
		t.Errorf("expected DEBUG/conversion, got %v/%v", entry["level"], entry["category"])
	}
	fields, _ := entry["fields"].(map[string]interface{})
	if fields["sqlstate"] != "22003" {
		t.Errorf("expected sqlstate field, got %v", entry["fields"])
	}
}

func TestLogger_Async(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{DefaultLevel: LevelInfo, Output: &buf, AsyncBuffer: 16})
	l.Driver().Info("connected")
	l.Close()

	if !strings.Contains(buf.String(), "connected") {
		t.Error("expected async entry to be flushed on Close")
	}
	if logged, _ := l.Stats(); logged != 1 {
		t.Errorf("expected 1 logged entry, got %d", logged)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"TRACE":   LevelDebug,
		"":        LevelInfo,
		"warning": LevelWarn,
		"off":     LevelOff,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q): expected %s, got %s (%v)", in, want, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected an error for an unknown level")
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestContext(t *testing.T) {
	l := New(Config{DefaultLevel: LevelOff})
	ctx := WithLogger(context.Background(), l)
	if FromContext(ctx) != l {
		t.Error("expected logger from context")
	}
	if FromContext(context.Background()) == nil {
		t.Error("expected default logger for a bare context")
	}
}
