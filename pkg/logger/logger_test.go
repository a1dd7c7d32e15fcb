package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{TraceLevel, "TRACE"},
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{Level(999), "UNKNOWN"},
	}

	for _, test := range tests {
		if result := test.level.String(); result != test.expected {
			t.Errorf("Level.String() = %v, expected %v", result, test.expected)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"trace":   TraceLevel,
		"DEBUG":   DebugLevel,
		" info ":  InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"bogus":   InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerInitialization(t *testing.T) {
	config := Config{Level: InfoLevel, Component: "test"}

	if err := Initialize(config); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	if defaultLogger == nil {
		t.Fatal("Initialize() did not set defaultLogger")
	}
	if defaultLogger.config.Component != "test" {
		t.Errorf("Initialize() did not set config correctly, got component: %s", defaultLogger.config.Component)
	}
}

func TestPrettyFormatter(t *testing.T) {
	f := &prettyFormatter{config: Config{Component: "test"}}
	entry := &logrus.Entry{
		Time:    time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		Level:   logrus.InfoLevel,
		Message: "test message",
		Data:    logrus.Fields{"tool": "git", "attempt": 2},
	}

	out, err := f.Format(entry)
	if err != nil {
		t.Fatalf("Format() failed: %v", err)
	}
	result := string(out)

	for _, part := range []string{"2025-01-01 12:00:00", "[INFO]", "test:", "test message", "{attempt=2, tool=git}"} {
		if !strings.Contains(result, part) {
			t.Errorf("Format() result missing expected part: %s\nResult: %s", part, result)
		}
	}
}

func TestPrettyFormatterNoOpMarker(t *testing.T) {
	f := &prettyFormatter{config: Config{NoOp: true}}
	out, err := f.Format(&logrus.Entry{Level: logrus.WarnLevel, Message: "plan only", Data: logrus.Fields{}})
	if err != nil {
		t.Fatalf("Format() failed: %v", err)
	}
	if !strings.Contains(string(out), "[DRY-RUN]") || !strings.Contains(string(out), "[WARN]") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestLoggerJSONFormatting(t *testing.T) {
	if err := Initialize(Config{Level: InfoLevel, JSON: true, Component: "test"}); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	var buf bytes.Buffer
	SetOutput(&buf)

	Info("test message", String("key", "value"))

	var parsed map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &parsed); err != nil {
		t.Fatalf("Log() produced invalid JSON: %v\nOutput: %s", err, buf.String())
	}
	if parsed["message"] != "test message" {
		t.Errorf("message = %v, expected 'test message'", parsed["message"])
	}
	if parsed["key"] != "value" {
		t.Errorf("key = %v, expected 'value'", parsed["key"])
	}
	if parsed["component"] != "test" {
		t.Errorf("component = %v, expected 'test'", parsed["component"])
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	if err := Initialize(Config{Level: WarnLevel}); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	var buf bytes.Buffer
	SetOutput(&buf)

	Info("info message")
	Debug("debug message")
	Warn("warn message")
	Error("error message")

	output := buf.String()
	if strings.Contains(output, "info message") {
		t.Error("INFO level message should be filtered out")
	}
	if strings.Contains(output, "debug message") {
		t.Error("DEBUG level message should be filtered out")
	}
	if !strings.Contains(output, "warn message") {
		t.Error("WARN level message should appear")
	}
	if !strings.Contains(output, "error message") {
		t.Error("ERROR level message should appear")
	}
}

func TestFileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "run.log")
	if err := Initialize(Config{Level: InfoLevel, File: logFile}); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	t.Cleanup(Close)

	Info("persisted entry")
	Close()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "persisted entry") {
		t.Errorf("log file missing entry: %s", data)
	}
}

func TestFieldConstructors(t *testing.T) {
	if f := String("key", "value"); f.Key != "key" || f.Value != "value" {
		t.Errorf("String() = %+v", f)
	}
	if f := Int("count", 42); f.Key != "count" || f.Value != 42 {
		t.Errorf("Int() = %+v", f)
	}
	if f := Bool("enabled", true); f.Key != "enabled" || f.Value != true {
		t.Errorf("Bool() = %+v", f)
	}
	if f := Duration("elapsed", 1500*time.Millisecond); f.Value != "1.5s" {
		t.Errorf("Duration() = %+v", f)
	}
}

func TestErrField(t *testing.T) {
	errField := Err(&testError{message: "test error"})
	if errField.Key != "error" || errField.Value != "test error" {
		t.Errorf("Err() = %+v", errField)
	}
	if nilField := Err(nil); nilField.Value != "<nil>" {
		t.Errorf("Err(nil) = %+v", nilField)
	}
}

func TestFallbackLogging(t *testing.T) {
	originalLogger := defaultLogger
	defaultLogger = nil
	defer func() { defaultLogger = originalLogger }()

	// must not panic without an initialized logger
	Info("fallback test message")
	Warn("dropped")
}

// testError implements error interface for testing
type testError struct {
	message string
}

func (e *testError) Error() string {
	return e.message
}
