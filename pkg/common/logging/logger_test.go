package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogLevels(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(&Config{
		Level:  InfoLevel,
		Format: TextFormat,
		Output: buf,
	})

	logger.Debug("debug message")
	if buf.Len() > 0 {
		t.Error("Debug message should not appear when level is Info")
	}

	logger.Info("info message")
	if buf.Len() == 0 {
		t.Error("Info message should appear when level is Info")
	}

	output := buf.String()
	if !strings.Contains(output, "info message") {
		t.Error("Output should contain the info message")
	}
	if !strings.Contains(output, "[INFO]") {
		t.Error("Output should contain the INFO level")
	}
}

func TestJSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(&Config{
		Level:  InfoLevel,
		Format: JSONFormat,
		Output: buf,
	})

	logger.Info("test message", map[string]interface{}{
		"topic":     "CD008122",
		"retrieved": 42,
	})

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON output: %v", err)
	}

	if entry.Level != "INFO" {
		t.Errorf("Expected level INFO, got %s", entry.Level)
	}
	if entry.Message != "test message" {
		t.Errorf("Expected message 'test message', got %s", entry.Message)
	}
	if entry.Fields["topic"] != "CD008122" {
		t.Errorf("Expected field topic=CD008122, got %v", entry.Fields["topic"])
	}
	if entry.Fields["retrieved"] != float64(42) { // JSON numbers are float64
		t.Errorf("Expected field retrieved=42, got %v", entry.Fields["retrieved"])
	}
}

func TestWithField(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(&Config{
		Level:  InfoLevel,
		Format: JSONFormat,
		Output: buf,
	})

	logger.WithField("experiment", "decompose-run").
		WithField("workers", 4).
		Info("test message")

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON output: %v", err)
	}

	if entry.Fields["experiment"] != "decompose-run" {
		t.Errorf("Expected experiment=decompose-run, got %v", entry.Fields["experiment"])
	}
	if entry.Fields["workers"] != float64(4) {
		t.Errorf("Expected workers=4, got %v", entry.Fields["workers"])
	}
}

func TestComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(&Config{
		Level:  InfoLevel,
		Format: JSONFormat,
		Output: buf,
	}).WithComponent("evaluator")

	logger.Info("test message")

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON output: %v", err)
	}
	if entry.Component != "evaluator" {
		t.Errorf("Expected component=evaluator, got %v", entry.Component)
	}
}

func TestFormatMethods(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(&Config{
		Level:  InfoLevel,
		Format: TextFormat,
		Output: buf,
	})

	logger.Infof("formatted %s with %d", "message", 42)

	if !strings.Contains(buf.String(), "formatted message with 42") {
		t.Error("Formatted message not correct")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
		ok   bool
	}{
		{"debug", DebugLevel, true},
		{"INFO", InfoLevel, true},
		{"warning", WarnLevel, true},
		{"error", ErrorLevel, true},
		{"bogus", InfoLevel, false},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ParseLogLevel(%q) error = %v, want ok=%v", tt.in, err, tt.ok)
		}
		if got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")

	fileWriter, err := CreateFileOutput(logFile)
	if err != nil {
		t.Fatalf("Failed to create file output: %v", err)
	}

	logger := NewLogger(&Config{
		Level:  InfoLevel,
		Format: TextFormat,
		Output: fileWriter,
	})
	logger.Info("test message to file")

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "test message to file") {
		t.Error("Log file should contain the test message")
	}
}

func TestConfigureFromSettings(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")

	logger, err := ConfigureFromSettings("debug", "json", "file", logFile)
	if err != nil {
		t.Fatalf("Failed to configure logger: %v", err)
	}

	logger.Debug("debug message")
	logger.Info("info message")

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "debug message") {
		t.Error("Log file should contain debug message")
	}
	if !strings.Contains(string(content), "info message") {
		t.Error("Log file should contain info message")
	}
}
