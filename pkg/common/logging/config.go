package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ConfigureFromSettings builds a logger from string settings, as
// read from a configuration file or command line flags. Output is
// "console", "file", or "both"; filename is required for the file
// outputs.
func ConfigureFromSettings(level, format, output, filename string) (*Logger, error) {
	logLevel, err := ParseLogLevel(level)
	if err != nil {
		return nil, err
	}
	logFormat, err := ParseLogFormat(format)
	if err != nil {
		return nil, err
	}

	var writer io.Writer
	switch output {
	case "console", "":
		writer = os.Stdout
	case "file":
		if filename == "" {
			return nil, fmt.Errorf("log file path required when output is 'file'")
		}
		f, err := CreateFileOutput(filename)
		if err != nil {
			return nil, err
		}
		writer = f
	case "both":
		if filename == "" {
			return nil, fmt.Errorf("log file path required when output is 'both'")
		}
		f, err := CreateFileOutput(filename)
		if err != nil {
			return nil, err
		}
		writer = io.MultiWriter(os.Stdout, f)
	default:
		return nil, fmt.Errorf("invalid log output: %s", output)
	}

	return NewLogger(&Config{
		Level:  logLevel,
		Format: logFormat,
		Output: writer,
	}), nil
}

// CreateFileOutput opens a log file for appending, creating parent
// directories as needed.
func CreateFileOutput(filename string) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// InitFromConfig initializes the global logger from string settings.
func InitFromConfig(level, format, output, filename string) error {
	logger, err := ConfigureFromSettings(level, format, output, filename)
	if err != nil {
		return err
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
	return nil
}
