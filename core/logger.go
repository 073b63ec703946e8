package core

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// NoOpLogger provides a no-op logger implementation
type NoOpLogger struct{}

func (n *NoOpLogger) Info(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Error(msg string, fields map[string]interface{}) {}
func (n *NoOpLogger) Warn(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Debug(msg string, fields map[string]interface{}) {}

// LogLevel represents the logging level
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func parseLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DebugLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// LoggingConfig controls the production logger.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	Component string `yaml:"component" json:"component"`
}

// ProductionLogger writes structured JSON lines. Safe for concurrent use.
type ProductionLogger struct {
	mu        sync.Mutex
	out       io.Writer
	level     LogLevel
	component string
}

// NewProductionLogger creates a JSON logger for the given component.
// It writes to stdout; use NewProductionLoggerWithWriter in tests.
func NewProductionLogger(config LoggingConfig) *ProductionLogger {
	return NewProductionLoggerWithWriter(config, os.Stdout)
}

// NewProductionLoggerWithWriter creates a JSON logger with a custom sink.
func NewProductionLoggerWithWriter(config LoggingConfig, out io.Writer) *ProductionLogger {
	component := config.Component
	if component == "" {
		component = "deliverly"
	}
	return &ProductionLogger{
		out:       out,
		level:     parseLevel(config.Level),
		component: component,
	}
}

func (l *ProductionLogger) log(level LogLevel, name, msg string, fields map[string]interface{}) {
	if level < l.level {
		return
	}
	entry := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"level":     name,
		"component": l.component,
		"message":   msg,
	}
	for k, v := range fields {
		entry[k] = v
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = json.NewEncoder(l.out).Encode(entry)
}

// Debug logs a debug message
func (l *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	l.log(DebugLevel, "DEBUG", msg, fields)
}

// Info logs an info message
func (l *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	l.log(InfoLevel, "INFO", msg, fields)
}

// Warn logs a warning message
func (l *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	l.log(WarnLevel, "WARN", msg, fields)
}

// Error logs an error message
func (l *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	l.log(ErrorLevel, "ERROR", msg, fields)
}
