// Package logging provides a structured logging implementation for the application
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// LogLevel represents different levels of logging
type LogLevel int

const (
	// LevelDebug is for detailed debugging information
	LevelDebug LogLevel = iota
	// LevelInfo is for general operational information
	LevelInfo
	// LevelWarn is for warning events that might need attention
	LevelWarn
	// LevelError is for error events that might still allow the application to continue running
	LevelError
	// LevelFatal is for severe error events that will lead the application to abort
	LevelFatal
)

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

// String returns the level name as printed in log lines
func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// KVRedactor rewrites key/value pairs before they are formatted.
// security.SanitizeKV satisfies this signature.
type KVRedactor func(keyValues ...interface{}) []interface{}

// Logger provides structured logging capabilities
type Logger struct {
	name      string
	stdLogger *log.Logger
	minLevel  LogLevel
	redactor  KVRedactor
	exit      func(int)
	mu        *sync.Mutex
}

// New creates a new logger with the given name and minimum log level
func New(name string, minLevel LogLevel) *Logger {
	return NewWithWriter(name, minLevel, os.Stdout)
}

// NewWithWriter creates a logger writing to w instead of stdout
func NewWithWriter(name string, minLevel LogLevel, w io.Writer) *Logger {
	return &Logger{
		name:      name,
		stdLogger: log.New(w, "", log.LstdFlags),
		minLevel:  minLevel,
		exit:      os.Exit,
		mu:        &sync.Mutex{},
	}
}

// WithName creates a new logger with a different name but the same configuration
func (l *Logger) WithName(name string) *Logger {
	clone := l.clone()
	clone.name = name
	return clone
}

// WithLevel creates a new logger with a different minimum log level
func (l *Logger) WithLevel(level LogLevel) *Logger {
	clone := l.clone()
	clone.minLevel = level
	return clone
}

// WithRedactor returns a logger that passes every KV call through r
func (l *Logger) WithRedactor(r KVRedactor) *Logger {
	clone := l.clone()
	clone.redactor = r
	return clone
}

func (l *Logger) clone() *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Logger{
		name:      l.name,
		stdLogger: l.stdLogger,
		minLevel:  l.minLevel,
		redactor:  l.redactor,
		exit:      l.exit,
		mu:        l.mu,
	}
}

// Name returns the component name printed in every line
func (l *Logger) Name() string {
	return l.name
}

// SetOutput sets the output destination for the logger
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stdLogger.SetOutput(w)
}

// SetMinLevel sets the minimum log level
func (l *Logger) SetMinLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

// Enabled reports whether messages at level would be written
func (l *Logger) Enabled(level LogLevel) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return level >= l.minLevel
}

// Debug logs a message at debug level using printf-style formatting
func (l *Logger) Debug(format string, v ...interface{}) {
	l.log(LevelDebug, format, v...)
}

// DebugKV logs a message at debug level with key-value pairs
func (l *Logger) DebugKV(msg string, keyValues ...interface{}) {
	l.logKV(LevelDebug, msg, keyValues...)
}

// Info logs a message at info level using printf-style formatting
func (l *Logger) Info(format string, v ...interface{}) {
	l.log(LevelInfo, format, v...)
}

// InfoKV logs a message at info level with key-value pairs
func (l *Logger) InfoKV(msg string, keyValues ...interface{}) {
	l.logKV(LevelInfo, msg, keyValues...)
}

// Warn logs a message at warning level using printf-style formatting
func (l *Logger) Warn(format string, v ...interface{}) {
	l.log(LevelWarn, format, v...)
}

// WarnKV logs a message at warning level with key-value pairs
func (l *Logger) WarnKV(msg string, keyValues ...interface{}) {
	l.logKV(LevelWarn, msg, keyValues...)
}

// Error logs a message at error level using printf-style formatting
func (l *Logger) Error(format string, v ...interface{}) {
	l.log(LevelError, format, v...)
}

// ErrorKV logs a message at error level with key-value pairs
func (l *Logger) ErrorKV(msg string, keyValues ...interface{}) {
	l.logKV(LevelError, msg, keyValues...)
}

// Fatal logs a message at fatal level and then exits
func (l *Logger) Fatal(format string, v ...interface{}) {
	l.log(LevelFatal, format, v...)
	l.exit(1)
}

// FatalKV logs a message at fatal level with key-value pairs and then exits
func (l *Logger) FatalKV(msg string, keyValues ...interface{}) {
	l.logKV(LevelFatal, msg, keyValues...)
	l.exit(1)
}

// Printf is a compatibility method for the standard logger interface
func (l *Logger) Printf(format string, v ...interface{}) {
	l.Info(format, v...)
}

func (l *Logger) log(level LogLevel, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.minLevel {
		return
	}

	msg := fmt.Sprintf(format, v...)
	l.stdLogger.Printf("[%s] %s: %s", level, l.name, msg)
}

func (l *Logger) logKV(level LogLevel, msg string, keyValues ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.minLevel {
		return
	}

	if len(keyValues)%2 != 0 {
		keyValues = append(keyValues, "<missing value>")
	}
	if l.redactor != nil {
		keyValues = l.redactor(keyValues...)
	}

	kvPairs := make([]string, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keyValues[i])
		}
		kvPairs = append(kvPairs, fmt.Sprintf("%s=%v", key, keyValues[i+1]))
	}

	if len(kvPairs) == 0 {
		l.stdLogger.Printf("[%s] %s: %s", level, l.name, msg)
		return
	}
	l.stdLogger.Printf("[%s] %s: %s %s", level, l.name, msg, strings.Join(kvPairs, " "))
}

// ParseLevel converts a string level to a LogLevel
func ParseLevel(level string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "FATAL":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// StdLogger returns the underlying standard log.Logger
func (l *Logger) StdLogger() *log.Logger {
	return l.stdLogger
}
