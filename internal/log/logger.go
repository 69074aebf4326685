// SPDX-License-Identifier: MIT
//
// Package log is the leveled logger used across mixdeck. It writes through
// the standard library logger with microsecond timestamps and filters on a
// global level held atomically, so the level can change while the engine
// runs. Components take a named logger whose name prefixes every line.
//
// Nothing on the real-time audio path may log: formatting allocates.
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

// Constants for log levels.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

// currentLevel holds the current global log level atomically.
var currentLevel atomic.Uint32

var backend = stdlog.New(os.Stderr, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds)

// exit is replaced in tests so Fatal paths can be exercised.
var exit = os.Exit

func init() {
	SetLevel(LevelInfo)
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// SetOutput redirects all loggers. It is safe to call concurrently with logging.
func SetOutput(w io.Writer) {
	backend.SetOutput(w)
}

func shouldLog(level LogLevel) bool {
	return level >= GetLevel()
}

// Logger prefixes messages with a component name.
type Logger struct {
	name string
}

var root = &Logger{}

// Named returns a logger whose lines are tagged with the component name.
func Named(name string) *Logger {
	return &Logger{name: name}
}

// Name returns the component name, empty for the root logger.
func (l *Logger) Name() string {
	return l.name
}

func (l *Logger) output(level LogLevel, msg string) {
	// Pad to align INFO/WARN with the five letter levels.
	pad := ""
	if len(level.String()) == 4 {
		pad = " "
	}
	if l.name != "" {
		backend.Printf("[%s]%s %s: %s", level, pad, l.name, msg)
		return
	}
	backend.Printf("[%s]%s %s", level, pad, msg)
}

// Debugf logs a formatted debug message if the level is appropriate.
func (l *Logger) Debugf(format string, v ...any) {
	if shouldLog(LevelDebug) {
		l.output(LevelDebug, fmt.Sprintf(format, v...))
	}
}

// Infof logs a formatted info message if the level is appropriate.
func (l *Logger) Infof(format string, v ...any) {
	if shouldLog(LevelInfo) {
		l.output(LevelInfo, fmt.Sprintf(format, v...))
	}
}

// Warnf logs a formatted warning message if the level is appropriate.
func (l *Logger) Warnf(format string, v ...any) {
	if shouldLog(LevelWarn) {
		l.output(LevelWarn, fmt.Sprintf(format, v...))
	}
}

// Errorf logs a formatted error message if the level is appropriate.
func (l *Logger) Errorf(format string, v ...any) {
	if shouldLog(LevelError) {
		l.output(LevelError, fmt.Sprintf(format, v...))
	}
}

// Fatalf always logs and then exits the process.
func (l *Logger) Fatalf(format string, v ...any) {
	l.output(LevelFatal, fmt.Sprintf(format, v...))
	exit(1)
}

// Debugf logs on the root logger.
func Debugf(format string, v ...any) { root.Debugf(format, v...) }

// Infof logs on the root logger.
func Infof(format string, v ...any) { root.Infof(format, v...) }

// Warnf logs on the root logger.
func Warnf(format string, v ...any) { root.Warnf(format, v...) }

// Errorf logs on the root logger.
func Errorf(format string, v ...any) { root.Errorf(format, v...) }

// Fatalf logs on the root logger and exits.
func Fatalf(format string, v ...any) { root.Fatalf(format, v...) }

// Info logs its operands on the root logger.
func Info(v ...any) {
	if shouldLog(LevelInfo) {
		root.output(LevelInfo, fmt.Sprint(v...))
	}
}

// Error logs its operands on the root logger.
func Error(v ...any) {
	if shouldLog(LevelError) {
		root.output(LevelError, fmt.Sprint(v...))
	}
}

// Fatal logs its operands and exits.
func Fatal(v ...any) {
	root.output(LevelFatal, fmt.Sprint(v...))
	exit(1)
}
