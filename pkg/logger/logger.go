// Package logger provides the single structured logger used across the
// LookinMCP bridge. It wraps log/slog, configured through
// github.com/stacklok/toolhive-core/logging, and exposes a package-level
// singleton plus a logr.Logger adapter for libraries that expect one.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/stacklok/toolhive-core/logging"
)

var singleton atomic.Pointer[slog.Logger]

func init() {
	singleton.Store(logging.New(logging.WithLevel(slog.LevelInfo)))
}

// Initialize (re)configures the singleton logger. debug enables LevelDebug;
// otherwise LevelInfo.
func Initialize(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	singleton.Store(logging.New(logging.WithLevel(level)))
}

// InitializeFromEnv configures the singleton from LOOKINMCP_DEBUG (any of
// "1", "true", "yes", case-insensitively, enables debug level).
func InitializeFromEnv() {
	switch strings.ToLower(os.Getenv("LOOKINMCP_DEBUG")) {
	case "1", "true", "yes":
		Initialize(true)
	default:
		Initialize(false)
	}
}

// Get returns the current singleton logger.
func Get() *slog.Logger {
	return singleton.Load()
}

// NewLogr adapts the current singleton to a logr.Logger.
func NewLogr() logr.Logger {
	return logr.FromSlogHandler(Get().Handler())
}

// Debug logs at debug level.
func Debug(msg string) { Get().Debug(msg) }

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) { Get().Debug(fmt.Sprintf(format, args...)) }

// Debugw logs a message with structured key/value pairs at debug level.
func Debugw(msg string, kv ...any) { Get().Debug(msg, kv...) }

// Info logs at info level.
func Info(msg string) { Get().Info(msg) }

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) { Get().Info(fmt.Sprintf(format, args...)) }

// Infow logs a message with structured key/value pairs at info level.
func Infow(msg string, kv ...any) { Get().Info(msg, kv...) }

// Warn logs at warn level.
func Warn(msg string) { Get().Warn(msg) }

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...any) { Get().Warn(fmt.Sprintf(format, args...)) }

// Warnw logs a message with structured key/value pairs at warn level.
func Warnw(msg string, kv ...any) { Get().Warn(msg, kv...) }

// Error logs at error level.
func Error(msg string) { Get().Error(msg) }

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) { Get().Error(fmt.Sprintf(format, args...)) }

// Errorw logs a message with structured key/value pairs at error level.
func Errorw(msg string, kv ...any) { Get().Error(msg, kv...) }

// DPanic logs at error level; unlike Panic it does not panic. Named to match
// the zap-style severity ladder the rest of the bridge's logging follows.
func DPanic(msg string) { Get().Error(msg) }

// DPanicf logs a formatted message at error level without panicking.
func DPanicf(format string, args ...any) { Get().Error(fmt.Sprintf(format, args...)) }

// DPanicw logs a message with structured key/value pairs at error level without panicking.
func DPanicw(msg string, kv ...any) { Get().Error(msg, kv...) }

// Panic logs at error level and then panics with msg.
func Panic(msg string) {
	Get().Error(msg)
	panic(msg)
}

// Panicf logs a formatted message at error level and then panics with it.
func Panicf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	Get().Error(msg)
	panic(msg)
}

// Panicw logs a message with structured key/value pairs at error level and then panics with msg.
func Panicw(msg string, kv ...any) {
	Get().Error(msg, kv...)
	panic(msg)
}
