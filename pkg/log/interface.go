// Package log provides the structured logging interface used by the training
// and inference pipelines.
//
// The Logger interface is slog-shaped (message plus alternating key/value
// fields) so call sites stay backend-agnostic; the production backend is
// zerolog (see logger.go) and tests capture JSON lines with TestLogger.
//
// Example usage:
//
//	logger := log.GetLogger().With(
//	    log.ComponentKey, "trainer",
//	    log.TargetKey, "Diagnosis",
//	)
//	logger.Info("Grid search finished",
//	    log.OperationKey, log.OperationFit,
//	    log.SamplesKey, 1000,
//	    log.AccuracyKey, 0.91,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are alternating key/value pairs. An error value may be passed under
// any key; implementations render it as a string and, where the backend
// supports it, attach the cockroachdb/errors stack trace.
type Logger interface {
	// Debug logs detailed diagnostic information.
	Debug(msg string, fields ...any)

	// Info logs general operational information.
	Info(msg string, fields ...any)

	// Warn logs conditions that do not stop the current operation.
	Warn(msg string, fields ...any)

	// Error logs a failure. If the first field is an error it is treated as
	// the error of the record:
	//
	//	logger.Error("Model load failed", err, log.TargetKey, "Severity")
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4 // Detailed diagnostic information
	LevelInfo  Level = 0  // General operational information
	LevelWarn  Level = 4  // Warning conditions
	LevelError Level = 8  // Error conditions
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a configuration string ("debug", "info", "warn",
// "error") into a Level. Unknown strings yield LevelInfo and ok=false.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}
