// Package logging provides centralized logging functionality for the application.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug for detailed troubleshooting information.
	LevelDebug LogLevel = "debug"
	// LevelInfo for general operational information.
	LevelInfo LogLevel = "info"
	// LevelWarn for potentially harmful situations.
	LevelWarn LogLevel = "warn"
	// LevelError for error events that might still allow the application to continue.
	LevelError LogLevel = "error"
)

// Format selects the log handler.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Options configure the default logger.
type Options struct {
	Level  LogLevel
	Format Format

	// File, when set, receives a copy of every log line
	File string
}

// defaultLogger holds the default logger instance. It is swapped atomically
// so that With may run while other goroutines log.
var defaultLogger atomic.Pointer[slog.Logger]

// init initializes the default logger.
func init() {
	SetupLogger(os.Stderr, OptionsFromEnv().Level)
}

// OptionsFromEnv reads LOG_LEVEL, LOG_FORMAT and LOG_FILE.
func OptionsFromEnv() Options {
	level := strings.ToLower(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = string(LevelInfo)
	}

	format := Format(strings.ToLower(os.Getenv("LOG_FORMAT")))
	if format == "" {
		format = FormatText
	}

	return Options{
		Level:  LogLevel(level),
		Format: format,
		File:   os.Getenv("LOG_FILE"),
	}
}

func parseLevel(level LogLevel) slog.Level {
	switch LogLevel(strings.ToLower(string(level))) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setDefault(handler slog.Handler) {
	logger := slog.New(handler)
	defaultLogger.Store(logger)
	slog.SetDefault(logger)
}

// SetupLogger configures the logger with the specified output and level.
func SetupLogger(w io.Writer, level LogLevel) {
	setDefault(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(level)}))
}

// Configure sets up the default logger from opts, writing to w and, if
// opts.File is set, to that file too. The returned closer closes the file.
func Configure(w io.Writer, opts Options) (io.Closer, error) {
	var closer io.Closer = nopCloser{}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = io.MultiWriter(w, file)
		closer = file
	}

	handlerOpts := &slog.HandlerOptions{Level: parseLevel(opts.Level)}
	switch Format(strings.ToLower(string(opts.Format))) {
	case FormatJSON:
		setDefault(slog.NewJSONHandler(w, handlerOpts))
	case FormatText, "":
		setDefault(slog.NewTextHandler(w, handlerOpts))
	default:
		closer.Close()
		return nil, fmt.Errorf("unknown log format %q (expected %q or %q)", opts.Format, FormatText, FormatJSON)
	}

	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// With adds attributes to every subsequent log line until the returned
// function is called. Calls must be restored in reverse order; overlapping
// With scopes from different goroutines overwrite each other's attributes.
func With(args ...any) (restore func()) {
	previous := defaultLogger.Load()
	defaultLogger.Store(previous.With(args...))
	return func() {
		defaultLogger.Store(previous)
	}
}

// Debug logs a message at debug level.
func Debug(msg string, args ...any) {
	defaultLogger.Load().Debug(msg, args...)
}

// Info logs a message at info level.
func Info(msg string, args ...any) {
	defaultLogger.Load().Info(msg, args...)
}

// Warn logs a message at warn level.
func Warn(msg string, args ...any) {
	defaultLogger.Load().Warn(msg, args...)
}

// Error logs a message at error level.
func Error(msg string, args ...any) {
	defaultLogger.Load().Error(msg, args...)
}

// GetLogger returns the default logger.
func GetLogger() *slog.Logger {
	return defaultLogger.Load()
}

// MaskSensitive masks sensitive data for logging.
func MaskSensitive(value string) string {
	if value == "" {
		return "<not set>"
	}
	if len(value) <= 4 {
		return "<set>"
	}
	return value[:4] + "..." + strings.Repeat("*", 3)
}
