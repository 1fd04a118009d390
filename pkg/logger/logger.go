// Package logger wraps slog with the handful of conveniences the rest
// of the backend needs: a configurable handler, a process-wide default
// and request/session scoping helpers.
package logger

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// Config controls handler construction.
type Config struct {
	Level     string // debug, info, warn or error; anything else means info
	JSON      bool
	Output    io.Writer
	AddSource bool
}

// DefaultConfig logs JSON at info level to stderr.
func DefaultConfig() Config {
	return Config{Level: "info", JSON: true, Output: os.Stderr}
}

// Logger embeds *slog.Logger so call sites use the slog API directly.
type Logger struct {
	*slog.Logger
	config Config
}

var global *Logger

// New builds a logger from cfg. The first logger constructed becomes
// the process default until SetGlobal replaces it.
func New(cfg Config) *Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	l := &Logger{Logger: slog.New(handler), config: cfg}
	if global == nil {
		global = l
	}
	return l
}

// SetGlobal replaces the process default logger.
func SetGlobal(l *Logger) {
	global = l
}

// GetGlobal returns the process default logger.
func GetGlobal() *Logger {
	return global
}

// LogError logs err under msg with any extra attributes appended.
func (l *Logger) LogError(err error, msg string, args ...any) {
	l.Error(msg, append([]any{"error", err.Error()}, args...)...)
}

// WithRequestID returns a logger scoped to one HTTP request.
func (l *Logger) WithRequestID(requestID string) *Logger {
	if requestID == "" {
		return l
	}
	return &Logger{Logger: l.With("request_id", requestID), config: l.config}
}

// WithUserID returns a logger scoped to an authenticated user.
func (l *Logger) WithUserID(userID string) *Logger {
	if userID == "" {
		return l
	}
	return &Logger{Logger: l.With("user_id", userID), config: l.config}
}

// WithSession returns a logger scoped to a chat session.
func (l *Logger) WithSession(sessionID string) *Logger {
	if sessionID == "" {
		return l
	}
	return &Logger{Logger: l.With("session_id", sessionID), config: l.config}
}

// LogRequest records one completed HTTP request.
func (l *Logger) LogRequest(method, path string, status int, latency time.Duration) {
	l.Info("request completed",
		"method", method,
		"path", path,
		"status", status,
		"latency_ms", latency.Milliseconds(),
	)
}
