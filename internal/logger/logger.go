package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Environment names that pick log format in New
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	With(args ...any) Logger
	WithGroup(name string) Logger
}

// New picks JSON output for production and human readable text otherwise
func New(env string, level string) (Logger, error) {
	if env == EnvProduction {
		return NewJSONLogger(level)
	}
	return NewTextLogger(level)
}

// Text logger writing to stderr
func NewTextLogger(level string) (Logger, error) {
	opts, err := handlerOptions(level)
	if err != nil {
		return nil, err
	}
	return newLogger(slog.NewTextHandler(os.Stderr, opts)), nil
}

// JSON logger writing to stderr
func NewJSONLogger(level string) (Logger, error) {
	opts, err := handlerOptions(level)
	if err != nil {
		return nil, err
	}
	return newLogger(slog.NewJSONHandler(os.Stderr, opts)), nil
}

// NewNoOpLogger creates a logger that discards all log messages
func NewNoOpLogger() Logger {
	return newLogger(slog.NewTextHandler(io.Discard, nil))
}

func handlerOptions(level string) (*slog.HandlerOptions, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("can't create logger: %w", err)
	}

	return &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   true,
		ReplaceAttr: replace,
	}, nil
}
