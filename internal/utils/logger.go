package utils

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogLevel is a textual log level accepted on the command line
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat selects the logrus formatter
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// LoggerConfig configures NewLogger
type LoggerConfig struct {
	Level  LogLevel
	Format LogFormat
	// Output defaults to stderr so report output on stdout stays clean.
	Output io.Writer
}

// Logger wraps a logrus logger with component-scoped helpers
type Logger struct {
	*logrus.Logger
}

// NewLogger creates a logger from config. Unknown levels fall back to info.
func NewLogger(config LoggerConfig) *Logger {
	l := logrus.New()

	out := config.Output
	if out == nil {
		out = os.Stderr
	}
	l.SetOutput(out)

	level, err := logrus.ParseLevel(strings.ToLower(string(config.Level)))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch config.Format {
	case LogFormatJSON:
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return &Logger{Logger: l}
}

// NewDefaultLogger returns an info-level text logger on stderr
func NewDefaultLogger() *Logger {
	return NewLogger(LoggerConfig{Level: LogLevelInfo, Format: LogFormatText})
}

// NewDiscardLogger returns a logger that drops everything, for tests
func NewDiscardLogger() *Logger {
	return NewLogger(LoggerConfig{Level: LogLevelError, Output: io.Discard})
}

// WithComponent tags entries with the emitting component
func (l *Logger) WithComponent(component string) *logrus.Entry {
	return l.WithField("component", component)
}

type loggerKey struct{}

// WithLogger stores logger in ctx
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFromContext returns the logger stored by WithLogger, or nil
func LoggerFromContext(ctx context.Context) *Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(loggerKey{}).(*Logger)
	return logger
}
