package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// Logger wraps slog.Logger with additional context and structured logging
type Logger struct {
	*slog.Logger
	component string
}

// Config holds logger configuration
type Config struct {
	Level     slog.Level
	Component string
	// File receives JSON records in addition to the text records on stdout. Empty means
	// stdout only.
	File    string
	Handler slog.Handler
}

// DefaultConfig returns sensible defaults for logging
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Component: ComponentApp,
	}
}

// ParseLevel maps debug, info, warn and error to their slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// New creates a new logger with the given configuration. The returned cleanup closes
// the log file, if any.
func New(config Config) (*Logger, func() error) {
	if config.Handler != nil {
		return &Logger{Logger: slog.New(config.Handler), component: config.Component}, noop
	}

	stdout := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: config.Level})
	if config.File == "" {
		return &Logger{Logger: slog.New(stdout), component: config.Component}, noop
	}

	file, err := os.OpenFile(config.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		// Fall back to stdout only if the file cannot be opened
		logger := slog.New(stdout)
		logger.Error("Failed to open log file, using stdout only", FieldError, err, "file", config.File)
		return &Logger{Logger: logger, component: config.Component}, noop
	}

	return &Logger{
		Logger:    slog.New(fanout(stdout, file, config.Level)),
		component: config.Component,
	}, file.Close
}

// NewWithWriters builds a fan-out logger over custom writers: text to console and JSON
// to file.
func NewWithWriters(console, file io.Writer, level slog.Level, component string) *Logger {
	text := slog.NewTextHandler(console, &slog.HandlerOptions{Level: level})
	return &Logger{Logger: slog.New(fanout(text, file, level)), component: component}
}

func fanout(text slog.Handler, file io.Writer, level slog.Level) slog.Handler {
	return slogmulti.Fanout(text, slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}))
}

func noop() error { return nil }

// With returns a new logger with the given attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(args...),
		component: l.component,
	}
}

// WithComponent returns a new logger with a specific component name
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger:    l.Logger,
		component: component,
	}
}

// InfoContext logs at Info level with context and component
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.Logger.InfoContext(ctx, msg, l.withComponent(args)...)
}

// WarnContext logs at Warn level with context and component
func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.Logger.WarnContext(ctx, msg, l.withComponent(args)...)
}

// ErrorContext logs at Error level with context and component
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.Logger.ErrorContext(ctx, msg, l.withComponent(args)...)
}

// DebugContext logs at Debug level with context and component
func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.Logger.DebugContext(ctx, msg, l.withComponent(args)...)
}

func (l *Logger) withComponent(args []any) []any {
	return append([]any{FieldComponent, l.component}, args...)
}

// SetDefault sets the default logger for the application
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}

// Component returns the logger's component name
func (l *Logger) Component() string {
	return l.component
}
