// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days

	// Out receives console output; nil means stderr so that command output
	// on stdout stays machine readable.
	Out io.Writer
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       false,
		FilePath:   filepath.Join(home, ".config", "options-lab", "logs", "optlab.log"),
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a logger writing to the console, a rotating
// file, or both.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:         out,
			NoColor:     color.NoColor,
			TimeFormat:  time.TimeOnly,
			FormatLevel: formatLevel,
		})
	}
	if cfg.File && cfg.FilePath != "" {
		if w := rotatingFile(cfg); w != nil {
			writers = append(writers, w)
		}
	}

	var writer io.Writer = out
	if len(writers) == 1 {
		writer = writers[0]
	} else if len(writers) > 1 {
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	return zerolog.New(writer).With().Timestamp().Caller().Logger()
}

// rotatingFile returns nil when the log directory cannot be created.
func rotatingFile(cfg LogConfig) io.Writer {
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil
	}
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   true,
	}
}

var levelColors = map[string]*color.Color{
	zerolog.LevelDebugValue: color.New(color.FgCyan),
	zerolog.LevelInfoValue:  color.New(color.FgGreen),
	zerolog.LevelWarnValue:  color.New(color.FgYellow),
	zerolog.LevelErrorValue: color.New(color.FgRed),
}

func formatLevel(i interface{}) string {
	name, _ := i.(string)
	label := strings.ToUpper(name)
	if len(label) > 3 {
		label = label[:3]
	}
	if c, ok := levelColors[name]; ok {
		return c.Sprint(label)
	}
	return label
}

// ParseLevel maps a config level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	name := strings.ToLower(strings.TrimSpace(level))
	if name == "warning" {
		name = zerolog.LevelWarnValue
	}
	l, err := zerolog.ParseLevel(name)
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

type contextKey struct{}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored by WithLogger, or a no-op logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithTemplate adds a strategy template ID to the logger context.
func WithTemplate(logger zerolog.Logger, id string) zerolog.Logger {
	return logger.With().Str("template", id).Logger()
}

// WithOperation adds an operation name to the logger context.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// WithRequestID adds a request ID to the logger context.
func WithRequestID(logger zerolog.Logger, id string) zerolog.Logger {
	return logger.With().Str("request_id", id).Logger()
}

// LogEvaluation logs one engine evaluation.
func LogEvaluation(logger zerolog.Logger, kind string, legs int, spot float64, duration time.Duration) {
	logger.Debug().
		Str("event", "evaluation").
		Str("kind", kind).
		Int("legs", legs).
		Float64("spot", spot).
		Dur("duration", duration).
		Msg("Evaluation completed")
}

// LogScan logs the outcome of a template scan.
func LogScan(logger zerolog.Logger, templates, failed int, duration time.Duration) {
	logger.Info().
		Str("event", "scan").
		Int("templates", templates).
		Int("failed", failed).
		Dur("duration", duration).
		Msg("Template scan completed")
}

// LogRequest logs an HTTP request.
func LogRequest(logger zerolog.Logger, method, path string, status int, duration time.Duration, err error) {
	event := logger.Info()
	if status >= 500 {
		event = logger.Error()
	} else if status >= 400 {
		event = logger.Warn()
	}
	event = event.
		Str("event", "http_request").
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Dur("duration", duration)

	if err != nil {
		event.Err(err).Msg("Request failed")
	} else {
		event.Msg("Request completed")
	}
}
