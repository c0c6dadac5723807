// Package logging wraps zap with the ledger's field names and a process-wide
// default logger.
package logging

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a wrapper around zap.Logger
type Logger struct {
	*zap.Logger
}

// Config selects level, encoding and sinks.
type Config struct {
	// Level is debug, info, warn or error
	Level string
	// Format is json or console
	Format           string
	OutputPaths      []string
	ErrorOutputPaths []string
	// Development switches to zap's development encoder and makes DPanic panic
	Development bool
	// Caller adds file:line to every entry
	Caller bool
	// Stacktrace attaches stack traces to error entries
	Stacktrace bool
	// Service is attached to every entry when set
	Service string
}

// DefaultConfig is JSON at info level on stdout.
func DefaultConfig() Config {
	return Config{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		Service:          "ledgerd",
	}
}

// ConfigFromEnv starts from DefaultConfig and applies
//
//	LOG_DEV     console output at debug level with caller and stack traces
//	LOG_LEVEL   level name
//	LOG_FORMAT  json or console
//	LOG_OUTPUT  comma separated output paths
//	LOG_SERVICE value of the service field
func ConfigFromEnv() Config {
	config := DefaultConfig()
	if os.Getenv("LOG_DEV") == "true" {
		config.Level = "debug"
		config.Format = "console"
		config.Development = true
		config.Caller = true
		config.Stacktrace = true
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		config.Format = v
	}
	if v := os.Getenv("LOG_OUTPUT"); v != "" {
		config.OutputPaths = strings.Split(v, ",")
	}
	if v := os.Getenv("LOG_SERVICE"); v != "" {
		config.Service = v
	}
	return config
}

func (c Config) zapConfig() (zap.Config, error) {
	level, err := ParseLevel(c.Level)
	if err != nil {
		return zap.Config{}, err
	}

	encoder := zap.NewProductionEncoderConfig()
	if c.Development {
		encoder = zap.NewDevelopmentEncoderConfig()
	}
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder.EncodeDuration = zapcore.StringDurationEncoder

	format := c.Format
	switch format {
	case "":
		format = "json"
	case "json", "console":
	default:
		return zap.Config{}, fmt.Errorf("unknown log format %q", c.Format)
	}

	return zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       c.Development,
		DisableCaller:     !c.Caller,
		DisableStacktrace: !c.Stacktrace,
		Encoding:          format,
		EncoderConfig:     encoder,
		OutputPaths:       c.OutputPaths,
		ErrorOutputPaths:  c.ErrorOutputPaths,
	}, nil
}

// NewLogger builds a logger from config.
func NewLogger(config Config) (*Logger, error) {
	zc, err := config.zapConfig()
	if err != nil {
		return nil, err
	}
	z, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	if config.Service != "" {
		z = z.With(zap.String("service", config.Service))
	}
	return &Logger{z}, nil
}

// NewLoggerFromEnv is NewLogger(ConfigFromEnv()).
func NewLoggerFromEnv() (*Logger, error) {
	return NewLogger(ConfigFromEnv())
}

// NewNoOpLogger creates a logger that discards all logs
func NewNoOpLogger() *Logger {
	return &Logger{zap.NewNop()}
}

// ParseLevel converts a string to a zapcore.Level. Unknown levels are an error
// so a typo in LOG_LEVEL fails startup instead of silently logging at info.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "dpanic":
		return zapcore.DPanicLevel, nil
	case "panic":
		return zapcore.PanicLevel, nil
	case "fatal":
		return zapcore.FatalLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// With creates a child logger with additional fields
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{l.Logger.With(fields...)}
}

// Named creates a child logger with a name
func (l *Logger) Named(name string) *Logger {
	return &Logger{l.Logger.Named(name)}
}

// ForOwner returns a child logger tagged with the owner id.
func (l *Logger) ForOwner(ownerID string) *Logger {
	return l.With(Owner(ownerID))
}

type ctxKey struct{}

// WithContext stores the logger in ctx.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or the global logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return Global()
}

var global atomic.Pointer[Logger]

func init() {
	global.Store(NewNoOpLogger())
}

// SetGlobal sets the global logger instance
func SetGlobal(logger *Logger) {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	global.Store(logger)
}

// Global returns the global logger instance
func Global() *Logger {
	return global.Load()
}
