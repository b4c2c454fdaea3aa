// Package obslog provides structured logging for the inference core.
//
// It wraps Go's log/slog package to give every component — CRPs, relations,
// IRMs, HIRMs, GenDB, the Gibbs driver — a consistent, structured logger.
//
// Usage:
//
//	obslog.Init(obslog.Config{Level: "info", Format: "json"})
//	log := obslog.GetLogger("irm")
//	log.Debug("table created", "domain", d.Name, "table", t)
package obslog

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string
	// Format is the output format: console, json.
	Format string
	// Output is the output destination: stderr, stdout, or a file path.
	Output string
}

var (
	defaultLogger *slog.Logger
	loggerMu      sync.RWMutex
)

func init() {
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// Init initializes the global logger with the given configuration. Should
// be called once at process startup, before any component calls GetLogger.
func Init(cfg Config) {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		output = os.Stdout
	case "", "stderr":
		output = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			output = os.Stderr
		} else {
			output = f
		}
	}

	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	defaultLogger = slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetLogger returns a logger for the named component. The component name
// is attached as a structured field on every entry.
func GetLogger(component string) *Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return &Logger{slog: defaultLogger.With("component", component)}
}

// Logger wraps slog.Logger with the small set of methods the core uses.
type Logger struct {
	slog *slog.Logger
}

// With returns a new Logger with the given attributes added.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...)}
}

func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// Sweep logs the end of one Gibbs sweep with its timing, matching the
// request/response timing convention the driver uses throughout.
func (l *Logger) Sweep(phase string, durationMS float64, args ...any) {
	allArgs := append([]any{"phase", phase, "duration_ms", durationMS}, args...)
	l.slog.Info("sweep", allArgs...)
}
