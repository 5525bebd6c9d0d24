// Package pkg holds helpers shared by the driver packages.
package pkg

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Component identifies a subsystem for log filtering.
type Component string

// Driver component identifiers.
const (
	ComponentUART    Component = "uart"
	ComponentISR     Component = "isr"
	ComponentAccel   Component = "accel"
	ComponentConsole Component = "console"
)

var (
	// DefaultLogger is the logger used when a component has none of its own.
	DefaultLogger *slog.Logger

	logLevel = new(slog.LevelVar)
	logMutex sync.RWMutex
)

func init() {
	logLevel.Set(slog.LevelWarn)
	DefaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

// SetLogLevel sets the minimum level for the default logger.
func SetLogLevel(level slog.Level) {
	logMutex.Lock()
	defer logMutex.Unlock()
	logLevel.Set(level)
}

// GetLogLevel returns the current minimum level.
func GetLogLevel() slog.Level {
	logMutex.RLock()
	defer logMutex.RUnlock()
	return logLevel.Level()
}

// SetLogger replaces the default logger. Loggers handed out by With(nil, ...)
// follow the replacement.
func SetLogger(logger *slog.Logger) {
	logMutex.Lock()
	defer logMutex.Unlock()
	DefaultLogger = logger
}

// NewLogger creates a text logger writing to w. A nil opts uses the shared level.
func NewLogger(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	if opts == nil {
		opts = &slog.HandlerOptions{Level: logLevel}
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Logger returns the current default logger.
func Logger() *slog.Logger {
	logMutex.RLock()
	defer logMutex.RUnlock()
	return DefaultLogger
}

// LogDebug logs a debug message with the given component.
func LogDebug(component Component, msg string, args ...any) {
	Logger().Debug(msg, append([]any{"component", string(component)}, args...)...)
}

// With returns l tagged with component. A nil l follows the default logger,
// looked up on every record.
func With(l *slog.Logger, component Component) *slog.Logger {
	if l == nil {
		l = slog.New(defaultHandler{})
	}
	return l.With("component", string(component))
}

// defaultHandler forwards to the current default logger's handler, replaying
// the attributes and groups added to it.
type defaultHandler struct {
	wrap []func(slog.Handler) slog.Handler
}

func (h defaultHandler) current() slog.Handler {
	d := Logger().Handler()
	for _, w := range h.wrap {
		d = w(d)
	}
	return d
}

func (h defaultHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.current().Enabled(ctx, level)
}

func (h defaultHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.current().Handle(ctx, r)
}

func (h defaultHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.with(func(d slog.Handler) slog.Handler { return d.WithAttrs(attrs) })
}

func (h defaultHandler) WithGroup(name string) slog.Handler {
	return h.with(func(d slog.Handler) slog.Handler { return d.WithGroup(name) })
}

func (h defaultHandler) with(f func(slog.Handler) slog.Handler) slog.Handler {
	return defaultHandler{wrap: append(h.wrap[:len(h.wrap):len(h.wrap)], f)}
}
