package log

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"time"
)

const (
	levelMaxVerbosity slog.Level = math.MinInt
	LevelTrace        slog.Level = -8
	LevelDebug                   = slog.LevelDebug
	LevelInfo                    = slog.LevelInfo
	LevelWarn                    = slog.LevelWarn
	LevelError                   = slog.LevelError
)

func levelName(l slog.Level) string {
	switch {
	case l <= LevelTrace:
		return "TRACE"
	case l <= LevelDebug:
		return "DEBUG"
	case l <= LevelInfo:
		return "INFO "
	case l <= LevelWarn:
		return "WARN "
	default:
		return "ERROR"
	}
}

// Logger tags every record with a module and the fields it was built with.
// A run logger carries the run id so records of concurrent runs can be told
// apart.
type Logger struct {
	inner *slog.Logger
}

func NewLogger(h slog.Handler) *Logger {
	return &Logger{inner: slog.New(h)}
}

// With returns a logger that adds kv to every record.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{inner: l.inner.With(kv...)}
}

// ForRun scopes l to one witness generation run.
func (l *Logger) ForRun(runID string) *Logger {
	return l.With("run", runID)
}

func (l *Logger) Enabled(level slog.Level) bool {
	return l.inner.Enabled(context.Background(), level)
}

func (l *Logger) Handler() slog.Handler {
	return l.inner.Handler()
}

// write emits msg for module. It must be called directly by the exported
// logging function so the source frame is the code that logged.
func (l *Logger) write(level slog.Level, module string, msg string, kv ...any) {
	if !l.Enabled(level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	if module != "" {
		r.Add("module", module)
	}
	r.Add(kv...)
	_ = l.inner.Handler().Handle(context.Background(), r)
}

// Module-filtered levels drop the record unless module is enabled.

func (l *Logger) Trace(module string, msg string, kv ...any) {
	if isModuleEnabled(module) {
		l.write(LevelTrace, module, msg, kv...)
	}
}

func (l *Logger) Debug(module string, msg string, kv ...any) {
	if isModuleEnabled(module) {
		l.write(LevelDebug, module, msg, kv...)
	}
}

func (l *Logger) Info(module string, msg string, kv ...any) {
	l.write(LevelInfo, module, msg, kv...)
}

func (l *Logger) Warn(module string, msg string, kv ...any) {
	l.write(LevelWarn, module, msg, kv...)
}

func (l *Logger) Error(module string, msg string, kv ...any) {
	l.write(LevelError, module, msg, kv...)
}
