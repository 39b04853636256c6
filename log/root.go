package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	SorterMonitoring     = "sort_mod"  // storage access reconciliation
	QueueMonitoring      = "queue_mod" // authenticated queues
	DemuxMonitoring      = "demux_mod" // log demultiplexer
	ChunkerMonitoring    = "chunk_mod" // batch chunker
	PrecompileMonitoring = "pc_mod"    // resource round processors
	WitnessMonitoring    = "wit_mod"   // pipeline
	StorageMonitoring    = "store_mod" // witness store
)

var knownModules = []string{SorterMonitoring, QueueMonitoring, DemuxMonitoring, ChunkerMonitoring, PrecompileMonitoring, WitnessMonitoring, StorageMonitoring}

var root atomic.Pointer[Logger]

func init() {
	root.Store(NewLogger(DiscardHandler()))
}

func ParseLevel(lvl string) (slog.Level, error) {
	switch strings.ToUpper(lvl) {
	case "MAX", "MAXVERBOSITY":
		return levelMaxVerbosity, nil
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	default:
		return 0, fmt.Errorf("invalid level: %s", lvl)
	}
}

// InitLogger installs a terminal logger on stderr.
func InitLogger(logLevel string) error {
	return InitLoggerFormat(os.Stderr, logLevel, "text")
}

// InitLoggerFormat installs a logger writing text or json records to w. At
// debug level and below every module is enabled.
func InitLoggerFormat(w io.Writer, logLevel string, format string) error {
	lvl, err := ParseLevel(logLevel)
	if err != nil {
		return err
	}
	var h slog.Handler
	switch format {
	case "", "text":
		h = NewTerminalHandlerWithLevel(w, lvl, false)
	case "json":
		h = NewJSONHandlerWithLevel(w, lvl)
	default:
		return fmt.Errorf("invalid log format: %s", format)
	}
	SetDefault(NewLogger(h))
	if lvl <= LevelDebug {
		EnableModules("all")
	}
	return nil
}

// SetDefault replaces the root logger.
func SetDefault(l *Logger) {
	root.Store(l)
	slog.SetDefault(l.inner)
}

func Root() *Logger {
	return root.Load()
}

var (
	moduleMu      sync.RWMutex
	moduleEnabled = make(map[string]bool)
)

func EnableModule(module string) {
	moduleMu.Lock()
	moduleEnabled[module] = true
	moduleMu.Unlock()
}

// EnableModules enables a comma separated list of modules; "all" enables
// every known module.
func EnableModules(modules string) {
	for _, m := range strings.Split(modules, ",") {
		m = strings.TrimSpace(m)
		switch m {
		case "":
		case "all":
			for _, k := range knownModules {
				EnableModule(k)
			}
		default:
			EnableModule(m)
		}
	}
}

func DisableModule(module string) {
	moduleMu.Lock()
	moduleEnabled[module] = false
	moduleMu.Unlock()
}

func isModuleEnabled(module string) bool {
	moduleMu.RLock()
	defer moduleMu.RUnlock()
	return moduleEnabled[module]
}

// Trace and Debug are dropped unless module is enabled.
func Trace(module string, msg string, kv ...any) {
	if isModuleEnabled(module) {
		Root().write(LevelTrace, module, msg, kv...)
	}
}

func Debug(module string, msg string, kv ...any) {
	if isModuleEnabled(module) {
		Root().write(LevelDebug, module, msg, kv...)
	}
}

func Info(module string, msg string, kv ...any) {
	Root().write(LevelInfo, module, msg, kv...)
}

func Warn(module string, msg string, kv ...any) {
	Root().write(LevelWarn, module, msg, kv...)
}

func Error(module string, msg string, kv ...any) {
	Root().write(LevelError, module, msg, kv...)
}
