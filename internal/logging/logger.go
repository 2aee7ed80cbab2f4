// Package logging provides categorized file-based debug logging for spoon.
// Logs are written to <state dir>/logs with one file per category. Logging
// is a silent no-op unless debug mode is enabled at initialization, so the
// hot path costs one flag check in production.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/system.
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup and configuration
	CategorySession   Category = "session"   // Session lifecycle, turn history
	CategoryPlanner   Category = "planner"   // Plan prompts, parsing, fallback
	CategoryAssembler Category = "assembler" // Context assembly, truncation
	CategoryResponder Category = "responder" // Answer generation, citations
	CategoryProvider  Category = "provider"  // Corpus listing and fetches
	CategoryStore     Category = "store"     // Turn store operations
	CategoryAPI       Category = "api"       // LLM API calls
)

// Logger writes to one category's log file.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	enabled   bool
)

// Initialize sets up the logging directory. When debug is false this is a
// no-op and every logging call after it is too.
func Initialize(stateDir string, debug bool) error {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	enabled = debug
	if !debug {
		return nil
	}
	if stateDir == "" {
		return fmt.Errorf("state dir required for debug logging")
	}

	logsDir = filepath.Join(stateDir, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}
	return nil
}

// Enabled reports whether debug logging is active.
func Enabled() bool {
	loggersMu.RLock()
	defer loggersMu.RUnlock()
	return enabled
}

// Get returns the logger for a category, creating it on first use.
func Get(cat Category) *Logger {
	loggersMu.RLock()
	if !enabled {
		loggersMu.RUnlock()
		return &Logger{category: cat}
	}
	if l, ok := loggers[cat]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[cat]; ok {
		return l
	}

	path := filepath.Join(logsDir, string(cat)+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		// Degrade to a discarding logger rather than failing the caller.
		return &Logger{category: cat}
	}
	l := &Logger{
		category: cat,
		logger:   log.New(f, "", 0),
		file:     f,
	}
	loggers[cat] = l
	return l
}

// Close flushes and closes all open log files. Call once at shutdown.
func Close() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			_ = l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

func (l *Logger) write(level, format string, args ...interface{}) {
	if l == nil || l.logger == nil {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	l.logger.Printf("%s [%s] %s", ts, level, fmt.Sprintf(format, args...))
}

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...interface{}) { l.write("DEBUG", format, args...) }

// Info logs at info level.
func (l *Logger) Info(format string, args ...interface{}) { l.write("INFO", format, args...) }

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...interface{}) { l.write("WARN", format, args...) }

// Error logs at error level.
func (l *Logger) Error(format string, args ...interface{}) { l.write("ERROR", format, args...) }

// =============================================================================
// Package-level helpers, one pair per hot category
// =============================================================================

func Session(format string, args ...interface{})        { Get(CategorySession).Info(format, args...) }
func SessionDebug(format string, args ...interface{})   { Get(CategorySession).Debug(format, args...) }
func Planner(format string, args ...interface{})        { Get(CategoryPlanner).Info(format, args...) }
func PlannerDebug(format string, args ...interface{})   { Get(CategoryPlanner).Debug(format, args...) }
func Assembler(format string, args ...interface{})      { Get(CategoryAssembler).Info(format, args...) }
func AssemblerDebug(format string, args ...interface{}) { Get(CategoryAssembler).Debug(format, args...) }
func Responder(format string, args ...interface{})      { Get(CategoryResponder).Info(format, args...) }
func ResponderDebug(format string, args ...interface{}) { Get(CategoryResponder).Debug(format, args...) }
func Provider(format string, args ...interface{})       { Get(CategoryProvider).Info(format, args...) }
func ProviderDebug(format string, args ...interface{})  { Get(CategoryProvider).Debug(format, args...) }
func Store(format string, args ...interface{})          { Get(CategoryStore).Info(format, args...) }
func StoreDebug(format string, args ...interface{})     { Get(CategoryStore).Debug(format, args...) }
func API(format string, args ...interface{})            { Get(CategoryAPI).Info(format, args...) }
func APIDebug(format string, args ...interface{})       { Get(CategoryAPI).Debug(format, args...) }

// =============================================================================
// Timers
// =============================================================================

// Timer measures an operation's duration for a category.
type Timer struct {
	category  Category
	operation string
	start     time.Time
}

// StartTimer begins timing an operation.
func StartTimer(cat Category, operation string) *Timer {
	return &Timer{category: cat, operation: operation, start: time.Now()}
}

// Stop logs the elapsed time, flagging slow operations.
func (t *Timer) Stop() {
	elapsed := time.Since(t.start)
	l := Get(t.category)
	if elapsed > time.Second {
		l.Warn("%s took %v (slow)", t.operation, elapsed)
		return
	}
	l.Debug("%s took %v", t.operation, elapsed)
}
