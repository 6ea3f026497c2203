// Package logging provides categorized logging for redraft.
// Each category is a named child of one zap logger and can be toggled on its own.
// Until Initialize (or InitializeWithLogger) is called every logger is a no-op.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot       Category = "boot"       // Boot/initialization
	CategoryGate       Category = "gate"       // Execution gate decisions and tokens
	CategoryPerception Category = "perception" // Action classification, source resolution
	CategoryContext    Category = "context"    // Locked context extraction, topic lock checks
	CategoryPrompt     Category = "prompt"     // Constraint injection, instruction building
	CategoryAPI        Category = "api"        // Model calls through the executor
	CategoryTransform  Category = "transform"  // Retry/escalation state machine, fallback
	CategoryStore      Category = "store"      // Conversation state persistence
	CategorySession    Category = "session"    // Per-session pipeline
	CategoryAudit      Category = "audit"      // Structured audit events
)

// AllCategories lists every category in declaration order.
var AllCategories = []Category{
	CategoryBoot, CategoryGate, CategoryPerception, CategoryContext, CategoryPrompt,
	CategoryAPI, CategoryTransform, CategoryStore, CategorySession, CategoryAudit,
}

// Options configures the logging backend. It mirrors config.LoggingConfig
// to avoid an import cycle.
type Options struct {
	Level      string          // debug, info, warn, error
	Format     string          // json, console
	File       string          // optional output file; empty means stderr
	DebugMode  bool            // false = only warn and above are written
	Categories map[string]bool // per-category toggles; missing = enabled
}

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu         sync.RWMutex
	root       = zap.NewNop()
	categories map[string]bool
	loggers    = make(map[Category]*Logger)
)

// Initialize builds the zap backend from opts.
func Initialize(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if strings.EqualFold(opts.Format, "console") || strings.EqualFold(opts.Format, "text") {
		cfg.Encoding = "console"
	}

	level := parseLevel(opts.Level)
	if !opts.DebugMode && level < zapcore.WarnLevel {
		level = zapcore.WarnLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		cfg.OutputPaths = []string{opts.File}
		cfg.ErrorOutputPaths = []string{opts.File}
	}

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	InitializeWithLogger(l, opts.Categories)

	boot := Get(CategoryBoot)
	boot.Info("logging initialized: level=%s format=%s debug_mode=%v", level, cfg.Encoding, opts.DebugMode)
	if len(opts.Categories) > 0 {
		enabled := 0
		for _, on := range opts.Categories {
			if on {
				enabled++
			}
		}
		boot.Debug("enabled categories: %d/%d", enabled, len(opts.Categories))
	}
	return l, nil
}

// InitializeWithLogger installs an already built zap logger, e.g. the CLI's.
func InitializeWithLogger(l *zap.Logger, cats map[string]bool) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	root = l
	categories = cats
	loggers = make(map[Category]*Logger)
}

// Reset returns the package to its no-op state. Used by tests and shutdown.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	_ = root.Sync()
	root = zap.NewNop()
	categories = nil
	loggers = make(map[Category]*Logger)
}

// Sync flushes buffered log entries.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if categories == nil {
		return true
	}
	enabled, exists := categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Disabled categories get a no-op logger.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	base := root
	if !categoryEnabledLocked(category) {
		base = zap.NewNop()
	}
	l := &Logger{
		category: category,
		sugar:    base.Named(string(category)).Sugar(),
	}
	loggers[category] = l
	return l
}

// Zap exposes the structured logger behind a category.
func (l *Logger) Zap() *zap.Logger {
	return l.sugar.Desugar()
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// With returns a logger carrying key-value context on every entry.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }

// Gate logs to the gate category
func Gate(format string, args ...interface{}) { Get(CategoryGate).Info(format, args...) }

// GateDebug logs debug to the gate category
func GateDebug(format string, args ...interface{}) { Get(CategoryGate).Debug(format, args...) }

// GateWarn logs a warning to the gate category
func GateWarn(format string, args ...interface{}) { Get(CategoryGate).Warn(format, args...) }

// Perception logs to the perception category
func Perception(format string, args ...interface{}) { Get(CategoryPerception).Info(format, args...) }

// PerceptionDebug logs debug to the perception category
func PerceptionDebug(format string, args ...interface{}) {
	Get(CategoryPerception).Debug(format, args...)
}

// ContextDebug logs debug to the context category
func ContextDebug(format string, args ...interface{}) { Get(CategoryContext).Debug(format, args...) }

// PromptDebug logs debug to the prompt category
func PromptDebug(format string, args ...interface{}) { Get(CategoryPrompt).Debug(format, args...) }

// API logs to the api category
func API(format string, args ...interface{}) { Get(CategoryAPI).Info(format, args...) }

// APIDebug logs debug to the api category
func APIDebug(format string, args ...interface{}) { Get(CategoryAPI).Debug(format, args...) }

// APIWarn logs a warning to the api category
func APIWarn(format string, args ...interface{}) { Get(CategoryAPI).Warn(format, args...) }

// APIError logs an error to the api category
func APIError(format string, args ...interface{}) { Get(CategoryAPI).Error(format, args...) }

// Transform logs to the transform category
func Transform(format string, args ...interface{}) { Get(CategoryTransform).Info(format, args...) }

// TransformDebug logs debug to the transform category
func TransformDebug(format string, args ...interface{}) {
	Get(CategoryTransform).Debug(format, args...)
}

// TransformWarn logs a warning to the transform category
func TransformWarn(format string, args ...interface{}) {
	Get(CategoryTransform).Warn(format, args...)
}

// Store logs to the store category
func Store(format string, args ...interface{}) { Get(CategoryStore).Info(format, args...) }

// StoreDebug logs debug to the store category
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }

// StoreError logs an error to the store category
func StoreError(format string, args ...interface{}) { Get(CategoryStore).Error(format, args...) }

// Session logs to the session category
func Session(format string, args ...interface{}) { Get(CategorySession).Info(format, args...) }

// SessionDebug logs debug to the session category
func SessionDebug(format string, args ...interface{}) { Get(CategorySession).Debug(format, args...) }

// =============================================================================
// TIMING HELPERS - For performance logging
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
