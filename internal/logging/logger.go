// Package logging provides config-driven categorized logging for forge.
// Every category logger is a named child of one zap logger, so a single
// Initialize call decides format, level and destination for the whole process.
// When debug mode is off and no file is configured, only warnings and errors
// reach stderr.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	// Core system categories
	CategoryBoot    Category = "boot"    // Boot/initialization
	CategorySession Category = "session" // Session memory, archive hand-off
	CategoryMetrics Category = "metrics" // Metric instrument setup

	// Generation categories
	CategoryPerception   Category = "perception"   // Generator calls
	CategoryArticulation Category = "articulation" // Artifact stream parsing

	// Loop categories
	CategoryPlanner      Category = "planner"      // Plan selection
	CategorySkills       Category = "skills"       // Skill dispatch and results
	CategoryOrchestrator Category = "orchestrator" // Loop state transitions
	CategoryLedger       Category = "ledger"       // Negotiation ledger writes

	// Analysis categories
	CategoryWorld    Category = "world"    // Implementation model (tree-sitter)
	CategoryAnalysis Category = "analysis" // Consistency analyzers
	CategoryStore    Category = "store"    // Session archive
)

// Config mirrors config.LoggingConfig to avoid an import cycle.
type Config struct {
	DebugMode  bool
	Level      string
	JSONFormat bool
	File       string
	Categories map[string]bool
}

// Logger is a category-scoped printf-style facade over zap.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu       sync.RWMutex
	base     = defaultBase()
	cfg      Config
	loggers  = make(map[Category]*Logger)
	closeLog func() error
)

func defaultBase() *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		zapcore.WarnLevel,
	)
	return zap.New(core)
}

// Initialize builds the process logger from c. Safe to call more than once;
// later calls replace earlier ones.
func Initialize(c Config) error {
	zcfg := zap.NewProductionConfig()
	zcfg.Encoding = "console"
	if c.JSONFormat {
		zcfg.Encoding = "json"
	}
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.DisableStacktrace = true
	zcfg.Sampling = nil

	level := zapcore.WarnLevel
	if c.DebugMode || c.File != "" {
		parsed, err := zapcore.ParseLevel(orDefault(c.Level, "info"))
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", c.Level, err)
		}
		level = parsed
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	zcfg.OutputPaths = []string{"stderr"}
	if c.File != "" {
		if err := os.MkdirAll(filepath.Dir(c.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		zcfg.OutputPaths = []string{c.File}
	}

	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	mu.Lock()
	base = logger
	cfg = c
	loggers = make(map[Category]*Logger)
	closeLog = logger.Sync
	mu.Unlock()

	boot := Get(CategoryBoot)
	boot.Debug("logging initialized level=%s json=%v file=%q", level, c.JSONFormat, c.File)
	if len(c.Categories) > 0 {
		enabled := 0
		for _, on := range c.Categories {
			if on {
				enabled++
			}
		}
		boot.Debug("enabled categories: %d/%d", enabled, len(c.Categories))
	}
	return nil
}

// UseLogger swaps the underlying zap logger. Tests pass zap.NewNop() or an
// observer core here.
func UseLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
	cfg = Config{DebugMode: true}
	loggers = make(map[Category]*Logger)
	closeLog = nil
}

// Sync flushes buffered entries.
func Sync() {
	mu.RLock()
	fn := closeLog
	mu.RUnlock()
	if fn != nil {
		_ = fn()
	}
}

// IsDebugMode returns whether debug logging is enabled
func IsDebugMode() bool {
	mu.RLock()
	defer mu.RUnlock()
	return cfg.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled. Categories
// not named in the config are enabled.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if cfg.Categories == nil {
		return true
	}
	enabled, exists := cfg.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) the logger for a category. Disabled categories get
// a no-op logger.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}

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
	l := &Logger{category: category, sugar: base.Named(string(category)).Sugar()}
	loggers[category] = l
	return l
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) { l.sugar.Infof(format, args...) }

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) { l.sugar.Warnf(format, args...) }

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// With returns a logger that attaches key/value pairs to every entry.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Category returns the logger's category.
func (l *Logger) Category() Category { return l.category }

// =============================================================================
// CONVENIENCE FUNCTIONS
// =============================================================================

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }
func BootWarn(format string, args ...interface{})  { Get(CategoryBoot).Warn(format, args...) }

func Skills(format string, args ...interface{})      { Get(CategorySkills).Info(format, args...) }
func SkillsDebug(format string, args ...interface{}) { Get(CategorySkills).Debug(format, args...) }
func SkillsWarn(format string, args ...interface{})  { Get(CategorySkills).Warn(format, args...) }

func Orchestrator(format string, args ...interface{}) {
	Get(CategoryOrchestrator).Info(format, args...)
}
func OrchestratorDebug(format string, args ...interface{}) {
	Get(CategoryOrchestrator).Debug(format, args...)
}

func AnalysisDebug(format string, args ...interface{}) { Get(CategoryAnalysis).Debug(format, args...) }
func AnalysisWarn(format string, args ...interface{})  { Get(CategoryAnalysis).Warn(format, args...) }

// =============================================================================
// TIMING
// =============================================================================

// Timer measures an operation and logs its duration on Stop.
type Timer struct {
	category  Category
	operation string
	start     time.Time
}

// StartTimer begins timing operation under category.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, operation: operation, start: time.Now()}
}

// Stop logs the elapsed time at debug level and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.operation, elapsed)
	return elapsed
}

// StopWithThreshold logs at warn level when elapsed exceeds threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s slow: %v (threshold %v)", t.operation, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.operation, elapsed)
	}
	return elapsed
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
