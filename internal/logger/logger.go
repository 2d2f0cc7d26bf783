// Package logger provides the shared application logger.
package logger

import (
	"os"
	"sync"

	"github.com/hashicorp/go-hclog"
)

var (
	mu  sync.RWMutex
	log = hclog.New(&hclog.LoggerOptions{
		Name:   "librarian",
		Level:  hclog.Info,
		Output: os.Stderr,
	})
)

// Configure replaces the default logger with one using the given level
// ("debug", "info", "warn", "error"). Unknown levels fall back to info.
func Configure(level string) {
	mu.Lock()
	defer mu.Unlock()

	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		lvl = hclog.Info
	}
	log = hclog.New(&hclog.LoggerOptions{
		Name:   "librarian",
		Level:  lvl,
		Output: os.Stderr,
	})
}

// Named returns a sub-logger for a component.
func Named(name string) hclog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log.Named(name)
}

// Debug logs debug messages as message plus key/value pairs.
func Debug(msg string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	log.Debug(msg, args...)
}

// Info logs informational messages as message plus key/value pairs.
func Info(msg string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	log.Info(msg, args...)
}

// Warn logs warning messages as message plus key/value pairs.
func Warn(msg string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	log.Warn(msg, args...)
}

// Error logs error messages as message plus key/value pairs.
func Error(msg string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	log.Error(msg, args...)
}
