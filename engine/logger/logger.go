// Package logger holds the engine-wide zap logger. Components take a *zap.Logger through their
// builder options and fall back to Log when none is given.
package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// Log is the engine-wide logger. It discards everything until Init is called.
var Log = zap.NewNop()

// Init replaces Log with a configured zap logger.
//
// Parameters:
//   - development: true for the human-readable development config, false for the JSON production config
//
// Returns:
//   - error: an error if the logger could not be built
func Init(development bool) error {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("logger: build: %w", err)
	}
	Log = l
	return nil
}

// Named returns a child of Log tagged with a component name.
func Named(name string) *zap.Logger {
	return Log.Named(name)
}

// Sync flushes any buffered log entries and ignores the sync error.
func Sync() {
	_ = Log.Sync()
}
