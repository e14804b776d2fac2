// Package log holds the process-wide zap logger. Packages that log take a
// *zap.SugaredLogger in their constructor; only main wires this one in.
package log

import (
	"fmt"

	"go.uber.org/zap"
)

var sugared *zap.SugaredLogger

// Init builds the logger. Debug mode uses zap's development config with
// debug level and console output; otherwise production JSON at info level.
func Init(debug bool) error {
	var logger *zap.Logger
	var err error

	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %w", err)
	}

	sugared = logger.Sugar()
	return nil
}

// GetSugaredLogger returns the logger, falling back to a production logger
// when Init was not called
func GetSugaredLogger() *zap.SugaredLogger {
	if sugared == nil {
		logger, err := zap.NewProduction()
		if err != nil {
			return zap.NewNop().Sugar()
		}
		sugared = logger.Sugar()
	}
	return sugared
}

// Named returns a child logger tagged with a component name
func Named(component string) *zap.SugaredLogger {
	return GetSugaredLogger().Named(component)
}

// Sync flushes any buffered log entries
func Sync() {
	if sugared != nil {
		_ = sugared.Sync()
	}
}
