// Package logging provides named structured loggers shared across the
// engine's subsystems, built on ipfs/go-log/v2 so per-subsystem verbosity
// (including libp2p's own) can be tuned from one place.
package logging

import (
	logging "github.com/ipfs/go-log/v2"
)

// Logger returns a named logger for the given subsystem (e.g. "group",
// "keyreset", "store"). Loggers are process-wide singletons per name.
func Logger(name string) *logging.ZapEventLogger {
	return logging.Logger(name)
}

// SetLevel adjusts the verbosity of a previously-created subsystem logger.
// Valid levels: "debug", "info", "warn", "error".
func SetLevel(name, level string) error {
	return logging.SetLogLevel(name, level)
}

// SetAllLevels adjusts every registered subsystem at once.
func SetAllLevels(level string) {
	logging.SetAllLoggers(parseLevel(level))
}

func parseLevel(level string) logging.LogLevel {
	lvl, err := logging.LevelFromString(level)
	if err != nil {
		return logging.LevelInfo
	}
	return lvl
}
