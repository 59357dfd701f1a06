package logger

import corelogger "github.com/kilianp07/solarcharger/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)         {}
func (NopLogger) Debugw(string, map[string]any) {}
func (NopLogger) Infof(string, ...any)          {}
func (NopLogger) Warnf(string, ...any)          {}
func (NopLogger) Errorf(string, ...any)         {}

// New returns a Logger tagged with the given component.
func New(component string) Logger {
	return NewZerologLogger(component)
}

// Configure applies the configured level name (ERROR, WARNING, INFO, DEBUG).
func Configure(level string) corelogger.Level {
	l := corelogger.ParseLevel(level)
	SetLevel(l)
	return l
}
