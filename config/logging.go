package config

import (
	"fmt"

	corelogger "github.com/kilianp07/solarcharger/core/logger"
)

// LoggingConfig selects the log verbosity.
type LoggingConfig struct {
	// Level is one of ERROR, WARNING, INFO or DEBUG. Anything else means
	// WARNING.
	Level string `json:"level"`
}

// SetDefaults normalizes the level name.
func (c *LoggingConfig) SetDefaults() {
	c.Level = corelogger.ParseLevel(c.Level).String()
}

// DBusConfig selects the message bus the device is exported on.
type DBusConfig struct {
	Bus string `json:"bus"`
}

// SetDefaults applies sane defaults.
func (c *DBusConfig) SetDefaults() {
	if c.Bus == "" {
		c.Bus = "system"
	}
}

// Validate checks the bus name.
func (c DBusConfig) Validate() error {
	if c.Bus != "system" && c.Bus != "session" {
		return fmt.Errorf("unknown bus %s", c.Bus)
	}
	return nil
}
