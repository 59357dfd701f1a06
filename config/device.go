package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/solarcharger/core/charger"
)

// DefaultTimeout applies when device.timeout is not configured.
const DefaultTimeout = 60 * time.Second

// DefaultInstance applies when device.instance is not configured. 0 is a
// valid instance.
const DefaultInstance = 100

// DeviceConfig identifies the exported charger and its staleness limit.
type DeviceConfig struct {
	Instance int    `json:"instance"`
	Name     string `json:"name"`
	// Timeout in seconds; 0 disables the watchdog, unset means 60.
	Timeout     *int `json:"timeout"`
	HistoryDays int  `json:"history_days"`
}

// SetDefaults applies sane defaults.
func (c *DeviceConfig) SetDefaults() {
	if c.Name == "" {
		c.Name = charger.ProductName
	}
}

// Validate checks value ranges.
func (c DeviceConfig) Validate() error {
	if c.Instance < 0 {
		return fmt.Errorf("instance %d is negative", c.Instance)
	}
	if c.Timeout != nil && *c.Timeout < 0 {
		return fmt.Errorf("timeout %d is negative", *c.Timeout)
	}
	if c.HistoryDays < 0 {
		return fmt.Errorf("history_days %d is negative", c.HistoryDays)
	}
	return nil
}

// TimeoutDuration returns the watchdog timeout.
func (c DeviceConfig) TimeoutDuration() time.Duration {
	if c.Timeout == nil {
		return DefaultTimeout
	}
	return time.Duration(*c.Timeout) * time.Second
}
