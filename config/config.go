// Package config loads the bridge configuration from a YAML or JSON file
// with SOLAR_ environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/solarcharger/core/metrics"
	"github.com/kilianp07/solarcharger/infra/mqtt"
)

// EnvPrefix marks environment overrides: SOLAR_MQTT__BROKER_ADDRESS sets
// mqtt.broker_address. Overrides may also come from a .env file in the
// config file's directory.
const EnvPrefix = "SOLAR_"

type Config struct {
	MQTT    mqtt.Config    `json:"mqtt"`
	Device  DeviceConfig   `json:"device"`
	Logging LoggingConfig  `json:"logging"`
	DBus    DBusConfig     `json:"dbus"`
	Metrics metrics.Config `json:"metrics"`
}

// ConfigurationError reports a missing or unusable configuration. It is
// fatal at startup.
type ConfigurationError struct {
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	if e.Path == "" {
		return "configuration: " + e.Err.Error()
	}
	return fmt.Sprintf("configuration %s: %v", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// IsConfigurationError reports whether err stems from the configuration.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// Load reads, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}
	return cfg, nil
}

func load(path string) (*Config, error) {
	k := koanf.New(".")
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file not found, copy config.sample.yaml to %s: %w", filepath.Base(path), err)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// a .env next to the config file feeds the environment overrides;
	// variables already set win
	envFile := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	// keys absent from file and env keep these values
	cfg := Config{Device: DeviceConfig{Instance: DefaultInstance}}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills unset optional values.
func (c *Config) SetDefaults() {
	c.MQTT.SetDefaults()
	c.Device.SetDefaults()
	c.Logging.SetDefaults()
	c.DBus.SetDefaults()
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = mqtt.DefaultClientID(c.Device.Instance)
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.MQTT.Validate(); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if err := c.Device.Validate(); err != nil {
		return fmt.Errorf("device: %w", err)
	}
	if err := c.DBus.Validate(); err != nil {
		return fmt.Errorf("dbus: %w", err)
	}
	return nil
}
