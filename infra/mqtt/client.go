package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strconv"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	BrokerAddress string      `json:"broker_address"`
	BrokerPort    int         `json:"broker_port"`
	TLSEnabled    bool        `json:"tls_enabled"`
	TLSCAPath     string      `json:"tls_path_to_ca"`
	TLSInsecure   bool        `json:"tls_insecure"`
	Username      string      `json:"username"`
	Password      string      `json:"password"`
	Topic         string      `json:"topic"`
	ClientID      string      `json:"client_id"`
	QoS           byte        `json:"qos"`
	TLSConfig     *tls.Config `json:"-"`
}

// PlaceholderBroker is the value shipped in the sample configuration.
const PlaceholderBroker = "IP_ADDR_OR_FQDN"

// SetDefaults applies the standard MQTT ports.
func (c *Config) SetDefaults() {
	if c.BrokerPort == 0 {
		if c.TLSEnabled {
			c.BrokerPort = 8883
		} else {
			c.BrokerPort = 1883
		}
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.BrokerAddress == "" || c.BrokerAddress == PlaceholderBroker {
		return fmt.Errorf("broker_address must be set to the broker host, got %q", c.BrokerAddress)
	}
	if c.BrokerPort <= 0 || c.BrokerPort > 65535 {
		return fmt.Errorf("broker_port %d out of range", c.BrokerPort)
	}
	if c.Topic == "" {
		return fmt.Errorf("topic is required")
	}
	if c.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2")
	}
	return nil
}

// Address returns host:port of the broker.
func (c Config) Address() string {
	return c.BrokerAddress + ":" + strconv.Itoa(c.BrokerPort)
}

// BrokerURL returns the paho broker URL.
func (c Config) BrokerURL() string {
	scheme := "tcp"
	if c.TLSEnabled {
		scheme = "ssl"
	}
	return scheme + "://" + c.Address()
}

// DefaultClientID builds a unique client id for a device instance.
func DefaultClientID(instance int) string {
	return "MqttSolarCharger_" + uuid.NewString()[:8] + "_" + strconv.Itoa(instance)
}

// NewClientOptions builds mqtt client options from Config. Reconnects are
// left to the caller.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "MqttSolarCharger_" + uuid.NewString()
	}
	opts := paho.NewClientOptions().AddBroker(cfg.BrokerURL()).SetClientID(clientID)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetCleanSession(true)
	if cfg.Username != "" && cfg.Password != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.TLSEnabled {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

// LoadTLSConfig builds the TLS configuration: system roots or the custom CA,
// with hostname verification disabled when TLSInsecure is set.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	cfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: c.TLSInsecure} //nolint:gosec // operator opt-in
	if c.TLSCAPath == "" {
		return cfg, nil
	}
	caBytes, err := os.ReadFile(c.TLSCAPath)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, fmt.Errorf("no certificates found in %s", c.TLSCAPath)
	}
	cfg.RootCAs = pool
	return cfg, nil
}
