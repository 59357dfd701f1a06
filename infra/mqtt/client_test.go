package mqtt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeCA generates a self-signed certificate and returns its PEM path.
func writeCA(t *testing.T) string {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test-ca"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
		IsCA:         true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o644))
	return path
}

func TestLoadTLSConfigCustomCA(t *testing.T) {
	cfg := Config{TLSEnabled: true, TLSCAPath: writeCA(t), TLSInsecure: true}
	tlsCfg, err := cfg.LoadTLSConfig()
	require.NoError(t, err)
	assert.NotNil(t, tlsCfg.RootCAs)
	assert.True(t, tlsCfg.InsecureSkipVerify)
}

func TestLoadTLSConfigErrors(t *testing.T) {
	_, err := Config{TLSCAPath: filepath.Join(t.TempDir(), "missing.pem")}.LoadTLSConfig()
	assert.Error(t, err)

	garbage := filepath.Join(t.TempDir(), "garbage.pem")
	require.NoError(t, os.WriteFile(garbage, []byte("not a cert"), 0o644))
	_, err = Config{TLSCAPath: garbage}.LoadTLSConfig()
	assert.Error(t, err)
}

func TestDefaultsAndURL(t *testing.T) {
	plain := Config{BrokerAddress: "10.0.0.2"}
	plain.SetDefaults()
	assert.Equal(t, 1883, plain.BrokerPort)
	assert.Equal(t, "tcp://10.0.0.2:1883", plain.BrokerURL())

	secure := Config{BrokerAddress: "broker.example", TLSEnabled: true}
	secure.SetDefaults()
	assert.Equal(t, 8883, secure.BrokerPort)
	assert.Equal(t, "ssl://broker.example:8883", secure.BrokerURL())
}

func TestValidate(t *testing.T) {
	ok := testConfig()
	assert.NoError(t, ok.Validate())

	cases := map[string]func(c *Config){
		"placeholder": func(c *Config) { c.BrokerAddress = PlaceholderBroker },
		"empty host":  func(c *Config) { c.BrokerAddress = "" },
		"port":        func(c *Config) { c.BrokerPort = 70000 },
		"topic":       func(c *Config) { c.Topic = "" },
		"qos":         func(c *Config) { c.QoS = 3 },
	}
	for name, mutate := range cases {
		c := testConfig()
		mutate(&c)
		assert.Error(t, c.Validate(), name)
	}
}

func TestNewClientOptionsAuth(t *testing.T) {
	cfg := testConfig()
	cfg.Username, cfg.Password = "u", "p"
	opts, err := NewClientOptions(cfg)
	require.NoError(t, err)
	assert.Equal(t, "u", opts.Username)
	assert.Equal(t, "p", opts.Password)
	assert.False(t, opts.AutoReconnect)
	assert.Equal(t, "id", opts.ClientID)

	cfg.Password = ""
	opts, err = NewClientOptions(cfg)
	require.NoError(t, err)
	assert.Empty(t, opts.Username)
}

func TestNewClientOptionsTLS(t *testing.T) {
	cfg := testConfig()
	cfg.TLSEnabled = true
	cfg.TLSCAPath = writeCA(t)
	opts, err := NewClientOptions(cfg)
	require.NoError(t, err)
	require.NotNil(t, opts.TLSConfig)
	assert.NotNil(t, opts.TLSConfig.RootCAs)
}

func TestDefaultClientID(t *testing.T) {
	a, b := DefaultClientID(3), DefaultClientID(3)
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^MqttSolarCharger_[0-9a-f]{8}_3$`, a)
}

func TestPublishOnce(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	require.NoError(t, PublishOnce(context.Background(), testConfig(), []byte(`{}`), false))
	require.Len(t, mc.published, 1)
	assert.Equal(t, "solar/charger", mc.published[0].topic)
	assert.Equal(t, "id-simulate", mc.opts.ClientID)
	_, _, disc := mc.counts()
	assert.Equal(t, 1, disc)
}

func TestPublishOnceConnectError(t *testing.T) {
	mc := &mockClient{failConnects: 1}
	useMock(t, mc)
	err := PublishOnce(context.Background(), testConfig(), []byte(`{}`), false)
	assert.ErrorContains(t, err, "broker.local:1883")
}
