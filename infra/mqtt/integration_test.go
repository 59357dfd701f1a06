package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/solarcharger/test/util"
)

// TestIntegration round-trips a payload through a real Mosquitto broker.
func TestIntegration(t *testing.T) {
	if testing.Short() || !util.DockerAvailable() {
		t.Skip("docker not available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	host, port, cleanup, err := util.StartMosquitto(ctx)
	require.NoError(t, err)
	defer cleanup()

	cfg := Config{BrokerAddress: host, BrokerPort: port, Topic: "solar/it", QoS: 1}
	s, err := NewSupervisor(cfg, nil, 0)
	require.NoError(t, err)
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = s.Run(runCtx) }()
	require.Eventually(t, func() bool { return s.State() == Connected }, 10*time.Second, 50*time.Millisecond)
	// subscription is issued from the connect handler
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, PublishOnce(ctx, cfg, []byte(`{"Pv":{"V":1}}`), false))
	select {
	case msg := <-s.Messages():
		assert.Equal(t, "solar/it", msg.Topic)
		assert.JSONEq(t, `{"Pv":{"V":1}}`, string(msg.Payload))
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}
}
