package mqtt

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// PublishOnce connects, publishes payload on the configured topic and
// disconnects. It feeds a running bridge with test telemetry.
func PublishOnce(ctx context.Context, cfg Config, payload []byte, retained bool) error {
	if cfg.ClientID == "" {
		cfg.ClientID = "MqttSolarChargerSimulator_" + uuid.NewString()
	} else {
		cfg.ClientID += "-simulate"
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return err
	}
	cli := newMQTTClient(opts)
	tok := cli.Connect()
	select {
	case <-tok.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("connect %s: %w", cfg.Address(), err)
	}
	defer cli.Disconnect(250)

	tok = cli.Publish(cfg.Topic, cfg.QoS, retained, payload)
	select {
	case <-tok.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", cfg.Topic, err)
	}
	return nil
}
