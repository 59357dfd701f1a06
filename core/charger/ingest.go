package charger

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/solarcharger/core/logger"
	"github.com/kilianp07/solarcharger/core/metrics"
	"github.com/kilianp07/solarcharger/core/store"
	"github.com/kilianp07/solarcharger/core/telemetry"
)

// Message is a raw payload received from the bus.
type Message struct {
	Topic    string
	Payload  []byte
	Received time.Time
}

// Ingestor applies inbound messages to the state one at a time.
type Ingestor struct {
	state   *State
	topic   string
	log     logger.Logger
	metrics metrics.Sink
}

// NewIngestor creates an Ingestor accepting messages of topic only.
func NewIngestor(state *State, topic string, log logger.Logger, sink metrics.Sink) *Ingestor {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Ingestor{state: state, topic: topic, log: log, metrics: sink}
}

// Run consumes msgs serially until ctx is done or msgs is closed.
func (in *Ingestor) Run(ctx context.Context, msgs <-chan Message) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			_ = in.Handle(msg)
		}
	}
}

// Handle applies one message. Every rejection is logged here; the returned
// error only tells the caller the message was dropped.
func (in *Ingestor) Handle(msg Message) error {
	ev := metrics.IngestEvent{Time: msg.Received}
	defer func() {
		if err := in.metrics.RecordIngest(ev); err != nil {
			in.log.Errorf("record ingest: %v", err)
		}
	}()

	if msg.Topic != in.topic {
		ev.Reason = metrics.ReasonTopic
		in.log.Debugf("ignoring message on topic %s", msg.Topic)
		return errors.New("unexpected topic " + msg.Topic)
	}

	res, err := in.state.Ingest(msg.Payload, msg.Received)
	var verr *telemetry.ValidationError
	switch {
	case err == nil:
	case errors.Is(err, telemetry.ErrEmptyPayload):
		ev.Reason = metrics.ReasonEmpty
		in.log.Warnf("Received message was empty and therefore it was ignored")
		return err
	case errors.Is(err, telemetry.ErrInvalidJSON):
		ev.Reason = metrics.ReasonInvalidJSON
		in.log.Errorf("Received message is not a valid JSON. Check the README and sample payload. %v", err)
		in.log.Debugf("MQTT payload: %s", msg.Payload)
		return err
	case errors.As(err, &verr):
		ev.Reason = metrics.ReasonShape
		in.log.Warnf("Received JSON doesn't contain minimum required values: %v", verr)
		in.log.Warnf("Example: %s", telemetry.ExampleShapes[0])
		in.log.Warnf("OR")
		in.log.Warnf("Example: %s", telemetry.ExampleShapes[1])
		in.log.Debugf("MQTT payload: %s", msg.Payload)
		return err
	default:
		in.log.Errorf("Received message is not valid: %v", err)
		return err
	}

	for _, w := range res.Warnings {
		in.log.Warnf("%s", w.Error())
	}
	ev.Accepted = true
	ev.Warnings = len(res.Warnings)
	ev.Trackers = res.Derived.Trackers
	in.log.Debugw("payload accepted", map[string]any{
		"trackers":           res.Derived.Trackers,
		store.PathYieldPower: res.Derived.YieldPower.Interface(),
		store.PathState:      res.Derived.State.Interface(),
		"skipped":            len(res.Warnings),
	})
	return nil
}
