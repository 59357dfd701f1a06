package metrics

import "time"

// Rejection reasons reported in IngestEvent.Reason.
const (
	ReasonEmpty       = "empty"
	ReasonInvalidJSON = "invalid_json"
	ReasonShape       = "shape"
	ReasonTopic       = "topic"
)

// IngestEvent describes the outcome of one inbound telemetry message.
type IngestEvent struct {
	Accepted bool
	Reason   string
	Warnings int
	Trackers int
	Time     time.Time
}

// PublishEvent describes one publish cycle.
type PublishEvent struct {
	// Pushed is false when nothing changed since the previous cycle.
	Pushed      bool
	Paths       int
	Failures    int
	UpdateIndex int
	// Values holds the numeric paths of the pushed snapshot.
	Values map[string]float64
	Time   time.Time
}

// ConnectionEvent reports a transport state transition.
type ConnectionEvent struct {
	State string
	Time  time.Time
}

// Sink records bridge activity for observability purposes.
type Sink interface {
	RecordIngest(ev IngestEvent) error
	RecordPublish(ev PublishEvent) error
}

// ConnectionRecorder records transport state transitions.
type ConnectionRecorder interface {
	RecordConnectionState(ev ConnectionEvent) error
}

// Closer is implemented by sinks holding resources.
type Closer interface {
	Close() error
}

// NopSink implements Sink with no-op methods.
type NopSink struct{}

func (NopSink) RecordIngest(IngestEvent) error              { return nil }
func (NopSink) RecordPublish(PublishEvent) error            { return nil }
func (NopSink) RecordConnectionState(ConnectionEvent) error { return nil }

// MultiSink fans events out to several sinks.
type MultiSink struct {
	Sinks []Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordIngest forwards the event to all sinks, returning the first error encountered.
func (m *MultiSink) RecordIngest(ev IngestEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordIngest(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordPublish forwards publish cycles.
func (m *MultiSink) RecordPublish(ev PublishEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordPublish(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordConnectionState forwards transitions to sinks that support them.
func (m *MultiSink) RecordConnectionState(ev ConnectionEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ConnectionRecorder); ok {
			if err := rec.RecordConnectionState(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes every sink implementing Closer.
func (m *MultiSink) Close() error {
	var first error
	for _, s := range m.Sinks {
		if c, ok := s.(Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
