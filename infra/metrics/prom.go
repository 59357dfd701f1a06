package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/solarcharger/core/metrics"
)

// PromSink records bridge activity in Prometheus metrics.
type PromSink struct {
	messages    *prometheus.CounterVec
	warnings    prometheus.Counter
	trackers    prometheus.Gauge
	cycles      *prometheus.CounterVec
	failures    prometheus.Counter
	updateIndex prometheus.Gauge
	yieldPower  prometheus.Gauge
	connected   prometheus.Gauge
	transitions *prometheus.CounterVec
}

// NewPromSink registers the metrics on the default Prometheus registerer.
// The HTTP exporter is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.messages, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "solarcharger_messages_total",
		Help: "Inbound telemetry messages by outcome",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	if s.warnings, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solarcharger_merge_warnings_total",
		Help: "Payload keys ignored while merging",
	})); err != nil {
		return nil, err
	}
	if s.trackers, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "solarcharger_trackers",
		Help: "Trackers reporting power in the last accepted payload",
	})); err != nil {
		return nil, err
	}
	if s.cycles, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "solarcharger_publish_cycles_total",
		Help: "Publish cycles, split by whether the store was pushed",
	}, []string{"pushed"})); err != nil {
		return nil, err
	}
	if s.failures, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solarcharger_publish_failures_total",
		Help: "Paths the downstream service refused",
	})); err != nil {
		return nil, err
	}
	if s.updateIndex, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "solarcharger_update_index",
		Help: "Last published update index",
	})); err != nil {
		return nil, err
	}
	if s.yieldPower, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "solarcharger_yield_power_watts",
		Help: "Last published aggregate PV power",
	})); err != nil {
		return nil, err
	}
	if s.connected, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "solarcharger_mqtt_connected",
		Help: "1 while the broker connection is up",
	})); err != nil {
		return nil, err
	}
	if s.transitions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "solarcharger_mqtt_state_changes_total",
		Help: "Broker connection state transitions",
	}, []string{"state"})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing, nil
		}
	}
	return c, err
}

// RecordIngest counts the message by outcome.
func (s *PromSink) RecordIngest(ev coremetrics.IngestEvent) error {
	result := "accepted"
	if !ev.Accepted {
		result = ev.Reason
	}
	s.messages.WithLabelValues(result).Inc()
	if ev.Accepted {
		s.warnings.Add(float64(ev.Warnings))
		s.trackers.Set(float64(ev.Trackers))
	}
	return nil
}

// RecordPublish updates cycle counters and the exported power gauge.
func (s *PromSink) RecordPublish(ev coremetrics.PublishEvent) error {
	if ev.Pushed {
		s.cycles.WithLabelValues("true").Inc()
		s.failures.Add(float64(ev.Failures))
		if p, ok := ev.Values["/Yield/Power"]; ok {
			s.yieldPower.Set(p)
		}
	} else {
		s.cycles.WithLabelValues("false").Inc()
	}
	s.updateIndex.Set(float64(ev.UpdateIndex))
	return nil
}

// RecordConnectionState tracks broker connectivity.
func (s *PromSink) RecordConnectionState(ev coremetrics.ConnectionEvent) error {
	s.transitions.WithLabelValues(ev.State).Inc()
	if ev.State == "connected" {
		s.connected.Set(1)
	} else {
		s.connected.Set(0)
	}
	return nil
}
