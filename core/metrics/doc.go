// Package metrics defines the observability sinks of the bridge. Sinks record
// ingested messages, publish cycles and transport state transitions. Concrete
// Prometheus and InfluxDB sinks live in infra/metrics and register themselves
// in the factory so the configuration can list any combination of them;
// NewSink returns a MultiSink automatically when several are configured.
package metrics
