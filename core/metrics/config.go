package metrics

import "github.com/kilianp07/solarcharger/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	// PrometheusPort serves /metrics when non-empty, e.g. ":9102".
	PrometheusPort string                 `json:"prometheus_port"`
	Sinks          []factory.ModuleConfig `json:"sinks"`
}
