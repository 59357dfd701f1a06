package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/solarcharger/core/metrics"
	"github.com/kilianp07/solarcharger/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes charger readings to InfluxDB using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.Sink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordIngest writes one point per inbound message.
func (s *InfluxSink) RecordIngest(ev coremetrics.IngestEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	reason := ev.Reason
	if ev.Accepted {
		reason = "accepted"
	}
	p := write.NewPointWithMeasurement("solarcharger_ingest").
		AddTag("result", reason).
		AddField("accepted", ev.Accepted).
		AddField("warnings", ev.Warnings).
		AddField("trackers", ev.Trackers).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordPublish writes the numeric paths of a pushed snapshot. Idle cycles
// are not written.
func (s *InfluxSink) RecordPublish(ev coremetrics.PublishEvent) error {
	if !ev.Pushed {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("solarcharger_state").
		AddField("update_index", ev.UpdateIndex).
		AddField("failures", ev.Failures)
	for path, v := range ev.Values {
		p = p.AddField(fieldName(path), round3(v))
	}
	return s.writeAPI.WritePoint(ctx, p.SetTime(ev.Time))
}

// Close releases the HTTP client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

// fieldName turns /Dc/0/Voltage into dc_0_voltage.
func fieldName(path string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(path, "/"), "/", "_"))
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
