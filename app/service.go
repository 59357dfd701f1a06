// Package app wires the bridge: broker supervisor, ingestion, the data
// wait, device registration and the sync publisher.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/solarcharger/config"
	"github.com/kilianp07/solarcharger/core/charger"
	coremetrics "github.com/kilianp07/solarcharger/core/metrics"
	"github.com/kilianp07/solarcharger/core/store"
	"github.com/kilianp07/solarcharger/infra/dbus"
	"github.com/kilianp07/solarcharger/infra/logger"
	"github.com/kilianp07/solarcharger/infra/metrics"
	"github.com/kilianp07/solarcharger/infra/mqtt"
	"github.com/kilianp07/solarcharger/internal/eventbus"
)

// Service orchestrates the bridge components.
type Service struct {
	state      *charger.State
	supervisor *mqtt.Supervisor
	ingestor   *charger.Ingestor
	publisher  *charger.Publisher
	sink       charger.Sink
	metrics    coremetrics.Sink
	events     *eventbus.TypedBus[mqtt.StateChange]
	device     charger.Device
	watchdog   charger.Watchdog
	log        logger.Logger

	promPort        string
	pollInterval    time.Duration
	publishInterval time.Duration
}

// Option customizes a Service.
type Option func(*Service)

// WithSink replaces the D-Bus sink.
func WithSink(s charger.Sink) Option { return func(svc *Service) { svc.sink = s } }

// WithMetrics replaces the configured metrics sinks.
func WithMetrics(m coremetrics.Sink) Option { return func(svc *Service) { svc.metrics = m } }

// WithPollInterval overrides the data wait poll period.
func WithPollInterval(d time.Duration) Option {
	return func(svc *Service) { svc.pollInterval = d }
}

// WithPublishInterval overrides the publish period.
func WithPublishInterval(d time.Duration) Option {
	return func(svc *Service) { svc.publishInterval = d }
}

// New creates a Service from the configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	log := logger.New("service")
	svc := &Service{
		state:        charger.NewState(store.NewSchema(cfg.Device.HistoryDays), time.Now()),
		events:       eventbus.NewTyped[mqtt.StateChange](),
		device:       charger.NewDevice(cfg.Device.Instance, cfg.Device.Name),
		watchdog:     charger.Watchdog{Timeout: cfg.Device.TimeoutDuration()},
		log:          log,
		promPort:     cfg.Metrics.PrometheusPort,
		pollInterval: charger.DataPollInterval,
	}

	sup, err := mqtt.NewSupervisor(cfg.MQTT, svc.events, mqtt.DefaultQueueSize)
	if err != nil {
		return nil, fmt.Errorf("mqtt client: %w", err)
	}
	svc.supervisor = sup

	for _, o := range opts {
		o(svc)
	}

	if svc.metrics == nil {
		m, err := coremetrics.NewSink(cfg.Metrics.Sinks)
		if err != nil {
			return nil, fmt.Errorf("metrics sink: %w", err)
		}
		svc.metrics = m
	}
	if svc.sink == nil {
		s, err := dbus.New(cfg.DBus.Bus)
		if err != nil {
			return nil, fmt.Errorf("dbus: %w", err)
		}
		svc.sink = s
	}
	svc.publisher = charger.NewPublisher(svc.state, svc.sink, svc.watchdog, logger.New("publisher"), svc.metrics)
	svc.publisher.SetInterval(svc.publishInterval)
	svc.ingestor = charger.NewIngestor(svc.state, cfg.MQTT.Topic, logger.New("ingest"), svc.metrics)
	return svc, nil
}

// State exposes the charger state.
func (s *Service) State() *charger.State { return s.state }

// Run starts the service and blocks until ctx is canceled or a fatal error
// occurs. Staleness, unsupported value types and registration failures are
// returned; transport problems are retried internally.
func (s *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	metrics.StartConnectionCollector(gctx, s.events, s.metrics)

	g.Go(func() error { return s.supervisor.Run(gctx) })
	g.Go(func() error { return s.ingestor.Run(gctx, s.supervisor.Messages()) })
	if s.promPort != "" {
		g.Go(func() error {
			if err := metrics.StartPromServer(gctx, s.promPort, nil); err != nil {
				return fmt.Errorf("prom server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		if err := charger.WaitForData(gctx, s.state, s.watchdog, s.pollInterval, s.log); err != nil {
			return err
		}
		if err := s.sink.Register(gctx, s.device, s.state.RegistrationEntries()); err != nil {
			return fmt.Errorf("register device: %w", err)
		}
		s.log.Infof("registered %s", s.device.ServiceName())
		return s.publisher.Run(gctx)
	})

	err := g.Wait()
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.events.Close()
	var errs []error
	if err := s.sink.Close(); err != nil {
		errs = append(errs, fmt.Errorf("sink: %w", err))
	}
	if c, ok := s.metrics.(coremetrics.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("metrics: %w", err))
		}
	}
	return errors.Join(errs...)
}
