package charger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/solarcharger/core/logger"
	"github.com/kilianp07/solarcharger/core/metrics"
	"github.com/kilianp07/solarcharger/core/store"
)

// PublishInterval is the period of the sync publisher.
const PublishInterval = time.Second

// Publisher pushes the store to the downstream sink on a fixed cadence.
type Publisher struct {
	state    *State
	sink     Sink
	watchdog Watchdog
	log      logger.Logger
	metrics  metrics.Sink
	interval time.Duration
	now      func() time.Time
}

// NewPublisher creates a Publisher running every PublishInterval.
func NewPublisher(state *State, sink Sink, wd Watchdog, log logger.Logger, m metrics.Sink) *Publisher {
	if m == nil {
		m = metrics.NopSink{}
	}
	return &Publisher{
		state:    state,
		sink:     sink,
		watchdog: wd,
		log:      log,
		metrics:  m,
		interval: PublishInterval,
		now:      time.Now,
	}
}

// SetInterval overrides the publish period.
func (p *Publisher) SetInterval(d time.Duration) {
	if d > 0 {
		p.interval = d
	}
}

// SetClock overrides the time source used by the watchdog.
func (p *Publisher) SetClock(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// Run publishes until ctx is done or a cycle fails fatally.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.Cycle(ctx); err != nil {
				return err
			}
		}
	}
}

// Cycle runs one publish step. Returned errors are fatal: staleness or a
// value the sink can never represent. Per path failures are only logged.
func (p *Publisher) Cycle(_ context.Context) error {
	now := p.now()

	p.state.mu.Lock()
	if err := p.watchdog.Check(now, p.state.reference()); err != nil {
		p.state.mu.Unlock()
		p.log.Errorf("Driver stopped. %v", err)
		return err
	}
	changed := p.state.changeSeq != p.state.publishedSeq
	seq, captured := p.state.changeSeq, p.state.lastChanged
	var snap []store.Entry
	if changed {
		snap = p.state.store.Snapshot()
	}
	p.state.mu.Unlock()

	ev := metrics.PublishEvent{Time: now}
	if changed {
		failures, err := p.push(snap)
		if err != nil {
			return err
		}
		p.state.mu.Lock()
		p.state.publishedSeq = seq
		p.state.lastPublished = captured
		p.state.mu.Unlock()

		ev.Pushed = true
		ev.Paths = len(snap)
		ev.Failures = failures
		ev.Values = numericValues(snap)
		p.logYield(snap)
	}

	p.state.mu.Lock()
	p.state.counter++
	idx := p.state.counter
	p.state.mu.Unlock()
	ev.UpdateIndex = int(idx)
	if err := p.sink.SetValue(store.PathUpdateIndex, store.Int(int64(idx))); err != nil {
		if errors.Is(err, ErrUnsupportedType) {
			return fmt.Errorf("publish %s: %w", store.PathUpdateIndex, err)
		}
		p.log.Errorf("publish %s: %v", store.PathUpdateIndex, err)
	}

	if err := p.metrics.RecordPublish(ev); err != nil {
		p.log.Errorf("record publish: %v", err)
	}
	return nil
}

func (p *Publisher) push(snap []store.Entry) (int, error) {
	failures := 0
	for _, e := range snap {
		err := p.sink.SetValue(e.Path, e.Value)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrUnsupportedType) {
			p.log.Errorf("Received key %q with value %s is not valid: %v", e.Path, e.Value, err)
			return failures, fmt.Errorf("publish %s: %w", e.Path, err)
		}
		failures++
		p.log.Errorf("publish %s: %v", e.Path, err)
	}
	return failures, nil
}

func (p *Publisher) logYield(snap []store.Entry) {
	for _, e := range snap {
		if e.Path != store.PathYieldPower {
			continue
		}
		if n, ok := e.Value.Number(); ok {
			p.log.Infof("Solar Charger: %.2f W", n)
		} else {
			p.log.Infof("Solar Charger: %s", e.Text())
		}
		return
	}
}

func numericValues(snap []store.Entry) map[string]float64 {
	out := make(map[string]float64)
	for _, e := range snap {
		if n, ok := e.Value.Number(); ok {
			out[e.Path] = n
		}
	}
	return out
}
