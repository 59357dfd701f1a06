package metrics

import (
	"context"

	coremetrics "github.com/kilianp07/solarcharger/core/metrics"
	"github.com/kilianp07/solarcharger/infra/mqtt"
	"github.com/kilianp07/solarcharger/internal/eventbus"
)

// StartConnectionCollector subscribes to broker state changes and records
// them on sinks implementing coremetrics.ConnectionRecorder. It stops when
// the context is canceled.
func StartConnectionCollector(ctx context.Context, bus *eventbus.TypedBus[mqtt.StateChange], sink coremetrics.Sink) {
	if bus == nil || sink == nil {
		return
	}
	rec, ok := sink.(coremetrics.ConnectionRecorder)
	if !ok {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				_ = rec.RecordConnectionState(coremetrics.ConnectionEvent{State: ev.State.String(), Time: ev.Time})
			}
		}
	}()
}
