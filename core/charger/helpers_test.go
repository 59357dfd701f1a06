package charger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kilianp07/solarcharger/core/metrics"
	"github.com/kilianp07/solarcharger/core/store"
)

const (
	shapeTrackers  = `{"Pv": {"0": {"V": 40, "P": 100}, "1": {"V": 41, "P": 42.4}}, "Dc": {"0": {"Voltage": 13.2, "Current": 10}}}`
	shapeAggregate = `{"Pv": {"V": 40}, "Yield": {"Power": 0}, "Dc": {"0": {"Voltage": 13.2, "Current": 0}}}`
	missingDc      = `{"Pv": {"0": {"V": 40, "P": 100}, "1": {"V": 41, "P": 42.4}}, "Dc": {"0": {"Voltage": 13.2}}}`
)

type setCall struct {
	path  string
	value store.Value
}

type fakeSink struct {
	mu          sync.Mutex
	calls       []setCall
	registered  []store.Entry
	fail        map[string]bool
	unsupported map[string]bool
}

func newFakeSink() *fakeSink {
	return &fakeSink{fail: map[string]bool{}, unsupported: map[string]bool{}}
}

func (f *fakeSink) Register(_ context.Context, _ Device, entries []store.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = entries
	return nil
}

func (f *fakeSink) SetValue(path string, v store.Value) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unsupported[path] {
		return fmt.Errorf("%s: %w", path, ErrUnsupportedType)
	}
	if f.fail[path] {
		return errors.New("bus busy")
	}
	f.calls = append(f.calls, setCall{path, v})
	return nil
}

func (f *fakeSink) Close() error { return nil }

// pushed returns the number of SetValue calls for paths other than /UpdateIndex
// and the update index values in order.
func (f *fakeSink) pushed() (int, []int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	var idx []int64
	for _, c := range f.calls {
		if c.path == store.PathUpdateIndex {
			idx = append(idx, c.value.IntVal())
			continue
		}
		n++
	}
	return n, idx
}

func (f *fakeSink) reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

type testLog struct {
	mu    sync.Mutex
	warns []string
	errs  []string
	infos []string
}

func (l *testLog) Debugf(string, ...any)         {}
func (l *testLog) Debugw(string, map[string]any) {}
func (l *testLog) Infof(f string, a ...any) {
	l.mu.Lock()
	l.infos = append(l.infos, fmt.Sprintf(f, a...))
	l.mu.Unlock()
}
func (l *testLog) Warnf(f string, a ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, fmt.Sprintf(f, a...))
	l.mu.Unlock()
}
func (l *testLog) Errorf(f string, a ...any) {
	l.mu.Lock()
	l.errs = append(l.errs, fmt.Sprintf(f, a...))
	l.mu.Unlock()
}

type recMetrics struct {
	mu      sync.Mutex
	ingest  []metrics.IngestEvent
	publish []metrics.PublishEvent
}

func (r *recMetrics) RecordIngest(ev metrics.IngestEvent) error {
	r.mu.Lock()
	r.ingest = append(r.ingest, ev)
	r.mu.Unlock()
	return nil
}

func (r *recMetrics) RecordPublish(ev metrics.PublishEvent) error {
	r.mu.Lock()
	r.publish = append(r.publish, ev)
	r.mu.Unlock()
	return nil
}
