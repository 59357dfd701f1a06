package charger

import (
	"sync"
	"time"

	"github.com/kilianp07/solarcharger/core/store"
	"github.com/kilianp07/solarcharger/core/telemetry"
)

// State owns the canonical store together with the change timestamps and the
// update counter. Every access goes through mu, so a publish cycle never sees
// a partially merged payload.
type State struct {
	mu            sync.Mutex
	store         *store.Store
	started       time.Time
	lastChanged   time.Time
	lastPublished time.Time
	// changeSeq counts accepted payloads; publishedSeq is the value the last
	// pushed snapshot was taken at. Received times may collide.
	changeSeq    uint64
	publishedSeq uint64
	counter      uint8
	accepted     bool
}

// NewState creates the state for schema. started is the reference point of
// the watchdog until the first payload is accepted.
func NewState(schema *store.Schema, started time.Time) *State {
	return &State{store: store.New(schema), started: started}
}

// IngestResult describes an accepted payload.
type IngestResult struct {
	Warnings []telemetry.MergeWarning
	Derived  telemetry.Derived
}

// Ingest validates payload and, when accepted, merges it and derives the
// missing fields as one atomic step. Rejected payloads leave the store and
// both timestamps untouched.
func (s *State) Ingest(payload []byte, now time.Time) (IngestResult, error) {
	root, err := telemetry.Parse(payload)
	if err != nil {
		return IngestResult{}, err
	}
	if err := telemetry.Validate(root); err != nil {
		return IngestResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res := IngestResult{Warnings: telemetry.Merge(s.store, root)}
	res.Derived = telemetry.Derive(s.store, root)
	s.lastChanged = now
	s.changeSeq++
	s.accepted = true
	return res, nil
}

// HasData reports whether a payload was accepted since start.
func (s *State) HasData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// Reference returns the time the watchdog measures staleness from.
func (s *State) Reference() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reference()
}

func (s *State) reference() time.Time {
	if !s.accepted {
		return s.started
	}
	return s.lastChanged
}

// Timestamps returns lastChanged and lastPublished.
func (s *State) Timestamps() (changed, published time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastChanged, s.lastPublished
}

// Pending reports whether a payload was accepted since the last push.
func (s *State) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changeSeq != s.publishedSeq
}

// Value returns the current value of path.
func (s *State) Value(path string) (store.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Get(path)
}

// Snapshot copies every store entry.
func (s *State) Snapshot() []store.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Snapshot()
}

// UpdateIndex returns the current update counter.
func (s *State) UpdateIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.counter)
}

// RegistrationEntries returns the snapshot plus the update counter path, the
// full path set exposed downstream.
func (s *State) RegistrationEntries() []store.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]store.Entry, 0, s.store.Len()+1)
	entries = append(entries, store.Entry{Path: store.PathUpdateIndex, Value: store.Int(int64(s.counter)), Format: store.FormatCount})
	return append(entries, s.store.Snapshot()...)
}
