package store

import (
	"errors"
	"fmt"
)

// Well known paths.
const (
	PathNrOfTrackers = "/NrOfTrackers"
	PathYieldPower   = "/Yield/Power"
	PathState        = "/State"
	PathUpdateIndex  = "/UpdateIndex"
)

// Charger operating states written to /State.
const (
	StateOff       = 0
	StateProducing = 3
)

// ErrUnknownPath is returned when writing a path outside the schema.
var ErrUnknownPath = errors.New("unknown path")

// Entry is a path with its current value and display format.
type Entry struct {
	Path   string
	Value  Value
	Format Format
}

// Text renders the entry value for display.
func (e Entry) Text() string { return e.Format.Render(e.Value) }

// Store is the canonical path store. Its key set is fixed by the schema it
// was created from. Store is not safe for concurrent use; callers serialize
// access.
type Store struct {
	schema *Schema
	values []Value
}

// New creates a Store with every path set to its initial value.
func New(schema *Schema) *Store {
	s := &Store{schema: schema, values: make([]Value, schema.Len())}
	for i, def := range schema.defs {
		s.values[i] = def.Initial
	}
	return s
}

// Schema returns the schema the store was built from.
func (s *Store) Schema() *Schema { return s.schema }

// Has reports whether path belongs to the store.
func (s *Store) Has(path string) bool { return s.schema.Has(path) }

// Get returns the current value of path.
func (s *Store) Get(path string) (Value, bool) {
	i, ok := s.schema.index[path]
	if !ok {
		return Absent(), false
	}
	return s.values[i], true
}

// Set updates path. It never adds keys.
func (s *Store) Set(path string, v Value) error {
	i, ok := s.schema.index[path]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPath, path)
	}
	s.values[i] = v
	return nil
}

// Text renders the current value of path.
func (s *Store) Text(path string) (string, bool) {
	i, ok := s.schema.index[path]
	if !ok {
		return "", false
	}
	return s.schema.defs[i].Format.Render(s.values[i]), true
}

// Snapshot copies every entry in schema order.
func (s *Store) Snapshot() []Entry {
	out := make([]Entry, len(s.values))
	for i, def := range s.schema.defs {
		out[i] = Entry{Path: def.Path, Value: s.values[i], Format: def.Format}
	}
	return out
}

// Len returns the number of paths.
func (s *Store) Len() int { return len(s.values) }
