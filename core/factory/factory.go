package factory

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-viper/mapstructure/v2"
)

// ErrUnknownType is returned by Create for a type without factory.
var ErrUnknownType = errors.New("unknown module type")

// ModuleConfig names a module implementation and carries its raw settings.
type ModuleConfig struct {
	Type string         `json:"type"`
	Conf map[string]any `json:"conf"`
}

// Factory builds one implementation of T from raw settings.
type Factory[T any] func(map[string]any) (T, error)

// Registry maps type names to factories for one kind of module, e.g. the
// metrics sinks.
type Registry[T any] struct {
	kind string

	mu        sync.RWMutex
	factories map[string]Factory[T]
}

// NewRegistry returns an empty registry. kind names the modules in errors.
func NewRegistry[T any](kind string) *Registry[T] {
	return &Registry[T]{kind: kind, factories: make(map[string]Factory[T])}
}

// Register adds f under name. Names are unique per registry.
func (r *Registry[T]) Register(name string, f Factory[T]) error {
	switch {
	case name == "":
		return fmt.Errorf("%s: empty type name", r.kind)
	case f == nil:
		return fmt.Errorf("%s %q: nil factory", r.kind, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[name]; dup {
		return fmt.Errorf("%s %q: already registered", r.kind, name)
	}
	r.factories[name] = f
	return nil
}

// Create runs the factory registered for cfg.Type.
func (r *Registry[T]) Create(cfg ModuleConfig) (T, error) {
	r.mu.RLock()
	f, ok := r.factories[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s %q: %w (known: %v)", r.kind, cfg.Type, ErrUnknownType, r.Types())
	}
	m, err := f(cfg.Conf)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s %q: %w", r.kind, cfg.Type, err)
	}
	return m, nil
}

// Types lists the registered names in sorted order.
func (r *Registry[T]) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Decode copies raw settings into out using its json tags. Strings are
// converted to numbers and booleans, since env overrides only carry strings.
func Decode(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(data)
}
