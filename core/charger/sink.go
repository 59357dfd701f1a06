package charger

import (
	"context"
	"errors"

	"github.com/kilianp07/solarcharger/core/store"
)

// ErrUnsupportedType is returned by a Sink that cannot represent a value.
// The publisher treats it as fatal.
var ErrUnsupportedType = errors.New("unsupported value type")

// Sink is the downstream device service the store is exposed through.
type Sink interface {
	// Register exposes the device and its initial paths. It is called once,
	// after the first payload was accepted.
	Register(ctx context.Context, dev Device, entries []store.Entry) error
	// SetValue pushes the current value of one path.
	SetValue(path string, v store.Value) error
	Close() error
}
