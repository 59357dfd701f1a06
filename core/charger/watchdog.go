package charger

import (
	"errors"
	"fmt"
	"time"
)

// ErrStale is wrapped by StalenessError.
var ErrStale = errors.New("telemetry is stale")

// StalenessError reports that no payload was accepted within the timeout.
type StalenessError struct {
	Timeout time.Duration
	Since   time.Duration
}

func (e *StalenessError) Error() string {
	return fmt.Sprintf("timeout of %d seconds exceeded, no new MQTT message was accepted for %s",
		int(e.Timeout/time.Second), e.Since.Truncate(time.Second))
}

func (e *StalenessError) Unwrap() error { return ErrStale }

// Watchdog fails once the last accepted payload is older than Timeout.
// A zero Timeout disables it.
type Watchdog struct {
	Timeout time.Duration
}

// Check returns a *StalenessError when now-last exceeds the timeout.
func (w Watchdog) Check(now, last time.Time) error {
	if w.Timeout <= 0 {
		return nil
	}
	since := now.Sub(last)
	if since > w.Timeout {
		return &StalenessError{Timeout: w.Timeout, Since: since}
	}
	return nil
}
