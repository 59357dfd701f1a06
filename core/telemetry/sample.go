package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
)

// Sample shapes accepted by SamplePayload.
const (
	SampleAggregate = "aggregate"
	SampleTrackers  = "trackers"
)

// SamplePayload builds a payload of the given shape producing power watts
// on a 48 V battery.
func SamplePayload(shape string, power float64) ([]byte, error) {
	const batteryV = 48.0
	dc := map[string]any{"0": map[string]any{
		"Voltage": batteryV,
		"Current": round1(power / batteryV),
	}}
	var body map[string]any
	switch shape {
	case SampleAggregate:
		body = map[string]any{
			"Pv":    map[string]any{"V": 95.3},
			"Yield": map[string]any{"Power": power},
			"Dc":    dc,
		}
	case SampleTrackers:
		half := round1(power / 2)
		body = map[string]any{
			"Pv": map[string]any{
				"0": map[string]any{"V": 95.3, "P": half},
				"1": map[string]any{"V": 94.8, "P": round1(power - half)},
			},
			"Dc": dc,
		}
	default:
		return nil, fmt.Errorf("unknown sample shape %q", shape)
	}
	return json.Marshal(body)
}

func round1(f float64) float64 { return math.Round(f*10) / 10 }
