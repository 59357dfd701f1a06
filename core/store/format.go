package store

import (
	"fmt"
	"math"
)

// Format identifies the display formatter of a path.
type Format int

const (
	FormatCount Format = iota
	FormatText
	FormatAmps
	FormatVolts
	FormatWatts
	FormatKWh
)

// AbsentText is rendered for paths without a value.
const AbsentText = "---"

var formatNames = map[Format]string{
	FormatCount: "count",
	FormatText:  "text",
	FormatAmps:  "amps",
	FormatVolts: "volts",
	FormatWatts: "watts",
	FormatKWh:   "kwh",
}

func (f Format) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// Render returns the human readable text of v. It never affects storage.
func (f Format) Render(v Value) string {
	if v.IsAbsent() {
		return AbsentText
	}
	if f == FormatText {
		if v.Kind() == KindString {
			return v.Str()
		}
		return v.String()
	}
	n, ok := v.Number()
	if !ok {
		return v.Str()
	}
	switch f {
	case FormatAmps:
		return fmt.Sprintf("%.1fA", n)
	case FormatVolts:
		return fmt.Sprintf("%.2fV", n)
	case FormatWatts:
		return fmt.Sprintf("%dW", truncate(n))
	case FormatKWh:
		return fmt.Sprintf("%dkWh", truncate(n))
	default:
		return fmt.Sprintf("%d", truncate(n))
	}
}

// truncate drops the fraction towards zero.
func truncate(n float64) int64 {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return int64(n)
}
