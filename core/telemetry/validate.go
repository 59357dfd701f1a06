package telemetry

import (
	"fmt"
	"strings"
)

// ExampleShapes are logged alongside rejected payloads.
var ExampleShapes = [2]string{
	`{"Pv": {"V": 0.0}, "Yield": {"Power": 0.0}, "Dc": {"0": {"Voltage": 0.0, "Current": 0.0}}}`,
	`{"Pv": {"0": {"V": 0.0, "P": 0.0}, "1": {"V": 0.0, "P": 0.0}}, "Yield": {"Power": 142.4}, "Dc": {"0": {"Voltage": 0.0, "Current": 0.0}}}`,
}

var (
	aggregateShape = [][]string{
		{"Pv", "V"},
		{"Yield", "Power"},
		{"Dc", "0", "Current"},
		{"Dc", "0", "Voltage"},
	}
	trackerShape = [][]string{
		{"Pv", "0", "V"},
		{"Pv", "0", "P"},
		{"Pv", "1", "V"},
		{"Pv", "1", "P"},
		{"Dc", "0", "Current"},
		{"Dc", "0", "Voltage"},
	}
)

// ValidationError lists what each accepted shape is missing.
type ValidationError struct {
	MissingAggregate []string
	MissingTrackers  []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("payload lacks minimum required values: aggregate shape missing [%s], tracker shape missing [%s]",
		strings.Join(e.MissingAggregate, " "), strings.Join(e.MissingTrackers, " "))
}

// Validate accepts a payload carrying either the aggregate shape
// (Pv.V, Yield.Power, Dc.0.Current, Dc.0.Voltage) or the per tracker shape
// (Pv.0.V, Pv.0.P, Pv.1.V, Pv.1.P, Dc.0.Current, Dc.0.Voltage).
func Validate(root Node) error {
	a := missing(root, aggregateShape)
	if len(a) == 0 {
		return nil
	}
	b := missing(root, trackerShape)
	if len(b) == 0 {
		return nil
	}
	return &ValidationError{MissingAggregate: a, MissingTrackers: b}
}

func missing(root Node, shape [][]string) []string {
	var out []string
	for _, keys := range shape {
		if !root.Has(keys...) {
			out = append(out, strings.Join(keys, "."))
		}
	}
	return out
}
