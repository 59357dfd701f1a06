package store

import "strconv"

// Trackers is the number of PV tracker slots a charger can report.
const Trackers = 4

// PathDef declares a path, its display format and its value at startup.
type PathDef struct {
	Path    string
	Format  Format
	Initial Value
}

// Schema is the ordered set of paths a Store accepts.
type Schema struct {
	defs  []PathDef
	index map[string]int
}

type dailyDef struct {
	suffix string
	format Format
}

var dailyPaths = []dailyDef{
	{"Yield", FormatWatts},
	{"Consumption", FormatKWh},
	{"MaxPower", FormatWatts},
	{"MaxPvVoltage", FormatVolts},
	{"MinBatteryVoltage", FormatVolts},
	{"MaxBatteryVoltage", FormatVolts},
	{"MaxBatteryCurrent", FormatAmps},
	{"TimeInBulk", FormatCount},
	{"TimeInAbsorption", FormatCount},
	{"TimeInFloat", FormatCount},
	{"LastError1", FormatCount},
	{"LastError2", FormatCount},
	{"LastError3", FormatCount},
	{"LastError4", FormatCount},
}

var dailyTrackerPaths = []dailyDef{
	{"Yield", FormatKWh},
	{"MaxPower", FormatWatts},
	{"MaxVoltage", FormatVolts},
}

// NewSchema builds the solar charger schema with historyDays daily groups.
// Negative historyDays are treated as zero.
func NewSchema(historyDays int) *Schema {
	if historyDays < 0 {
		historyDays = 0
	}
	s := &Schema{index: make(map[string]int)}

	s.add("/NrOfTrackers", FormatCount, Absent())
	s.add("/Pv/V", FormatVolts, Absent())
	for i := 0; i < Trackers; i++ {
		s.add(TrackerPath(i, "V"), FormatVolts, Absent())
	}
	for i := 0; i < Trackers; i++ {
		s.add(TrackerPath(i, "P"), FormatWatts, Absent())
	}
	s.add(PathYieldPower, FormatWatts, Absent())

	// external control
	s.add("/Link/NetworkMode", FormatText, Absent())
	s.add("/Link/BatteryCurrent", FormatAmps, Absent())
	s.add("/Link/ChargeCurrent", FormatAmps, Absent())
	s.add("/Link/ChargeVoltage", FormatVolts, Absent())
	s.add("/Link/NetworkStatus", FormatText, Absent())
	s.add("/Link/TemperatureSense", FormatCount, Absent())
	s.add("/Link/TemperatureSenseActive", FormatCount, Absent())
	s.add("/Link/VoltageSense", FormatCount, Absent())
	s.add("/Link/VoltageSenseActive", FormatCount, Absent())

	s.add("/Settings/BmsPresent", FormatCount, Absent())
	s.add("/Settings/ChargeCurrentLimit", FormatCount, Absent())

	s.add("/Dc/0/Voltage", FormatVolts, Absent())
	s.add("/Dc/0/Current", FormatAmps, Absent())
	s.add("/Yield/User", FormatKWh, Absent())
	s.add("/Yield/System", FormatKWh, Absent())
	s.add("/Load/State", FormatCount, Absent())
	s.add("/Load/I", FormatAmps, Absent())
	s.add("/ErrorCode", FormatCount, Int(0))
	s.add(PathState, FormatCount, Int(StateOff))
	s.add("/Mode", FormatCount, Absent())
	s.add("/MppOperationMode", FormatCount, Absent())
	s.add("/DeviceOffReason", FormatText, Absent())
	s.add("/Relay/0/State", FormatCount, Absent())

	s.add("/Alarms/LowVoltage", FormatCount, Absent())
	s.add("/Alarms/HighVoltage", FormatCount, Absent())

	s.add("/History/Overall/DaysAvailable", FormatCount, Int(int64(historyDays)))
	s.add("/History/Overall/MaxPvVoltage", FormatCount, Absent())
	s.add("/History/Overall/MaxBatteryVoltage", FormatCount, Absent())
	s.add("/History/Overall/MinBatteryVoltage", FormatCount, Absent())
	for i := 1; i <= 4; i++ {
		s.add("/History/Overall/LastError"+strconv.Itoa(i), FormatCount, Absent())
	}

	for day := 0; day < historyDays; day++ {
		prefix := "/History/Daily/" + strconv.Itoa(day) + "/"
		for _, d := range dailyPaths {
			s.add(prefix+d.suffix, d.format, Absent())
		}
		for t := 0; t < Trackers; t++ {
			for _, d := range dailyTrackerPaths {
				s.add(prefix+"Pv/"+strconv.Itoa(t)+"/"+d.suffix, d.format, Absent())
			}
		}
	}
	return s
}

func (s *Schema) add(path string, f Format, initial Value) {
	if _, dup := s.index[path]; dup {
		return
	}
	s.index[path] = len(s.defs)
	s.defs = append(s.defs, PathDef{Path: path, Format: f, Initial: initial})
}

// Has reports whether path is part of the schema.
func (s *Schema) Has(path string) bool {
	_, ok := s.index[path]
	return ok
}

// Lookup returns the declaration of path.
func (s *Schema) Lookup(path string) (PathDef, bool) {
	i, ok := s.index[path]
	if !ok {
		return PathDef{}, false
	}
	return s.defs[i], true
}

// Defs returns the declarations in schema order.
func (s *Schema) Defs() []PathDef {
	out := make([]PathDef, len(s.defs))
	copy(out, s.defs)
	return out
}

// Len returns the number of paths.
func (s *Schema) Len() int { return len(s.defs) }

// TrackerPath returns /Pv/<i>/<field>.
func TrackerPath(i int, field string) string {
	return "/Pv/" + strconv.Itoa(i) + "/" + field
}
