package dbus

import (
	"fmt"
	"math"

	godbus "github.com/godbus/dbus/v5"

	"github.com/kilianp07/solarcharger/core/charger"
	"github.com/kilianp07/solarcharger/core/store"
)

// invalid is the variant the Victron bus uses for a path without a value.
var invalid = godbus.MakeVariant([]int32{})

// toVariant maps a store value onto the bus type system.
func toVariant(v store.Value) (godbus.Variant, error) {
	switch v.Kind() {
	case store.KindAbsent:
		return invalid, nil
	case store.KindString:
		return godbus.MakeVariant(v.Str()), nil
	case store.KindInt:
		i := v.IntVal()
		if i < math.MinInt32 || i > math.MaxInt32 {
			return godbus.MakeVariant(i), nil
		}
		return godbus.MakeVariant(int32(i)), nil
	case store.KindFloat:
		return godbus.MakeVariant(v.FloatVal()), nil
	default:
		return godbus.Variant{}, fmt.Errorf("%w: %s", charger.ErrUnsupportedType, v.Kind())
	}
}

// fromVariant converts a value written by another bus client.
func fromVariant(v godbus.Variant) store.Value {
	switch x := v.Value().(type) {
	case string:
		return store.String(x)
	case int32:
		return store.Int(int64(x))
	case int64:
		return store.Int(x)
	case int16:
		return store.Int(int64(x))
	case uint8:
		return store.Int(int64(x))
	case uint16:
		return store.Int(int64(x))
	case uint32:
		return store.Int(int64(x))
	case uint64:
		if x > math.MaxInt64 {
			return store.Float(float64(x))
		}
		return store.Int(int64(x))
	case bool:
		if x {
			return store.Int(1)
		}
		return store.Int(0)
	case float64:
		return store.Float(x)
	case []int32:
		if len(x) == 0 {
			return store.Absent()
		}
		return store.String(v.String())
	default:
		return store.String(v.String())
	}
}
