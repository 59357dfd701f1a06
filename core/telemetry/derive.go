package telemetry

import (
	"strconv"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/solarcharger/core/store"
)

// Derived summarises what the derivation pass computed.
type Derived struct {
	Trackers   int
	YieldPower store.Value
	State      store.Value
}

// Derive fills the fields the payload did not carry. It must run after Merge
// on the same payload. /Yield/Power is settled before /State reads it.
func Derive(st *store.Store, root Node) Derived {
	var (
		powers []float64
		ints   []int64
		allInt = true
	)
	for i := 0; i < store.Trackers; i++ {
		n, ok := root.Lookup("Pv", strconv.Itoa(i), "P")
		if !ok || n.Kind() != NodeScalar {
			continue
		}
		v := n.Value()
		p, ok := v.Number()
		if !ok {
			continue
		}
		powers = append(powers, p)
		if v.Kind() == store.KindInt {
			ints = append(ints, v.IntVal())
		} else {
			allInt = false
		}
	}

	d := Derived{Trackers: len(powers)}

	if !root.Has("NrOfTrackers") {
		count := int64(len(powers))
		if count == 0 {
			count = 1
		}
		_ = st.Set(store.PathNrOfTrackers, store.Int(count))
	}

	if !root.Has("Yield", "Power") {
		_ = st.Set(store.PathYieldPower, aggregate(powers, ints, allInt))
	}
	d.YieldPower, _ = st.Get(store.PathYieldPower)

	if !root.Has("State") {
		state := int64(store.StateOff)
		if p, ok := d.YieldPower.Number(); ok && p > 0 {
			state = store.StateProducing
		}
		_ = st.Set(store.PathState, store.Int(state))
	}
	d.State, _ = st.Get(store.PathState)
	return d
}

func aggregate(powers []float64, ints []int64, allInt bool) store.Value {
	if allInt {
		var sum int64
		for _, v := range ints {
			sum += v
		}
		return store.Int(sum)
	}
	return store.Float(floats.Sum(powers))
}
