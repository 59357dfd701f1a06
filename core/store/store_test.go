package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchemaBasePaths(t *testing.T) {
	s := NewSchema(0)
	for _, p := range []string{"/NrOfTrackers", "/Pv/V", "/Pv/3/P", "/Yield/Power", "/Dc/0/Voltage", "/State", "/History/Overall/LastError4"} {
		assert.True(t, s.Has(p), p)
	}
	assert.False(t, s.Has("/History/Daily/0/Yield"))
	assert.False(t, s.Has(PathUpdateIndex))
}

func TestNewSchemaHistoryDays(t *testing.T) {
	base := NewSchema(0).Len()
	s := NewSchema(2)
	assert.Equal(t, base+2*(len(dailyPaths)+Trackers*len(dailyTrackerPaths)), s.Len())
	assert.True(t, s.Has("/History/Daily/1/Pv/3/MaxVoltage"))
	assert.False(t, s.Has("/History/Daily/2/Yield"))

	sp, ok := s.Lookup("/History/Overall/DaysAvailable")
	require.True(t, ok)
	assert.Equal(t, Int(2), sp.Initial)
	assert.Equal(t, base, NewSchema(-3).Len())
}

func TestStoreInitialValues(t *testing.T) {
	st := New(NewSchema(0))
	v, ok := st.Get(PathState)
	require.True(t, ok)
	assert.Equal(t, Int(0), v)
	v, _ = st.Get(PathYieldPower)
	assert.True(t, v.IsAbsent())
}

func TestStoreSetUnknownPath(t *testing.T) {
	st := New(NewSchema(0))
	n := st.Len()
	err := st.Set("/Foo/Bar", Int(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownPath))
	assert.Equal(t, n, st.Len())
	_, ok := st.Get("/Foo/Bar")
	assert.False(t, ok)
}

func TestStoreSnapshotIsCopy(t *testing.T) {
	st := New(NewSchema(0))
	require.NoError(t, st.Set("/Dc/0/Voltage", Float(13.2)))
	snap := st.Snapshot()
	require.NoError(t, st.Set("/Dc/0/Voltage", Float(12.9)))
	for _, e := range snap {
		if e.Path == "/Dc/0/Voltage" {
			assert.Equal(t, Float(13.2), e.Value)
			assert.Equal(t, "13.20V", e.Text())
			return
		}
	}
	t.Fatal("path missing from snapshot")
}

func TestFormatRender(t *testing.T) {
	cases := []struct {
		f    Format
		v    Value
		want string
	}{
		{FormatWatts, Float(142.4), "142W"},
		{FormatWatts, Int(-5), "-5W"},
		{FormatVolts, Float(48), "48.00V"},
		{FormatAmps, Float(3.14), "3.1A"},
		{FormatKWh, Float(12.9), "12kWh"},
		{FormatCount, Int(3), "3"},
		{FormatText, String("ok"), "ok"},
		{FormatText, Int(7), "7"},
		{FormatWatts, Absent(), AbsentText},
		{FormatVolts, String("n/a"), "n/a"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.f.Render(c.v), "%s %s", c.f, c.v)
	}
}

func TestValueNumberAndEqual(t *testing.T) {
	n, ok := Int(4).Number()
	assert.True(t, ok)
	assert.Equal(t, 4.0, n)
	_, ok = String("4").Number()
	assert.False(t, ok)
	assert.True(t, Absent().Equal(Value{}))
	assert.False(t, Int(1).Equal(Float(1)))
	assert.Equal(t, int64(9), Int(9).Interface())
	assert.Nil(t, Absent().Interface())
}
