package dbus

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	godbus "github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/solarcharger/core/charger"
	"github.com/kilianp07/solarcharger/core/store"
)

type signal struct {
	path godbus.ObjectPath
	name string
	body map[string]godbus.Variant
}

type fakeConn struct {
	mu      sync.Mutex
	tables  map[godbus.ObjectPath]map[string]interface{}
	names   []string
	reply   godbus.RequestNameReply
	signals []signal
	emitErr error
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{tables: map[godbus.ObjectPath]map[string]interface{}{}, reply: godbus.RequestNameReplyPrimaryOwner}
}

func (f *fakeConn) ExportMethodTable(m map[string]interface{}, p godbus.ObjectPath, iface string) error {
	if iface != ItemInterface {
		return errors.New("unexpected interface " + iface)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[p] = m
	return nil
}

func (f *fakeConn) RequestName(name string, _ godbus.RequestNameFlags) (godbus.RequestNameReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, name)
	return f.reply, nil
}

func (f *fakeConn) Emit(p godbus.ObjectPath, name string, values ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emitErr != nil {
		return f.emitErr
	}
	body, _ := values[0].(map[string]godbus.Variant)
	f.signals = append(f.signals, signal{path: p, name: name, body: body})
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) getValue(t *testing.T, path string) godbus.Variant {
	t.Helper()
	fn, ok := f.tables[godbus.ObjectPath(path)]["GetValue"].(func() (godbus.Variant, *godbus.Error))
	require.True(t, ok, path)
	v, derr := fn()
	require.Nil(t, derr)
	return v
}

func (f *fakeConn) getText(t *testing.T, path string) string {
	t.Helper()
	fn, ok := f.tables[godbus.ObjectPath(path)]["GetText"].(func() (string, *godbus.Error))
	require.True(t, ok, path)
	s, derr := fn()
	require.Nil(t, derr)
	return s
}

func registered(t *testing.T) (*Service, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	s := newService(func() (busConn, error) { return conn, nil })
	entries := []store.Entry{
		{Path: store.PathUpdateIndex, Value: store.Int(0), Format: store.FormatCount},
		{Path: "/Dc/0/Voltage", Value: store.Float(13.45), Format: store.FormatVolts},
		{Path: store.PathYieldPower, Value: store.Absent(), Format: store.FormatWatts},
	}
	require.NoError(t, s.Register(context.Background(), charger.NewDevice(7, "Roof"), entries))
	return s, conn
}

func TestRegisterExportsPaths(t *testing.T) {
	s, conn := registered(t)

	assert.Equal(t, []string{"com.victronenergy.solarcharger.mqtt_solarcharger_7"}, conn.names)
	assert.Equal(t, conn.names[0], s.Name())
	for _, p := range []string{
		"/", "/Mgmt/ProcessName", "/Mgmt/ProcessVersion", "/Mgmt/Connection",
		"/DeviceInstance", "/ProductId", "/ProductName", "/CustomName",
		"/FirmwareVersion", "/HardwareVersion", "/Connected", "/Latency",
		"/UpdateIndex", "/Dc/0/Voltage", "/Yield/Power",
	} {
		assert.Contains(t, conn.tables, godbus.ObjectPath(p))
	}

	assert.Equal(t, int32(7), conn.getValue(t, "/DeviceInstance").Value())
	assert.Equal(t, int32(0xFFFF), conn.getValue(t, "/ProductId").Value())
	assert.Equal(t, "Roof", conn.getValue(t, "/CustomName").Value())
	assert.Equal(t, int32(1), conn.getValue(t, "/Connected").Value())
	assert.Equal(t, 13.45, conn.getValue(t, "/Dc/0/Voltage").Value())
	assert.Equal(t, "13.45V", conn.getText(t, "/Dc/0/Voltage"))
	assert.Equal(t, []int32{}, conn.getValue(t, "/Yield/Power").Value())
	assert.Equal(t, "---", conn.getText(t, "/Yield/Power"))
}

func TestRegisterNameTaken(t *testing.T) {
	conn := newFakeConn()
	conn.reply = godbus.RequestNameReplyExists
	s := newService(func() (busConn, error) { return conn, nil })
	err := s.Register(context.Background(), charger.NewDevice(1, ""), nil)
	assert.ErrorContains(t, err, "already taken")
	assert.True(t, conn.closed)
	assert.ErrorIs(t, s.SetValue("/Connected", store.Int(1)), ErrNotRegistered)
}

func TestRegisterCanceled(t *testing.T) {
	dialed := false
	s := newService(func() (busConn, error) { dialed = true; return newFakeConn(), nil })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Register(ctx, charger.NewDevice(1, ""), nil), context.Canceled)
	assert.False(t, dialed)
}

func TestSetValueEmitsOnChange(t *testing.T) {
	s, conn := registered(t)

	require.NoError(t, s.SetValue(store.PathYieldPower, store.Float(142.4)))
	require.NoError(t, s.SetValue(store.PathYieldPower, store.Float(142.4)))
	require.Len(t, conn.signals, 1)
	sig := conn.signals[0]
	assert.Equal(t, godbus.ObjectPath("/Yield/Power"), sig.path)
	assert.Equal(t, "com.victronenergy.BusItem.PropertiesChanged", sig.name)
	assert.Equal(t, 142.4, sig.body["Value"].Value())
	assert.Equal(t, "142W", sig.body["Text"].Value())

	require.NoError(t, s.SetValue(store.PathYieldPower, store.Absent()))
	assert.Equal(t, []int32{}, conn.signals[1].body["Value"].Value())

	assert.ErrorIs(t, s.SetValue("/Nope", store.Int(1)), store.ErrUnknownPath)
}

func TestSetValueEmitFailure(t *testing.T) {
	s, conn := registered(t)
	conn.emitErr = errors.New("broken pipe")
	err := s.SetValue(store.PathUpdateIndex, store.Int(3))
	assert.ErrorContains(t, err, "broken pipe")
	assert.NotErrorIs(t, err, charger.ErrUnsupportedType)
}

func TestExternalSetValueAccepted(t *testing.T) {
	s, conn := registered(t)
	fn := conn.tables["/CustomName"]["SetValue"].(func(godbus.Variant) (int32, *godbus.Error))
	rc, derr := fn(godbus.MakeVariant("Garage"))
	require.Nil(t, derr)
	assert.Equal(t, int32(0), rc)
	v, _ := s.Value("/CustomName")
	assert.Equal(t, store.String("Garage"), v)
}

func TestRootMethods(t *testing.T) {
	_, conn := registered(t)
	items := conn.tables["/"]["GetItems"].(func() (map[string]map[string]godbus.Variant, *godbus.Error))
	all, derr := items()
	require.Nil(t, derr)
	assert.Equal(t, "13.45V", all["/Dc/0/Voltage"]["Text"].Value())

	values := conn.tables["/"]["GetValue"].(func() (map[string]godbus.Variant, *godbus.Error))
	vals, derr := values()
	require.Nil(t, derr)
	assert.Equal(t, int32(0), vals["UpdateIndex"].Value())
	assert.Len(t, vals, len(all))
}

func TestIntermediateNodesAnswerWithSubtree(t *testing.T) {
	s, conn := registered(t)
	for _, p := range []string{"/Dc", "/Dc/0", "/Mgmt", "/Yield"} {
		assert.Contains(t, conn.tables, godbus.ObjectPath(p))
	}
	assert.Equal(t, []string{"/Dc", "/Dc/0", "/Mgmt", "/Yield"}, treeNodes(s.items))

	values := conn.tables["/Dc"]["GetValue"].(func() (map[string]godbus.Variant, *godbus.Error))
	vals, derr := values()
	require.Nil(t, derr)
	require.Len(t, vals, 1)
	assert.Equal(t, 13.45, vals["0/Voltage"].Value())

	texts := conn.tables["/Dc/0"]["GetText"].(func() (map[string]string, *godbus.Error))
	txt, derr := texts()
	require.Nil(t, derr)
	assert.Equal(t, map[string]string{"Voltage": "13.45V"}, txt)

	require.NoError(t, s.SetValue(store.PathYieldPower, store.Int(90)))
	values = conn.tables["/Yield"]["GetValue"].(func() (map[string]godbus.Variant, *godbus.Error))
	vals, derr = values()
	require.Nil(t, derr)
	assert.Equal(t, int32(90), vals["Power"].Value())
}

func TestVariantMapping(t *testing.T) {
	v, err := toVariant(store.Int(math.MaxInt32 + 1))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt32+1), v.Value())

	v, err = toVariant(store.Int(-5))
	require.NoError(t, err)
	assert.Equal(t, int32(-5), v.Value())

	v, err = toVariant(store.String("x"))
	require.NoError(t, err)
	assert.Equal(t, "x", v.Value())

	assert.Equal(t, store.Absent(), fromVariant(godbus.MakeVariant([]int32{})))
	assert.Equal(t, store.Int(1), fromVariant(godbus.MakeVariant(true)))
	assert.Equal(t, store.Float(2.5), fromVariant(godbus.MakeVariant(2.5)))
}

func TestNewRejectsUnknownBus(t *testing.T) {
	_, err := New("tcp")
	assert.Error(t, err)
	s, err := New("session")
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}
