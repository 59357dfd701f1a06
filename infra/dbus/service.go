// Package dbus exposes the charger store as a Victron style D-Bus service:
// one com.victronenergy.BusItem object per path plus a root object
// answering bulk queries.
package dbus

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	godbus "github.com/godbus/dbus/v5"

	"github.com/kilianp07/solarcharger/core/charger"
	"github.com/kilianp07/solarcharger/core/store"
	"github.com/kilianp07/solarcharger/infra/logger"
)

const (
	// ItemInterface is implemented by every exported path.
	ItemInterface     = "com.victronenergy.BusItem"
	propertiesChanged = ItemInterface + ".PropertiesChanged"
)

// Bus selects the message bus to connect to.
const (
	BusSystem  = "system"
	BusSession = "session"
)

// ErrNotRegistered is returned when values are pushed before Register.
var ErrNotRegistered = errors.New("dbus service not registered")

// busConn is the part of *godbus.Conn the service needs.
type busConn interface {
	ExportMethodTable(methods map[string]interface{}, path godbus.ObjectPath, iface string) error
	RequestName(name string, flags godbus.RequestNameFlags) (godbus.RequestNameReply, error)
	Emit(path godbus.ObjectPath, name string, values ...interface{}) error
	Close() error
}

type item struct {
	path   string
	value  store.Value
	format store.Format
}

func (it *item) text() string { return it.format.Render(it.value) }

// Service implements charger.Sink on D-Bus.
type Service struct {
	dial func() (busConn, error)
	log  logger.Logger

	mu    sync.RWMutex
	conn  busConn
	name  string
	items map[string]*item
}

// New returns a Service for the given bus ("system" or "session"). The
// connection is opened by Register.
func New(bus string) (*Service, error) {
	var dial func() (busConn, error)
	switch strings.ToLower(bus) {
	case "", BusSystem:
		dial = func() (busConn, error) { return godbus.ConnectSystemBus() }
	case BusSession:
		dial = func() (busConn, error) { return godbus.ConnectSessionBus() }
	default:
		return nil, fmt.Errorf("unknown bus %q", bus)
	}
	return newService(dial), nil
}

func newService(dial func() (busConn, error)) *Service {
	return &Service{dial: dial, log: logger.New("dbus"), items: map[string]*item{}}
}

// Name returns the requested bus name once registered.
func (s *Service) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// Register connects, exports the identity paths and the given entries, then
// claims the device service name.
func (s *Service) Register(ctx context.Context, dev charger.Device, entries []store.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return errors.New("dbus service already registered")
	}

	conn, err := s.dial()
	if err != nil {
		return fmt.Errorf("connect bus: %w", err)
	}
	fail := func(err error) error {
		_ = conn.Close()
		s.items = map[string]*item{}
		return err
	}

	all := append(identityEntries(dev), entries...)
	items := make(map[string]*item, len(all))
	for _, e := range all {
		if _, err := toVariant(e.Value); err != nil {
			return fail(fmt.Errorf("register %s: %w", e.Path, err))
		}
		items[e.Path] = &item{path: e.Path, value: e.Value, format: e.Format}
	}
	// bus calls block on s.mu until registration completes
	s.items = items
	for _, e := range all {
		if err := conn.ExportMethodTable(s.itemMethods(e.Path), godbus.ObjectPath(e.Path), ItemInterface); err != nil {
			return fail(fmt.Errorf("export %s: %w", e.Path, err))
		}
	}
	for _, node := range treeNodes(items) {
		if err := conn.ExportMethodTable(s.treeMethods(node), godbus.ObjectPath(node), ItemInterface); err != nil {
			return fail(fmt.Errorf("export %s: %w", node, err))
		}
	}
	if err := conn.ExportMethodTable(s.rootMethods(), "/", ItemInterface); err != nil {
		return fail(fmt.Errorf("export root: %w", err))
	}

	name := dev.ServiceName()
	reply, err := conn.RequestName(name, godbus.NameFlagDoNotQueue)
	if err != nil {
		return fail(fmt.Errorf("request name %s: %w", name, err))
	}
	if reply != godbus.RequestNameReplyPrimaryOwner {
		return fail(fmt.Errorf("bus name %s already taken", name))
	}
	s.conn = conn
	s.name = name
	s.log.Infof("registered %s with %d paths", name, len(all))
	return nil
}

// SetValue updates one path and signals the change to bus clients.
func (s *Service) SetValue(path string, v store.Value) error {
	variant, err := toVariant(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.conn == nil {
		s.mu.Unlock()
		return ErrNotRegistered
	}
	it, ok := s.items[path]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", store.ErrUnknownPath, path)
	}
	if it.value.Equal(v) {
		s.mu.Unlock()
		return nil
	}
	it.value = v
	text := it.text()
	conn := s.conn
	s.mu.Unlock()

	changes := map[string]godbus.Variant{
		"Value": variant,
		"Text":  godbus.MakeVariant(text),
	}
	if err := conn.Emit(godbus.ObjectPath(path), propertiesChanged, changes); err != nil {
		return fmt.Errorf("emit %s: %w", path, err)
	}
	return nil
}

// Close releases the bus connection.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// Value returns the cached value of path.
func (s *Service) Value(path string) (store.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[path]
	if !ok {
		return store.Absent(), false
	}
	return it.value, true
}

func (s *Service) itemMethods(path string) map[string]interface{} {
	return map[string]interface{}{
		"GetValue": func() (godbus.Variant, *godbus.Error) {
			s.mu.RLock()
			defer s.mu.RUnlock()
			v, err := toVariant(s.items[path].value)
			if err != nil {
				return godbus.Variant{}, godbus.MakeFailedError(err)
			}
			return v, nil
		},
		"GetText": func() (string, *godbus.Error) {
			s.mu.RLock()
			defer s.mu.RUnlock()
			return s.items[path].text(), nil
		},
		"SetValue": func(v godbus.Variant) (int32, *godbus.Error) {
			return s.externalSet(path, v), nil
		},
	}
}

// externalSet stores a value written by another bus client.
func (s *Service) externalSet(path string, v godbus.Variant) int32 {
	val := fromVariant(v)
	s.log.Debugf("someone else updated %s to %s", path, val)
	s.mu.Lock()
	s.items[path].value = val
	s.mu.Unlock()
	return 0
}

func (s *Service) rootMethods() map[string]interface{} {
	m := s.treeMethods("/")
	m["GetItems"] = func() (map[string]map[string]godbus.Variant, *godbus.Error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		out := make(map[string]map[string]godbus.Variant, len(s.items))
		for p, it := range s.items {
			v, err := toVariant(it.value)
			if err != nil {
				return nil, godbus.MakeFailedError(err)
			}
			out[p] = map[string]godbus.Variant{
				"Value": v,
				"Text":  godbus.MakeVariant(it.text()),
			}
		}
		return out, nil
	}
	return m
}

// treeMethods serves a node above the leaves. GetValue and GetText return
// every path below node, keyed relative to it.
func (s *Service) treeMethods(node string) map[string]interface{} {
	prefix := strings.TrimSuffix(node, "/") + "/"
	return map[string]interface{}{
		"GetValue": func() (map[string]godbus.Variant, *godbus.Error) {
			s.mu.RLock()
			defer s.mu.RUnlock()
			out := make(map[string]godbus.Variant)
			for p, it := range s.items {
				if !strings.HasPrefix(p, prefix) {
					continue
				}
				v, err := toVariant(it.value)
				if err != nil {
					return nil, godbus.MakeFailedError(err)
				}
				out[strings.TrimPrefix(p, prefix)] = v
			}
			return out, nil
		},
		"GetText": func() (map[string]string, *godbus.Error) {
			s.mu.RLock()
			defer s.mu.RUnlock()
			out := make(map[string]string)
			for p, it := range s.items {
				if strings.HasPrefix(p, prefix) {
					out[strings.TrimPrefix(p, prefix)] = it.text()
				}
			}
			return out, nil
		},
	}
}

// treeNodes returns the intermediate nodes of the item paths, e.g. /Dc and
// /Dc/0 for /Dc/0/Voltage. A node that is also an item is left out.
func treeNodes(items map[string]*item) []string {
	seen := map[string]bool{}
	for p := range items {
		for i := strings.LastIndex(p, "/"); i > 0; i = strings.LastIndex(p[:i], "/") {
			node := p[:i]
			if _, leaf := items[node]; !leaf {
				seen[node] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Paths lists the exported paths in order.
func (s *Service) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.items))
	for p := range s.items {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func identityEntries(dev charger.Device) []store.Entry {
	str := func(p, v string) store.Entry {
		return store.Entry{Path: p, Value: store.String(v), Format: store.FormatText}
	}
	num := func(p string, v int) store.Entry {
		return store.Entry{Path: p, Value: store.Int(int64(v)), Format: store.FormatCount}
	}
	return []store.Entry{
		str("/Mgmt/ProcessName", dev.ProcessName),
		str("/Mgmt/ProcessVersion", dev.ProcessVersion),
		str("/Mgmt/Connection", dev.Connection),
		num("/DeviceInstance", dev.Instance),
		num("/ProductId", dev.ProductID),
		str("/ProductName", dev.ProductName),
		str("/CustomName", dev.CustomName),
		num("/FirmwareVersion", dev.FirmwareVersion),
		str("/HardwareVersion", dev.HardwareVersion),
		num("/Connected", 1),
		{Path: "/Latency", Value: store.Absent(), Format: store.FormatText},
	}
}
