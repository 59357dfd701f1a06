package charger

import (
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strconv"
)

// Identity constants of the exported device.
const (
	ProductID       = 0xFFFF
	ProductName     = "MQTT Solar Charger"
	FirmwareVersion = 399
	HardwareVersion = "1.0.4 (20250217)"
	ConnectionName  = "MQTT Solar Charger service"

	servicePrefix = "com.victronenergy.solarcharger.mqtt_solarcharger_"
)

// Device is the identity registered with the downstream service. None of it
// is derived from telemetry.
type Device struct {
	Instance        int
	CustomName      string
	ProductName     string
	ProductID       int
	FirmwareVersion int
	HardwareVersion string
	Connection      string
	ProcessName     string
	ProcessVersion  string
}

// NewDevice returns the identity for the given device instance.
func NewDevice(instance int, customName string) Device {
	if customName == "" {
		customName = ProductName
	}
	return Device{
		Instance:        instance,
		CustomName:      customName,
		ProductName:     ProductName,
		ProductID:       ProductID,
		FirmwareVersion: FirmwareVersion,
		HardwareVersion: HardwareVersion,
		Connection:      ConnectionName,
		ProcessName:     processName(),
		ProcessVersion:  processVersion(),
	}
}

// ServiceName is the bus name the device is registered under.
func (d Device) ServiceName() string {
	return servicePrefix + strconv.Itoa(d.Instance)
}

func processName() string {
	exe, err := os.Executable()
	if err != nil {
		return filepath.Base(os.Args[0])
	}
	return filepath.Base(exe)
}

func processVersion() string {
	v := "(devel)"
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" {
		v = bi.Main.Version
	}
	return v + " running on Go " + runtime.Version()
}
