// Package infra contains technical adapters such as the MQTT supervisor
// and the D-Bus service. These packages should depend only on the
// interfaces defined in the core packages.
package infra
