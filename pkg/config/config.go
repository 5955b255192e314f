// Package config loads the YAML description of a bus and its devices.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/feldbus.go/pkg/feldbus"
)

// Device kinds.
const (
	KindDevice     = "device"
	KindAktor      = "aktor"
	KindServo      = "servo"
	KindSensor     = "sensor"
	KindAseb       = "aseb"
	KindMuxer      = "muxer"
	KindBootloader = "bootloader"
)

// Config is the root of a bus description file.
type Config struct {
	Bus       BusConfig       `yaml:"bus"`
	Devices   []DeviceConfig  `yaml:"devices"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// BusConfig selects the transport.
type BusConfig struct {
	// Transport is a URL like serial:///dev/ttyUSB0?baud=115200,
	// tcp://host:port or ws://host/path.
	Transport string `yaml:"transport"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// DeviceConfig describes one slave on the bus.
type DeviceConfig struct {
	Name          string `yaml:"name"`
	Kind          string `yaml:"kind"`
	Address       uint16 `yaml:"address"`
	AddressLength int    `yaml:"address_length"`
	Checksum      string `yaml:"checksum"`
	MaxAttempts   int    `yaml:"max_attempts"`
	MaxErrors     int    `yaml:"max_errors"`

	// MaxCommands bounds the command table of aktor devices.
	MaxCommands int `yaml:"max_commands"`
	// Family of bootloader devices: atmega, xmega or stm32.
	Family string `yaml:"family"`
}

// TelemetryConfig configures health polling and export.
type TelemetryConfig struct {
	PollIntervalMs int    `yaml:"poll_interval_ms"`
	MQTTURL        string `yaml:"mqtt_url"`
	MetricsAddr    string `yaml:"metrics_addr"`
}

// Defaults applied by Normalize.
const (
	DefaultTimeoutMs      = 20
	DefaultKind           = KindDevice
	DefaultChecksum       = "crc8"
	DefaultMaxCommands    = 32
	DefaultFamily         = "atmega"
	DefaultPollIntervalMs = 1000
)

// Timeout returns the reply timeout of the bus.
func (c *BusConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// PollInterval returns the health polling interval.
func (c *TelemetryConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// DeviceConfig converts into the engine configuration.
// Call it on normalized configurations only.
func (d *DeviceConfig) DeviceConfig() (feldbus.Config, error) {
	checksum, err := feldbus.ParseChecksumType(d.Checksum)
	if err != nil {
		return feldbus.Config{}, err
	}
	return feldbus.Config{
		Name:          d.Name,
		Address:       d.Address,
		AddressLength: d.AddressLength,
		Checksum:      checksum,
		MaxAttempts:   d.MaxAttempts,
		MaxErrors:     d.MaxErrors,
	}, nil
}

// Parse decodes, validates and normalizes a configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	Normalize(&cfg)
	return &cfg, nil
}

// Load reads the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}
