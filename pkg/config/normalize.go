package config

import (
	"fmt"

	"github.com/robotalks/feldbus.go/pkg/feldbus"
)

// Normalize fills in defaults. It must be called after Validate.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.Bus.TimeoutMs == 0 {
		cfg.Bus.TimeoutMs = DefaultTimeoutMs
	}
	if cfg.Telemetry.PollIntervalMs == 0 {
		cfg.Telemetry.PollIntervalMs = DefaultPollIntervalMs
	}
	for i := range cfg.Devices {
		d := &cfg.Devices[i]
		if d.Kind == "" {
			d.Kind = DefaultKind
		}
		if d.AddressLength == 0 {
			d.AddressLength = feldbus.DefaultAddressWidth
		}
		if d.Checksum == "" {
			d.Checksum = DefaultChecksum
		}
		if d.MaxAttempts == 0 {
			d.MaxAttempts = feldbus.DefaultMaxAttempts
		}
		if d.MaxErrors == 0 {
			d.MaxErrors = feldbus.DefaultMaxErrors
		}
		if d.Kind == KindAktor && d.MaxCommands == 0 {
			d.MaxCommands = DefaultMaxCommands
		}
		if d.Kind == KindBootloader && d.Family == "" {
			d.Family = DefaultFamily
		}
		d.Name = deviceName(*d)
	}
}

// deviceName is the configured name, or <kind>@<address> when unnamed.
func deviceName(d DeviceConfig) string {
	if d.Name != "" {
		return d.Name
	}
	kind := d.Kind
	if kind == "" {
		kind = DefaultKind
	}
	return fmt.Sprintf("%s@%d", kind, d.Address)
}
