package config

import (
	"errors"
	"fmt"

	"github.com/robotalks/feldbus.go/pkg/feldbus"
	"github.com/robotalks/feldbus.go/pkg/feldbus/bootloader"
)

// ErrInvalid is wrapped by all validation errors.
var ErrInvalid = errors.New("invalid configuration")

var kinds = map[string]bool{
	KindDevice:     true,
	KindAktor:      true,
	KindServo:      true,
	KindSensor:     true,
	KindAseb:       true,
	KindMuxer:      true,
	KindBootloader: true,
}

// Validate checks configuration correctness. It does not mutate cfg, so
// zero values meaning "default" are accepted.
func Validate(cfg *Config) error {
	if cfg.Bus.Transport == "" {
		return fmt.Errorf("%w: bus.transport is required", ErrInvalid)
	}
	if cfg.Bus.TimeoutMs < 0 {
		return fmt.Errorf("%w: bus.timeout_ms must not be negative", ErrInvalid)
	}
	if cfg.Telemetry.PollIntervalMs < 0 {
		return fmt.Errorf("%w: telemetry.poll_interval_ms must not be negative", ErrInvalid)
	}

	names := make(map[string]int)
	type slot struct {
		address uint16
		addrLen int
	}
	owners := make(map[slot]int)

	for i, d := range cfg.Devices {
		id := d.Name
		if id == "" {
			id = fmt.Sprintf("#%d", i)
		}
		if d.Kind != "" && !kinds[d.Kind] {
			return fmt.Errorf("%w: device %s: unknown kind %q", ErrInvalid, id, d.Kind)
		}
		if d.Checksum != "" {
			if _, err := feldbus.ParseChecksumType(d.Checksum); err != nil {
				return fmt.Errorf("%w: device %s: %v", ErrInvalid, id, err)
			}
		}
		addrLen := d.AddressLength
		if addrLen == 0 {
			addrLen = feldbus.DefaultAddressWidth
		}
		if addrLen != 1 && addrLen != 2 {
			return fmt.Errorf("%w: device %s: address_length must be 1 or 2", ErrInvalid, id)
		}
		if d.Address == feldbus.BroadcastAddress || d.Address > feldbus.MaxAddress(addrLen) {
			return fmt.Errorf("%w: device %s: address %d out of range", ErrInvalid, id, d.Address)
		}
		if d.MaxAttempts < 0 || d.MaxErrors < 0 || d.MaxCommands < 0 {
			return fmt.Errorf("%w: device %s: limits must not be negative", ErrInvalid, id)
		}
		if d.Family != "" {
			if d.Kind != KindBootloader {
				return fmt.Errorf("%w: device %s: family is only valid for bootloaders", ErrInvalid, id)
			}
			if _, ok := bootloader.FamilyByName(d.Family); !ok {
				return fmt.Errorf("%w: device %s: unknown family %q", ErrInvalid, id, d.Family)
			}
		}
		name := deviceName(d)
		if prev, exists := names[name]; exists {
			return fmt.Errorf("%w: devices #%d and #%d share name %q", ErrInvalid, prev, i, name)
		}
		names[name] = i
		key := slot{address: d.Address, addrLen: addrLen}
		if prev, exists := owners[key]; exists {
			return fmt.Errorf("%w: devices #%d and #%d share address %d", ErrInvalid, prev, i, d.Address)
		}
		owners[key] = i
	}
	return nil
}
