package env

import (
	"errors"
	"fmt"
	"io"

	"github.com/golang/glog"

	"github.com/robotalks/feldbus.go/pkg/config"
	"github.com/robotalks/feldbus.go/pkg/feldbus"
	"github.com/robotalks/feldbus.go/pkg/feldbus/aktor"
	"github.com/robotalks/feldbus.go/pkg/feldbus/aseb"
	"github.com/robotalks/feldbus.go/pkg/feldbus/bootloader"
	"github.com/robotalks/feldbus.go/pkg/feldbus/muxer"
	"github.com/robotalks/feldbus.go/pkg/feldbus/sensor"
)

var (
	// ErrNoSuchDevice indicates an unknown device name.
	ErrNoSuchDevice = errors.New("no such device")
	// ErrWrongKind indicates a device configured with another role.
	ErrWrongKind = errors.New("device has another kind")
)

// Bus is an opened bus with the typed role of every configured device.
type Bus struct {
	*feldbus.Bus
	Description *config.Config

	roles map[string]feldbus.Slave
	kinds map[string]string
	conn  io.Closer
}

// Build creates the devices of desc on tr. desc must be normalized.
func Build(desc *config.Config, tr feldbus.Transport) (*Bus, error) {
	b := &Bus{
		Bus:         feldbus.NewBus(tr),
		Description: desc,
		roles:       make(map[string]feldbus.Slave),
		kinds:       make(map[string]string),
	}
	for i := range desc.Devices {
		dc := &desc.Devices[i]
		cfg, err := dc.DeviceConfig()
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", dc.Name, err)
		}
		dev, err := b.NewDevice(cfg)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", dc.Name, err)
		}
		role, err := newRole(dc, dev)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", dc.Name, err)
		}
		b.roles[dev.Name()] = role
		b.kinds[dev.Name()] = dc.Kind
		glog.V(2).Infof("device %s: %s at %d", dev.Name(), dc.Kind, dev.Address())
	}
	return b, nil
}

func newRole(dc *config.DeviceConfig, dev *feldbus.Device) (feldbus.Slave, error) {
	switch dc.Kind {
	case config.KindAktor:
		return aktor.New(dev, dc.MaxCommands), nil
	case config.KindServo:
		return aktor.NewServo(dev), nil
	case config.KindSensor:
		return sensor.New(dev), nil
	case config.KindAseb:
		return aseb.New(dev), nil
	case config.KindMuxer:
		return muxer.New(dev), nil
	case config.KindBootloader:
		family, ok := bootloader.FamilyByName(dc.Family)
		if !ok {
			return nil, fmt.Errorf("unknown bootloader family %q", dc.Family)
		}
		return bootloader.New(dev, family), nil
	}
	return dev, nil
}

// Close closes the transport if the bus owns it.
func (b *Bus) Close() error {
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

// Role returns the typed role object of a device.
func (b *Bus) Role(name string) (feldbus.Slave, error) {
	if role, ok := b.roles[name]; ok {
		return role, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNoSuchDevice, name)
}

// Kind returns the configured kind of a device.
func (b *Bus) Kind(name string) string {
	return b.kinds[name]
}

// Lookup finds the role of name and checks its type.
func Lookup[T feldbus.Slave](b *Bus, name string) (T, error) {
	var zero T
	role, err := b.Role(name)
	if err != nil {
		return zero, err
	}
	typed, ok := role.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q is %s", ErrWrongKind, name, b.kinds[name])
	}
	return typed, nil
}
