package feldbus

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/golang/glog"
)

var (
	// ErrInvalidAddress indicates an address outside the slave range.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrInvalidAddressLength indicates an address length other than 1 or 2.
	ErrInvalidAddressLength = errors.New("invalid address length")
	// ErrInvalidChecksum indicates an unknown checksum selector.
	ErrInvalidChecksum = errors.New("invalid checksum type")
	// ErrDuplicateDevice indicates a device name is already registered.
	ErrDuplicateDevice = errors.New("duplicate device")
)

// Bus is one shared half-duplex medium. It owns the lock serializing all
// transceives and the registry of devices attached to it.
type Bus struct {
	transport Transport
	lock      sync.Mutex

	regLock sync.RWMutex
	devices map[string]*Device
}

// NewBus creates a Bus over transport.
func NewBus(transport Transport) *Bus {
	return &Bus{transport: transport, devices: make(map[string]*Device)}
}

// Transport returns the underlying transport.
func (b *Bus) Transport() Transport {
	return b.transport
}

// NewDevice creates and registers a device.
func (b *Bus) NewDevice(cfg Config) (*Device, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("device %q: %w", cfg.Name, err)
	}
	b.regLock.Lock()
	defer b.regLock.Unlock()
	if _, exist := b.devices[cfg.Name]; exist {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateDevice, cfg.Name)
	}
	dev := newDevice(b, cfg)
	b.devices[cfg.Name] = dev
	glog.V(1).Infof("device %s registered at %d (%s)", cfg.Name, cfg.Address, cfg.Checksum)
	return dev, nil
}

// Device finds a registered device by name.
func (b *Bus) Device(name string) *Device {
	b.regLock.RLock()
	defer b.regLock.RUnlock()
	return b.devices[name]
}

// Devices returns registered devices ordered by address.
func (b *Bus) Devices() []*Device {
	b.regLock.RLock()
	devs := make([]*Device, 0, len(b.devices))
	for _, dev := range b.devices {
		devs = append(devs, dev)
	}
	b.regLock.RUnlock()
	sort.Slice(devs, func(i, j int) bool {
		if devs[i].address == devs[j].address {
			return devs[i].name < devs[j].name
		}
		return devs[i].address < devs[j].address
	})
	return devs
}

// ScanResult is a responding address found by Scan.
type ScanResult struct {
	Address uint16
	Info    DeviceInfo
	HasInfo bool
}

// Scan pings every address in [from, to] with a single attempt and
// reports responders. Scanned devices are not registered.
func (b *Bus) Scan(from, to uint16, addrLen int, checksum ChecksumType) ([]ScanResult, error) {
	if err := (Config{Address: 1, AddressLength: addrLen, Checksum: checksum}).Validate(); err != nil {
		return nil, err
	}
	if from == BroadcastAddress {
		from++
	}
	if last := MaxAddress(addrLen); to > last {
		to = last
	}
	var results []ScanResult
	for addr := uint32(from); addr <= uint32(to); addr++ {
		dev := newDevice(b, Config{
			Address:       uint16(addr),
			AddressLength: addrLen,
			Checksum:      checksum,
			MaxAttempts:   1,
		}.withDefaults())
		if !dev.Ping() {
			continue
		}
		res := ScanResult{Address: uint16(addr)}
		res.Info, res.HasInfo = dev.Info()
		glog.V(1).Infof("scan: found device at %d", addr)
		results = append(results, res)
	}
	return results, nil
}
