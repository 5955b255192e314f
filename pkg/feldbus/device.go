package feldbus

import (
	"fmt"
	"time"

	"github.com/golang/glog"
	"golang.org/x/time/rate"
)

// Defaults of Config.
const (
	DefaultMaxAttempts  = 5
	DefaultMaxErrors    = 35
	DefaultLogThrottle  = 5 * time.Second
	DefaultAddressWidth = 1
)

// Protocol ids reported in DeviceInfo and used as broadcast class selector.
const (
	ProtocolAktor      byte = 0x01
	ProtocolSensor     byte = 0x02
	ProtocolASEB       byte = 0x03
	ProtocolBootloader byte = 0x04
	ProtocolMuxer      byte = 0x05
)

// Config is the static configuration of a Device.
type Config struct {
	Name          string
	Address       uint16
	AddressLength int
	Checksum      ChecksumType
	// MaxAttempts bounds transport calls per transceive on a healthy device.
	MaxAttempts int
	// MaxErrors is the current error count above which the device is
	// considered dysfunctional.
	MaxErrors int
	// LogThrottle is the minimum interval between failure logs.
	LogThrottle time.Duration
}

func (c Config) withDefaults() Config {
	if c.AddressLength == 0 {
		c.AddressLength = DefaultAddressWidth
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.MaxErrors <= 0 {
		c.MaxErrors = DefaultMaxErrors
	}
	if c.LogThrottle <= 0 {
		c.LogThrottle = DefaultLogThrottle
	}
	if c.Name == "" {
		c.Name = fmt.Sprintf("device@%d", c.Address)
	}
	return c
}

// Validate checks the address range and checksum selector.
func (c Config) Validate() error {
	if c.AddressLength != 1 && c.AddressLength != 2 {
		return fmt.Errorf("%w: %d", ErrInvalidAddressLength, c.AddressLength)
	}
	if c.Address == BroadcastAddress || c.Address > MaxAddress(c.AddressLength) {
		return fmt.Errorf("%w: %d for %d byte addressing", ErrInvalidAddress, c.Address, c.AddressLength)
	}
	if !c.Checksum.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidChecksum, c.Checksum)
	}
	return nil
}

// Counters is a snapshot of the host side error accounting of a Device.
type Counters struct {
	Successes      uint64
	TransmitErrors uint64
	NoAnswer       uint64
	MissingData    uint64
	ChecksumErrors uint64
	CurrentErrors  uint32
	Dysfunctional  bool
}

// Slave is the capability set shared by all device roles.
type Slave interface {
	Name() string
	Address() uint16
	Transceive(req Encoder, resp Decoder) bool
	IsDysfunctional() bool
}

// Device is the protocol engine talking to one slave.
type Device struct {
	bus         *Bus
	name        string
	address     uint16
	addrLen     int
	checksum    ChecksumType
	maxAttempts int
	maxErrors   uint32
	logThrottle time.Duration

	// guarded by bus.lock
	counters     Counters
	failureLog   *rate.Sometimes
	info         DeviceInfo
	infoValid    bool
	availChecked bool
	txBuf, rxBuf []byte
}

func newDevice(bus *Bus, cfg Config) *Device {
	return &Device{
		bus:         bus,
		name:        cfg.Name,
		address:     cfg.Address,
		addrLen:     cfg.AddressLength,
		checksum:    cfg.Checksum,
		maxAttempts: cfg.MaxAttempts,
		maxErrors:   uint32(cfg.MaxErrors),
		logThrottle: cfg.LogThrottle,
		failureLog:  &rate.Sometimes{Interval: cfg.LogThrottle},
	}
}

// Name returns the configured name.
func (d *Device) Name() string {
	return d.name
}

// Address returns the bus address.
func (d *Device) Address() uint16 {
	return d.address
}

// AddressLength returns the number of address bytes in a frame.
func (d *Device) AddressLength() int {
	return d.addrLen
}

// Checksum returns the checksum algorithm.
func (d *Device) Checksum() ChecksumType {
	return d.checksum
}

// Bus returns the bus the device is attached to.
func (d *Device) Bus() *Bus {
	return d.bus
}

// IsDysfunctional reports whether the error threshold is exceeded.
func (d *Device) IsDysfunctional() bool {
	d.bus.lock.Lock()
	defer d.bus.lock.Unlock()
	return d.dysfunctional()
}

func (d *Device) dysfunctional() bool {
	return d.counters.CurrentErrors > d.maxErrors
}

// Transceive sends req and receives resp. A nil resp sends req as a
// broadcast and expects no reply.
func (d *Device) Transceive(req Encoder, resp Decoder) bool {
	d.bus.lock.Lock()
	defer d.bus.lock.Unlock()
	return d.transceive(req, resp, false)
}

// TransceiveIgnoringHealth is Transceive which still talks to a
// dysfunctional device, with a single attempt.
func (d *Device) TransceiveIgnoringHealth(req Encoder, resp Decoder) bool {
	d.bus.lock.Lock()
	defer d.bus.lock.Unlock()
	return d.transceive(req, resp, true)
}

// Broadcast sends req to all devices on the bus.
func (d *Device) Broadcast(req Encoder) bool {
	return d.Transceive(req, nil)
}

type attemptResult int

const (
	attemptSuccess attemptResult = iota
	attemptTransmitError
	attemptNoAnswer
	attemptMissingData
	attemptChecksumError
)

func (r attemptResult) String() string {
	switch r {
	case attemptSuccess:
		return "success"
	case attemptTransmitError:
		return "transmit error"
	case attemptNoAnswer:
		return "no answer"
	case attemptMissingData:
		return "missing data"
	case attemptChecksumError:
		return "checksum error"
	}
	return "unknown"
}

func classify(txLen, rxLen, sent, received int, status Status) attemptResult {
	switch {
	case status == StatusSuccess:
		return attemptSuccess
	case sent < txLen:
		return attemptTransmitError
	case status == StatusChecksumError:
		return attemptChecksumError
	case rxLen > 0 && received == 0:
		return attemptNoAnswer
	case received < rxLen:
		return attemptMissingData
	}
	return attemptTransmitError
}

func (d *Device) buffers(txLen, rxLen int) ([]byte, []byte) {
	if cap(d.txBuf) < txLen {
		d.txBuf = make([]byte, txLen)
	}
	if cap(d.rxBuf) < rxLen {
		d.rxBuf = make([]byte, rxLen)
	}
	return d.txBuf[:txLen], d.rxBuf[:rxLen]
}

// transceive must be called with bus.lock held.
func (d *Device) transceive(req Encoder, resp Decoder, ignoreHealth bool) bool {
	healthy := !d.dysfunctional()
	if !healthy && !ignoreHealth {
		d.failureLog.Do(func() {
			glog.Warningf("%s(%d): dysfunctional, request dropped", d.name, d.address)
		})
		return false
	}

	reqLen := 0
	if req != nil {
		reqLen = req.Len()
	}
	address, rxLen := BroadcastAddress, 0
	if resp != nil {
		address, rxLen = d.address, d.addrLen+resp.Len()+1
	}
	tx, rx := d.buffers(d.addrLen+reqLen+1, rxLen)
	if req != nil {
		req.Encode(tx[d.addrLen : d.addrLen+reqLen])
	}
	Seal(tx, address, d.addrLen, d.checksum)

	attempts := 1
	if healthy {
		attempts = d.maxAttempts
	}
	transport := d.bus.transport
	result := attemptTransmitError
	n := 0
	for n < attempts {
		n++
		transport.ClearBuffer()
		sent, received, status := transport.Transceive(tx, rx, address, d.checksum)
		result = classify(len(tx), len(rx), sent, received, status)
		if glog.V(4) {
			glog.Infof("%s(%d): attempt %d/%d tx=% x rx=% x: %s", d.name, d.address, n, attempts, tx, rx[:received], result)
		}
		switch result {
		case attemptSuccess:
			d.counters.Successes++
		case attemptTransmitError:
			d.counters.TransmitErrors++
		case attemptNoAnswer:
			d.counters.NoAnswer++
		case attemptMissingData:
			d.counters.MissingData++
		case attemptChecksumError:
			d.counters.ChecksumErrors++
		}
		if result == attemptSuccess {
			break
		}
	}

	if result == attemptSuccess {
		if resp != nil {
			resp.Decode(rx[d.addrLen : len(rx)-1])
			if d.counters.CurrentErrors > 0 {
				glog.V(2).Infof("%s(%d): recovered after %d errors", d.name, d.address, d.counters.CurrentErrors)
			}
			d.counters.CurrentErrors = 0
			d.failureLog = &rate.Sometimes{Interval: d.logThrottle}
		}
		return true
	}

	d.counters.CurrentErrors += uint32(n)
	d.failureLog.Do(func() {
		glog.Warningf("%s(%d): transceive failed after %d attempts: %s (errors %d/%d)",
			d.name, address, n, result, d.counters.CurrentErrors, d.maxErrors)
	})
	return false
}

// Counters returns a snapshot of the host side counters.
func (d *Device) Counters() Counters {
	d.bus.lock.Lock()
	defer d.bus.lock.Unlock()
	c := d.counters
	c.Dysfunctional = d.dysfunctional()
	return c
}

// ResetCounters clears cumulative and current error counters, which
// also clears dysfunction.
func (d *Device) ResetCounters() {
	d.bus.lock.Lock()
	defer d.bus.lock.Unlock()
	d.counters = Counters{}
	d.failureLog = &rate.Sometimes{Interval: d.logThrottle}
}
