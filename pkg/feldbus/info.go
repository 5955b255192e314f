package feldbus

import (
	"encoding/binary"
	"math"
)

// Reserved device commands, sent as [0x00] or [0x00][cmd].
const (
	cmdReserved           byte = 0x00
	cmdName               byte = 0x00
	cmdUptime             byte = 0x01
	cmdVersionInfo        byte = 0x02
	cmdAcceptedPackages   byte = 0x03
	cmdOverflowPackages   byte = 0x04
	cmdLostPackages       byte = 0x05
	cmdChecksumFailures   byte = 0x06
	cmdAllCounters        byte = 0x07
	cmdResetSlaveCounters byte = 0x08
)

// DeviceInfoSize is the wire size of DeviceInfo.
const DeviceInfoSize = 11

// DeviceInfo is the discovery record of a slave.
type DeviceInfo struct {
	ProtocolID        byte
	TypeID            byte
	CRCType           byte
	BufferSize        uint16
	Reserved          uint16
	NameLength        byte
	VersionInfoLength byte
	UptimeFrequency   uint16
}

// Len implements Decoder.
func (i *DeviceInfo) Len() int { return DeviceInfoSize }

// Decode implements Decoder.
func (i *DeviceInfo) Decode(b []byte) {
	i.ProtocolID = b[0]
	i.TypeID = b[1]
	i.CRCType = b[2]
	i.BufferSize = binary.LittleEndian.Uint16(b[3:])
	i.Reserved = binary.LittleEndian.Uint16(b[5:])
	i.NameLength = b[7]
	i.VersionInfoLength = b[8]
	i.UptimeFrequency = binary.LittleEndian.Uint16(b[9:])
}

// Encode writes the wire layout, used by simulated slaves.
func (i DeviceInfo) Encode(b []byte) {
	b[0] = i.ProtocolID
	b[1] = i.TypeID
	b[2] = i.CRCType
	binary.LittleEndian.PutUint16(b[3:], i.BufferSize)
	binary.LittleEndian.PutUint16(b[5:], i.Reserved)
	b[7] = i.NameLength
	b[8] = i.VersionInfoLength
	binary.LittleEndian.PutUint16(b[9:], i.UptimeFrequency)
}

// Bytes returns the wire layout.
func (i DeviceInfo) Bytes() []byte {
	b := make([]byte, DeviceInfoSize)
	i.Encode(b)
	return b
}

// Info returns the cached DeviceInfo, discovering it on first use.
func (d *Device) Info() (DeviceInfo, bool) {
	d.bus.lock.Lock()
	defer d.bus.lock.Unlock()
	ok := d.infoLocked()
	return d.info, ok
}

func (d *Device) infoLocked() bool {
	if d.infoValid {
		return true
	}
	var info DeviceInfo
	if !d.transceive(U8(cmdReserved), &info, false) {
		return false
	}
	d.info, d.infoValid = info, true
	return true
}

// InvalidateInfo drops the cached DeviceInfo.
func (d *Device) InvalidateInfo() {
	d.bus.lock.Lock()
	d.infoValid = false
	d.bus.lock.Unlock()
}

// Uptime returns the slave uptime in seconds. It is NaN without
// bus traffic if the slave has no uptime clock.
func (d *Device) Uptime() (float64, bool) {
	d.bus.lock.Lock()
	defer d.bus.lock.Unlock()
	if !d.infoLocked() {
		return math.NaN(), false
	}
	if d.info.UptimeFrequency == 0 {
		return math.NaN(), true
	}
	var ticks U32
	if !d.transceive(Concat(U8(cmdReserved), U8(cmdUptime)), &ticks, false) {
		return math.NaN(), false
	}
	return float64(ticks) / float64(d.info.UptimeFrequency), true
}

// DeviceName queries the name string of the slave.
func (d *Device) DeviceName() (string, bool) {
	return d.receiveString(cmdName, func(i *DeviceInfo) int { return int(i.NameLength) })
}

// VersionInfo queries the version string of the slave.
func (d *Device) VersionInfo() (string, bool) {
	return d.receiveString(cmdVersionInfo, func(i *DeviceInfo) int { return int(i.VersionInfoLength) })
}

func (d *Device) receiveString(cmd byte, length func(*DeviceInfo) int) (string, bool) {
	d.bus.lock.Lock()
	defer d.bus.lock.Unlock()
	if !d.infoLocked() {
		return "", false
	}
	n := length(&d.info)
	if n == 0 {
		return "", true
	}
	buf := make(Bytes, n)
	if !d.transceive(Concat(U8(cmdReserved), U8(cmd)), buf, false) {
		return "", false
	}
	return string(buf), true
}

// SlaveCounters are the package statistics kept by the slave.
type SlaveCounters struct {
	Accepted         uint32
	Overflow         uint32
	Lost             uint32
	ChecksumFailures uint32
}

// Len implements Decoder.
func (c *SlaveCounters) Len() int { return 16 }

// Decode implements Decoder.
func (c *SlaveCounters) Decode(b []byte) {
	c.Accepted = binary.LittleEndian.Uint32(b)
	c.Overflow = binary.LittleEndian.Uint32(b[4:])
	c.Lost = binary.LittleEndian.Uint32(b[8:])
	c.ChecksumFailures = binary.LittleEndian.Uint32(b[12:])
}

// Encode writes the wire layout, used by simulated slaves.
func (c SlaveCounters) Encode(b []byte) {
	binary.LittleEndian.PutUint32(b, c.Accepted)
	binary.LittleEndian.PutUint32(b[4:], c.Overflow)
	binary.LittleEndian.PutUint32(b[8:], c.Lost)
	binary.LittleEndian.PutUint32(b[12:], c.ChecksumFailures)
}

// SlaveCounterKind selects a single slave side counter.
type SlaveCounterKind byte

// Slave side counters.
const (
	SlaveCounterAccepted         = SlaveCounterKind(cmdAcceptedPackages)
	SlaveCounterOverflow         = SlaveCounterKind(cmdOverflowPackages)
	SlaveCounterLost             = SlaveCounterKind(cmdLostPackages)
	SlaveCounterChecksumFailures = SlaveCounterKind(cmdChecksumFailures)
)

// SlaveCounter queries a single slave side counter.
func (d *Device) SlaveCounter(kind SlaveCounterKind) (uint32, bool) {
	var v U32
	ok := d.Transceive(Concat(U8(cmdReserved), U8(kind)), &v)
	return uint32(v), ok
}

// SlaveCounters queries all slave side counters in one request.
func (d *Device) SlaveCounters() (SlaveCounters, bool) {
	var c SlaveCounters
	ok := d.Transceive(Concat(U8(cmdReserved), U8(cmdAllCounters)), &c)
	return c, ok
}

// ResetSlaveCounters clears the slave side counters.
func (d *Device) ResetSlaveCounters() bool {
	return d.Transceive(Concat(U8(cmdReserved), U8(cmdResetSlaveCounters)), Empty{})
}

// Ping sends an empty request, regardless of device health.
func (d *Device) Ping() bool {
	return d.TransceiveIgnoringHealth(Empty{}, Empty{})
}

// IsAvailable pings the slave on first use or when forced, otherwise it
// reports the current health.
func (d *Device) IsAvailable(force bool) bool {
	d.bus.lock.Lock()
	defer d.bus.lock.Unlock()
	if force || !d.availChecked {
		d.availChecked = true
		return d.transceive(Empty{}, Empty{}, true)
	}
	return !d.dysfunctional()
}
