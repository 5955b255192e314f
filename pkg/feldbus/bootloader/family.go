package bootloader

import (
	"github.com/robotalks/feldbus.go/pkg/feldbus"
)

// Bootloader commands.
const (
	cmdGetMcuID              byte = 0x01
	cmdUnlock                byte = 0x02
	cmdPageSize              byte = 0x03
	cmdFlashSize             byte = 0x04
	cmdPageWrite             byte = 0x05
	cmdBlockRead             byte = 0x06
	cmdFuseRead              byte = 0x07
	cmdResetVectorAddress    byte = 0x08
	cmdTransmitResetVectors  byte = 0x09
	cmdCommitResetVectors    byte = 0x0A
	broadcastEnterBootloader byte = 0x01
	broadcastStartProgram    byte = 0x02
)

// Family supplies the chip specific parts of the bootloader protocol.
type Family interface {
	Name() string
	// AddressWidth is the size of a flash address in commands, 2 or 4.
	AddressWidth() int
	// MaxReadPacket caps the data size of a block read, 0 for no cap.
	MaxReadPacket() int
	QueryPageSize(dev feldbus.Slave) (uint32, bool)
	QueryFlashSize(dev feldbus.Slave, includeBootloader bool) (uint32, bool)
	// FuseNames lists readable fuses by index, nil if fuses are unsupported.
	FuseNames() []string
}

// SessionHooks are optionally implemented by a Family to take part in
// Program.
type SessionHooks interface {
	BeforeWrite(b *Bootloader, image []byte) ErrorCode
	AfterWrite(b *Bootloader) ErrorCode
}

// avrReadPacketLimit keeps block reads short as they are only protected
// by the 8-bit frame checksum.
const avrReadPacketLimit = 64

type avr struct {
	name      string
	addrWidth int
	fuses     []string
}

func (f *avr) Name() string        { return f.name }
func (f *avr) AddressWidth() int   { return f.addrWidth }
func (f *avr) MaxReadPacket() int  { return avrReadPacketLimit }
func (f *avr) FuseNames() []string { return f.fuses }

func (f *avr) QueryPageSize(dev feldbus.Slave) (uint32, bool) {
	var size feldbus.U16
	if !dev.Transceive(feldbus.U8(cmdPageSize), &size) {
		return 0, false
	}
	return uint32(size), true
}

func (f *avr) QueryFlashSize(dev feldbus.Slave, includeBootloader bool) (uint32, bool) {
	return queryFlashSize(dev, includeBootloader)
}

func queryFlashSize(dev feldbus.Slave, includeBootloader bool) (uint32, bool) {
	var arg feldbus.U8
	if includeBootloader {
		arg = 1
	}
	var size feldbus.U32
	if !dev.Transceive(feldbus.Concat(feldbus.U8(cmdFlashSize), arg), &size) {
		return 0, false
	}
	return uint32(size), true
}

// Atmega is the family of classic AVR controllers with 16-bit flash
// addressing.
func Atmega() Family {
	return &avr{
		name:      "atmega",
		addrWidth: 2,
		fuses:     []string{"low", "high", "extended", "lock"},
	}
}

// Xmega is the family of AVR XMEGA controllers.
func Xmega() Family {
	return &avr{
		name:      "xmega",
		addrWidth: 4,
		fuses:     []string{"fuse0", "fuse1", "fuse2", "fuse3", "fuse4", "fuse5", "lock"},
	}
}

// FamilyByName creates a Family from its name.
func FamilyByName(name string) (Family, bool) {
	switch name {
	case "atmega", "avr":
		return Atmega(), true
	case "xmega":
		return Xmega(), true
	case "stm32", "stm32v2":
		return NewSTM32(), true
	}
	return nil, false
}

func encodeAddress(f Family, address uint32) feldbus.Encoder {
	if f.AddressWidth() == 2 {
		return feldbus.U16(address)
	}
	return feldbus.U32(address)
}
