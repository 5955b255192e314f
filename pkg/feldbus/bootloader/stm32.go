package bootloader

import (
	"encoding/binary"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/feldbus.go/pkg/feldbus"
)

// UnknownResetVectorAddress marks the storage address as not queried.
const UnknownResetVectorAddress uint32 = 0xFFFFFFFF

// STM32 is the family of STM32 controllers. The bootloader keeps its own
// reset vectors at the start of flash and stores the application's pair
// separately, installed by transmit and commit.
type STM32 struct {
	lock         sync.Mutex
	vectorAddr   uint32
	stackPointer uint32
	resetHandler uint32
	hasVectors   bool
}

// NewSTM32 creates the STM32 family.
func NewSTM32() *STM32 {
	return &STM32{vectorAddr: UnknownResetVectorAddress}
}

// Name implements Family.
func (f *STM32) Name() string { return "stm32" }

// AddressWidth implements Family.
func (f *STM32) AddressWidth() int { return 4 }

// MaxReadPacket implements Family.
func (f *STM32) MaxReadPacket() int { return 0 }

// FuseNames implements Family.
func (f *STM32) FuseNames() []string { return nil }

// QueryPageSize implements Family.
func (f *STM32) QueryPageSize(dev feldbus.Slave) (uint32, bool) {
	var size feldbus.U32
	if !dev.Transceive(feldbus.U8(cmdPageSize), &size) {
		return 0, false
	}
	return uint32(size), true
}

// QueryFlashSize implements Family.
func (f *STM32) QueryFlashSize(dev feldbus.Slave, includeBootloader bool) (uint32, bool) {
	return queryFlashSize(dev, includeBootloader)
}

// ResetVectorStorageAddress returns the flash address where the
// application reset vectors are kept.
func (f *STM32) ResetVectorStorageAddress(dev feldbus.Slave) (uint32, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.vectorAddr != UnknownResetVectorAddress {
		return f.vectorAddr, true
	}
	var addr feldbus.U32
	if !dev.Transceive(feldbus.U8(cmdResetVectorAddress), &addr) {
		return 0, false
	}
	f.vectorAddr = uint32(addr)
	return f.vectorAddr, true
}

// TransmitResetVectors sends the application stack pointer and reset
// handler. They take effect after CommitResetVectors.
func (f *STM32) TransmitResetVectors(dev feldbus.Slave, stackPointer, resetHandler uint32) ErrorCode {
	var status feldbus.U8
	req := feldbus.Concat(feldbus.U8(cmdTransmitResetVectors), feldbus.U32(stackPointer), feldbus.U32(resetHandler))
	if !dev.Transceive(req, &status) {
		return TransceiveError
	}
	return statusCode(byte(status))
}

// CommitResetVectors writes the transmitted vectors to flash.
func (f *STM32) CommitResetVectors(dev feldbus.Slave) ErrorCode {
	var status feldbus.U8
	if !dev.Transceive(feldbus.U8(cmdCommitResetVectors), &status) {
		return TransceiveError
	}
	return statusCode(byte(status))
}

// BeforeWrite implements SessionHooks.
func (f *STM32) BeforeWrite(b *Bootloader, image []byte) ErrorCode {
	if len(image) < 8 {
		return InvalidArgs
	}
	addr, ok := f.ResetVectorStorageAddress(b)
	if !ok {
		return PreconditionsNotMet
	}
	if uint64(len(image)) > uint64(addr) {
		glog.Errorf("%s: image of %d bytes overlaps reset vector storage at 0x%x", b.Name(), len(image), addr)
		return InvalidArgs
	}
	f.lock.Lock()
	f.stackPointer = binary.LittleEndian.Uint32(image)
	f.resetHandler = binary.LittleEndian.Uint32(image[4:])
	f.hasVectors = true
	f.lock.Unlock()
	return Success
}

// AfterWrite implements SessionHooks.
func (f *STM32) AfterWrite(b *Bootloader) ErrorCode {
	f.lock.Lock()
	sp, pc, ok := f.stackPointer, f.resetHandler, f.hasVectors
	f.lock.Unlock()
	if !ok {
		return PreconditionsNotMet
	}
	if code := f.TransmitResetVectors(b, sp, pc); code != Success {
		return code
	}
	return f.CommitResetVectors(b)
}
