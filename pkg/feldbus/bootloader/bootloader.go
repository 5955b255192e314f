// Package bootloader flashes firmware through the Feldbus bootloader
// protocol.
package bootloader

import (
	"bytes"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/feldbus.go/pkg/feldbus"
)

// Defaults.
const (
	DefaultMaxTriesForWriting        = 3
	DefaultUnlockCode         uint16 = 0x4a8f
)

// frame overhead of a block read reply besides the device address:
// status byte and checksum.
const readReplyOverhead = 2

// Bootloader drives a slave running the Feldbus bootloader.
type Bootloader struct {
	*feldbus.Device

	// MaxTriesForWriting bounds writes of one page on content mismatch.
	MaxTriesForWriting int
	UnlockCode         uint16

	family Family

	lock              sync.Mutex
	mcuID             uint16
	mcuIDValid        bool
	pageSize          uint32
	flashSize         uint32
	writableFlashSize uint32
	readPacketSize    int
}

// New creates a Bootloader on dev.
func New(dev *feldbus.Device, family Family) *Bootloader {
	return &Bootloader{
		Device:             dev,
		MaxTriesForWriting: DefaultMaxTriesForWriting,
		UnlockCode:         DefaultUnlockCode,
		family:             family,
	}
}

// Family returns the chip family.
func (b *Bootloader) Family() Family {
	return b.family
}

// EnterBootloader asks all slaves to start their bootloader.
func (b *Bootloader) EnterBootloader() bool {
	return b.Broadcast(feldbus.Concat(feldbus.U8(feldbus.ProtocolBootloader), feldbus.U8(broadcastEnterBootloader)))
}

// StartProgram asks all bootloaders to start the application.
func (b *Bootloader) StartProgram() bool {
	return b.Broadcast(feldbus.Concat(feldbus.U8(feldbus.ProtocolBootloader), feldbus.U8(broadcastStartProgram)))
}

// MCUID returns the controller signature.
func (b *Bootloader) MCUID() (uint16, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.mcuIDValid {
		return b.mcuID, true
	}
	var id feldbus.U16
	if !b.Transceive(feldbus.U8(cmdGetMcuID), &id) {
		return 0, false
	}
	b.mcuID, b.mcuIDValid = uint16(id), true
	return b.mcuID, true
}

// Unlock enables flash writes. It needs the MCU id.
func (b *Bootloader) Unlock() ErrorCode {
	id, ok := b.MCUID()
	if !ok {
		return PreconditionsNotMet
	}
	var status feldbus.U8
	req := feldbus.Concat(feldbus.U8(cmdUnlock), feldbus.U16(id), feldbus.U16(b.UnlockCode))
	if !b.Transceive(req, &status) {
		return TransceiveError
	}
	code := statusCode(byte(status))
	if code != Success {
		glog.Warningf("%s: unlock rejected: %s", b.Name(), code)
	}
	return code
}

// PageSize returns the flash page size.
func (b *Bootloader) PageSize() (uint32, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.pageSize == 0 {
		size, ok := b.family.QueryPageSize(b)
		if !ok || size == 0 {
			return 0, false
		}
		b.pageSize = size
	}
	return b.pageSize, true
}

// FlashSize returns the flash size including the bootloader.
func (b *Bootloader) FlashSize() (uint32, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.flashSize == 0 {
		size, ok := b.family.QueryFlashSize(b, true)
		if !ok || size == 0 {
			return 0, false
		}
		b.flashSize = size
	}
	return b.flashSize, true
}

// WritableFlashSize returns the flash size available to the application.
func (b *Bootloader) WritableFlashSize() (uint32, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.writableFlashSize == 0 {
		size, ok := b.family.QueryFlashSize(b, false)
		if !ok || size == 0 {
			return 0, false
		}
		b.writableFlashSize = size
	}
	return b.writableFlashSize, true
}

// WriteFlash writes data page by page starting at the page aligned
// byteAddress. A partial last page is padded with 0xFF.
func (b *Bootloader) WriteFlash(byteAddress uint32, data []byte) ErrorCode {
	pageSize, ok := b.PageSize()
	if !ok {
		return PreconditionsNotMet
	}
	writable, ok := b.WritableFlashSize()
	if !ok {
		return PreconditionsNotMet
	}
	if byteAddress%pageSize != 0 || uint64(byteAddress)+uint64(len(data)) > uint64(writable) {
		return InvalidArgs
	}

	page := make([]byte, pageSize)
	for offset := 0; offset < len(data); offset += int(pageSize) {
		n := copy(page, data[offset:])
		for i := n; i < len(page); i++ {
			page[i] = 0xFF
		}
		addr := byteAddress + uint32(offset)
		if code := b.writePage(addr, page); code != Success {
			glog.Errorf("%s: write page at 0x%x failed: %s", b.Name(), addr, code)
			return code
		}
		glog.V(3).Infof("%s: page 0x%x written", b.Name(), addr)
	}
	return Success
}

func (b *Bootloader) writePage(addr uint32, page []byte) ErrorCode {
	req := feldbus.Concat(feldbus.U8(cmdPageWrite), encodeAddress(b.family, addr), feldbus.Bytes(page))
	tries := b.MaxTriesForWriting
	if tries < 1 {
		tries = 1
	}
	for try := 1; try <= tries; try++ {
		var status feldbus.U8
		if !b.Transceive(req, &status) {
			return TransceiveError
		}
		code := statusCode(byte(status))
		if code != ContentMismatch {
			return code
		}
		glog.V(2).Infof("%s: page 0x%x content mismatch (%d/%d)", b.Name(), addr, try, tries)
	}
	return ContentMismatch
}

// ReadPacketSize is the data size of one block read, derived from the
// device buffer size and capped by the family.
func (b *Bootloader) ReadPacketSize() (int, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.readPacketSize > 0 {
		return b.readPacketSize, true
	}
	info, ok := b.Info()
	if !ok {
		return 0, false
	}
	size := int(info.BufferSize) - b.AddressLength() - readReplyOverhead
	if limit := b.family.MaxReadPacket(); limit > 0 && size > limit {
		size = limit
	}
	if size <= 0 {
		return 0, false
	}
	b.readPacketSize = size
	return size, true
}

// ReadFlash reads len(buf) bytes starting at byteAddress.
func (b *Bootloader) ReadFlash(byteAddress uint32, buf []byte) ErrorCode {
	flashSize, ok := b.FlashSize()
	if !ok {
		return PreconditionsNotMet
	}
	packetSize, ok := b.ReadPacketSize()
	if !ok {
		return PreconditionsNotMet
	}
	if uint64(byteAddress)+uint64(len(buf)) > uint64(flashSize) {
		return InvalidArgs
	}
	for offset := 0; offset < len(buf); offset += packetSize {
		n := len(buf) - offset
		if n > packetSize {
			n = packetSize
		}
		addr := byteAddress + uint32(offset)
		req := feldbus.Concat(feldbus.U8(cmdBlockRead), encodeAddress(b.family, addr), feldbus.U16(n))
		var status feldbus.U8
		if !b.Transceive(req, feldbus.Fields(&status, feldbus.Bytes(buf[offset:offset+n]))) {
			return TransceiveError
		}
		if code := statusCode(byte(status)); code != Success {
			glog.Errorf("%s: read block at 0x%x failed: %s", b.Name(), addr, code)
			return code
		}
	}
	return Success
}

// VerifyFlash reads back the flash and compares it with data.
func (b *Bootloader) VerifyFlash(byteAddress uint32, data []byte) ErrorCode {
	buf := make([]byte, len(data))
	if code := b.ReadFlash(byteAddress, buf); code != Success {
		return code
	}
	if !bytes.Equal(buf, data) {
		return ContentMismatch
	}
	return Success
}

// Fuse is the value of a named fuse.
type Fuse struct {
	Name  string
	Value byte
}

// ReadFuses reads all fuses the family knows.
func (b *Bootloader) ReadFuses() ([]Fuse, ErrorCode) {
	names := b.family.FuseNames()
	if len(names) == 0 {
		return nil, Unsupported
	}
	fuses := make([]Fuse, 0, len(names))
	for n, name := range names {
		var status, value feldbus.U8
		if !b.Transceive(feldbus.Concat(feldbus.U8(cmdFuseRead), feldbus.U8(n)), feldbus.Fields(&status, &value)) {
			return nil, TransceiveError
		}
		if code := statusCode(byte(status)); code != Success {
			return nil, code
		}
		fuses = append(fuses, Fuse{Name: name, Value: byte(value)})
	}
	return fuses, Success
}

// Program flashes image from address 0 and starts it.
func (b *Bootloader) Program(image []byte, verify bool) ErrorCode {
	if len(image) == 0 {
		return InvalidArgs
	}
	if !b.EnterBootloader() {
		return TransceiveError
	}
	if code := b.Unlock(); code != Success {
		return code
	}
	hooks, _ := b.family.(SessionHooks)
	if hooks != nil {
		if code := hooks.BeforeWrite(b, image); code != Success {
			return code
		}
	}
	if code := b.WriteFlash(0, image); code != Success {
		return code
	}
	if verify {
		if code := b.VerifyFlash(0, image); code != Success {
			glog.Errorf("%s: verification failed: %s", b.Name(), code)
			return code
		}
	}
	if hooks != nil {
		if code := hooks.AfterWrite(b); code != Success {
			return code
		}
	}
	glog.Infof("%s: programmed %d bytes", b.Name(), len(image))
	if !b.StartProgram() {
		return TransceiveError
	}
	return Success
}
