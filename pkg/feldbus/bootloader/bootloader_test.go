package bootloader

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/feldbus.go/pkg/feldbus"
	"github.com/robotalks/feldbus.go/pkg/feldbus/feldbustest"
)

const testAddress = 0x21

type blockRead struct {
	addr uint32
	size int
}

type simBootloader struct {
	addrWidth  int
	pageWidth  int
	mcuID      uint16
	unlockCode uint16
	rejectWith byte
	pageSize   int
	flash      []byte
	writable   int
	fuses      []byte
	vectorAddr uint32
	mismatches map[uint32]int
	failures   map[uint32]byte
	pageWrites []uint32
	blockReads []blockRead
	vectors    [2]uint32
	committed  bool
	unlocked   bool
	broadcasts [][]byte
}

func newSimBootloader(family Family, pageSize, flashSize, writable int) *simBootloader {
	sim := &simBootloader{
		addrWidth:  family.AddressWidth(),
		pageWidth:  2,
		mcuID:      0x9502,
		unlockCode: DefaultUnlockCode,
		rejectWith: statusUnsupported,
		pageSize:   pageSize,
		flash:      make([]byte, flashSize),
		writable:   writable,
		fuses:      []byte{0x62, 0xd9, 0xff, 0x3f, 0x11, 0x22, 0x33},
		vectorAddr: uint32(writable),
		mismatches: make(map[uint32]int),
		failures:   make(map[uint32]byte),
	}
	if family.AddressWidth() == 4 && family.MaxReadPacket() == 0 {
		sim.pageWidth = 4
	}
	for i := range sim.flash {
		sim.flash[i] = 0xFF
	}
	return sim
}

func (s *simBootloader) address(b []byte) (uint32, []byte) {
	if s.addrWidth == 2 {
		return uint32(binary.LittleEndian.Uint16(b)), b[2:]
	}
	return binary.LittleEndian.Uint32(b), b[4:]
}

func u16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func (s *simBootloader) handle(p []byte) ([]byte, bool) {
	switch p[0] {
	case cmdGetMcuID:
		return u16(s.mcuID), true
	case cmdUnlock:
		if binary.LittleEndian.Uint16(p[1:]) != s.mcuID || binary.LittleEndian.Uint16(p[3:]) != s.unlockCode {
			return []byte{s.rejectWith}, true
		}
		s.unlocked = true
		return []byte{statusSuccess}, true
	case cmdPageSize:
		if s.pageWidth == 2 {
			return u16(uint16(s.pageSize)), true
		}
		return u32(uint32(s.pageSize)), true
	case cmdFlashSize:
		if p[1] != 0 {
			return u32(uint32(len(s.flash))), true
		}
		return u32(uint32(s.writable)), true
	case cmdPageWrite:
		addr, data := s.address(p[1:])
		s.pageWrites = append(s.pageWrites, addr)
		if st, ok := s.failures[addr]; ok {
			return []byte{st}, true
		}
		if s.mismatches[addr] > 0 {
			s.mismatches[addr]--
			return []byte{statusContentMismatch}, true
		}
		copy(s.flash[addr:], data)
		return []byte{statusSuccess}, true
	case cmdBlockRead:
		addr, rest := s.address(p[1:])
		size := int(binary.LittleEndian.Uint16(rest))
		s.blockReads = append(s.blockReads, blockRead{addr: addr, size: size})
		reply := make([]byte, size+1)
		if int(addr)+size > len(s.flash) {
			reply[0] = statusInvalidAddress
			return reply, true
		}
		copy(reply[1:], s.flash[addr:])
		return reply, true
	case cmdFuseRead:
		return []byte{statusSuccess, s.fuses[p[1]]}, true
	case cmdResetVectorAddress:
		return u32(s.vectorAddr), true
	case cmdTransmitResetVectors:
		s.vectors[0] = binary.LittleEndian.Uint32(p[1:])
		s.vectors[1] = binary.LittleEndian.Uint32(p[5:])
		return []byte{statusSuccess}, true
	case cmdCommitResetVectors:
		s.committed = true
		return []byte{statusSuccess}, true
	}
	return nil, false
}

func setup(t *testing.T, family Family, sim *simBootloader, bufferSize uint16) (*Bootloader, *feldbustest.Transport) {
	slave := feldbustest.NewSlave(feldbus.ProtocolBootloader, 0x01, "bl", "")
	slave.Info.BufferSize = bufferSize
	slave.Handle = sim.handle
	tr := feldbustest.New(1).Attach(testAddress, slave.Handler())
	tr.OnBroadcast(func(payload []byte) {
		sim.broadcasts = append(sim.broadcasts, payload)
	})
	dev, err := feldbus.NewBus(tr).NewDevice(feldbus.Config{Name: "bl", Address: testAddress})
	require.NoError(t, err)
	return New(dev, family), tr
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + 3)
	}
	return b
}

func TestWriteFlashPages(t *testing.T) {
	sim := newSimBootloader(Atmega(), 128, 4096, 3072)
	bl, _ := setup(t, Atmega(), sim, 64)

	data := pattern(256)
	require.Equal(t, Success, bl.WriteFlash(0, data))
	require.Equal(t, []uint32{0, 128}, sim.pageWrites)
	require.Equal(t, data, sim.flash[:256])
}

func TestWriteFlashPadsLastPage(t *testing.T) {
	sim := newSimBootloader(Xmega(), 64, 4096, 3072)
	bl, _ := setup(t, Xmega(), sim, 64)

	data := pattern(70)
	sim.flash[100] = 0x00
	require.Equal(t, Success, bl.WriteFlash(128, data))
	require.Equal(t, []uint32{128, 192}, sim.pageWrites)
	require.Equal(t, data, sim.flash[128:198])
	for i := 198; i < 256; i++ {
		require.Equal(t, byte(0xFF), sim.flash[i])
	}
	require.Equal(t, byte(0x00), sim.flash[100])
}

func TestWriteFlashRejectsWithoutTraffic(t *testing.T) {
	sim := newSimBootloader(Atmega(), 128, 4096, 1024)
	bl, tr := setup(t, Atmega(), sim, 64)
	_, ok := bl.PageSize()
	require.True(t, ok)
	_, ok = bl.WritableFlashSize()
	require.True(t, ok)

	cases := []struct {
		name string
		addr uint32
		size int
	}{
		{"misaligned", 64, 128},
		{"too long", 0, 1025},
		{"beyond writable", 1024, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr.ResetStats()
			require.Equal(t, InvalidArgs, bl.WriteFlash(tc.addr, pattern(tc.size)))
			require.Equal(t, 0, tr.Calls())
		})
	}
	require.Empty(t, sim.pageWrites)
}

func TestWriteFlashPreconditions(t *testing.T) {
	tr := feldbustest.New(1)
	dev, err := feldbus.NewBus(tr).NewDevice(feldbus.Config{Address: testAddress, MaxAttempts: 1})
	require.NoError(t, err)
	bl := New(dev, Atmega())
	require.Equal(t, PreconditionsNotMet, bl.WriteFlash(0, pattern(16)))
	require.Equal(t, PreconditionsNotMet, bl.ReadFlash(0, make([]byte, 16)))
}

func TestWriteFlashRetries(t *testing.T) {
	t.Run("transient mismatch", func(t *testing.T) {
		sim := newSimBootloader(Atmega(), 128, 4096, 3072)
		sim.mismatches[128] = 2
		bl, _ := setup(t, Atmega(), sim, 64)
		require.Equal(t, Success, bl.WriteFlash(0, pattern(256)))
		require.Equal(t, []uint32{0, 128, 128, 128}, sim.pageWrites)
	})

	t.Run("persistent mismatch", func(t *testing.T) {
		sim := newSimBootloader(Atmega(), 128, 4096, 3072)
		sim.mismatches[0] = 10
		bl, _ := setup(t, Atmega(), sim, 64)
		require.Equal(t, ContentMismatch, bl.WriteFlash(0, pattern(256)))
		require.Equal(t, []uint32{0, 0, 0}, sim.pageWrites)
	})

	t.Run("at least one try", func(t *testing.T) {
		sim := newSimBootloader(Atmega(), 128, 4096, 3072)
		bl, _ := setup(t, Atmega(), sim, 64)
		bl.MaxTriesForWriting = 0
		require.Equal(t, Success, bl.WriteFlash(0, pattern(256)))
		require.Equal(t, []uint32{0, 128}, sim.pageWrites)

		sim.pageWrites = nil
		sim.mismatches[0] = 10
		bl.MaxTriesForWriting = -2
		require.Equal(t, ContentMismatch, bl.WriteFlash(0, pattern(128)))
		require.Equal(t, []uint32{0}, sim.pageWrites)
	})

	t.Run("other error aborts", func(t *testing.T) {
		sim := newSimBootloader(Atmega(), 128, 4096, 3072)
		sim.failures[128] = statusInvalidAddress
		bl, _ := setup(t, Atmega(), sim, 64)
		require.Equal(t, InvalidAddress, bl.WriteFlash(0, pattern(384)))
		require.Equal(t, []uint32{0, 128}, sim.pageWrites)
	})
}

func TestReadFlashSplits(t *testing.T) {
	cases := []struct {
		name       string
		family     func() Family
		bufferSize uint16
		length     int
		reads      []blockRead
	}{
		{
			name:       "avr capped",
			family:     Atmega,
			bufferSize: 200,
			length:     200,
			reads:      []blockRead{{0, 64}, {64, 64}, {128, 64}, {192, 8}},
		},
		{
			name:       "avr small buffer",
			family:     Xmega,
			bufferSize: 32,
			length:     60,
			reads:      []blockRead{{0, 29}, {29, 29}, {58, 2}},
		},
		{
			name:       "stm32 uncapped",
			family:     func() Family { return NewSTM32() },
			bufferSize: 200,
			length:     200,
			reads:      []blockRead{{0, 197}, {197, 3}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			family := tc.family()
			sim := newSimBootloader(family, 128, 1024, 512)
			copy(sim.flash, pattern(1024))
			bl, _ := setup(t, family, sim, tc.bufferSize)

			buf := make([]byte, tc.length)
			require.Equal(t, Success, bl.ReadFlash(0, buf))
			require.Equal(t, tc.reads, sim.blockReads)
			require.Equal(t, sim.flash[:tc.length], buf)

			size, ok := bl.ReadPacketSize()
			require.True(t, ok)
			require.Equal(t, tc.reads[0].size, size)
		})
	}
}

func TestReadFlashInvalidAddress(t *testing.T) {
	sim := newSimBootloader(Atmega(), 128, 256, 128)
	bl, tr := setup(t, Atmega(), sim, 200)
	require.Equal(t, InvalidArgs, bl.ReadFlash(200, make([]byte, 100)))

	// device reports a smaller flash than queried
	sim.flash = sim.flash[:100]
	tr.ResetStats()
	sim.blockReads = nil
	require.Equal(t, InvalidAddress, bl.ReadFlash(0, make([]byte, 200)))
	require.Equal(t, []blockRead{{0, 64}, {64, 64}}, sim.blockReads)
	require.Equal(t, 2, tr.Calls())
}

func TestVerifyFlash(t *testing.T) {
	sim := newSimBootloader(Atmega(), 64, 512, 256)
	bl, _ := setup(t, Atmega(), sim, 64)
	data := pattern(100)
	require.Equal(t, Success, bl.WriteFlash(0, data))
	require.Equal(t, Success, bl.VerifyFlash(0, data))
	sim.flash[50] ^= 0xFF
	require.Equal(t, ContentMismatch, bl.VerifyFlash(0, data))
}

func TestUnlock(t *testing.T) {
	sim := newSimBootloader(Atmega(), 64, 512, 256)
	bl, tr := setup(t, Atmega(), sim, 64)
	require.Equal(t, Success, bl.Unlock())
	require.True(t, sim.unlocked)

	id, ok := bl.MCUID()
	require.True(t, ok)
	require.Equal(t, uint16(0x9502), id)

	bl.UnlockCode = 0x1111
	tr.ResetStats()
	require.Equal(t, Unsupported, bl.Unlock())
	require.Equal(t, 1, tr.Calls())
	sim.rejectWith = statusInvalidSize
	require.Equal(t, InvalidSize, bl.Unlock())
	sim.rejectWith = statusInvalidAddress
	require.Equal(t, InvalidAddress, bl.Unlock())

	tr.Detach(testAddress)
	other := New(bl.Device, Atmega())
	other.Device.ResetCounters()
	require.Equal(t, PreconditionsNotMet, other.Unlock())
}

func TestReadFuses(t *testing.T) {
	sim := newSimBootloader(Atmega(), 64, 512, 256)
	bl, _ := setup(t, Atmega(), sim, 64)
	fuses, code := bl.ReadFuses()
	require.Equal(t, Success, code)
	require.Equal(t, []Fuse{
		{"low", 0x62}, {"high", 0xd9}, {"extended", 0xff}, {"lock", 0x3f},
	}, fuses)

	xsim := newSimBootloader(Xmega(), 64, 512, 256)
	xbl, _ := setup(t, Xmega(), xsim, 64)
	fuses, code = xbl.ReadFuses()
	require.Equal(t, Success, code)
	require.Len(t, fuses, 7)
	require.Equal(t, Fuse{"lock", 0x33}, fuses[6])

	stm := NewSTM32()
	ssim := newSimBootloader(stm, 64, 512, 256)
	sbl, tr := setup(t, stm, ssim, 64)
	_, code = sbl.ReadFuses()
	require.Equal(t, Unsupported, code)
	require.Equal(t, 0, tr.Calls())
}

func TestProgramSTM32(t *testing.T) {
	stm := NewSTM32()
	sim := newSimBootloader(stm, 256, 8192, 4096)
	bl, _ := setup(t, stm, sim, 128)

	image := pattern(600)
	binary.LittleEndian.PutUint32(image, 0x20005000)
	binary.LittleEndian.PutUint32(image[4:], 0x08000401)

	require.Equal(t, Success, bl.Program(image, true))
	require.True(t, sim.unlocked)
	require.Equal(t, []uint32{0, 256, 512}, sim.pageWrites)
	require.Equal(t, image, sim.flash[:600])
	require.Equal(t, [2]uint32{0x20005000, 0x08000401}, sim.vectors)
	require.True(t, sim.committed)
	require.Equal(t, [][]byte{
		{feldbus.ProtocolBootloader, broadcastEnterBootloader},
		{feldbus.ProtocolBootloader, broadcastStartProgram},
	}, sim.broadcasts)

	addr, ok := stm.ResetVectorStorageAddress(bl)
	require.True(t, ok)
	require.Equal(t, uint32(4096), addr)
}

func TestProgramSTM32ImageOverlapsVectors(t *testing.T) {
	stm := NewSTM32()
	sim := newSimBootloader(stm, 256, 8192, 4096)
	sim.vectorAddr = 512
	bl, _ := setup(t, stm, sim, 128)
	require.Equal(t, InvalidArgs, bl.Program(pattern(600), false))
	require.Empty(t, sim.pageWrites)
}

func TestErrorCode(t *testing.T) {
	require.NoError(t, Success.Err())
	require.EqualError(t, ContentMismatch.Err(), "bootloader: content mismatch")
	require.Equal(t, "preconditions not met", PreconditionsNotMet.String())
	require.Equal(t, "unknown error", ErrorCode(42).String())
	require.Equal(t, Unsupported, statusCode(0x7f))
}
