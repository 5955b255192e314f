package feldbus

import (
	"encoding/binary"
	"errors"
)

// BroadcastAddress is the reserved address all slaves listen to.
const BroadcastAddress uint16 = 0

// Reply addresses carry the master flag.
const (
	masterFlag8  uint16 = 0x80
	masterFlag16 uint16 = 0x8000
)

var (
	// ErrFrameTooShort indicates a frame without room for address and checksum.
	ErrFrameTooShort = errors.New("frame too short")
	// ErrChecksumMismatch indicates a corrupted frame.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// MaxAddress returns the highest slave address for the address length.
func MaxAddress(addrLen int) uint16 {
	if addrLen == 2 {
		return masterFlag16 - 1
	}
	return masterFlag8 - 1
}

// ReplyAddress is the address a slave puts into its reply.
func ReplyAddress(address uint16, addrLen int) uint16 {
	if addrLen == 2 {
		return address | masterFlag16
	}
	return address | masterFlag8
}

// PutAddress writes address into the first addrLen bytes of frame.
func PutAddress(frame []byte, address uint16, addrLen int) {
	if addrLen == 2 {
		binary.LittleEndian.PutUint16(frame, address)
		return
	}
	frame[0] = byte(address)
}

// FrameAddress reads the address from the first addrLen bytes of frame.
func FrameAddress(frame []byte, addrLen int) uint16 {
	if addrLen == 2 {
		return binary.LittleEndian.Uint16(frame)
	}
	return uint16(frame[0])
}

// Seal writes address and checksum into a frame whose payload is in place.
func Seal(frame []byte, address uint16, addrLen int, checksum ChecksumType) {
	PutAddress(frame, address, addrLen)
	last := len(frame) - 1
	frame[last] = checksum.Checksum(frame[:last])
}

// VerifyFrame checks the trailing checksum of frame.
func VerifyFrame(frame []byte, checksum ChecksumType) bool {
	if len(frame) < 1 {
		return false
	}
	last := len(frame) - 1
	return frame[last] == checksum.Checksum(frame[:last])
}

// EncodeFrame builds a complete frame around payload.
func EncodeFrame(address uint16, addrLen int, payload Encoder, checksum ChecksumType) []byte {
	size := 0
	if payload != nil {
		size = payload.Len()
	}
	frame := make([]byte, addrLen+size+1)
	if payload != nil {
		payload.Encode(frame[addrLen : addrLen+size])
	}
	Seal(frame, address, addrLen, checksum)
	return frame
}

// DecodeFrame verifies frame and splits it into address and payload.
// The payload aliases frame.
func DecodeFrame(frame []byte, addrLen int, checksum ChecksumType) (uint16, []byte, error) {
	if len(frame) < addrLen+1 {
		return 0, nil, ErrFrameTooShort
	}
	if !VerifyFrame(frame, checksum) {
		return 0, nil, ErrChecksumMismatch
	}
	return FrameAddress(frame, addrLen), frame[addrLen : len(frame)-1], nil
}
