package feldbus

import (
	"fmt"
	"strings"

	"github.com/sigurn/crc8"
)

// ChecksumType selects the checksum algorithm of a frame.
type ChecksumType uint8

const (
	// ChecksumXOR is the cumulative XOR of all covered bytes.
	ChecksumXOR ChecksumType = 0x00
	// ChecksumCRC8 is CRC-8/I-CODE (poly 0x1D, init 0xFD).
	ChecksumCRC8 ChecksumType = 0x01
)

var crc8ICodeTable = crc8.MakeTable(crc8.CRC8_I_CODE)

// Checksum calculates the checksum of data.
func (t ChecksumType) Checksum(data []byte) byte {
	if t == ChecksumCRC8 {
		return crc8.Checksum(data, crc8ICodeTable)
	}
	var sum byte
	for _, b := range data {
		sum ^= b
	}
	return sum
}

// IsValid indicates t is a known algorithm.
func (t ChecksumType) IsValid() bool {
	return t == ChecksumXOR || t == ChecksumCRC8
}

// String implements fmt.Stringer.
func (t ChecksumType) String() string {
	switch t {
	case ChecksumXOR:
		return "xor"
	case ChecksumCRC8:
		return "crc8-icode"
	}
	return fmt.Sprintf("checksum(%d)", uint8(t))
}

// ParseChecksumType parses the names used in configuration files.
func ParseChecksumType(s string) (ChecksumType, error) {
	switch strings.ToLower(s) {
	case "xor":
		return ChecksumXOR, nil
	case "", "crc8", "crc8-icode", "icode":
		return ChecksumCRC8, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidChecksum, s)
}
