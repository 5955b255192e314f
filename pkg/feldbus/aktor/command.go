package aktor

import (
	"encoding/binary"
	"math"
)

// Access of a command value.
type Access uint8

// Access modes.
const (
	ReadOnly  Access = 0x00
	ReadWrite Access = 0x01
)

func (a Access) String() string {
	if a == ReadWrite {
		return "rw"
	}
	return "ro"
}

// LengthClass is the wire size class of a command value.
type LengthClass uint8

// Length classes.
const (
	LengthNone  LengthClass = 0x00
	LengthChar  LengthClass = 0x01
	LengthShort LengthClass = 0x02
	LengthLong  LengthClass = 0x03
	LengthFloat LengthClass = 0x04
)

// Size returns the number of value bytes on the wire.
func (l LengthClass) Size() int {
	switch l {
	case LengthChar:
		return 1
	case LengthShort:
		return 2
	case LengthLong, LengthFloat:
		return 4
	}
	return 0
}

// IsValid indicates l is a known class.
func (l LengthClass) IsValid() bool {
	return l <= LengthFloat
}

// String implements fmt.Stringer.
func (l LengthClass) String() string {
	switch l {
	case LengthNone:
		return "none"
	case LengthChar:
		return "char"
	case LengthShort:
		return "short"
	case LengthLong:
		return "long"
	case LengthFloat:
		return "float"
	}
	return "invalid"
}

func (l LengthClass) limits() (int64, int64) {
	switch l {
	case LengthChar:
		return math.MinInt8, math.MaxInt8
	case LengthShort:
		return math.MinInt16, math.MaxInt16
	case LengthLong:
		return math.MinInt32, math.MaxInt32
	}
	return 0, 0
}

// ControlValueFactor marks a command carrying an integer control value
// instead of a scaled physical quantity.
const ControlValueFactor float32 = 0

// Command describes one entry of the command table of a device.
type Command struct {
	Key    byte
	Name   string
	Access Access
	Length LengthClass
	Factor float32
}

// Writable indicates the value can be set.
func (c *Command) Writable() bool {
	return c.Access == ReadWrite
}

// IsControlValue indicates the value is an unscaled integer.
func (c *Command) IsControlValue() bool {
	return c.Factor == ControlValueFactor && c.Length != LengthFloat
}

// Raw is the wire representation of a value.
type Raw struct {
	Class LengthClass
	Int   int32
	Float float32
}

// Len implements feldbus.Encoder and feldbus.Decoder.
func (r *Raw) Len() int { return r.Class.Size() }

// Encode implements feldbus.Encoder.
func (r *Raw) Encode(b []byte) {
	switch r.Class {
	case LengthChar:
		b[0] = byte(int8(r.Int))
	case LengthShort:
		binary.LittleEndian.PutUint16(b, uint16(int16(r.Int)))
	case LengthLong:
		binary.LittleEndian.PutUint32(b, uint32(r.Int))
	case LengthFloat:
		binary.LittleEndian.PutUint32(b, math.Float32bits(r.Float))
	}
}

// Decode implements feldbus.Decoder.
func (r *Raw) Decode(b []byte) {
	switch r.Class {
	case LengthChar:
		r.Int = int32(int8(b[0]))
	case LengthShort:
		r.Int = int32(int16(binary.LittleEndian.Uint16(b)))
	case LengthLong:
		r.Int = int32(binary.LittleEndian.Uint32(b))
	case LengthFloat:
		r.Float = math.Float32frombits(binary.LittleEndian.Uint32(b))
	}
}

// Value converts raw into a host value using the factor of c.
func (c *Command) Value(raw Raw) float32 {
	if c.Length == LengthFloat {
		return raw.Float
	}
	if c.Factor == ControlValueFactor {
		return float32(raw.Int)
	}
	return float32(raw.Int) * c.Factor
}

// RawValue converts v into its wire representation, clamped to the
// range of the length class.
func (c *Command) RawValue(v float32) Raw {
	raw := Raw{Class: c.Length}
	if c.Length == LengthFloat {
		raw.Float = v
		return raw
	}
	scaled := float64(v)
	if c.Factor != ControlValueFactor {
		scaled /= float64(c.Factor)
	}
	raw.Int = clamp(c.Length, int64(math.Round(scaled)))
	return raw
}

func clamp(l LengthClass, v int64) int32 {
	lo, hi := l.limits()
	if v < lo {
		v = lo
	} else if v > hi {
		v = hi
	}
	return int32(v)
}

type commandInfo struct {
	access Access
	length LengthClass
	factor float32
}

func (i *commandInfo) Len() int { return 6 }

func (i *commandInfo) Decode(b []byte) {
	i.access = Access(b[0])
	i.length = LengthClass(b[1])
	i.factor = math.Float32frombits(binary.LittleEndian.Uint32(b[2:]))
}
