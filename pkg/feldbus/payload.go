package feldbus

import (
	"encoding/binary"
	"math"
)

// Encoder is a fixed-layout payload that can be written into a frame.
type Encoder interface {
	// Len is the encoded size in bytes.
	Len() int
	// Encode writes exactly Len() bytes into b.
	Encode(b []byte)
}

// Decoder is a fixed-layout payload that can be read from a frame.
type Decoder interface {
	// Len is the expected size in bytes.
	Len() int
	// Decode reads exactly Len() bytes from b.
	Decode(b []byte)
}

// Empty is a zero-length payload.
type Empty struct{}

// Len implements Encoder and Decoder.
func (Empty) Len() int { return 0 }

// Encode implements Encoder.
func (Empty) Encode([]byte) {}

// Decode implements Decoder.
func (Empty) Decode([]byte) {}

// Bytes is a raw payload. As a Decoder its length must be preallocated.
type Bytes []byte

// Len implements Encoder and Decoder.
func (p Bytes) Len() int { return len(p) }

// Encode implements Encoder.
func (p Bytes) Encode(b []byte) { copy(b, p) }

// Decode implements Decoder.
func (p Bytes) Decode(b []byte) { copy(p, b) }

// U8 is a single byte.
type U8 uint8

// Len implements Encoder and Decoder.
func (U8) Len() int { return 1 }

// Encode implements Encoder.
func (v U8) Encode(b []byte) { b[0] = byte(v) }

// Decode implements Decoder.
func (v *U8) Decode(b []byte) { *v = U8(b[0]) }

// I8 is a signed byte.
type I8 int8

// Len implements Encoder and Decoder.
func (I8) Len() int { return 1 }

// Encode implements Encoder.
func (v I8) Encode(b []byte) { b[0] = byte(v) }

// Decode implements Decoder.
func (v *I8) Decode(b []byte) { *v = I8(int8(b[0])) }

// U16 is a little-endian uint16.
type U16 uint16

// Len implements Encoder and Decoder.
func (U16) Len() int { return 2 }

// Encode implements Encoder.
func (v U16) Encode(b []byte) { binary.LittleEndian.PutUint16(b, uint16(v)) }

// Decode implements Decoder.
func (v *U16) Decode(b []byte) { *v = U16(binary.LittleEndian.Uint16(b)) }

// I16 is a little-endian int16.
type I16 int16

// Len implements Encoder and Decoder.
func (I16) Len() int { return 2 }

// Encode implements Encoder.
func (v I16) Encode(b []byte) { binary.LittleEndian.PutUint16(b, uint16(v)) }

// Decode implements Decoder.
func (v *I16) Decode(b []byte) { *v = I16(int16(binary.LittleEndian.Uint16(b))) }

// U32 is a little-endian uint32.
type U32 uint32

// Len implements Encoder and Decoder.
func (U32) Len() int { return 4 }

// Encode implements Encoder.
func (v U32) Encode(b []byte) { binary.LittleEndian.PutUint32(b, uint32(v)) }

// Decode implements Decoder.
func (v *U32) Decode(b []byte) { *v = U32(binary.LittleEndian.Uint32(b)) }

// I32 is a little-endian int32.
type I32 int32

// Len implements Encoder and Decoder.
func (I32) Len() int { return 4 }

// Encode implements Encoder.
func (v I32) Encode(b []byte) { binary.LittleEndian.PutUint32(b, uint32(v)) }

// Decode implements Decoder.
func (v *I32) Decode(b []byte) { *v = I32(int32(binary.LittleEndian.Uint32(b))) }

// F32 is a little-endian IEEE 754 float32.
type F32 float32

// Len implements Encoder and Decoder.
func (F32) Len() int { return 4 }

// Encode implements Encoder.
func (v F32) Encode(b []byte) { binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v))) }

// Decode implements Decoder.
func (v *F32) Decode(b []byte) { *v = F32(math.Float32frombits(binary.LittleEndian.Uint32(b))) }

type encoderSeq []Encoder

// Concat lays out encoders back to back without padding.
func Concat(parts ...Encoder) Encoder {
	return encoderSeq(parts)
}

func (s encoderSeq) Len() (n int) {
	for _, p := range s {
		n += p.Len()
	}
	return
}

func (s encoderSeq) Encode(b []byte) {
	for _, p := range s {
		l := p.Len()
		p.Encode(b[:l])
		b = b[l:]
	}
}

type decoderSeq []Decoder

// Fields lays out decoders back to back without padding.
func Fields(parts ...Decoder) Decoder {
	return decoderSeq(parts)
}

func (s decoderSeq) Len() (n int) {
	for _, p := range s {
		n += p.Len()
	}
	return
}

func (s decoderSeq) Decode(b []byte) {
	for _, p := range s {
		l := p.Len()
		p.Decode(b[:l])
		b = b[l:]
	}
}
