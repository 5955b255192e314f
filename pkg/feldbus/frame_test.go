package feldbus

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		address uint16
		addrLen int
		payload Encoder
		bytes   []byte
	}{
		{"empty", 0x12, 1, Empty{}, []byte{}},
		{"u8", 0x7f, 1, U8(0xa5), []byte{0xa5}},
		{"u16 le", 0x01, 1, U16(0x1234), []byte{0x34, 0x12}},
		{"i16", 0x01, 1, I16(-2), []byte{0xfe, 0xff}},
		{"u32 le", 0x1234, 2, U32(0xdeadbeef), []byte{0xef, 0xbe, 0xad, 0xde}},
		{"f32", 0x0101, 2, F32(1), []byte{0x00, 0x00, 0x80, 0x3f}},
		{"concat", 0x42, 1, Concat(U8(0x05), U32(0x100), Bytes{1, 2, 3}), []byte{0x05, 0x00, 0x01, 0x00, 0x00, 1, 2, 3}},
	}
	for _, tc := range cases {
		for _, ct := range []ChecksumType{ChecksumXOR, ChecksumCRC8} {
			t.Run(tc.name+"/"+ct.String(), func(t *testing.T) {
				frame := EncodeFrame(tc.address, tc.addrLen, tc.payload, ct)
				require.Len(t, frame, tc.addrLen+len(tc.bytes)+1)
				require.Equal(t, ct.Checksum(frame[:len(frame)-1]), frame[len(frame)-1])
				address, payload, err := DecodeFrame(frame, tc.addrLen, ct)
				require.NoError(t, err)
				require.Equal(t, tc.address, address)
				require.Equal(t, tc.bytes, payload)
			})
		}
	}
}

func TestTwoByteAddressLittleEndian(t *testing.T) {
	frame := EncodeFrame(0x1234, 2, U8(0x99), ChecksumXOR)
	require.Equal(t, []byte{0x34, 0x12, 0x99, 0x34 ^ 0x12 ^ 0x99}, frame)
	require.Equal(t, uint16(0x9234), ReplyAddress(0x1234, 2))
	require.Equal(t, uint16(0x85), ReplyAddress(0x05, 1))
}

func TestSingleBitFlipDetected(t *testing.T) {
	for _, ct := range []ChecksumType{ChecksumXOR, ChecksumCRC8} {
		t.Run(ct.String(), func(t *testing.T) {
			frame := EncodeFrame(0x23, 1, Concat(U8(0x01), U16(0xbeef), F32(2.5)), ct)
			for i := range frame {
				for bit := uint(0); bit < 8; bit++ {
					corrupted := append([]byte(nil), frame...)
					corrupted[i] ^= 1 << bit
					_, _, err := DecodeFrame(corrupted, 1, ct)
					require.ErrorIsf(t, err, ErrChecksumMismatch, "byte %d bit %d", i, bit)
				}
			}
		})
	}
}

func TestDecodeShortFrame(t *testing.T) {
	_, _, err := DecodeFrame([]byte{0x01}, 1, ChecksumXOR)
	require.ErrorIs(t, err, ErrFrameTooShort)
}

func TestPayloadDecode(t *testing.T) {
	var (
		a U8
		b I16
		c U32
		d F32
		e = make(Bytes, 2)
	)
	src := Concat(U8(7), I16(-300), U32(70000), F32(float32(math.Pi)), Bytes{9, 8})
	buf := make([]byte, src.Len())
	src.Encode(buf)
	dst := Fields(&a, &b, &c, &d, e)
	require.Equal(t, len(buf), dst.Len())
	dst.Decode(buf)
	require.Equal(t, U8(7), a)
	require.Equal(t, I16(-300), b)
	require.Equal(t, U32(70000), c)
	require.Equal(t, F32(float32(math.Pi)), d)
	require.Equal(t, Bytes{9, 8}, e)
}
