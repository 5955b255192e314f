package transport

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/feldbus.go/pkg/feldbus"
)

func TestParseURL(t *testing.T) {
	cases := []struct {
		url      string
		expected Endpoint
	}{
		{"serial:///dev/ttyUSB0", Endpoint{Scheme: "serial", Path: "/dev/ttyUSB0", BaudRate: DefaultBaudRate}},
		{"serial:///dev/ttyS1?baud=57600", Endpoint{Scheme: "serial", Path: "/dev/ttyS1", BaudRate: 57600}},
		{"tcp://localhost:4000", Endpoint{Scheme: "tcp", Address: "localhost:4000"}},
		{"ws://bridge.local/bus", Endpoint{Scheme: "ws", Address: "bridge.local"}},
	}
	for _, tc := range cases {
		t.Run(tc.url, func(t *testing.T) {
			ep, err := ParseURL(tc.url)
			require.NoError(t, err)
			tc.expected.URL = tc.url
			require.Equal(t, tc.expected, *ep)
		})
	}

	_, err := ParseURL("can://bus0")
	require.ErrorIs(t, err, ErrUnsupportedScheme)
	_, err = ParseURL("serial:///dev/ttyUSB0?baud=fast")
	require.Error(t, err)
	_, err = ParseURL("tcp:///nohost")
	require.Error(t, err)
}

// runSlave answers each request of reqLen bytes with reply.
func runSlave(t *testing.T, conn net.Conn, reqLen int, reply func(req []byte) []byte) {
	go func() {
		buf := make([]byte, reqLen)
		for {
			if _, err := io.ReadFull(conn, buf); err != nil {
				return
			}
			if r := reply(buf); r != nil {
				if _, err := conn.Write(r); err != nil {
					return
				}
			}
		}
	}()
}

func TestStreamTransceive(t *testing.T) {
	master, slave := net.Pipe()
	defer slave.Close()
	s := NewStream(master)
	defer s.Close()
	s.Timeout = 200 * time.Millisecond

	var corrupt bool
	runSlave(t, slave, 3, func(req []byte) []byte {
		if req[1] == 0xEE {
			return nil
		}
		frame := feldbus.EncodeFrame(feldbus.ReplyAddress(uint16(req[0]), 1), 1, feldbus.U16(0xBEEF), feldbus.ChecksumCRC8)
		if corrupt {
			frame[1] ^= 0x10
		}
		return frame
	})

	tx := feldbus.EncodeFrame(0x05, 1, feldbus.U8(0x01), feldbus.ChecksumCRC8)
	rx := make([]byte, 4)
	sent, received, status := s.Transceive(tx, rx, 0x05, feldbus.ChecksumCRC8)
	require.Equal(t, feldbus.StatusSuccess, status)
	require.Equal(t, 3, sent)
	require.Equal(t, 4, received)
	require.Equal(t, []byte{0x85, 0xEF, 0xBE}, rx[:3])

	corrupt = true
	s.ClearBuffer()
	_, _, status = s.Transceive(tx, rx, 0x05, feldbus.ChecksumCRC8)
	require.Equal(t, feldbus.StatusChecksumError, status)

	s.Timeout = 20 * time.Millisecond
	tx = feldbus.EncodeFrame(0x05, 1, feldbus.U8(0xEE), feldbus.ChecksumCRC8)
	_, received, status = s.Transceive(tx, rx, 0x05, feldbus.ChecksumCRC8)
	require.Equal(t, feldbus.StatusTransmissionError, status)
	require.Equal(t, 0, received)
}

func TestStreamWithDevice(t *testing.T) {
	master, slave := net.Pipe()
	defer slave.Close()
	s := NewStream(master)
	defer s.Close()
	s.Timeout = 200 * time.Millisecond

	runSlave(t, slave, 4, func(req []byte) []byte {
		return feldbus.EncodeFrame(feldbus.ReplyAddress(uint16(req[0]), 1), 1, feldbus.Bytes(req[1:3]), feldbus.ChecksumXOR)
	})

	dev, err := feldbus.NewBus(s).NewDevice(feldbus.Config{Address: 0x12, Checksum: feldbus.ChecksumXOR})
	require.NoError(t, err)
	var v feldbus.U16
	require.True(t, dev.Transceive(feldbus.U16(0x0102), &v))
	require.Equal(t, feldbus.U16(0x0102), v)
}
