// Package transport adapts physical links to feldbus.Transport.
package transport

import (
	"context"
	"io"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/feldbus.go/pkg/feldbus"
)

// DefaultTimeout bounds the wait for a complete reply.
const DefaultTimeout = 20 * time.Millisecond

// Conn is a feldbus.Transport owning its link.
type Conn interface {
	feldbus.Transport
	io.Closer
}

// Stream runs the bus over a byte stream without read timeouts, e.g. a
// TCP bridge or a websocket. Bytes are collected by a background reader.
type Stream struct {
	ReadWriter io.ReadWriter
	Timeout    time.Duration

	byteCh chan byte
	errCh  chan error
	cancel context.CancelFunc
}

// NewStream starts reading rw.
func NewStream(rw io.ReadWriter) *Stream {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Stream{
		ReadWriter: rw,
		Timeout:    DefaultTimeout,
		byteCh:     make(chan byte, 256),
		errCh:      make(chan error, 1),
		cancel:     cancel,
	}
	go s.readLoop(ctx)
	return s
}

func (s *Stream) readLoop(ctx context.Context) {
	buf := make([]byte, 64)
	for {
		n, err := s.ReadWriter.Read(buf)
		for _, b := range buf[:n] {
			select {
			case s.byteCh <- b:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			s.errCh <- err
			return
		}
	}
}

// Close stops the reader and closes the stream if it is an io.Closer.
func (s *Stream) Close() error {
	s.cancel()
	if c, ok := s.ReadWriter.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// ClearBuffer implements feldbus.Transport.
func (s *Stream) ClearBuffer() {
	for {
		select {
		case <-s.byteCh:
		default:
			return
		}
	}
}

// Transceive implements feldbus.Transport.
func (s *Stream) Transceive(tx, rx []byte, address uint16, checksum feldbus.ChecksumType) (int, int, feldbus.Status) {
	sent, err := s.ReadWriter.Write(tx)
	if err != nil || sent < len(tx) {
		glog.V(3).Infof("stream: write to %d failed: %v", address, err)
		return sent, 0, feldbus.StatusTransmissionError
	}
	if len(rx) == 0 {
		return sent, 0, feldbus.StatusSuccess
	}
	timer := time.NewTimer(s.Timeout)
	defer timer.Stop()
	received := 0
	for received < len(rx) {
		select {
		case b := <-s.byteCh:
			rx[received] = b
			received++
		case err := <-s.errCh:
			s.errCh <- err
			glog.V(3).Infof("stream: read from %d failed: %v", address, err)
			return sent, received, feldbus.StatusTransmissionError
		case <-timer.C:
			return sent, received, feldbus.StatusTransmissionError
		}
	}
	if !feldbus.VerifyFrame(rx, checksum) {
		return sent, received, feldbus.StatusChecksumError
	}
	return sent, received, feldbus.StatusSuccess
}
