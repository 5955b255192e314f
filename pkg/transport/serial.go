package transport

import (
	"fmt"
	"time"

	"github.com/golang/glog"
	"go.bug.st/serial"

	"github.com/robotalks/feldbus.go/pkg/feldbus"
)

// DefaultBaudRate of serial buses.
const DefaultBaudRate = 115200

// Serial runs the bus on a serial port (usually RS-485).
type Serial struct {
	port    serial.Port
	path    string
	timeout time.Duration
}

// OpenSerial opens the port at path with 8N1 framing.
func OpenSerial(path string, baudRate int, timeout time.Duration) (*Serial, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", path, err)
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("serial: set timeout on %s: %w", path, err)
	}
	glog.Infof("serial: opened %s at %d baud", path, baudRate)
	return &Serial{port: port, path: path, timeout: timeout}, nil
}

// Close implements io.Closer.
func (s *Serial) Close() error {
	return s.port.Close()
}

// ClearBuffer implements feldbus.Transport.
func (s *Serial) ClearBuffer() {
	if err := s.port.ResetInputBuffer(); err != nil {
		glog.Warningf("serial: reset input buffer of %s: %v", s.path, err)
	}
}

// Transceive implements feldbus.Transport.
func (s *Serial) Transceive(tx, rx []byte, address uint16, checksum feldbus.ChecksumType) (int, int, feldbus.Status) {
	sent, err := s.port.Write(tx)
	if err != nil || sent < len(tx) {
		glog.V(3).Infof("serial: write to %d failed: %v", address, err)
		return sent, 0, feldbus.StatusTransmissionError
	}
	if len(rx) == 0 {
		if err := s.port.Drain(); err != nil {
			return sent, 0, feldbus.StatusTransmissionError
		}
		return sent, 0, feldbus.StatusSuccess
	}
	received := 0
	deadline := time.Now().Add(s.timeout)
	for received < len(rx) && time.Now().Before(deadline) {
		n, err := s.port.Read(rx[received:])
		if err != nil {
			glog.V(3).Infof("serial: read from %d failed: %v", address, err)
			return sent, received, feldbus.StatusTransmissionError
		}
		if n == 0 {
			break
		}
		received += n
	}
	if received < len(rx) {
		return sent, received, feldbus.StatusTransmissionError
	}
	if !feldbus.VerifyFrame(rx, checksum) {
		return sent, received, feldbus.StatusChecksumError
	}
	return sent, received, feldbus.StatusSuccess
}
