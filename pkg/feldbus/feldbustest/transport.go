// Package feldbustest simulates a Feldbus with scripted slaves.
package feldbustest

import (
	"sync"

	"github.com/robotalks/feldbus.go/pkg/feldbus"
)

// Handler answers the request payload of an addressed frame. Returning
// false leaves the request unanswered.
type Handler func(payload []byte) (reply []byte, ok bool)

// BroadcastHandler receives broadcast payloads.
type BroadcastHandler func(payload []byte)

// Fault is injected into one transport call.
type Fault int

// Faults.
const (
	FaultNone Fault = iota
	// FaultDrop loses the reply.
	FaultDrop
	// FaultTruncate delivers half of the reply.
	FaultTruncate
	// FaultCorrupt flips one bit of the reply.
	FaultCorrupt
	// FaultShortSend fails sending the last byte of the request.
	FaultShortSend
)

// Request is a frame seen by the transport.
type Request struct {
	Address uint16
	Payload []byte
}

// Transport is an in-memory feldbus.Transport.
type Transport struct {
	addrLen    int
	lock       sync.Mutex
	slaves     map[uint16]Handler
	broadcasts []BroadcastHandler
	faults     []Fault
	calls      int
	clears     int
	requests   []Request
}

// New creates a Transport for addrLen byte addressing.
func New(addrLen int) *Transport {
	return &Transport{addrLen: addrLen, slaves: make(map[uint16]Handler)}
}

// Attach installs the handler for address.
func (t *Transport) Attach(address uint16, h Handler) *Transport {
	t.lock.Lock()
	t.slaves[address] = h
	t.lock.Unlock()
	return t
}

// Detach removes the slave at address.
func (t *Transport) Detach(address uint16) {
	t.lock.Lock()
	delete(t.slaves, address)
	t.lock.Unlock()
}

// OnBroadcast adds a broadcast receiver.
func (t *Transport) OnBroadcast(h BroadcastHandler) *Transport {
	t.lock.Lock()
	t.broadcasts = append(t.broadcasts, h)
	t.lock.Unlock()
	return t
}

// InjectFaults queues faults consumed by subsequent calls, one per call.
func (t *Transport) InjectFaults(faults ...Fault) {
	t.lock.Lock()
	t.faults = append(t.faults, faults...)
	t.lock.Unlock()
}

// Calls returns the number of Transceive calls.
func (t *Transport) Calls() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.calls
}

// Clears returns the number of ClearBuffer calls.
func (t *Transport) Clears() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.clears
}

// Requests returns all frames seen so far.
func (t *Transport) Requests() []Request {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]Request(nil), t.requests...)
}

// RequestsTo returns the payloads sent to address.
func (t *Transport) RequestsTo(address uint16) [][]byte {
	t.lock.Lock()
	defer t.lock.Unlock()
	var payloads [][]byte
	for _, r := range t.requests {
		if r.Address == address {
			payloads = append(payloads, r.Payload)
		}
	}
	return payloads
}

// ResetStats clears counts and recorded requests.
func (t *Transport) ResetStats() {
	t.lock.Lock()
	t.calls, t.clears, t.requests = 0, 0, nil
	t.lock.Unlock()
}

// ClearBuffer implements feldbus.Transport.
func (t *Transport) ClearBuffer() {
	t.lock.Lock()
	t.clears++
	t.lock.Unlock()
}

// Transceive implements feldbus.Transport.
func (t *Transport) Transceive(tx, rx []byte, address uint16, checksum feldbus.ChecksumType) (int, int, feldbus.Status) {
	t.lock.Lock()
	t.calls++
	fault := FaultNone
	if len(t.faults) > 0 {
		fault, t.faults = t.faults[0], t.faults[1:]
	}
	if fault == FaultShortSend {
		t.lock.Unlock()
		return len(tx) - 1, 0, feldbus.StatusTransmissionError
	}
	dest, payload, err := feldbus.DecodeFrame(tx, t.addrLen, checksum)
	if err != nil {
		t.lock.Unlock()
		return len(tx), 0, feldbus.StatusTransmissionError
	}
	payload = append([]byte(nil), payload...)
	t.requests = append(t.requests, Request{Address: dest, Payload: payload})
	if dest == feldbus.BroadcastAddress {
		handlers := append([]BroadcastHandler(nil), t.broadcasts...)
		t.lock.Unlock()
		for _, h := range handlers {
			h(payload)
		}
		if len(rx) > 0 {
			return len(tx), 0, feldbus.StatusTransmissionError
		}
		return len(tx), 0, feldbus.StatusSuccess
	}
	h := t.slaves[dest]
	t.lock.Unlock()

	if h == nil {
		return len(tx), 0, feldbus.StatusTransmissionError
	}
	reply, ok := h(payload)
	if !ok || fault == FaultDrop {
		return len(tx), 0, feldbus.StatusTransmissionError
	}
	frame := feldbus.EncodeFrame(feldbus.ReplyAddress(dest, t.addrLen), t.addrLen, feldbus.Bytes(reply), checksum)
	n := copy(rx, frame)
	if fault == FaultTruncate {
		n /= 2
	}
	if n < len(rx) {
		return len(tx), n, feldbus.StatusTransmissionError
	}
	if fault == FaultCorrupt {
		rx[len(rx)-1] ^= 0x01
	}
	if !feldbus.VerifyFrame(rx, checksum) {
		return len(tx), n, feldbus.StatusChecksumError
	}
	return len(tx), n, feldbus.StatusSuccess
}
