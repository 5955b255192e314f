// Package muxer implements multiplexer boards cycling through channels.
package muxer

import (
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/feldbus.go/pkg/feldbus"
)

const (
	cmdSetCycleLength byte = 0x01
	cmdSetCycleIndex  byte = 0x02
	cmdSetTriggerMode byte = 0x03
	cmdGetConfig      byte = 0x04
	cmdTrigger        byte = 0x05

	statusOK byte = 0x00
)

// TriggerMode selects what advances the multiplexer.
type TriggerMode uint8

// Trigger modes.
const (
	TriggerContinuous TriggerMode = 0
	TriggerExternal   TriggerMode = 1
	TriggerSingle     TriggerMode = 2
)

// String implements fmt.Stringer.
func (m TriggerMode) String() string {
	switch m {
	case TriggerContinuous:
		return "continuous"
	case TriggerExternal:
		return "external"
	case TriggerSingle:
		return "single"
	}
	return "unknown"
}

// ParseTriggerMode parses the String form of a TriggerMode.
func ParseTriggerMode(s string) (TriggerMode, bool) {
	for _, m := range []TriggerMode{TriggerContinuous, TriggerExternal, TriggerSingle} {
		if m.String() == s {
			return m, true
		}
	}
	return 0, false
}

// Config is the multiplexer configuration.
type Config struct {
	CycleLength uint8
	CycleIndex  uint8
	TriggerMode TriggerMode
}

func (c *Config) Len() int { return 3 }

func (c *Config) Decode(b []byte) {
	c.CycleLength, c.CycleIndex, c.TriggerMode = b[0], b[1], TriggerMode(b[2])
}

// Muxer is a multiplexer board. Its configuration is mirrored locally
// once the device acknowledged it.
type Muxer struct {
	*feldbus.Device

	lock   sync.Mutex
	shadow Config
	known  bool
}

// New creates a Muxer on dev.
func New(dev *feldbus.Device) *Muxer {
	return &Muxer{Device: dev}
}

func (m *Muxer) command(cmd byte, arg byte) bool {
	var status feldbus.U8
	if !m.Transceive(feldbus.Concat(feldbus.U8(cmd), feldbus.U8(arg)), &status) {
		return false
	}
	if byte(status) != statusOK {
		glog.Warningf("%s: command 0x%02x(%d) rejected with status %d", m.Name(), cmd, arg, status)
		return false
	}
	return true
}

// Config returns the configuration, queried from the device if not known.
func (m *Muxer) Config() (Config, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if !m.known {
		var c Config
		if !m.Transceive(feldbus.U8(cmdGetConfig), &c) {
			return Config{}, false
		}
		m.shadow, m.known = c, true
	}
	return m.shadow, true
}

// SetCycleLength sets the number of channels in a cycle.
func (m *Muxer) SetCycleLength(n uint8) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	if n == 0 || !m.command(cmdSetCycleLength, n) {
		return false
	}
	m.shadow.CycleLength = n
	if m.shadow.CycleIndex >= n {
		m.known = false
	}
	return true
}

// SetCycleIndex selects the current channel.
func (m *Muxer) SetCycleIndex(i uint8) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.known && i >= m.shadow.CycleLength {
		return false
	}
	if !m.command(cmdSetCycleIndex, i) {
		return false
	}
	m.shadow.CycleIndex = i
	return true
}

// SetTriggerMode selects what advances the multiplexer.
func (m *Muxer) SetTriggerMode(mode TriggerMode) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	if !m.command(cmdSetTriggerMode, byte(mode)) {
		return false
	}
	m.shadow.TriggerMode = mode
	return true
}

// Trigger advances a multiplexer in single trigger mode by one channel.
func (m *Muxer) Trigger() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	var status feldbus.U8
	if !m.Transceive(feldbus.U8(cmdTrigger), &status) || byte(status) != statusOK {
		return false
	}
	if m.known && m.shadow.CycleLength > 0 {
		m.shadow.CycleIndex = (m.shadow.CycleIndex + 1) % m.shadow.CycleLength
	}
	return true
}
