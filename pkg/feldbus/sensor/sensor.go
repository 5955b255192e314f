// Package sensor implements read-only measurement devices.
package sensor

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/feldbus.go/pkg/feldbus"
	"github.com/robotalks/feldbus.go/pkg/feldbus/aktor"
)

const (
	keyMeta          byte = 0xFF
	keyReadAll       byte = 0xFE
	metaChannelCount byte = 0x00
	metaChannelInfo  byte = 0x01
	maxChannel            = 0xFD
)

// Channel is one measured quantity.
type Channel = aktor.Command

type channelInfo struct {
	length aktor.LengthClass
	factor float32
}

func (i *channelInfo) Len() int { return 5 }

func (i *channelInfo) Decode(b []byte) {
	i.length = aktor.LengthClass(b[0])
	i.factor = math.Float32frombits(binary.LittleEndian.Uint32(b[1:]))
}

// Sensor is a device with a table of read-only channels.
type Sensor struct {
	*feldbus.Device

	lock     sync.Mutex
	channels []Channel
}

// New creates a Sensor on dev.
func New(dev *feldbus.Device) *Sensor {
	return &Sensor{Device: dev}
}

// Channels returns the channel table, reading it on first use.
func (s *Sensor) Channels() ([]Channel, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.ensureChannels() {
		return nil, false
	}
	return append([]Channel(nil), s.channels...), true
}

func (s *Sensor) ensureChannels() bool {
	if s.channels != nil {
		return true
	}
	var count feldbus.U8
	if !s.Transceive(feldbus.Concat(feldbus.U8(keyMeta), feldbus.U8(metaChannelCount)), &count) {
		return false
	}
	if count > maxChannel {
		glog.Errorf("%s: invalid channel count %d", s.Name(), count)
		return false
	}
	channels := make([]Channel, count)
	for n := range channels {
		key := byte(n + 1)
		var info channelInfo
		if !s.Transceive(feldbus.Concat(feldbus.U8(keyMeta), feldbus.U8(metaChannelInfo), feldbus.U8(key)), &info) {
			return false
		}
		if info.length == aktor.LengthNone || !info.length.IsValid() {
			glog.Errorf("%s: channel %d has invalid length class %d", s.Name(), key, info.length)
			return false
		}
		channels[n] = Channel{Key: key, Access: aktor.ReadOnly, Length: info.length, Factor: info.factor}
	}
	s.channels = channels
	return true
}

// Read reads a single channel.
func (s *Sensor) Read(key byte) (float32, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.ensureChannels() || key == 0 || int(key) > len(s.channels) {
		return 0, false
	}
	ch := &s.channels[key-1]
	raw := aktor.Raw{Class: ch.Length}
	if !s.Transceive(feldbus.U8(key), &raw) {
		return 0, false
	}
	return ch.Value(raw), true
}

// ReadAll reads every channel in one request, ordered by key.
func (s *Sensor) ReadAll() ([]float32, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.ensureChannels() {
		return nil, false
	}
	raws := make([]aktor.Raw, len(s.channels))
	decoders := make([]feldbus.Decoder, len(s.channels))
	for n := range s.channels {
		raws[n].Class = s.channels[n].Length
		decoders[n] = &raws[n]
	}
	if !s.Transceive(feldbus.U8(keyReadAll), feldbus.Fields(decoders...)) {
		return nil, false
	}
	values := make([]float32, len(raws))
	for n := range raws {
		values[n] = s.channels[n].Value(raws[n])
	}
	return values, true
}
