package feldbustest

import (
	"encoding/binary"
	"sync"

	"github.com/robotalks/feldbus.go/pkg/feldbus"
)

// Slave answers the reserved device commands and pings, and passes all
// other requests to Handle.
type Slave struct {
	Info     feldbus.DeviceInfo
	Name     string
	Version  string
	Uptime   uint32
	Counters feldbus.SlaveCounters
	Handle   Handler

	lock      sync.Mutex
	infoCalls int
}

// NewSlave creates a slave with a consistent DeviceInfo.
func NewSlave(protocolID, typeID byte, name, version string) *Slave {
	return &Slave{
		Info: feldbus.DeviceInfo{
			ProtocolID:        protocolID,
			TypeID:            typeID,
			CRCType:           byte(feldbus.ChecksumCRC8),
			BufferSize:        64,
			NameLength:        byte(len(name)),
			VersionInfoLength: byte(len(version)),
			UptimeFrequency:   1000,
		},
		Name:    name,
		Version: version,
	}
}

// InfoCalls returns how often DeviceInfo was requested.
func (s *Slave) InfoCalls() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.infoCalls
}

// Handler returns the Handler to Attach.
func (s *Slave) Handler() Handler {
	return s.serve
}

func (s *Slave) serve(payload []byte) ([]byte, bool) {
	if len(payload) == 0 {
		return nil, true
	}
	if payload[0] != 0x00 {
		if s.Handle == nil {
			return nil, false
		}
		return s.Handle(payload)
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if len(payload) == 1 {
		s.infoCalls++
		return s.Info.Bytes(), true
	}
	switch payload[1] {
	case 0x00:
		return []byte(s.Name), true
	case 0x01:
		return u32(s.Uptime), true
	case 0x02:
		return []byte(s.Version), true
	case 0x03:
		return u32(s.Counters.Accepted), true
	case 0x04:
		return u32(s.Counters.Overflow), true
	case 0x05:
		return u32(s.Counters.Lost), true
	case 0x06:
		return u32(s.Counters.ChecksumFailures), true
	case 0x07:
		b := make([]byte, 16)
		s.Counters.Encode(b)
		return b, true
	case 0x08:
		s.Counters = feldbus.SlaveCounters{}
		return nil, true
	}
	return nil, false
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}
