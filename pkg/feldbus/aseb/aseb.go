// Package aseb implements generic I/O boards with digital inputs and
// outputs, analog inputs and PWM outputs.
package aseb

import (
	"encoding/binary"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/feldbus.go/pkg/feldbus"
)

// Channel key ranges.
const (
	KeyDigitalInputBase  byte = 1
	KeyAnalogInputBase   byte = 17
	KeyDigitalOutputBase byte = 33
	KeyPWMOutputBase     byte = 49

	MaxDigitalInputs  = 16
	MaxAnalogInputs   = 8
	MaxDigitalOutputs = 16
	MaxPWMOutputs     = 4

	// PWMDutyMax is the wire value of a 100% duty cycle.
	PWMDutyMax = 0xFFFF
)

const (
	keySync              byte = 0xFE
	keyMeta              byte = 0xFF
	metaDigitalInputs    byte = 0x00
	metaAnalogInputs     byte = 0x01
	metaDigitalOutputs   byte = 0x02
	metaPWMOutputs       byte = 0x03
	metaAnalogResolution byte = 0x04
	metaAnalogFactor     byte = 0x05
	metaPWMFrequency     byte = 0x06
	metaSyncSize         byte = 0x07
)

// Layout describes the I/O channels of a board.
type Layout struct {
	DigitalInputs    int
	AnalogInputs     int
	DigitalOutputs   int
	PWMOutputs       int
	AnalogResolution int
	AnalogFactors    []float32
	PWMFrequencies   []uint32
}

// SyncSize is the size of the sync reply.
func (l *Layout) SyncSize() int {
	return 2 + 2*l.AnalogInputs
}

// Aseb is an I/O board.
type Aseb struct {
	*feldbus.Device

	lock         sync.Mutex
	layout       Layout
	initialized  bool
	syncBuf      []byte
	synced       bool
	outputs      uint16
	outputsKnown uint16
	pwm          []uint16
	pwmOK        []bool
}

// New creates an Aseb on dev.
func New(dev *feldbus.Device) *Aseb {
	return &Aseb{Device: dev}
}

func (a *Aseb) meta(sub byte, arg feldbus.Encoder, resp feldbus.Decoder) bool {
	if arg == nil {
		arg = feldbus.Empty{}
	}
	return a.Transceive(feldbus.Concat(feldbus.U8(keyMeta), feldbus.U8(sub), arg), resp)
}

func (a *Aseb) count(sub byte, limit int) (int, bool) {
	var n feldbus.U8
	if !a.meta(sub, nil, &n) {
		return 0, false
	}
	if int(n) > limit {
		glog.Errorf("%s: %d channels exceed limit %d", a.Name(), n, limit)
		return 0, false
	}
	return int(n), true
}

// Initialize reads the board layout. It is called on first use.
func (a *Aseb) Initialize() bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.initialize()
}

func (a *Aseb) initialize() bool {
	if a.initialized {
		return true
	}
	var l Layout
	var ok bool
	if l.DigitalInputs, ok = a.count(metaDigitalInputs, MaxDigitalInputs); !ok {
		return false
	}
	if l.AnalogInputs, ok = a.count(metaAnalogInputs, MaxAnalogInputs); !ok {
		return false
	}
	if l.DigitalOutputs, ok = a.count(metaDigitalOutputs, MaxDigitalOutputs); !ok {
		return false
	}
	if l.PWMOutputs, ok = a.count(metaPWMOutputs, MaxPWMOutputs); !ok {
		return false
	}
	if l.AnalogInputs > 0 {
		var res feldbus.U8
		if !a.meta(metaAnalogResolution, nil, &res) {
			return false
		}
		l.AnalogResolution = int(res)
		l.AnalogFactors = make([]float32, l.AnalogInputs)
		for n := range l.AnalogFactors {
			var f feldbus.F32
			if !a.meta(metaAnalogFactor, feldbus.U8(n), &f) {
				return false
			}
			l.AnalogFactors[n] = float32(f)
		}
	}
	l.PWMFrequencies = make([]uint32, l.PWMOutputs)
	for n := range l.PWMFrequencies {
		var f feldbus.U32
		if !a.meta(metaPWMFrequency, feldbus.U8(n), &f) {
			return false
		}
		l.PWMFrequencies[n] = uint32(f)
	}
	var size feldbus.U8
	if !a.meta(metaSyncSize, nil, &size) {
		return false
	}
	if int(size) != l.SyncSize() {
		glog.Errorf("%s: sync size %d does not match layout (%d)", a.Name(), size, l.SyncSize())
		return false
	}
	a.layout = l
	a.syncBuf = make([]byte, l.SyncSize())
	a.pwm = make([]uint16, l.PWMOutputs)
	a.pwmOK = make([]bool, l.PWMOutputs)
	a.initialized = true
	return true
}

// Layout returns the board layout.
func (a *Aseb) Layout() (Layout, bool) {
	a.lock.Lock()
	defer a.lock.Unlock()
	if !a.initialize() {
		return Layout{}, false
	}
	return a.layout, true
}

// Sync reads all inputs in one request. Input getters return the values
// of the last successful Sync.
func (a *Aseb) Sync() bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	if !a.initialize() {
		return false
	}
	buf := make(feldbus.Bytes, len(a.syncBuf))
	if !a.Transceive(feldbus.U8(keySync), buf) {
		return false
	}
	copy(a.syncBuf, buf)
	a.synced = true
	return true
}

// DigitalInput returns the synced state of input ch.
func (a *Aseb) DigitalInput(ch int) (bool, bool) {
	a.lock.Lock()
	defer a.lock.Unlock()
	if !a.synced || ch < 0 || ch >= a.layout.DigitalInputs {
		return false, false
	}
	bits := binary.LittleEndian.Uint16(a.syncBuf)
	return bits&(1<<uint(ch)) != 0, true
}

// AnalogInputRaw returns the synced raw value of input ch.
func (a *Aseb) AnalogInputRaw(ch int) (int16, bool) {
	a.lock.Lock()
	defer a.lock.Unlock()
	if !a.synced || ch < 0 || ch >= a.layout.AnalogInputs {
		return 0, false
	}
	return int16(binary.LittleEndian.Uint16(a.syncBuf[2+2*ch:])), true
}

// AnalogInput returns the synced value of input ch scaled by its factor.
func (a *Aseb) AnalogInput(ch int) (float32, bool) {
	raw, ok := a.AnalogInputRaw(ch)
	if !ok {
		return 0, false
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	return float32(raw) * a.layout.AnalogFactors[ch], true
}

// DigitalOutput returns the state of output ch.
func (a *Aseb) DigitalOutput(ch int) (bool, bool) {
	a.lock.Lock()
	defer a.lock.Unlock()
	if !a.initialize() || ch < 0 || ch >= a.layout.DigitalOutputs {
		return false, false
	}
	mask := uint16(1) << uint(ch)
	if a.outputsKnown&mask == 0 {
		var v feldbus.U8
		if !a.Transceive(feldbus.U8(KeyDigitalOutputBase+byte(ch)), &v) {
			return false, false
		}
		a.setOutput(mask, v != 0)
	}
	return a.outputs&mask != 0, true
}

// SetDigitalOutput switches output ch.
func (a *Aseb) SetDigitalOutput(ch int, on bool) bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	if !a.initialize() || ch < 0 || ch >= a.layout.DigitalOutputs {
		return false
	}
	var v feldbus.U8
	if on {
		v = 1
	}
	if !a.Transceive(feldbus.Concat(feldbus.U8(KeyDigitalOutputBase+byte(ch)), v), feldbus.Empty{}) {
		return false
	}
	a.setOutput(uint16(1)<<uint(ch), on)
	return true
}

func (a *Aseb) setOutput(mask uint16, on bool) {
	if on {
		a.outputs |= mask
	} else {
		a.outputs &^= mask
	}
	a.outputsKnown |= mask
}

// PWMOutput returns the duty cycle of output ch in percent.
func (a *Aseb) PWMOutput(ch int) (float32, bool) {
	a.lock.Lock()
	defer a.lock.Unlock()
	if !a.initialize() || ch < 0 || ch >= a.layout.PWMOutputs {
		return 0, false
	}
	if !a.pwmOK[ch] {
		var v feldbus.U16
		if !a.Transceive(feldbus.U8(KeyPWMOutputBase+byte(ch)), &v) {
			return 0, false
		}
		a.pwm[ch], a.pwmOK[ch] = uint16(v), true
	}
	return float32(a.pwm[ch]) * 100 / PWMDutyMax, true
}

// SetPWMOutput sets the duty cycle of output ch in percent.
func (a *Aseb) SetPWMOutput(ch int, duty float32) bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	if !a.initialize() || ch < 0 || ch >= a.layout.PWMOutputs {
		return false
	}
	if duty < 0 {
		duty = 0
	} else if duty > 100 {
		duty = 100
	}
	v := uint16(duty/100*PWMDutyMax + 0.5)
	if !a.Transceive(feldbus.Concat(feldbus.U8(KeyPWMOutputBase+byte(ch)), feldbus.U16(v)), feldbus.Empty{}) {
		return false
	}
	a.pwm[ch], a.pwmOK[ch] = v, true
	return true
}
