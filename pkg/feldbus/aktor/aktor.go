// Package aktor implements actuator devices exposing a command table.
package aktor

import (
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/feldbus.go/pkg/feldbus"
)

// meta commands, sent as [keyMeta][sub...].
const (
	keyMeta                   byte = 0xFF
	metaCommandCount          byte = 0x00
	metaCommandInfo           byte = 0x01
	metaCommandName           byte = 0x02
	metaCommandNameLength     byte = 0x03
	metaSetStructuredOutput   byte = 0x10
	metaReadStructuredOutput  byte = 0x11
	metaStructuredOutputSize  byte = 0x12
	structuredOutputAccepted  byte = 0x00
	structuredOutputTableFull byte = 0x01
)

// DefaultMaxCommands bounds the command table when none is configured.
const DefaultMaxCommands = 32

type entry struct {
	Command
	cached bool
	value  Raw
}

// Aktor is a device with a table of keyed values.
type Aktor struct {
	*feldbus.Device

	maxCommands int

	lock      sync.Mutex
	commands  []entry
	populated bool
	output    []byte
}

// New creates an Aktor accepting at most maxCommands table entries.
func New(dev *feldbus.Device, maxCommands int) *Aktor {
	if maxCommands <= 0 {
		maxCommands = DefaultMaxCommands
	}
	return &Aktor{Device: dev, maxCommands: maxCommands}
}

// CommandCount queries the size of the command table.
func (a *Aktor) CommandCount() (int, bool) {
	var count feldbus.U8
	if !a.Transceive(feldbus.Concat(feldbus.U8(keyMeta), feldbus.U8(metaCommandCount)), &count) {
		return 0, false
	}
	return int(count), true
}

// PopulateCommandSet reads the command table from the device.
func (a *Aktor) PopulateCommandSet() bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.populate()
}

func (a *Aktor) populate() bool {
	count, ok := a.CommandCount()
	if !ok {
		return false
	}
	if count > a.maxCommands {
		glog.Errorf("%s: device has %d commands, only %d supported", a.Name(), count, a.maxCommands)
		return false
	}
	commands := make([]entry, count)
	for n := range commands {
		key := byte(n + 1)
		var info commandInfo
		if !a.Transceive(feldbus.Concat(feldbus.U8(keyMeta), feldbus.U8(metaCommandInfo), feldbus.U8(key)), &info) {
			return false
		}
		if !info.length.IsValid() {
			glog.Errorf("%s: command %d has invalid length class %d", a.Name(), key, info.length)
			return false
		}
		commands[n].Command = Command{
			Key:    key,
			Access: info.access,
			Length: info.length,
			Factor: info.factor,
		}
		var nameLen feldbus.U8
		if !a.Transceive(feldbus.Concat(feldbus.U8(keyMeta), feldbus.U8(metaCommandNameLength), feldbus.U8(key)), &nameLen) {
			return false
		}
		if nameLen > 0 {
			name := make(feldbus.Bytes, nameLen)
			if !a.Transceive(feldbus.Concat(feldbus.U8(keyMeta), feldbus.U8(metaCommandName), feldbus.U8(key)), name) {
				return false
			}
			commands[n].Name = string(name)
		}
	}
	a.commands, a.populated = commands, true
	glog.V(1).Infof("%s: %d commands populated", a.Name(), count)
	for _, key := range a.output {
		if e := a.entry(key); e == nil || e.Length == LengthNone {
			glog.Warningf("%s: structured output key %d no longer exists, output table dropped", a.Name(), key)
			a.output = nil
			break
		}
	}
	return true
}

func (a *Aktor) ensurePopulated() bool {
	if a.populated {
		return true
	}
	return a.populate()
}

// Commands returns the command table, populating it on first use.
func (a *Aktor) Commands() ([]Command, bool) {
	a.lock.Lock()
	defer a.lock.Unlock()
	if !a.ensurePopulated() {
		return nil, false
	}
	cmds := make([]Command, len(a.commands))
	for n := range a.commands {
		cmds[n] = a.commands[n].Command
	}
	return cmds, true
}

// CommandByName finds a command by its device side name.
func (a *Aktor) CommandByName(name string) (Command, bool) {
	cmds, ok := a.Commands()
	if !ok {
		return Command{}, false
	}
	for _, cmd := range cmds {
		if cmd.Name == name {
			return cmd, true
		}
	}
	return Command{}, false
}

func (a *Aktor) entry(key byte) *entry {
	if !a.ensurePopulated() || key == 0 || int(key) > len(a.commands) {
		return nil
	}
	return &a.commands[key-1]
}

func (a *Aktor) read(e *entry) (Raw, bool) {
	if e.cached {
		return e.value, true
	}
	raw := Raw{Class: e.Length}
	if e.Length == LengthNone || !a.Transceive(feldbus.U8(e.Key), &raw) {
		return raw, false
	}
	if e.Writable() {
		e.value, e.cached = raw, true
	}
	return raw, true
}

func (a *Aktor) write(e *entry, raw Raw) bool {
	if !e.Writable() {
		return false
	}
	e.cached = false
	return a.Transceive(feldbus.Concat(feldbus.U8(e.Key), &raw), feldbus.Empty{})
}

// Value reads a scaled value.
func (a *Aktor) Value(key byte) (float32, bool) {
	a.lock.Lock()
	defer a.lock.Unlock()
	e := a.entry(key)
	if e == nil || e.IsControlValue() {
		return 0, false
	}
	raw, ok := a.read(e)
	if !ok {
		return 0, false
	}
	return e.Command.Value(raw), true
}

// SetValue writes a scaled value.
func (a *Aktor) SetValue(key byte, v float32) bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	e := a.entry(key)
	if e == nil || e.IsControlValue() {
		return false
	}
	return a.write(e, e.Command.RawValue(v))
}

// ControlValue reads an unscaled integer value.
func (a *Aktor) ControlValue(key byte) (int32, bool) {
	a.lock.Lock()
	defer a.lock.Unlock()
	e := a.entry(key)
	if e == nil || !e.IsControlValue() {
		return 0, false
	}
	raw, ok := a.read(e)
	return raw.Int, ok
}

// SetControlValue writes an unscaled integer value. Commands without a
// value are triggered by the key alone.
func (a *Aktor) SetControlValue(key byte, v int32) bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	e := a.entry(key)
	if e == nil || !e.IsControlValue() {
		return false
	}
	lo, hi := e.Length.limits()
	if e.Length != LengthNone && (int64(v) < lo || int64(v) > hi) {
		return false
	}
	return a.write(e, Raw{Class: e.Length, Int: v})
}

// InvalidateCache drops all cached values.
func (a *Aktor) InvalidateCache() {
	a.lock.Lock()
	for n := range a.commands {
		a.commands[n].cached = false
	}
	a.lock.Unlock()
}

// StructuredOutputSize queries how many keys the output table accepts.
func (a *Aktor) StructuredOutputSize() (int, bool) {
	var size feldbus.U8
	if !a.Transceive(feldbus.Concat(feldbus.U8(keyMeta), feldbus.U8(metaStructuredOutputSize)), &size) {
		return 0, false
	}
	return int(size), true
}

// SetStructuredOutputTable selects the values returned by
// ReadStructuredOutput.
func (a *Aktor) SetStructuredOutputTable(keys []byte) bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	for _, key := range keys {
		if e := a.entry(key); e == nil || e.Length == LengthNone {
			return false
		}
	}
	var status feldbus.U8
	req := feldbus.Concat(feldbus.U8(keyMeta), feldbus.U8(metaSetStructuredOutput), feldbus.Bytes(keys))
	if !a.Transceive(req, &status) {
		return false
	}
	switch byte(status) {
	case structuredOutputAccepted:
		a.output = append([]byte(nil), keys...)
		return true
	case structuredOutputTableFull:
		glog.Warningf("%s: structured output table of %d keys too large", a.Name(), len(keys))
	}
	return false
}

// OutputValue is one value of the structured output.
type OutputValue struct {
	Key   byte
	Value float32
}

// ReadStructuredOutput reads all values of the output table in one request.
func (a *Aktor) ReadStructuredOutput() ([]OutputValue, bool) {
	a.lock.Lock()
	defer a.lock.Unlock()
	if len(a.output) == 0 {
		return nil, false
	}
	entries := make([]*entry, len(a.output))
	raws := make([]Raw, len(a.output))
	decoders := make([]feldbus.Decoder, len(a.output))
	for n, key := range a.output {
		e := a.entry(key)
		if e == nil || e.Length == LengthNone {
			return nil, false
		}
		entries[n] = e
		raws[n].Class = e.Length
		decoders[n] = &raws[n]
	}
	if !a.Transceive(feldbus.Concat(feldbus.U8(keyMeta), feldbus.U8(metaReadStructuredOutput)), feldbus.Fields(decoders...)) {
		return nil, false
	}
	values := make([]OutputValue, len(a.output))
	for n, key := range a.output {
		values[n] = OutputValue{Key: key, Value: entries[n].Command.Value(raws[n])}
	}
	return values, true
}
