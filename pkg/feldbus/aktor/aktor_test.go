package aktor

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/feldbus.go/pkg/feldbus"
	"github.com/robotalks/feldbus.go/pkg/feldbus/feldbustest"
)

type simCommand struct {
	name   string
	access Access
	length LengthClass
	factor float32
	raw    Raw
}

type simAktor struct {
	commands []simCommand
	reads    map[byte]int
	writes   map[byte]int
	output   []byte
	maxOut   int
}

func newSimAktor(commands ...simCommand) *simAktor {
	for n := range commands {
		commands[n].raw.Class = commands[n].length
	}
	return &simAktor{
		commands: commands,
		reads:    make(map[byte]int),
		writes:   make(map[byte]int),
		maxOut:   4,
	}
}

func (s *simAktor) handle(p []byte) ([]byte, bool) {
	if p[0] == keyMeta {
		switch p[1] {
		case metaCommandCount:
			return []byte{byte(len(s.commands))}, true
		case metaCommandInfo:
			c := s.commands[p[2]-1]
			b := []byte{byte(c.access), byte(c.length), 0, 0, 0, 0}
			binary.LittleEndian.PutUint32(b[2:], math.Float32bits(c.factor))
			return b, true
		case metaCommandNameLength:
			return []byte{byte(len(s.commands[p[2]-1].name))}, true
		case metaCommandName:
			return []byte(s.commands[p[2]-1].name), true
		case metaStructuredOutputSize:
			return []byte{byte(s.maxOut)}, true
		case metaSetStructuredOutput:
			if len(p)-2 > s.maxOut {
				return []byte{structuredOutputTableFull}, true
			}
			s.output = append([]byte(nil), p[2:]...)
			return []byte{structuredOutputAccepted}, true
		case metaReadStructuredOutput:
			var reply []byte
			for _, key := range s.output {
				raw := s.commands[key-1].raw
				b := make([]byte, raw.Len())
				raw.Encode(b)
				reply = append(reply, b...)
			}
			return reply, true
		}
		return nil, false
	}
	key := p[0]
	if int(key) > len(s.commands) {
		return nil, false
	}
	c := &s.commands[key-1]
	if len(p) == 1 && c.length != LengthNone {
		s.reads[key]++
		b := make([]byte, c.raw.Len())
		c.raw.Encode(b)
		return b, true
	}
	s.writes[key]++
	c.raw.Decode(p[1:])
	return nil, true
}

func setup(t *testing.T, sim *simAktor, maxCommands int) (*Aktor, *feldbustest.Transport) {
	slave := feldbustest.NewSlave(feldbus.ProtocolAktor, 0x01, "aktor", "")
	slave.Handle = sim.handle
	tr := feldbustest.New(1).Attach(0x30, slave.Handler())
	dev, err := feldbus.NewBus(tr).NewDevice(feldbus.Config{Name: "aktor", Address: 0x30})
	require.NoError(t, err)
	return New(dev, maxCommands), tr
}

func testCommands() []simCommand {
	return []simCommand{
		{name: "angle", access: ReadOnly, length: LengthShort, factor: 0.01, raw: Raw{Int: 1234}},
		{name: "target", access: ReadWrite, length: LengthLong, factor: 0.001, raw: Raw{Int: -5000}},
		{name: "mode", access: ReadWrite, length: LengthChar, factor: ControlValueFactor, raw: Raw{Int: 2}},
		{name: "gain", access: ReadWrite, length: LengthFloat, factor: 1, raw: Raw{Float: 1.5}},
		{name: "home", access: ReadWrite, length: LengthNone, factor: ControlValueFactor},
	}
}

func TestPopulateCommandSet(t *testing.T) {
	sim := newSimAktor(testCommands()...)
	a, _ := setup(t, sim, 8)
	require.True(t, a.PopulateCommandSet())
	cmds, ok := a.Commands()
	require.True(t, ok)
	require.Len(t, cmds, 5)
	require.Equal(t, Command{Key: 2, Name: "target", Access: ReadWrite, Length: LengthLong, Factor: 0.001}, cmds[1])
	require.True(t, cmds[2].IsControlValue())
	require.False(t, cmds[3].IsControlValue())

	cmd, ok := a.CommandByName("gain")
	require.True(t, ok)
	require.Equal(t, byte(4), cmd.Key)

	small, _ := setup(t, newSimAktor(testCommands()...), 3)
	require.False(t, small.PopulateCommandSet())
}

func TestValues(t *testing.T) {
	sim := newSimAktor(testCommands()...)
	a, _ := setup(t, sim, 8)

	v, ok := a.Value(1)
	require.True(t, ok)
	require.InDelta(t, 12.34, v, 1e-4)

	v, ok = a.Value(2)
	require.True(t, ok)
	require.InDelta(t, -5.0, v, 1e-4)

	v, ok = a.Value(4)
	require.True(t, ok)
	require.Equal(t, float32(1.5), v)

	mode, ok := a.ControlValue(3)
	require.True(t, ok)
	require.Equal(t, int32(2), mode)

	_, ok = a.Value(3)
	require.False(t, ok, "control value read as scaled value")
	_, ok = a.ControlValue(1)
	require.False(t, ok, "scaled value read as control value")
	_, ok = a.Value(9)
	require.False(t, ok, "unknown key")

	require.False(t, a.SetValue(1, 3), "read only")
	require.True(t, a.SetValue(2, 7.25))
	require.Equal(t, int32(7250), sim.commands[1].raw.Int)
	require.True(t, a.SetControlValue(3, -7))
	require.Equal(t, int32(-7), sim.commands[2].raw.Int)
	require.False(t, a.SetControlValue(3, 200), "out of char range")
	require.True(t, a.SetControlValue(5, 0))
	require.Equal(t, 1, sim.writes[5])
}

func TestSetValueClamps(t *testing.T) {
	sim := newSimAktor(simCommand{name: "pwm", access: ReadWrite, length: LengthChar, factor: 0.5})
	a, _ := setup(t, sim, 8)
	require.True(t, a.SetValue(1, 1000))
	require.Equal(t, int32(127), sim.commands[0].raw.Int)
	require.True(t, a.SetValue(1, -1000))
	require.Equal(t, int32(-128), sim.commands[0].raw.Int)
}

func TestWritableValueCache(t *testing.T) {
	sim := newSimAktor(testCommands()...)
	a, tr := setup(t, sim, 8)
	require.True(t, a.PopulateCommandSet())

	for i := 0; i < 3; i++ {
		_, ok := a.Value(1)
		require.True(t, ok)
		_, ok = a.Value(2)
		require.True(t, ok)
	}
	require.Equal(t, 3, sim.reads[1], "read only values are not cached")
	require.Equal(t, 1, sim.reads[2])

	tr.ResetStats()
	require.True(t, a.SetValue(2, 1))
	v, ok := a.Value(2)
	require.True(t, ok)
	require.InDelta(t, 1.0, v, 1e-4)
	require.Equal(t, 2, sim.reads[2])
	require.Equal(t, 2, tr.Calls())

	a.InvalidateCache()
	_, ok = a.Value(2)
	require.True(t, ok)
	require.Equal(t, 3, sim.reads[2])
}

func TestStructuredOutput(t *testing.T) {
	sim := newSimAktor(testCommands()...)
	a, tr := setup(t, sim, 8)

	_, ok := a.ReadStructuredOutput()
	require.False(t, ok)

	size, ok := a.StructuredOutputSize()
	require.True(t, ok)
	require.Equal(t, 4, size)

	require.False(t, a.SetStructuredOutputTable([]byte{1, 5}), "command without value")
	require.False(t, a.SetStructuredOutputTable([]byte{1, 2, 3, 4, 1}), "table full")
	require.True(t, a.SetStructuredOutputTable([]byte{4, 1, 3}))
	require.Equal(t, []byte{4, 1, 3}, sim.output)

	tr.ResetStats()
	values, ok := a.ReadStructuredOutput()
	require.True(t, ok)
	require.Equal(t, 1, tr.Calls())
	require.Len(t, values, 3)
	require.Equal(t, OutputValue{Key: 4, Value: 1.5}, values[0])
	require.Equal(t, byte(1), values[1].Key)
	require.InDelta(t, 12.34, values[1].Value, 1e-4)
	require.Equal(t, OutputValue{Key: 3, Value: 2}, values[2])
}

func TestStructuredOutputAfterTableShrinks(t *testing.T) {
	sim := newSimAktor(testCommands()...)
	a, tr := setup(t, sim, 8)
	require.True(t, a.SetStructuredOutputTable([]byte{1, 4}))

	sim.commands = sim.commands[:2]
	require.True(t, a.PopulateCommandSet())
	tr.ResetStats()
	values, ok := a.ReadStructuredOutput()
	require.False(t, ok)
	require.Nil(t, values)
	require.Zero(t, tr.Calls())

	require.True(t, a.SetStructuredOutputTable([]byte{2, 1}))
	values, ok = a.ReadStructuredOutput()
	require.True(t, ok)
	require.Len(t, values, 2)
	require.InDelta(t, -5.0, values[0].Value, 1e-4)
}

func TestStructuredOutputKeptWhenTableUnchanged(t *testing.T) {
	sim := newSimAktor(testCommands()...)
	a, _ := setup(t, sim, 8)
	require.True(t, a.SetStructuredOutputTable([]byte{4, 1}))
	require.True(t, a.PopulateCommandSet())
	values, ok := a.ReadStructuredOutput()
	require.True(t, ok)
	require.Equal(t, OutputValue{Key: 4, Value: 1.5}, values[0])
}

func TestServo(t *testing.T) {
	cmds := make([]simCommand, servoCommands)
	for n := range cmds {
		cmds[n] = simCommand{access: ReadWrite, length: LengthShort, factor: 0.1}
	}
	cmds[KeyCurrentPosition-1].access = ReadOnly
	cmds[KeyCurrentPosition-1].raw = Raw{Int: 900}
	cmds[KeyControlState-1] = simCommand{access: ReadWrite, length: LengthChar, factor: ControlValueFactor}
	sim := newSimAktor(cmds...)

	slave := feldbustest.NewSlave(feldbus.ProtocolAktor, 0x02, "servo", "")
	slave.Handle = sim.handle
	tr := feldbustest.New(1).Attach(0x31, slave.Handler())
	dev, err := feldbus.NewBus(tr).NewDevice(feldbus.Config{Name: "servo", Address: 0x31})
	require.NoError(t, err)
	s := NewServo(dev)

	pos, ok := s.Position()
	require.True(t, ok)
	require.InDelta(t, 90.0, pos, 1e-4)

	require.True(t, s.SetPosition(45))
	require.Equal(t, int32(450), sim.commands[KeyDesiredPosition-1].raw.Int)
	require.True(t, s.SetMaxVelocity(12.5))
	require.Equal(t, int32(125), sim.commands[KeyMaxVelocity-1].raw.Int)

	require.True(t, s.SetControlState(ControlPosition))
	state, ok := s.ControlState()
	require.True(t, ok)
	require.Equal(t, ControlPosition, state)
	require.Equal(t, "position", state.String())
	require.True(t, s.Disable())
	state, ok = s.ControlState()
	require.True(t, ok)
	require.Equal(t, ControlDisabled, state)
}
