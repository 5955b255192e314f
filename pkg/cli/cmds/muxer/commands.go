package muxer

import (
	"fmt"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/feldbus.go/pkg/cli/sh"
	"github.com/robotalks/feldbus.go/pkg/feldbus/muxer"
)

func byteArg(c *ishell.Context, name string) (uint8, bool) {
	if len(c.Args) < 2 {
		c.Err(fmt.Errorf("%s required", name))
		return 0, false
	}
	v, err := sh.ParseUint(c.Args[1], 8)
	if err != nil {
		c.Err(fmt.Errorf("invalid %s: %w", name, err))
		return 0, false
	}
	return uint8(v), true
}

var (
	// ConfigCmd prints the cycle configuration.
	ConfigCmd = ishell.Cmd{
		Name: "muxer.config",
		Help: "DEVICE",
		Func: sh.WithRole(func(c *ishell.Context, m *muxer.Muxer) {
			cfg, ok := m.Config()
			if !ok {
				c.Err(fmt.Errorf("%s: reading config failed", m.Name()))
				return
			}
			sh.Print(c, fmt.Sprintf("length=%d index=%d mode=%s", cfg.CycleLength, cfg.CycleIndex, cfg.TriggerMode), cfg)
		}),
	}

	// LengthCmd sets the cycle length.
	LengthCmd = ishell.Cmd{
		Name: "muxer.length",
		Help: "DEVICE LENGTH",
		Func: sh.WithRole(func(c *ishell.Context, m *muxer.Muxer) {
			if n, ok := byteArg(c, "LENGTH"); ok {
				sh.Check(c, m.SetCycleLength(n), "set cycle length")
			}
		}),
	}

	// IndexCmd sets the cycle index.
	IndexCmd = ishell.Cmd{
		Name: "muxer.index",
		Help: "DEVICE INDEX",
		Func: sh.WithRole(func(c *ishell.Context, m *muxer.Muxer) {
			if i, ok := byteArg(c, "INDEX"); ok {
				sh.Check(c, m.SetCycleIndex(i), "set cycle index")
			}
		}),
	}

	// ModeCmd sets the trigger mode.
	ModeCmd = ishell.Cmd{
		Name: "muxer.mode",
		Help: "DEVICE continuous|external|single",
		Func: sh.WithRole(func(c *ishell.Context, m *muxer.Muxer) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("MODE required"))
				return
			}
			mode, ok := muxer.ParseTriggerMode(c.Args[1])
			if !ok {
				c.Err(fmt.Errorf("unknown MODE %q", c.Args[1]))
				return
			}
			sh.Check(c, m.SetTriggerMode(mode), "set trigger mode")
		}),
	}

	// TriggerCmd advances the cycle.
	TriggerCmd = ishell.Cmd{
		Name: "muxer.trigger",
		Help: "DEVICE",
		Func: sh.WithRole(func(c *ishell.Context, m *muxer.Muxer) {
			sh.Check(c, m.Trigger(), "trigger")
		}),
	}
)

func init() {
	sh.AddCmds(
		&ConfigCmd,
		&LengthCmd,
		&IndexCmd,
		&ModeCmd,
		&TriggerCmd,
	)
}
