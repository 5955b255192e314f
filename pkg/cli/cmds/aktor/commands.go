package aktor

import (
	"fmt"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/feldbus.go/pkg/cli/sh"
	"github.com/robotalks/feldbus.go/pkg/env"
	"github.com/robotalks/feldbus.go/pkg/feldbus"
	"github.com/robotalks/feldbus.go/pkg/feldbus/aktor"
)

// withAktor accepts aktor and servo devices.
func withAktor(fn func(c *ishell.Context, a *aktor.Aktor)) func(c *ishell.Context) {
	return sh.WithRole(func(c *ishell.Context, role feldbus.Slave) {
		switch r := role.(type) {
		case *aktor.Aktor:
			fn(c, r)
		case *aktor.Servo:
			fn(c, r.Aktor)
		default:
			c.Err(fmt.Errorf("%w: %q is not an aktor", env.ErrWrongKind, role.Name()))
		}
	})
}

// command resolves a command by name or key.
func command(a *aktor.Aktor, arg string) (aktor.Command, error) {
	if cmd, ok := a.CommandByName(arg); ok {
		return cmd, nil
	}
	key, err := sh.ParseUint(arg, 8)
	if err != nil {
		return aktor.Command{}, fmt.Errorf("unknown command %q", arg)
	}
	cmds, ok := a.Commands()
	if !ok {
		return aktor.Command{}, fmt.Errorf("%s: command set unavailable", a.Name())
	}
	for _, cmd := range cmds {
		if cmd.Key == byte(key) {
			return cmd, nil
		}
	}
	return aktor.Command{}, fmt.Errorf("unknown command key %d", key)
}

var (
	// CommandsCmd lists the command set.
	CommandsCmd = ishell.Cmd{
		Name: "aktor.cmds",
		Help: "DEVICE",
		Func: withAktor(func(c *ishell.Context, a *aktor.Aktor) {
			cmds, ok := a.Commands()
			if !ok {
				c.Err(fmt.Errorf("%s: populating command set failed", a.Name()))
				return
			}
			var w strings.Builder
			for _, cmd := range cmds {
				fmt.Fprintf(&w, "%3d %-20s %-5s %-6s", cmd.Key, cmd.Name, cmd.Length, cmd.Access)
				if cmd.IsControlValue() {
					w.WriteString(" control")
				} else {
					fmt.Fprintf(&w, " x%g", cmd.Factor)
				}
				w.WriteString("\n")
			}
			sh.Print(c, strings.TrimSuffix(w.String(), "\n"), cmds)
		}),
	}

	// GetCmd reads a value.
	GetCmd = ishell.Cmd{
		Name: "aktor.get",
		Help: "DEVICE COMMAND",
		Func: withAktor(func(c *ishell.Context, a *aktor.Aktor) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("COMMAND required"))
				return
			}
			cmd, err := command(a, c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			if cmd.IsControlValue() {
				v, ok := a.ControlValue(cmd.Key)
				if !ok {
					c.Err(fmt.Errorf("reading %s failed", cmd.Name))
					return
				}
				sh.Print(c, fmt.Sprint(v), map[string]int32{cmd.Name: v})
				return
			}
			v, ok := a.Value(cmd.Key)
			if !ok {
				c.Err(fmt.Errorf("reading %s failed", cmd.Name))
				return
			}
			sh.Print(c, fmt.Sprint(v), map[string]float32{cmd.Name: v})
		}),
	}

	// SetCmd writes a value. Commands without payload are triggered.
	SetCmd = ishell.Cmd{
		Name: "aktor.set",
		Help: "DEVICE COMMAND [VALUE]",
		Func: withAktor(func(c *ishell.Context, a *aktor.Aktor) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("COMMAND required"))
				return
			}
			cmd, err := command(a, c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			var value float32
			if len(c.Args) > 2 {
				if value, err = sh.ParseFloat(c.Args[2]); err != nil {
					c.Err(fmt.Errorf("invalid VALUE: %w", err))
					return
				}
			} else if cmd.Length != aktor.LengthNone {
				c.Err(fmt.Errorf("VALUE required"))
				return
			}
			if cmd.IsControlValue() {
				sh.Check(c, a.SetControlValue(cmd.Key, int32(value)), "set "+cmd.Name)
				return
			}
			sh.Check(c, a.SetValue(cmd.Key, value), "set "+cmd.Name)
		}),
	}

	// OutputCmd configures or reads the structured output.
	OutputCmd = ishell.Cmd{
		Name: "aktor.output",
		Help: "DEVICE [COMMAND...]",
		Func: withAktor(func(c *ishell.Context, a *aktor.Aktor) {
			if len(c.Args) > 1 {
				keys := make([]byte, 0, len(c.Args)-1)
				for _, arg := range c.Args[1:] {
					cmd, err := command(a, arg)
					if err != nil {
						c.Err(err)
						return
					}
					keys = append(keys, cmd.Key)
				}
				sh.Check(c, a.SetStructuredOutputTable(keys), "set output table")
				return
			}
			values, ok := a.ReadStructuredOutput()
			if !ok {
				c.Err(fmt.Errorf("reading structured output failed"))
				return
			}
			var w strings.Builder
			for _, v := range values {
				fmt.Fprintf(&w, "%d=%g ", v.Key, v.Value)
			}
			sh.Print(c, strings.TrimSpace(w.String()), values)
		}),
	}
)

func init() {
	sh.AddCmds(
		&CommandsCmd,
		&GetCmd,
		&SetCmd,
		&OutputCmd,
	)
}
