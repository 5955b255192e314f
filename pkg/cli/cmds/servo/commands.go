package servo

import (
	"fmt"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/feldbus.go/pkg/cli/sh"
	"github.com/robotalks/feldbus.go/pkg/feldbus/aktor"
)

type quantity struct {
	get func(*aktor.Servo) (float32, bool)
	set func(*aktor.Servo, float32) bool
}

var quantities = map[string]quantity{
	"position":     {(*aktor.Servo).Position, (*aktor.Servo).SetPosition},
	"velocity":     {(*aktor.Servo).Velocity, (*aktor.Servo).SetVelocity},
	"current":      {(*aktor.Servo).Current, (*aktor.Servo).SetCurrent},
	"pwm":          {(*aktor.Servo).PWM, (*aktor.Servo).SetPWM},
	"max-velocity": {(*aktor.Servo).MaxVelocity, (*aktor.Servo).SetMaxVelocity},
	"max-current":  {(*aktor.Servo).MaxCurrent, (*aktor.Servo).SetMaxCurrent},
	"max-pwm":      {(*aktor.Servo).MaxPWM, (*aktor.Servo).SetMaxPWM},
}

var states = map[string]aktor.ControlState{
	"disabled": aktor.ControlDisabled,
	"position": aktor.ControlPosition,
	"velocity": aktor.ControlVelocity,
	"current":  aktor.ControlCurrent,
	"pwm":      aktor.ControlPWM,
}

func lookup(name string) (quantity, error) {
	q, ok := quantities[name]
	if !ok {
		return q, fmt.Errorf("unknown QUANTITY %q", name)
	}
	return q, nil
}

var (
	// StatusCmd prints the current values of a servo.
	StatusCmd = ishell.Cmd{
		Name: "servo.status",
		Help: "DEVICE",
		Func: sh.WithRole(func(c *ishell.Context, s *aktor.Servo) {
			state, ok := s.ControlState()
			if !ok {
				c.Err(fmt.Errorf("%s: reading control state failed", s.Name()))
				return
			}
			values := map[string]interface{}{"state": state.String()}
			var w strings.Builder
			fmt.Fprintf(&w, "state=%s", state)
			for _, name := range []string{"position", "velocity", "current", "pwm"} {
				if v, ok := quantities[name].get(s); ok {
					values[name] = v
					fmt.Fprintf(&w, " %s=%g", name, v)
				}
			}
			sh.Print(c, w.String(), values)
		}),
	}

	// GetCmd reads one quantity.
	GetCmd = ishell.Cmd{
		Name: "servo.get",
		Help: "DEVICE position|velocity|current|pwm|max-velocity|max-current|max-pwm",
		Func: sh.WithRole(func(c *ishell.Context, s *aktor.Servo) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("QUANTITY required"))
				return
			}
			q, err := lookup(c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			v, ok := q.get(s)
			if !ok {
				c.Err(fmt.Errorf("reading %s failed", c.Args[1]))
				return
			}
			sh.Print(c, fmt.Sprint(v), map[string]float32{c.Args[1]: v})
		}),
	}

	// SetCmd writes a setpoint or limit.
	SetCmd = ishell.Cmd{
		Name: "servo.set",
		Help: "DEVICE QUANTITY VALUE",
		Func: sh.WithRole(func(c *ishell.Context, s *aktor.Servo) {
			if len(c.Args) < 3 {
				c.Err(fmt.Errorf("QUANTITY and VALUE required"))
				return
			}
			q, err := lookup(c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			v, err := sh.ParseFloat(c.Args[2])
			if err != nil {
				c.Err(fmt.Errorf("invalid VALUE: %w", err))
				return
			}
			sh.Check(c, q.set(s, v), "set "+c.Args[1])
		}),
	}

	// StateCmd switches the control loop.
	StateCmd = ishell.Cmd{
		Name: "servo.state",
		Help: "DEVICE disabled|position|velocity|current|pwm",
		Func: sh.WithRole(func(c *ishell.Context, s *aktor.Servo) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("STATE required"))
				return
			}
			state, ok := states[c.Args[1]]
			if !ok {
				c.Err(fmt.Errorf("unknown STATE %q", c.Args[1]))
				return
			}
			sh.Check(c, s.SetControlState(state), "set control state")
		}),
	}

	// DisableCmd disables the control loop.
	DisableCmd = ishell.Cmd{
		Name: "servo.disable",
		Help: "DEVICE",
		Func: sh.WithRole(func(c *ishell.Context, s *aktor.Servo) {
			sh.Check(c, s.Disable(), "disable")
		}),
	}
)

func init() {
	sh.AddCmds(
		&StatusCmd,
		&GetCmd,
		&SetCmd,
		&StateCmd,
		&DisableCmd,
	)
}
