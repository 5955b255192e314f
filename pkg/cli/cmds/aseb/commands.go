package aseb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/feldbus.go/pkg/cli/sh"
	"github.com/robotalks/feldbus.go/pkg/feldbus/aseb"
)

type syncOutput struct {
	Digital []bool    `json:"digital"`
	Analog  []float32 `json:"analog"`
}

func channel(c *ishell.Context, n int, limit int) (int, bool) {
	ch, err := strconv.Atoi(c.Args[n])
	if err != nil || ch < 0 || ch >= limit {
		c.Err(fmt.Errorf("invalid CHANNEL %q", c.Args[n]))
		return 0, false
	}
	return ch, true
}

func layout(c *ishell.Context, a *aseb.Aseb) (aseb.Layout, bool) {
	l, ok := a.Layout()
	if !ok {
		c.Err(fmt.Errorf("%s: initialize failed", a.Name()))
	}
	return l, ok
}

var (
	// LayoutCmd prints the channel layout.
	LayoutCmd = ishell.Cmd{
		Name: "aseb.layout",
		Help: "DEVICE",
		Func: sh.WithRole(func(c *ishell.Context, a *aseb.Aseb) {
			l, ok := layout(c, a)
			if !ok {
				return
			}
			sh.Print(c, fmt.Sprintf("digital-in=%d analog-in=%d digital-out=%d pwm-out=%d resolution=%d",
				l.DigitalInputs, l.AnalogInputs, l.DigitalOutputs, l.PWMOutputs, l.AnalogResolution), l)
		}),
	}

	// SyncCmd reads all inputs in one request.
	SyncCmd = ishell.Cmd{
		Name: "aseb.sync",
		Help: "DEVICE",
		Func: sh.WithRole(func(c *ishell.Context, a *aseb.Aseb) {
			l, ok := layout(c, a)
			if !ok {
				return
			}
			if !a.Sync() {
				c.Err(fmt.Errorf("%s: sync failed", a.Name()))
				return
			}
			var out syncOutput
			var w strings.Builder
			w.WriteString("digital:")
			for ch := 0; ch < l.DigitalInputs; ch++ {
				v, _ := a.DigitalInput(ch)
				out.Digital = append(out.Digital, v)
				if v {
					w.WriteString(" 1")
				} else {
					w.WriteString(" 0")
				}
			}
			w.WriteString(" analog:")
			for ch := 0; ch < l.AnalogInputs; ch++ {
				v, _ := a.AnalogInput(ch)
				out.Analog = append(out.Analog, v)
				fmt.Fprintf(&w, " %g", v)
			}
			sh.Print(c, w.String(), out)
		}),
	}

	// OutCmd reads or sets a digital output.
	OutCmd = ishell.Cmd{
		Name: "aseb.out",
		Help: "DEVICE CHANNEL [on|off]",
		Func: sh.WithRole(func(c *ishell.Context, a *aseb.Aseb) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("CHANNEL required"))
				return
			}
			l, ok := layout(c, a)
			if !ok {
				return
			}
			ch, ok := channel(c, 1, l.DigitalOutputs)
			if !ok {
				return
			}
			if len(c.Args) > 2 {
				on, err := strconv.ParseBool(strings.NewReplacer("on", "true", "off", "false").Replace(c.Args[2]))
				if err != nil {
					c.Err(fmt.Errorf("invalid VALUE %q", c.Args[2]))
					return
				}
				sh.Check(c, a.SetDigitalOutput(ch, on), "set output")
				return
			}
			v, ok := a.DigitalOutput(ch)
			if !ok {
				c.Err(fmt.Errorf("reading output %d failed", ch))
				return
			}
			sh.Print(c, strconv.FormatBool(v), v)
		}),
	}

	// PWMCmd reads or sets a PWM duty cycle in percent.
	PWMCmd = ishell.Cmd{
		Name: "aseb.pwm",
		Help: "DEVICE CHANNEL [DUTY(%)]",
		Func: sh.WithRole(func(c *ishell.Context, a *aseb.Aseb) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("CHANNEL required"))
				return
			}
			l, ok := layout(c, a)
			if !ok {
				return
			}
			ch, ok := channel(c, 1, l.PWMOutputs)
			if !ok {
				return
			}
			if len(c.Args) > 2 {
				duty, err := sh.ParseFloat(c.Args[2])
				if err != nil {
					c.Err(fmt.Errorf("invalid DUTY: %w", err))
					return
				}
				sh.Check(c, a.SetPWMOutput(ch, duty), "set pwm")
				return
			}
			v, ok := a.PWMOutput(ch)
			if !ok {
				c.Err(fmt.Errorf("reading pwm %d failed", ch))
				return
			}
			sh.Print(c, fmt.Sprintf("%g%% at %dHz", v, l.PWMFrequencies[ch]), v)
		}),
	}
)

func init() {
	sh.AddCmds(
		&LayoutCmd,
		&SyncCmd,
		&OutCmd,
		&PWMCmd,
	)
}
