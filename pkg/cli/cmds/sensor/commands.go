package sensor

import (
	"fmt"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/feldbus.go/pkg/cli/sh"
	"github.com/robotalks/feldbus.go/pkg/feldbus/sensor"
)

var (
	// ChannelsCmd lists the channels.
	ChannelsCmd = ishell.Cmd{
		Name: "sensor.channels",
		Help: "DEVICE",
		Func: sh.WithRole(func(c *ishell.Context, s *sensor.Sensor) {
			channels, ok := s.Channels()
			if !ok {
				c.Err(fmt.Errorf("%s: reading channels failed", s.Name()))
				return
			}
			var w strings.Builder
			for _, ch := range channels {
				fmt.Fprintf(&w, "%3d %-5s x%g\n", ch.Key, ch.Length, ch.Factor)
			}
			sh.Print(c, strings.TrimSuffix(w.String(), "\n"), channels)
		}),
	}

	// ReadCmd reads one or all channels.
	ReadCmd = ishell.Cmd{
		Name: "sensor.read",
		Help: "DEVICE [CHANNEL]",
		Func: sh.WithRole(func(c *ishell.Context, s *sensor.Sensor) {
			if len(c.Args) > 1 {
				key, err := sh.ParseUint(c.Args[1], 8)
				if err != nil {
					c.Err(fmt.Errorf("invalid CHANNEL: %w", err))
					return
				}
				v, ok := s.Read(byte(key))
				if !ok {
					c.Err(fmt.Errorf("reading channel %d failed", key))
					return
				}
				sh.Print(c, fmt.Sprint(v), v)
				return
			}
			values, ok := s.ReadAll()
			if !ok {
				c.Err(fmt.Errorf("%s: reading channels failed", s.Name()))
				return
			}
			sh.Print(c, strings.Trim(fmt.Sprint(values), "[]"), values)
		}),
	}
)

func init() {
	sh.AddCmds(
		&ChannelsCmd,
		&ReadCmd,
	)
}
