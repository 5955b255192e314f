package device

import (
	"fmt"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/feldbus.go/pkg/cli/sh"
	"github.com/robotalks/feldbus.go/pkg/feldbus"
)

type infoOutput struct {
	feldbus.DeviceInfo
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

var (
	// InfoCmd prints the DeviceInfo, name and version of a device.
	InfoCmd = ishell.Cmd{
		Name:    "info",
		Aliases: []string{"i"},
		Help:    "DEVICE [refresh]",
		Func: sh.WithDevice(func(c *ishell.Context, dev *feldbus.Device) {
			if len(c.Args) > 1 && c.Args[1] == "refresh" {
				dev.InvalidateInfo()
			}
			info, ok := dev.Info()
			if !ok {
				c.Err(fmt.Errorf("%s: no device info", dev.Name()))
				return
			}
			out := infoOutput{DeviceInfo: info}
			out.Name, _ = dev.DeviceName()
			out.Version, _ = dev.VersionInfo()
			sh.Print(c, fmt.Sprintf("%s %q %q", sh.FormatInfo(info), out.Name, out.Version), out)
		}),
	}

	// PingCmd checks whether a device answers.
	PingCmd = ishell.Cmd{
		Name:    "ping",
		Aliases: []string{"p"},
		Help:    "DEVICE",
		Func: sh.WithDevice(func(c *ishell.Context, dev *feldbus.Device) {
			sh.Check(c, dev.IsAvailable(true), "ping")
		}),
	}

	// UptimeCmd prints the uptime in seconds.
	UptimeCmd = ishell.Cmd{
		Name: "uptime",
		Help: "DEVICE",
		Func: sh.WithDevice(func(c *ishell.Context, dev *feldbus.Device) {
			uptime, ok := dev.Uptime()
			if !ok {
				c.Err(fmt.Errorf("%s: uptime failed", dev.Name()))
				return
			}
			sh.Print(c, fmt.Sprintf("%.3fs", uptime), map[string]float64{"uptime": uptime})
		}),
	}

	// CountersCmd prints the host side counters.
	CountersCmd = ishell.Cmd{
		Name: "counters",
		Help: "DEVICE",
		Func: sh.WithDevice(func(c *ishell.Context, dev *feldbus.Device) {
			s := dev.Counters()
			sh.Print(c, fmt.Sprintf("success=%d transmit=%d no-answer=%d missing=%d checksum=%d current=%d dysfunctional=%v",
				s.Successes, s.TransmitErrors, s.NoAnswer, s.MissingData, s.ChecksumErrors, s.CurrentErrors, s.Dysfunctional), s)
		}),
	}

	// SlaveCountersCmd prints the counters kept by the slave.
	SlaveCountersCmd = ishell.Cmd{
		Name: "slave-counters",
		Help: "DEVICE",
		Func: sh.WithDevice(func(c *ishell.Context, dev *feldbus.Device) {
			s, ok := dev.SlaveCounters()
			if !ok {
				c.Err(fmt.Errorf("%s: reading slave counters failed", dev.Name()))
				return
			}
			sh.Print(c, fmt.Sprintf("accepted=%d overflow=%d lost=%d checksum=%d",
				s.Accepted, s.Overflow, s.Lost, s.ChecksumFailures), s)
		}),
	}

	// ResetCountersCmd clears host side, or with "slave", slave side counters.
	ResetCountersCmd = ishell.Cmd{
		Name: "reset-counters",
		Help: "DEVICE [slave]",
		Func: sh.WithDevice(func(c *ishell.Context, dev *feldbus.Device) {
			if len(c.Args) > 1 && c.Args[1] == "slave" {
				sh.Check(c, dev.ResetSlaveCounters(), "reset slave counters")
				return
			}
			dev.ResetCounters()
			sh.Check(c, true, "reset counters")
		}),
	}
)

func init() {
	sh.AddCmds(
		&InfoCmd,
		&PingCmd,
		&UptimeCmd,
		&CountersCmd,
		&SlaveCountersCmd,
		&ResetCountersCmd,
	)
}
