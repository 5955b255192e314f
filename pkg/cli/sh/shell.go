package sh

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/feldbus.go/pkg/env"
	"github.com/robotalks/feldbus.go/pkg/feldbus"
)

// Shell provides ishell backed interactive shell over a bus.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoOpen    bool

	Shell  *ishell.Shell
	Config *env.Config
	Bus    *env.Bus
}

const (
	shellKey     = "$shell"
	closedPrompt = "[closed] > "
)

var (
	// ErrNotOpen is reported by commands needing an opened bus.
	ErrNotOpen = errors.New("bus not opened")

	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&OpenCmd,
		&CloseCmd,
		&DevicesCmd,
		&ScanCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(closedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeOpen wraps command func requiring an opened bus.
func MustBeOpen(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Bus == nil {
			c.Err(ErrNotOpen)
			return
		}
		fn(c)
	}
}

// WithDevice wraps command func taking a device name as first argument.
func WithDevice(fn func(c *ishell.Context, dev *feldbus.Device)) func(c *ishell.Context) {
	return MustBeOpen(func(c *ishell.Context) {
		if len(c.Args) < 1 {
			c.Err(fmt.Errorf("DEVICE required"))
			return
		}
		dev := ShellFrom(c).Bus.Device(c.Args[0])
		if dev == nil {
			c.Err(fmt.Errorf("%w: %q", env.ErrNoSuchDevice, c.Args[0]))
			return
		}
		fn(c, dev)
	})
}

// WithRole wraps command func taking the name of a device of role T as
// first argument.
func WithRole[T feldbus.Slave](fn func(c *ishell.Context, role T)) func(c *ishell.Context) {
	return MustBeOpen(func(c *ishell.Context) {
		if len(c.Args) < 1 {
			c.Err(fmt.Errorf("DEVICE required"))
			return
		}
		role, err := env.Lookup[T](ShellFrom(c).Bus, c.Args[0])
		if err != nil {
			c.Err(err)
			return
		}
		fn(c, role)
	})
}

// Print prints v as JSON in JSON mode, otherwise as text.
func Print(c *ishell.Context, text string, v interface{}) {
	if ShellFrom(c).OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(text)
}

// Check reports a failed device operation.
func Check(c *ishell.Context, ok bool, op string) bool {
	if !ok {
		c.Err(fmt.Errorf("%s failed", op))
		return false
	}
	Print(c, "OK", map[string]bool{"ok": true})
	return true
}

// ParseUint parses decimal or 0x prefixed integers.
func ParseUint(s string, bits int) (uint64, error) {
	return strconv.ParseUint(s, 0, bits)
}

// ParseFloat parses a float32 argument.
func ParseFloat(s string) (float32, error) {
	v, err := strconv.ParseFloat(s, 32)
	return float32(v), err
}

// FormatInfo prints DeviceInfo into friendly string for display.
func FormatInfo(info feldbus.DeviceInfo) string {
	var w strings.Builder
	fmt.Fprintf(&w, "protocol=0x%02x type=0x%02x checksum=%s buffer=%d",
		info.ProtocolID, info.TypeID, feldbus.ChecksumType(info.CRCType), info.BufferSize)
	if info.UptimeFrequency > 0 {
		fmt.Fprintf(&w, " uptime-freq=%dHz", info.UptimeFrequency)
	}
	return w.String()
}

// Open opens the bus described by the configuration.
func (s *Shell) Open() error {
	bus, err := s.Config.Open()
	if err != nil {
		return err
	}
	s.Close()
	s.Bus = bus
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", bus.Description.Bus.Transport))
	return nil
}

// Close closes the bus.
func (s *Shell) Close() {
	if s.Bus != nil {
		s.Bus.Close()
		s.Bus = nil
		s.Shell.SetPrompt(closedPrompt)
	}
}

// WithAutoOpen sets AutoOpen.
func (s *Shell) WithAutoOpen(en bool) *Shell {
	s.AutoOpen = en
	return s
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoOpen {
		if err := s.Open(); err != nil {
			log.Fatalf("open bus failed: %v", err)
		}
		defer s.Close()
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

type deviceEntry struct {
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	Address       uint16 `json:"address"`
	Dysfunctional bool   `json:"dysfunctional"`
}

type scanEntry struct {
	Address  uint16 `json:"address"`
	Protocol byte   `json:"protocol,omitempty"`
	Type     byte   `json:"type,omitempty"`
}

var (
	// OpenCmd opens the bus.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "[TRANSPORT-URL]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) > 0 {
				s.Config.TransportURL = c.Args[0]
			}
			if err := s.Open(); err != nil {
				c.Err(err)
			}
		},
	}

	// CloseCmd closes the bus.
	CloseCmd = ishell.Cmd{
		Name: "close",
		Help: "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Close()
		},
	}

	// DevicesCmd lists configured devices.
	DevicesCmd = ishell.Cmd{
		Name:    "devices",
		Aliases: []string{"list", "l"},
		Help:    "",
		Func: MustBeOpen(func(c *ishell.Context) {
			bus := ShellFrom(c).Bus
			entries := []deviceEntry{}
			var w strings.Builder
			for _, dev := range bus.Devices() {
				e := deviceEntry{
					Name:          dev.Name(),
					Kind:          bus.Kind(dev.Name()),
					Address:       dev.Address(),
					Dysfunctional: dev.IsDysfunctional(),
				}
				entries = append(entries, e)
				fmt.Fprintf(&w, "%-16s %-10s %5d", e.Name, e.Kind, e.Address)
				if e.Dysfunctional {
					w.WriteString(" dysfunctional")
				}
				w.WriteString("\n")
			}
			Print(c, strings.TrimSuffix(w.String(), "\n"), entries)
		}),
	}

	// ScanCmd pings a range of addresses.
	ScanCmd = ishell.Cmd{
		Name: "scan",
		Help: "FROM TO [ADDRESS-LENGTH] [CHECKSUM]",
		Func: MustBeOpen(func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("FROM and TO required"))
				return
			}
			from, err := ParseUint(c.Args[0], 16)
			if err != nil {
				c.Err(fmt.Errorf("invalid FROM: %w", err))
				return
			}
			to, err := ParseUint(c.Args[1], 16)
			if err != nil {
				c.Err(fmt.Errorf("invalid TO: %w", err))
				return
			}
			addrLen := feldbus.DefaultAddressWidth
			if len(c.Args) > 2 {
				if addrLen, err = strconv.Atoi(c.Args[2]); err != nil {
					c.Err(fmt.Errorf("invalid ADDRESS-LENGTH: %w", err))
					return
				}
			}
			checksum := feldbus.ChecksumCRC8
			if len(c.Args) > 3 {
				if checksum, err = feldbus.ParseChecksumType(c.Args[3]); err != nil {
					c.Err(err)
					return
				}
			}
			results, err := ShellFrom(c).Bus.Scan(uint16(from), uint16(to), addrLen, checksum)
			if err != nil {
				c.Err(err)
				return
			}
			entries := []scanEntry{}
			var w strings.Builder
			for _, r := range results {
				e := scanEntry{Address: r.Address}
				fmt.Fprintf(&w, "%5d", r.Address)
				if r.HasInfo {
					e.Protocol, e.Type = r.Info.ProtocolID, r.Info.TypeID
					fmt.Fprintf(&w, " %s", FormatInfo(r.Info))
				}
				w.WriteString("\n")
				entries = append(entries, e)
			}
			if len(entries) == 0 {
				Print(c, "No devices found", entries)
				return
			}
			Print(c, strings.TrimSuffix(w.String(), "\n"), entries)
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).WithAutoOpen(true).Run(flag.Args()...)
}
