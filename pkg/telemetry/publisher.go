package telemetry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/glog"

	"github.com/robotalks/feldbus.go/pkg/feldbus"
)

// Broker publishes messages.
type Broker interface {
	Publish(topic string, payload []byte, retain bool) error
}

// DeviceFinder looks up devices by name.
type DeviceFinder interface {
	Device(name string) *feldbus.Device
}

// Publisher sends retained snapshots under <host>/devices/<name>.
type Publisher struct {
	Broker Broker
	HostID string
}

// Device commands accepted on <host>/devices/<name>/cmd.
const (
	CmdPing               = "ping"
	CmdResetCounters      = "reset-counters"
	CmdResetSlaveCounters = "reset-slave-counters"
)

func formatAddress(address uint16) string {
	return strconv.Itoa(int(address))
}

// DeviceTopic returns the snapshot topic of a device.
func (p *Publisher) DeviceTopic(name string) string {
	return p.HostID + "/devices/" + name
}

// Online publishes the retained online state of this host.
func (p *Publisher) Online(online bool) error {
	state := "offline"
	if online {
		state = "online"
	}
	return p.Broker.Publish(p.HostID+"/"+StatusTopic, []byte(state), true)
}

// Publish sends one snapshot.
func (p *Publisher) Publish(s Snapshot) error {
	payload, err := s.Encode()
	if err != nil {
		return fmt.Errorf("encode snapshot of %s: %w", s.Name, err)
	}
	return p.Broker.Publish(p.DeviceTopic(s.Name), payload, true)
}

// HandleCommands subscribes to device commands on q. Every executed
// command is followed by a fresh snapshot.
func (p *Publisher) HandleCommands(q *Queue, devices DeviceFinder) *Subscription {
	return q.Sub(p.HostID+"/devices/+/cmd", func(topic string, payload []byte) {
		tokens := strings.Split(topic, "/")
		name := tokens[len(tokens)-2]
		dev := devices.Device(name)
		if dev == nil {
			glog.Warningf("command for unknown device %q", name)
			return
		}
		if err := p.Execute(dev, string(payload)); err != nil {
			glog.Warningf("device %s: %v", name, err)
		}
	})
}

// Execute runs a device command and publishes the resulting snapshot.
func (p *Publisher) Execute(dev *feldbus.Device, cmd string) error {
	switch cmd {
	case CmdPing:
	case CmdResetCounters:
		dev.ResetCounters()
	case CmdResetSlaveCounters:
		if !dev.ResetSlaveCounters() {
			return fmt.Errorf("%s failed", cmd)
		}
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return p.Publish(TakeSnapshot(dev))
}
