package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultPollInterval is used when Poller.Interval is not set.
const DefaultPollInterval = time.Second

// Poller pings every device periodically and publishes the snapshots.
type Poller struct {
	Devices   DeviceLister
	Interval  time.Duration
	Publisher *Publisher

	lock sync.Mutex
	last map[string]Snapshot
}

// Name implements framework.Named.
func (p *Poller) Name() string {
	return "poller"
}

// Poll takes one round of snapshots.
func (p *Poller) Poll() []Snapshot {
	devices := p.Devices.Devices()
	snapshots := make([]Snapshot, 0, len(devices))
	for _, dev := range devices {
		s := TakeSnapshot(dev)
		snapshots = append(snapshots, s)
		p.lock.Lock()
		prev, seen := p.last[s.Name]
		if p.last == nil {
			p.last = make(map[string]Snapshot)
		}
		p.last[s.Name] = s
		p.lock.Unlock()
		if !seen || prev.Available != s.Available {
			if s.Available {
				glog.Infof("device %s is available", s.Name)
			} else {
				glog.Warningf("device %s is not responding", s.Name)
			}
		}
		if p.Publisher != nil {
			if err := p.Publisher.Publish(s); err != nil {
				glog.Warningf("publish %s: %v", s.Name, err)
			}
		}
	}
	return snapshots
}

// Last returns the latest snapshot of a device.
func (p *Poller) Last(name string) (Snapshot, bool) {
	p.lock.Lock()
	defer p.lock.Unlock()
	s, ok := p.last[name]
	return s, ok
}

// Run implements framework.Runnable.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		p.Poll()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
