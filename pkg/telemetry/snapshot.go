// Package telemetry exports device health as Prometheus metrics and MQTT
// snapshots.
package telemetry

import (
	"math"
	"time"

	"github.com/golang/protobuf/jsonpb"
	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/robotalks/feldbus.go/pkg/feldbus"
)

// Snapshot is the health of one device at a point in time.
type Snapshot struct {
	Name      string
	Address   uint16
	Available bool
	Uptime    float64
	Counters  feldbus.Counters
	Time      time.Time
}

// TakeSnapshot pings dev and captures its counters. The uptime is read
// only from available devices, NaN otherwise.
func TakeSnapshot(dev *feldbus.Device) Snapshot {
	s := Snapshot{
		Name:      dev.Name(),
		Address:   dev.Address(),
		Available: dev.IsAvailable(true),
		Uptime:    math.NaN(),
		Time:      time.Now(),
	}
	if s.Available {
		if uptime, ok := dev.Uptime(); ok {
			s.Uptime = uptime
		}
	}
	s.Counters = dev.Counters()
	return s
}

func number(v float64) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: v}}
}

func boolean(v bool) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_BoolValue{BoolValue: v}}
}

func str(v string) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: v}}
}

// Struct converts the snapshot into a protobuf Struct.
func (s *Snapshot) Struct() *structpb.Struct {
	c := &s.Counters
	counters := &structpb.Struct{Fields: map[string]*structpb.Value{
		"successes":       number(float64(c.Successes)),
		"transmit_errors": number(float64(c.TransmitErrors)),
		"no_answer":       number(float64(c.NoAnswer)),
		"missing_data":    number(float64(c.MissingData)),
		"checksum_errors": number(float64(c.ChecksumErrors)),
		"current_errors":  number(float64(c.CurrentErrors)),
	}}
	fields := map[string]*structpb.Value{
		"name":          str(s.Name),
		"address":       number(float64(s.Address)),
		"available":     boolean(s.Available),
		"dysfunctional": boolean(c.Dysfunctional),
		"counters":      {Kind: &structpb.Value_StructValue{StructValue: counters}},
		"time":          str(s.Time.UTC().Format(time.RFC3339Nano)),
	}
	if !math.IsNaN(s.Uptime) {
		fields["uptime"] = number(s.Uptime)
	}
	return &structpb.Struct{Fields: fields}
}

// Encode renders the snapshot as JSON.
func (s *Snapshot) Encode() ([]byte, error) {
	m := jsonpb.Marshaler{OrigName: true}
	out, err := m.MarshalToString(s.Struct())
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}
