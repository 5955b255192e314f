package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/robotalks/feldbus.go/pkg/feldbus"
)

// DeviceLister provides the devices to report.
type DeviceLister interface {
	Devices() []*feldbus.Device
}

// Collector reports the host side counters of every device on scrape.
type Collector struct {
	devices DeviceLister

	transactions  *prometheus.Desc
	currentErrors *prometheus.Desc
	dysfunctional *prometheus.Desc
}

// NewCollector creates a Collector over the devices of l.
func NewCollector(l DeviceLister) *Collector {
	labels := []string{"device", "address"}
	return &Collector{
		devices: l,
		transactions: prometheus.NewDesc("feldbus_transactions_total",
			"Transport attempts by outcome.", append(labels, "result"), nil),
		currentErrors: prometheus.NewDesc("feldbus_current_errors",
			"Failed attempts since the last success.", labels, nil),
		dysfunctional: prometheus.NewDesc("feldbus_dysfunctional",
			"1 if the device is considered dysfunctional.", labels, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.transactions
	ch <- c.currentErrors
	ch <- c.dysfunctional
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, dev := range c.devices.Devices() {
		name, addr := dev.Name(), formatAddress(dev.Address())
		s := dev.Counters()
		for _, r := range []struct {
			result string
			value  uint64
		}{
			{"success", s.Successes},
			{"transmit_error", s.TransmitErrors},
			{"no_answer", s.NoAnswer},
			{"missing_data", s.MissingData},
			{"checksum_error", s.ChecksumErrors},
		} {
			ch <- prometheus.MustNewConstMetric(c.transactions, prometheus.CounterValue, float64(r.value), name, addr, r.result)
		}
		ch <- prometheus.MustNewConstMetric(c.currentErrors, prometheus.GaugeValue, float64(s.CurrentErrors), name, addr)
		var dysfunctional float64
		if s.Dysfunctional {
			dysfunctional = 1
		}
		ch <- prometheus.MustNewConstMetric(c.dysfunctional, prometheus.GaugeValue, dysfunctional, name, addr)
	}
}
