package main

import (
	"context"
	"flag"
	"log"
	"net/http"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robotalks/feldbus.go/pkg/env"
	fx "github.com/robotalks/feldbus.go/pkg/framework"
	"github.com/robotalks/feldbus.go/pkg/telemetry"
)

func init() {
	env.SetupFlags()
}

func metricsServer(addr string, bus *env.Bus) fx.Runnable {
	registry := prometheus.NewRegistry()
	registry.MustRegister(telemetry.NewCollector(bus))
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux}
	return fx.NamedRun("metrics", fx.RunFunc(func(ctx context.Context) error {
		glog.Infof("metrics on %s", addr)
		return fx.RunWithContextCloser(ctx, server, server.ListenAndServe)
	}))
}

func main() {
	flag.Parse()

	bus := env.Default().MustOpen()
	defer bus.Close()
	desc := bus.Description

	poller := &telemetry.Poller{Devices: bus, Interval: desc.Telemetry.PollInterval()}
	if url := desc.Telemetry.MQTTURL; url != "" {
		hostID := env.HostID()
		q, err := telemetry.NewQueueFromURL(url, hostID)
		if err != nil {
			log.Fatalln(err)
		}
		if err := q.Connect(); err != nil {
			log.Fatalf("connect %s failed: %v", url, err)
		}
		defer q.Close()
		poller.Publisher = &telemetry.Publisher{Broker: q, HostID: hostID}
		if err := poller.Publisher.Online(true); err != nil {
			glog.Warningf("publish online state: %v", err)
		}
		defer poller.Publisher.Online(false)
		poller.Publisher.HandleCommands(q, bus)
	}

	runner := fx.NewRunner().HandleSignals().Go(poller)
	if addr := desc.Telemetry.MetricsAddr; addr != "" {
		runner.Go(metricsServer(addr, bus))
	}
	if err := runner.Wait(); err != nil {
		glog.Error(err)
	}
	glog.Flush()
}
