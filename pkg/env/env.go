// Package env wires command line flags and environment variables into a
// running bus.
package env

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/robotalks/feldbus.go/pkg/config"
	"github.com/robotalks/feldbus.go/pkg/transport"
)

// Config provides common options to open a bus.
type Config struct {
	// ConfigFile is the path of the bus description.
	ConfigFile string
	// TransportURL overrides bus.transport of the description.
	TransportURL string
	// MQTTURL overrides telemetry.mqtt_url of the description.
	// e.g. mqtt://host:port/topic-prefix
	MQTTURL string
}

var defaultConfig = Config{
	ConfigFile: "feldbus.yaml",
}

func init() {
	if val := os.Getenv("FELDBUS_CONFIG"); val != "" {
		defaultConfig.ConfigFile = val
	}
	if val := os.Getenv("FELDBUS_TRANSPORT"); val != "" {
		defaultConfig.TransportURL = val
	}
	if val := os.Getenv("FELDBUS_MQTT_URL"); val != "" {
		defaultConfig.MQTTURL = val
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.ConfigFile, "config", defaultConfig.ConfigFile, "Bus description file.")
	flag.StringVar(&defaultConfig.TransportURL, "transport", defaultConfig.TransportURL, "Transport URL, overrides the description.")
	flag.StringVar(&defaultConfig.MQTTURL, "mqtt", defaultConfig.MQTTURL, "MQTT broker URL for telemetry.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// LoadDescription loads the bus description and applies overrides.
func (c *Config) LoadDescription() (*config.Config, error) {
	desc, err := config.Load(c.ConfigFile)
	if err != nil {
		return nil, err
	}
	if c.TransportURL != "" {
		desc.Bus.Transport = c.TransportURL
	}
	if c.MQTTURL != "" {
		desc.Telemetry.MQTTURL = c.MQTTURL
	}
	return desc, nil
}

// Open loads the description, opens the transport and builds the bus.
func (c *Config) Open() (*Bus, error) {
	desc, err := c.LoadDescription()
	if err != nil {
		return nil, err
	}
	conn, err := transport.Open(desc.Bus.Transport, desc.Bus.Timeout())
	if err != nil {
		return nil, err
	}
	bus, err := Build(desc, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("build bus: %w", err)
	}
	bus.conn = conn
	return bus, nil
}

// MustOpen opens the bus and fails on error.
func (c *Config) MustOpen() *Bus {
	bus, err := c.Open()
	if err != nil {
		log.Fatalln(err)
	}
	return bus
}
