package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// HostID identifies this bus master, e.g. as MQTT client id. The machine
// id is hashed with the application name so it is not exposed.
func HostID() string {
	id, err := machineid.ProtectedID("feldbus")
	if err == nil {
		return id[:16]
	}
	glog.Warningf("machine id unavailable: %v", err)
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "feldbus"
}
