// Package all registers all shell commands.
package all

import (
	_ "github.com/robotalks/feldbus.go/pkg/cli/cmds/aktor"
	_ "github.com/robotalks/feldbus.go/pkg/cli/cmds/aseb"
	_ "github.com/robotalks/feldbus.go/pkg/cli/cmds/bootloader"
	_ "github.com/robotalks/feldbus.go/pkg/cli/cmds/device"
	_ "github.com/robotalks/feldbus.go/pkg/cli/cmds/muxer"
	_ "github.com/robotalks/feldbus.go/pkg/cli/cmds/sensor"
	_ "github.com/robotalks/feldbus.go/pkg/cli/cmds/servo"
)
