// Package hal owns the board's pins and exposes them as bus capabilities:
// hal/cap/<domain>/<kind>/<name>/{info,status,value} (retained) and
// hal/cap/<domain>/<kind>/<name>/control/<verb> (request/reply).
package hal

import (
	"context"
	"log"

	"brewcode-go/bus"
	"brewcode-go/services/hal/internal/core"
	"brewcode-go/services/hal/internal/provider"

	// Device builders register themselves.
	_ "brewcode-go/services/hal/devices/gpio_dout"
	_ "brewcode-go/services/hal/devices/level"
)

type ResourceRegistry = core.ResourceRegistry

// Board pin map used by the registry and by config validation.
var Board = provider.ESP32

// Run blocks until ctx is cancelled. A nil reg selects the platform registry.
func Run(ctx context.Context, conn *bus.Connection, reg ResourceRegistry, logger *log.Logger) {
	if reg == nil {
		reg = provider.NewResourceRegistry()
	}
	core.NewHAL(conn, reg, logger).Run(ctx)
}

func CapCtrl(domain, kind, name, verb string) bus.Topic {
	return core.CapCtrl(domain, kind, name, verb)
}

func CapValue(domain, kind, name string) bus.Topic {
	return core.CapBase(domain, kind, name).Append("value")
}

func CapStatus(domain, kind, name string) bus.Topic {
	return core.CapBase(domain, kind, name).Append("status")
}

func StateTopic() bus.Topic { return bus.T("hal", "state") }
