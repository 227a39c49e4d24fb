package core

import (
	"context"

	"brewcode-go/errcode"
	"brewcode-go/types"
)

// ---- Capability & device model ----

// CapAddr identifies one capability: hal/cap/<domain>/<kind>/<name>.
type CapAddr struct {
	Domain string
	Kind   string
	Name   string
}

type CapabilitySpec struct {
	Domain string // empty => inferred from kind
	Kind   types.Kind
	Name   string // empty => device id
	Info   types.Info
}

// EnqueueResult is a device's synchronous answer to a control verb.
type EnqueueResult struct {
	OK    bool
	Error errcode.Code
}

type Device interface {
	ID() string
	Capabilities() []CapabilitySpec
	Init(ctx context.Context) error
	Control(addr CapAddr, method string, payload any) (EnqueueResult, error)
	Close() error // release claimed resources
}

// ---- Device → HAL telemetry (single shape) ----
// By default an Event is a value update published retained on .../value.
// Err, when non-empty, publishes only .../status=degraded.

type Event struct {
	Addr    CapAddr
	Payload any
	TSms    int64
	Err     string
}

type EventEmitter interface {
	// Emit must be non-blocking; false indicates a drop under pressure.
	Emit(ev Event) bool
}

// ---- HAL-injected resources ----

type Resources struct {
	Reg ResourceRegistry
	Pub EventEmitter // provided by HAL
}

// BuilderInput is what a device builder receives from config/hal.
type BuilderInput struct {
	ID, Type string
	Params   any
	Res      Resources
}

type Builder interface {
	Build(ctx context.Context, in BuilderInput) (Device, error)
}
