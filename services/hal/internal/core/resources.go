package core

import "brewcode-go/errcode"

// ---- GPIO handles ----

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

type GPIOHandle interface {
	Number() int
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(bool)
	Get() bool
	Toggle()
}

// ADCHandle reads one analog channel, scaled to 16 bits.
type ADCHandle interface {
	Number() int
	Configure() error
	Get() uint16
}

// ResourceRegistry hands out exclusive pin claims to devices.
type ResourceRegistry interface {
	ClaimGPIO(devID string, pin int) (GPIOHandle, error)
	ReleaseGPIO(devID string, pin int)

	ClaimADC(devID string, pin int) (ADCHandle, error)
	ReleaseADC(devID string, pin int)
}

// Short error codes returned by registries.
var (
	ErrUnknownPin = errcode.UnknownPin
	ErrPinInUse   = errcode.PinInUse
)
