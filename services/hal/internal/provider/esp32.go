//go:build esp32

package provider

import (
	"machine"

	"brewcode-go/services/hal/internal/core"
)

type espGPIO struct {
	p machine.Pin
	n int
}

func (g *espGPIO) Number() int { return g.n }

func (g *espGPIO) ConfigureInput(pull core.Pull) error {
	var mode machine.PinMode
	switch pull {
	case core.PullUp:
		mode = machine.PinInputPullup
	case core.PullDown:
		mode = machine.PinInputPulldown
	default:
		mode = machine.PinInput
	}
	g.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (g *espGPIO) ConfigureOutput(initial bool) error {
	g.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	g.p.Set(initial)
	return nil
}

func (g *espGPIO) Set(b bool) { g.p.Set(b) }
func (g *espGPIO) Get() bool  { return g.p.Get() }
func (g *espGPIO) Toggle()    { g.p.Set(!g.p.Get()) }

type espADC struct {
	a machine.ADC
	n int
}

func (a *espADC) Number() int { return a.n }

func (a *espADC) Configure() error {
	return a.a.Configure(machine.ADCConfig{})
}

func (a *espADC) Get() uint16 { return a.a.Get() }

// NewResourceRegistry returns the registry for the running platform.
func NewResourceRegistry() core.ResourceRegistry {
	machine.InitADC()
	return newRegistry(ESP32,
		func(n int) core.GPIOHandle { return &espGPIO{p: machine.Pin(n), n: n} },
		func(n int) core.ADCHandle { return &espADC{a: machine.ADC{Pin: machine.Pin(n)}, n: n} },
	)
}
