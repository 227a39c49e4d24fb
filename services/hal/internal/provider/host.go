//go:build !esp32

package provider

import (
	"sync"

	"brewcode-go/services/hal/internal/core"
)

// FakePin implements core.GPIOHandle in memory for host builds and tests.
type FakePin struct {
	mu      sync.RWMutex
	number  int
	level   bool
	modeOut bool
	writes  int
}

func (p *FakePin) Number() int { return p.number }

func (p *FakePin) ConfigureInput(_ core.Pull) error {
	p.mu.Lock()
	p.modeOut = false
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.modeOut = true
	p.level = initial
	p.mu.Unlock()
	return nil
}

func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	p.level = level
	p.writes++
	p.mu.Unlock()
}

func (p *FakePin) Get() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.level
}

func (p *FakePin) Toggle() { p.Set(!p.Get()) }

// IsOutput reports whether the pin is currently configured as an output.
func (p *FakePin) IsOutput() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.modeOut
}

// Writes counts Set calls since creation.
func (p *FakePin) Writes() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.writes
}

// FakeADC implements core.ADCHandle; tests drive it with SetRaw.
type FakeADC struct {
	mu     sync.RWMutex
	number int
	raw    uint16
}

func (a *FakeADC) Number() int      { return a.number }
func (a *FakeADC) Configure() error { return nil }

func (a *FakeADC) Get() uint16 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.raw
}

func (a *FakeADC) SetRaw(v uint16) {
	a.mu.Lock()
	a.raw = v
	a.mu.Unlock()
}

// HostRegistry is a Registry over in-memory pins that tests can inspect.
type HostRegistry struct {
	*Registry

	mu   sync.Mutex
	pins map[int]*FakePin
	adcs map[int]*FakeADC
}

func NewHostRegistry() *HostRegistry {
	h := &HostRegistry{
		pins: make(map[int]*FakePin),
		adcs: make(map[int]*FakeADC),
	}
	h.Registry = newRegistry(ESP32,
		func(n int) core.GPIOHandle { return h.Pin(n) },
		func(n int) core.ADCHandle { return h.ADC(n) },
	)
	return h
}

// Pin returns the fake for GPIO n, creating it on first use.
func (h *HostRegistry) Pin(n int) *FakePin {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.pins[n]
	if !ok {
		p = &FakePin{number: n}
		h.pins[n] = p
	}
	return p
}

// ADC returns the fake for analog pin n, creating it on first use.
func (h *HostRegistry) ADC(n int) *FakeADC {
	h.mu.Lock()
	defer h.mu.Unlock()
	a, ok := h.adcs[n]
	if !ok {
		a = &FakeADC{number: n}
		h.adcs[n] = a
	}
	return a
}

// NewResourceRegistry returns the registry for the running platform.
func NewResourceRegistry() core.ResourceRegistry { return NewHostRegistry() }
