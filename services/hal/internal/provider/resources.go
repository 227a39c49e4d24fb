package provider

import (
	"sync"

	"brewcode-go/services/hal/internal/core"
)

// Ensure the provider satisfies the contracts at compile time.
var _ core.ResourceRegistry = (*Registry)(nil)

// Board lists the pins a device may claim, by function.
type Board struct {
	Name    string
	GPIOOut []int
	ADC     []int
}

// ESP32 is the DevKit-C pin map: output-capable GPIOs (strapping and
// input-only pins excluded) and ADC1 channels.
var ESP32 = Board{
	Name:    "esp32-devkitc",
	GPIOOut: []int{2, 4, 5, 12, 13, 14, 15, 16, 17, 18, 19, 21, 22, 23, 25, 26, 27},
	ADC:     []int{32, 33, 34, 35, 36, 39},
}

func (b Board) HasGPIO(n int) bool { return contains(b.GPIOOut, n) }
func (b Board) HasADC(n int) bool  { return contains(b.ADC, n) }

func contains(xs []int, n int) bool {
	for _, x := range xs {
		if x == n {
			return true
		}
	}
	return false
}

type pinFunc uint8

const (
	funcGPIO pinFunc = iota + 1
	funcADC
)

type pinOwner struct {
	devID string
	fn    pinFunc
}

// Registry hands out exclusive pin claims. Handles are created lazily by
// the platform-specific constructors and cached per pin.
type Registry struct {
	mu sync.Mutex

	board  Board
	owners map[int]pinOwner

	newGPIO func(n int) core.GPIOHandle
	newADC  func(n int) core.ADCHandle

	gpioMap map[int]core.GPIOHandle
	adcMap  map[int]core.ADCHandle
}

func newRegistry(b Board, gpio func(int) core.GPIOHandle, adc func(int) core.ADCHandle) *Registry {
	return &Registry{
		board:   b,
		owners:  make(map[int]pinOwner),
		newGPIO: gpio,
		newADC:  adc,
		gpioMap: make(map[int]core.GPIOHandle),
		adcMap:  make(map[int]core.ADCHandle),
	}
}

func (r *Registry) Board() Board { return r.board }

func (r *Registry) ClaimGPIO(devID string, n int) (core.GPIOHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.board.HasGPIO(n) {
		return nil, core.ErrUnknownPin
	}
	if owner, inUse := r.owners[n]; inUse && owner.devID != devID {
		return nil, core.ErrPinInUse
	}
	h, ok := r.gpioMap[n]
	if !ok {
		h = r.newGPIO(n)
		r.gpioMap[n] = h
	}
	r.owners[n] = pinOwner{devID: devID, fn: funcGPIO}
	return h, nil
}

func (r *Registry) ReleaseGPIO(devID string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.owners[n]; ok && owner.devID == devID && owner.fn == funcGPIO {
		// Put the pin back to input.
		if g := r.gpioMap[n]; g != nil {
			_ = g.ConfigureInput(core.PullNone)
		}
		delete(r.owners, n)
	}
}

func (r *Registry) ClaimADC(devID string, n int) (core.ADCHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.board.HasADC(n) {
		return nil, core.ErrUnknownPin
	}
	if owner, inUse := r.owners[n]; inUse && owner.devID != devID {
		return nil, core.ErrPinInUse
	}
	h, ok := r.adcMap[n]
	if !ok {
		h = r.newADC(n)
		r.adcMap[n] = h
	}
	r.owners[n] = pinOwner{devID: devID, fn: funcADC}
	return h, nil
}

func (r *Registry) ReleaseADC(devID string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.owners[n]; ok && owner.devID == devID && owner.fn == funcADC {
		delete(r.owners, n)
	}
}

// Owner reports which device holds pin n.
func (r *Registry) Owner(n int) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.owners[n]
	return o.devID, ok
}
