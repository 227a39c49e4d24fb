package gpio_dout

import (
	"context"
	"sync"
	"testing"
	"time"

	"brewcode-go/errcode"
	"brewcode-go/services/hal/internal/core"
	"brewcode-go/services/hal/internal/provider"
	"brewcode-go/types"
)

type recEmitter struct {
	mu  sync.Mutex
	evs []core.Event
}

func (r *recEmitter) Emit(ev core.Event) bool {
	r.mu.Lock()
	r.evs = append(r.evs, ev)
	r.mu.Unlock()
	return true
}

func (r *recEmitter) last() core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evs[len(r.evs)-1]
}

func (r *recEmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.evs)
}

func newLED(t *testing.T, p types.GPIOOutParams) (*Device, *provider.FakePin, *recEmitter) {
	t.Helper()
	reg := provider.NewHostRegistry()
	em := &recEmitter{}
	dev, err := build(RoleLED, core.BuilderInput{
		ID:     "led-status",
		Type:   "gpio_led",
		Params: p,
		Res:    core.Resources{Reg: reg, Pub: em},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	d := dev.(*Device)
	if err := d.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return d, reg.Pin(p.Pin), em
}

func TestSetAndActiveLow(t *testing.T) {
	d, pin, em := newLED(t, types.GPIOOutParams{Pin: 2, ActiveLow: true})

	if !pin.Get() {
		t.Fatal("active-low LED should idle high")
	}
	res, _ := d.Control(d.addr, "set", types.LEDSet{Level: true})
	if !res.OK {
		t.Fatalf("set: %+v", res)
	}
	if pin.Get() {
		t.Fatal("active-low LED on should drive low")
	}
	if v := em.last().Payload.(types.LEDValue); v.Level != 1 {
		t.Fatalf("want level 1, got %+v", v)
	}
	if em.last().Addr != (core.CapAddr{Domain: "io", Kind: "led", Name: "led-status"}) {
		t.Fatalf("unexpected addr %+v", em.last().Addr)
	}
}

func TestSetAcceptsJSONLikePayload(t *testing.T) {
	d, pin, _ := newLED(t, types.GPIOOutParams{Pin: 4})
	res, _ := d.Control(d.addr, "set", map[string]any{"level": true})
	if !res.OK || !pin.Get() {
		t.Fatalf("set via map: %+v pin=%v", res, pin.Get())
	}
	res, _ = d.Control(d.addr, "set", "nonsense")
	if res.OK || res.Error != errcode.InvalidPayload {
		t.Fatalf("want invalid_payload, got %+v", res)
	}
}

func TestBlinkEndsOff(t *testing.T) {
	d, pin, em := newLED(t, types.GPIOOutParams{Pin: 5})
	before := em.count()

	res, _ := d.Control(d.addr, "blink", types.LEDBlink{Count: 2, IntervalMs: 20})
	if !res.OK {
		t.Fatalf("blink: %+v", res)
	}
	time.Sleep(200 * time.Millisecond)

	if pin.Get() {
		t.Fatal("LED should be off after blink")
	}
	// on,off,on,off + final off
	if got := em.count() - before; got != 5 {
		t.Fatalf("want 5 value events, got %d", got)
	}
}

func TestSetCancelsBlink(t *testing.T) {
	d, pin, _ := newLED(t, types.GPIOOutParams{Pin: 5})
	d.Control(d.addr, "blink", types.LEDBlink{Count: 20, IntervalMs: 20})
	time.Sleep(30 * time.Millisecond)
	d.Control(d.addr, "set", types.LEDSet{Level: true})
	time.Sleep(60 * time.Millisecond)
	if !pin.Get() {
		t.Fatal("set should win over a running blink")
	}
}

func TestSwitchRole(t *testing.T) {
	reg := provider.NewHostRegistry()
	em := &recEmitter{}
	dev, err := build(RoleSwitch, core.BuilderInput{
		ID: "pump", Params: types.GPIOOutParams{Pin: 26}, Res: core.Resources{Reg: reg, Pub: em},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	d := dev.(*Device)
	_ = d.Init(context.Background())
	if caps := d.Capabilities(); caps[0].Domain != "power" || caps[0].Kind != types.KindSwitch {
		t.Fatalf("unexpected capability %+v", caps[0])
	}
	if res, _ := d.Control(d.addr, "set", types.SwitchSet{On: true}); !res.OK || !reg.Pin(26).Get() {
		t.Fatalf("switch set failed: %+v", res)
	}
	if res, _ := d.Control(d.addr, "blink", types.LEDBlink{Count: 1}); res.Error != errcode.Unsupported {
		t.Fatalf("switch blink: want unsupported, got %+v", res)
	}
	_ = d.Close()
	if _, owned := reg.Owner(26); owned {
		t.Fatal("close should release the pin")
	}
	if reg.Pin(26).Get() {
		t.Fatal("close should drive the switch off")
	}
}
