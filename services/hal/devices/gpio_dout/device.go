package gpio_dout

import (
	"context"
	"sync"
	"time"

	"brewcode-go/errcode"
	"brewcode-go/services/hal/internal/core"
	"brewcode-go/types"
	"brewcode-go/x/mathx"
	"brewcode-go/x/payload"
	"brewcode-go/x/timex"
)

const (
	maxBlinkCount    = 50
	minBlinkInterval = 20 * time.Millisecond
	maxBlinkInterval = 5 * time.Second
)

type Role int

const (
	RoleLED Role = iota
	RoleSwitch
)

type Device struct {
	id        string
	pin       core.GPIOHandle
	activeLow bool
	pub       core.EventEmitter
	role      Role
	domain    string
	name      string
	initial   bool
	// derived address for the single capability
	addr    core.CapAddr
	release func()

	mu         sync.Mutex
	blinkStop  chan struct{}
	blinkAlive bool
}

func New(role Role, id string, p types.GPIOOutParams, h core.GPIOHandle, pub core.EventEmitter) *Device {
	d := &Device{
		id:        id,
		pin:       h,
		activeLow: p.ActiveLow,
		pub:       pub,
		role:      role,
		domain:    p.Domain,
		name:      p.Name,
		initial:   p.Initial,
	}
	if d.name == "" {
		d.name = id
	}
	if d.domain == "" {
		switch role {
		case RoleSwitch:
			d.domain = "power"
		default:
			d.domain = "io"
		}
	}
	kind := string(types.KindLED)
	if role == RoleSwitch {
		kind = string(types.KindSwitch)
	}
	d.addr = core.CapAddr{Domain: d.domain, Kind: kind, Name: d.name}
	return d
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	switch d.role {
	case RoleSwitch:
		return []core.CapabilitySpec{{
			Domain: d.domain,
			Kind:   types.KindSwitch,
			Name:   d.name,
			Info: types.Info{
				SchemaVersion: 1,
				Driver:        "gpio_dout",
				Detail:        types.SwitchInfo{Pin: d.pin.Number()},
			},
		}}
	default:
		return []core.CapabilitySpec{{
			Domain: d.domain,
			Kind:   types.KindLED,
			Name:   d.name,
			Info: types.Info{
				SchemaVersion: 1,
				Driver:        "gpio_dout",
				Detail:        types.LEDInfo{Pin: d.pin.Number()},
			},
		}}
	}
}

func (d *Device) Init(ctx context.Context) error {
	level := d.initial
	if d.activeLow {
		level = !level
	}
	if err := d.pin.ConfigureOutput(level); err != nil {
		return err
	}
	d.emitValueNow()
	return nil
}

// Close stops any blink, drives the output off and releases the pin.
func (d *Device) Close() error {
	d.mu.Lock()
	d.stopBlinkLocked()
	d.setLogical(false)
	d.mu.Unlock()
	if d.release != nil {
		d.release()
	}
	return nil
}

func (d *Device) Control(_ core.CapAddr, method string, v any) (core.EnqueueResult, error) {
	switch method {
	case "set":
		var on bool
		switch d.role {
		case RoleSwitch:
			p, err := payload.Decode[types.SwitchSet](v)
			if err != nil {
				return core.EnqueueResult{OK: false, Error: errcode.InvalidPayload}, nil
			}
			on = p.On
		default:
			p, err := payload.Decode[types.LEDSet](v)
			if err != nil {
				return core.EnqueueResult{OK: false, Error: errcode.InvalidPayload}, nil
			}
			on = p.Level
		}
		d.mu.Lock()
		d.stopBlinkLocked()
		d.setLogical(on)
		d.mu.Unlock()
		d.emitValueNow()
		return core.EnqueueResult{OK: true}, nil
	case "toggle":
		d.mu.Lock()
		d.stopBlinkLocked()
		d.setLogical(!d.getLogical())
		d.mu.Unlock()
		d.emitValueNow()
		return core.EnqueueResult{OK: true}, nil
	case "blink":
		if d.role != RoleLED {
			return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
		}
		p, err := payload.Decode[types.LEDBlink](v)
		if err != nil || p.Count <= 0 {
			return core.EnqueueResult{OK: false, Error: errcode.InvalidPayload}, nil
		}
		count := mathx.Min(p.Count, maxBlinkCount)
		interval := mathx.Clamp(time.Duration(p.IntervalMs)*time.Millisecond, minBlinkInterval, maxBlinkInterval)
		d.startBlink(count, interval)
		return core.EnqueueResult{OK: true}, nil
	case "read":
		d.emitValueNow()
		return core.EnqueueResult{OK: true}, nil
	default:
		return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
	}
}

// startBlink replaces any running blink. The output ends off.
func (d *Device) startBlink(count int, interval time.Duration) {
	stop := make(chan struct{})
	d.mu.Lock()
	d.stopBlinkLocked()
	d.blinkStop = stop
	d.blinkAlive = true
	d.mu.Unlock()

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for i := 0; i <= 2*count; i++ {
			// Even steps on, odd steps off; the last step leaves it off.
			on := i%2 == 0 && i < 2*count
			if !d.blinkStep(stop, on) {
				return
			}
			if i == 2*count {
				break
			}
			select {
			case <-stop:
				return
			case <-t.C:
			}
		}
		d.mu.Lock()
		if d.blinkStop == stop {
			d.blinkAlive = false
		}
		d.mu.Unlock()
	}()
}

// blinkStep drives one phase unless the blink was cancelled.
func (d *Device) blinkStep(stop chan struct{}, on bool) bool {
	d.mu.Lock()
	select {
	case <-stop:
		d.mu.Unlock()
		return false
	default:
	}
	d.setLogical(on)
	d.mu.Unlock()
	d.emitValueNow()
	return true
}

// caller holds d.mu
func (d *Device) stopBlinkLocked() {
	if d.blinkAlive {
		close(d.blinkStop)
		d.blinkAlive = false
	}
}

func (d *Device) setLogical(on bool) {
	level := on
	if d.activeLow {
		level = !level
	}
	d.pin.Set(level)
}

func (d *Device) getLogical() bool {
	level := d.pin.Get()
	if d.activeLow {
		level = !level
	}
	return level
}

func (d *Device) emitValueNow() {
	ts := timex.NowMs()
	switch d.role {
	case RoleSwitch:
		_ = d.pub.Emit(core.Event{
			Addr:    d.addr,
			Payload: types.SwitchValue{On: d.getLogical()},
			TSms:    ts,
		})
	default:
		var v uint8
		if d.getLogical() {
			v = 1
		}
		_ = d.pub.Emit(core.Event{
			Addr:    d.addr,
			Payload: types.LEDValue{Level: v},
			TSms:    ts,
		})
	}
}
