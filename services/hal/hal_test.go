package hal

import (
	"context"
	"testing"
	"time"

	"brewcode-go/bus"
	"brewcode-go/types"
)

func recvWithin(t *testing.T, sub *bus.Subscription, d time.Duration) *bus.Message {
	t.Helper()
	select {
	case m := <-sub.Channel():
		return m
	case <-time.After(d):
		t.Fatalf("timeout waiting for %v", sub.Topic())
		return nil
	}
}

func waitHALState(t *testing.T, sub *bus.Subscription, level string) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case m := <-sub.Channel():
			if s, ok := m.Payload.(types.HALState); ok && s.Level == level {
				return
			}
		case <-deadline:
			t.Fatalf("HAL did not reach %q", level)
		}
	}
}

func startHAL(t *testing.T) (*bus.Connection, *HostRegistry, *bus.Subscription) {
	t.Helper()
	b := bus.NewBus(32)
	conn := b.NewConnection("test")
	reg := NewHostRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	stateSub := conn.Subscribe(StateTopic())
	go Run(ctx, b.NewConnection("hal"), reg, nil)
	waitHALState(t, stateSub, "idle")

	cfg := types.HALConfig{Devices: []types.HALDevice{
		{ID: "led-status", Type: "gpio_led", Params: types.GPIOOutParams{Pin: 2}},
		{ID: "pump", Type: "gpio_switch", Params: types.GPIOOutParams{Pin: 26}},
		{ID: "tank", Type: "adc_level", Params: types.ADCLevelParams{Pin: 34, IntervalMs: 20}},
	}}
	conn.Publish(conn.NewMessage(bus.T("config", "hal"), cfg, true))
	waitHALState(t, stateSub, "ready")
	return conn, reg, stateSub
}

func TestControlSetDrivesPinAndPublishesValue(t *testing.T) {
	conn, reg, _ := startHAL(t)

	valSub := conn.Subscribe(CapValue("io", "led", "led-status"))
	defer conn.Unsubscribe(valSub)
	recvWithin(t, valSub, time.Second) // initial retained value

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	reply, err := conn.RequestWait(ctx, conn.NewMessage(CapCtrl("io", "led", "led-status", "set"), types.LEDSet{Level: true}, false))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if r, ok := reply.Payload.(types.OKReply); !ok || !r.OK {
		t.Fatalf("unexpected reply %+v", reply.Payload)
	}
	if !reg.Pin(2).Get() {
		t.Fatal("pin 2 not driven")
	}
	v := recvWithin(t, valSub, time.Second)
	if lv, _ := v.Payload.(types.LEDValue); lv.Level != 1 {
		t.Fatalf("want level 1, got %+v", v.Payload)
	}
}

func TestControlUnknownCapability(t *testing.T) {
	conn, _, _ := startHAL(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	reply, err := conn.RequestWait(ctx, conn.NewMessage(CapCtrl("io", "led", "nope", "set"), types.LEDSet{Level: true}, false))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if r, ok := reply.Payload.(types.ErrorReply); !ok || r.Error != "unknown_capability" {
		t.Fatalf("unexpected reply %+v", reply.Payload)
	}
}

func TestLevelSensorIsPolled(t *testing.T) {
	conn, reg, _ := startHAL(t)
	reg.ADC(34).SetRaw(0xFFFF)

	sub := conn.Subscribe(CapValue("env", "level", "tank"))
	defer conn.Unsubscribe(sub)

	deadline := time.After(time.Second)
	for {
		select {
		case m := <-sub.Channel():
			if v, ok := m.Payload.(types.LevelValue); ok && v.Percent == 100 {
				return
			}
		case <-deadline:
			t.Fatal("no level reading after poll interval")
		}
	}
}

func TestCapabilityStatusGoesUp(t *testing.T) {
	conn, _, _ := startHAL(t)
	sub := conn.Subscribe(CapStatus("power", "switch", "pump"))
	defer conn.Unsubscribe(sub)

	// Retained "down" may arrive first.
	deadline := time.After(time.Second)
	for {
		select {
		case m := <-sub.Channel():
			if s, _ := m.Payload.(types.CapabilityStatus); s.Link == types.LinkUp {
				return
			}
		case <-deadline:
			t.Fatal("capability never reported up")
		}
	}
}
