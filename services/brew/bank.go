package brew

import (
	"context"
	"errors"
	"time"

	"brewcode-go/bus"
	"brewcode-go/errcode"
	"brewcode-go/services/hal"
	"brewcode-go/types"
)

const defaultHALTimeout = 250 * time.Millisecond

var (
	_ IndicatorBank = (*busBank)(nil)
	_ RelayBank     = (*busBank)(nil)
)

// busBank drives indicators and relays through HAL control requests.
type busBank struct {
	ctx     context.Context
	conn    *bus.Connection
	timeout time.Duration
}

func newBusBank(ctx context.Context, conn *bus.Connection, timeout time.Duration) *busBank {
	if timeout <= 0 {
		timeout = defaultHALTimeout
	}
	return &busBank{ctx: ctx, conn: conn, timeout: timeout}
}

func (b *busBank) Set(ind Indicator, on bool) error {
	return b.call(hal.CapCtrl("io", string(types.KindLED), ind.DeviceID(), "set"), types.LEDSet{Level: on})
}

func (b *busBank) Blink(inds []Indicator, count int, interval time.Duration) error {
	var errs []error
	for _, ind := range inds {
		err := b.call(hal.CapCtrl("io", string(types.KindLED), ind.DeviceID(), "blink"),
			types.LEDBlink{Count: count, IntervalMs: uint32(interval.Milliseconds())})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *busBank) Switch(r Relay, on bool) error {
	return b.call(hal.CapCtrl("power", string(types.KindSwitch), r.DeviceID(), "set"), types.SwitchSet{On: on})
}

func (b *busBank) call(topic bus.Topic, payload any) error {
	ctx, cancel := context.WithTimeout(b.ctx, b.timeout)
	defer cancel()

	reply, err := b.conn.RequestWait(ctx, b.conn.NewMessage(topic, payload, false))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errcode.Wrap(errcode.Timeout, "hal", err)
		}
		return errcode.Wrap(errcode.Error, "hal", err)
	}
	switch r := reply.Payload.(type) {
	case types.OKReply:
		return nil
	case types.ErrorReply:
		return errcode.New(errcode.Code(r.Error), "hal", "")
	default:
		return errcode.InvalidPayload
	}
}
