package level

import (
	"context"
	"time"

	"brewcode-go/errcode"
	"brewcode-go/services/hal/internal/core"
	"brewcode-go/types"
	"brewcode-go/x/mathx"
	"brewcode-go/x/timex"

	"tinygo.org/x/drivers"
)

const (
	defaultRefMilliV = 3300
	fullScale        = 0xFFFF
)

var _ drivers.Sensor = (*Device)(nil)

// Device is an analog liquid-level probe on one ADC channel.
type Device struct {
	id      string
	adc     core.ADCHandle
	pub     core.EventEmitter
	addr    core.CapAddr
	release func()

	refMilliV int32
	emptyRaw  uint16
	fullRaw   uint16
	every     time.Duration

	raw uint16
}

func New(id string, p types.ADCLevelParams, h core.ADCHandle, pub core.EventEmitter) *Device {
	d := &Device{
		id:        id,
		adc:       h,
		pub:       pub,
		refMilliV: p.RefMilliV,
		emptyRaw:  p.EmptyRaw,
		fullRaw:   p.FullRaw,
		every:     time.Duration(p.IntervalMs) * time.Millisecond,
	}
	if d.refMilliV <= 0 {
		d.refMilliV = defaultRefMilliV
	}
	if d.fullRaw == 0 && d.emptyRaw == 0 {
		d.fullRaw = fullScale
	}
	name := p.Name
	if name == "" {
		name = id
	}
	d.addr = core.CapAddr{Domain: "env", Kind: string(types.KindLevel), Name: name}
	return d
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{{
		Domain: d.addr.Domain,
		Kind:   types.KindLevel,
		Name:   d.addr.Name,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        "adc_level",
			Detail:        types.LevelInfo{Pin: d.adc.Number(), RefMilliV: d.refMilliV},
		},
	}}
}

func (d *Device) Init(ctx context.Context) error {
	if err := d.adc.Configure(); err != nil {
		return errcode.Wrap(errcode.Error, "adc_configure", err)
	}
	return nil
}

func (d *Device) Close() error {
	if d.release != nil {
		d.release()
	}
	return nil
}

// PollEvery makes the HAL schedule periodic reads.
func (d *Device) PollEvery() time.Duration { return d.every }

func (d *Device) Control(_ core.CapAddr, method string, _ any) (core.EnqueueResult, error) {
	switch method {
	case "read":
		if err := d.Update(drivers.Voltage); err != nil {
			d.pub.Emit(core.Event{Addr: d.addr, TSms: timex.NowMs(), Err: string(errcode.Of(err))})
			return core.EnqueueResult{OK: false, Error: errcode.Of(err)}, nil
		}
		d.pub.Emit(core.Event{Addr: d.addr, Payload: d.Value(), TSms: timex.NowMs()})
		return core.EnqueueResult{OK: true}, nil
	default:
		return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
	}
}

// Update samples the channel. Only drivers.Voltage is supported.
func (d *Device) Update(which drivers.Measurement) error {
	if which&drivers.Voltage == 0 {
		return nil
	}
	d.raw = d.adc.Get()
	return nil
}

// Value converts the last sample.
func (d *Device) Value() types.LevelValue {
	return types.LevelValue{
		Raw:     d.raw,
		MilliV:  d.MilliVolts(),
		Percent: d.Percent(),
	}
}

func (d *Device) MilliVolts() int32 {
	mv := mathx.RoundDiv(uint32(d.raw)*uint32(d.refMilliV), uint32(fullScale))
	return int32(mv)
}

// Percent maps the raw reading onto the calibrated empty..full span.
// Probes that read lower when full are handled by swapping the ends.
func (d *Device) Percent() uint8 {
	if d.fullRaw >= d.emptyRaw {
		return uint8(mathx.MapU16(d.raw, d.emptyRaw, d.fullRaw, 0, 100))
	}
	return uint8(100 - mathx.MapU16(d.raw, d.fullRaw, d.emptyRaw, 0, 100))
}
