package gpio_dout

import (
	"context"

	"brewcode-go/services/hal/internal/core"
	"brewcode-go/types"
	"brewcode-go/x/payload"
)

func init() {
	core.RegisterBuilder("gpio_led", builderLED{})
	core.RegisterBuilder("gpio_switch", builderSwitch{})
}

type builderLED struct{}
type builderSwitch struct{}

func (builderLED) Build(ctx context.Context, in core.BuilderInput) (core.Device, error) {
	return build(RoleLED, in)
}

func (builderSwitch) Build(ctx context.Context, in core.BuilderInput) (core.Device, error) {
	return build(RoleSwitch, in)
}

func build(role Role, in core.BuilderInput) (core.Device, error) {
	p, err := payload.Decode[types.GPIOOutParams](in.Params)
	if err != nil {
		return nil, err
	}
	gpio, err := in.Res.Reg.ClaimGPIO(in.ID, p.Pin)
	if err != nil {
		return nil, err
	}
	d := New(role, in.ID, p, gpio, in.Res.Pub)
	d.release = func() { in.Res.Reg.ReleaseGPIO(in.ID, p.Pin) }
	return d, nil
}
