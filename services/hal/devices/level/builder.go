package level

import (
	"context"

	"brewcode-go/services/hal/internal/core"
	"brewcode-go/types"
	"brewcode-go/x/payload"
)

func init() { core.RegisterBuilder("adc_level", builder{}) }

type builder struct{}

func (builder) Build(ctx context.Context, in core.BuilderInput) (core.Device, error) {
	p, err := payload.Decode[types.ADCLevelParams](in.Params)
	if err != nil {
		return nil, err
	}
	adc, err := in.Res.Reg.ClaimADC(in.ID, p.Pin)
	if err != nil {
		return nil, err
	}
	d := New(in.ID, p, adc, in.Res.Pub)
	d.release = func() { in.Res.Reg.ReleaseADC(in.ID, p.Pin) }
	return d, nil
}
