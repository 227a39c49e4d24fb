package types

// ---- Digital outputs (LED indicators and relays) ----

// GPIOOutParams configures a gpio_led / gpio_switch device.
type GPIOOutParams struct {
	Pin       int    `json:"pin"`
	ActiveLow bool   `json:"active_low,omitempty"`
	Initial   bool   `json:"initial,omitempty"`
	Domain    string `json:"domain,omitempty"` // defaults: io (led), power (switch)
	Name      string `json:"name,omitempty"`   // capability name; defaults to device id
}

type LEDInfo struct {
	Pin int `json:"pin"`
}

type LEDValue struct {
	Level uint8 `json:"level"` // 0 or 1
}

type LEDSet struct {
	Level bool `json:"level"`
}

// LEDBlink toggles the output Count times on and off, Interval apart, and
// leaves it off. A following set cancels a blink in progress.
type LEDBlink struct {
	Count      int    `json:"count"`
	IntervalMs uint32 `json:"interval_ms"`
}

type SwitchInfo struct {
	Pin int `json:"pin"`
}

type SwitchValue struct {
	On bool `json:"on"`
}

type SwitchSet struct {
	On bool `json:"on"`
}

// ---- Analog liquid-level sensor ----

// ADCLevelParams configures an adc_level device. Raw readings are 16-bit
// scaled (0..65535) regardless of the converter's native resolution.
type ADCLevelParams struct {
	Pin        int    `json:"pin"`
	Name       string `json:"name,omitempty"`
	RefMilliV  int32  `json:"ref_mv,omitempty"`    // full-scale voltage, default 3300
	EmptyRaw   uint16 `json:"empty_raw,omitempty"` // raw reading at 0 %
	FullRaw    uint16 `json:"full_raw,omitempty"`  // raw reading at 100 %, default 65535
	IntervalMs uint32 `json:"interval_ms,omitempty"`
}

type LevelInfo struct {
	Pin       int   `json:"pin"`
	RefMilliV int32 `json:"ref_mv"`
}

type LevelValue struct {
	Raw     uint16 `json:"raw"`
	MilliV  int32  `json:"mv"`
	Percent uint8  `json:"percent"`
}
