package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"brewcode-go/errcode"
	"brewcode-go/services/brew"
	"brewcode-go/services/hal"
	"brewcode-go/types"
)

const envPrefix = "BREW"

// LevelConfig calibrates the tank level probe on Pins.LevelSensor.
type LevelConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	EmptyRaw uint16        `yaml:"empty_raw" mapstructure:"empty_raw"`
	FullRaw  uint16        `yaml:"full_raw" mapstructure:"full_raw"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// Config is the whole controller configuration. Each section is published
// retained on config/<section>.
type Config struct {
	HardwareID string     `yaml:"hardware_id" mapstructure:"hardware_id"`
	Pins       types.Pins `yaml:"pins" mapstructure:"pins"`

	Brew      types.BrewConfig      `yaml:"brew" mapstructure:"brew"`
	Level     LevelConfig           `yaml:"level" mapstructure:"level"`
	Kiosk     types.KioskConfig     `yaml:"kiosk" mapstructure:"kiosk"`
	Heartbeat types.HeartbeatConfig `yaml:"heartbeat" mapstructure:"heartbeat"`
	API       types.APIConfig       `yaml:"api" mapstructure:"api"`
	Journal   types.JournalConfig   `yaml:"journal" mapstructure:"journal"`
}

// Default is the wiring from the kiosk's LED guide with the sequencer's
// stock timings. The kiosk uplink stays off until a base URL is set.
func Default() Config {
	return Config{
		HardwareID: "esp32-001",
		Pins:       brew.DefaultPins,
		Brew: types.BrewConfig{
			StageDuration:         brew.DefaultStageDuration,
			BlinkCount:            brew.DefaultBlinkCount,
			BlinkInterval:         brew.DefaultBlinkInterval,
			TickInterval:          100 * time.Millisecond,
			TestLEDOnTime:         brew.DefaultTestLEDOnTime,
			DefaultSignalDuration: brew.DefaultSignalDuration,
			MaxSignalDuration:     brew.DefaultMaxSignalDuration,
		},
		Level: LevelConfig{
			Enabled:  true,
			FullRaw:  0xFFFF,
			Interval: 5 * time.Second,
		},
		Kiosk: types.KioskConfig{
			PollInterval:        5 * time.Second,
			CommandPollInterval: 2 * time.Second,
			RequestTimeout:      5 * time.Second,
		},
		Heartbeat: types.HeartbeatConfig{Interval: 30 * time.Second},
		API:       types.APIConfig{Listen: "127.0.0.1:8088"},
		Journal:   types.JournalConfig{BatchSize: 64},
	}
}

// Load starts from Default, merges the YAML file at path when one is given,
// then applies BREW_* environment overrides (BREW_KIOSK_API_KEY,
// BREW_HARDWARE_ID, ...). A .env file in the working directory is read
// first when present.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	if err := setDefaults(v, Default()); err != nil {
		return Config{}, err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key of c so that environment overrides apply
// to keys absent from the file.
func setDefaults(v *viper.Viper, c Config) error {
	raw, err := marshalYAML(c)
	if err != nil {
		return err
	}
	var m map[string]any
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return err
	}
	walkDefaults(v, "", m)
	return nil
}

func walkDefaults(v *viper.Viper, prefix string, m map[string]any) {
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			walkDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, a ...any) {
		errs = append(errs, errcode.New(errcode.InvalidParams, "config", fmt.Sprintf(format, a...)))
	}

	if c.HardwareID == "" {
		bad("hardware_id is empty")
	}

	seen := map[int]string{}
	for _, o := range c.outputs() {
		if !hal.Board.HasGPIO(o.pin) {
			bad("pins.%s: gpio %d is not an output pin on %s", o.name, o.pin, hal.Board.Name)
			continue
		}
		if prev, dup := seen[o.pin]; dup {
			bad("pins.%s: gpio %d already used by pins.%s", o.name, o.pin, prev)
			continue
		}
		seen[o.pin] = o.name
	}
	if c.Level.Enabled && !hal.Board.HasADC(c.Pins.LevelSensor) {
		bad("pins.level_sensor: gpio %d is not an ADC pin on %s", c.Pins.LevelSensor, hal.Board.Name)
	}
	if c.Level.Enabled && c.Level.EmptyRaw == c.Level.FullRaw {
		bad("level: empty_raw and full_raw are equal")
	}

	b := c.Brew
	if b.StageDuration <= 0 {
		bad("brew.stage_duration must be positive")
	}
	if b.BlinkCount < 1 {
		bad("brew.blink_count must be at least 1")
	}
	if b.BlinkInterval <= 0 {
		bad("brew.blink_interval must be positive")
	}
	if b.TickInterval <= 0 {
		bad("brew.tick_interval must be positive")
	}
	if b.MaxSignalDuration > 0 && b.DefaultSignalDuration > b.MaxSignalDuration {
		bad("brew.default_signal_duration exceeds max_signal_duration")
	}
	if b.DefaultSignalPin != 0 {
		if _, ok := brew.IndicatorForPin(c.Pins, b.DefaultSignalPin); !ok {
			bad("brew.default_signal_pin: gpio %d drives no indicator", b.DefaultSignalPin)
		}
	}

	if c.Kiosk.BaseURL != "" {
		u, err := url.Parse(c.Kiosk.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			bad("kiosk.base_url %q is not an absolute URL", c.Kiosk.BaseURL)
		}
	}
	if c.Heartbeat.Interval < 0 {
		bad("heartbeat.interval is negative")
	}
	return errors.Join(errs...)
}

type namedPin struct {
	name string
	pin  int
}

func (c Config) outputs() []namedPin {
	p := c.Pins
	return []namedPin{
		{"status", p.Status},
		{"preparing", p.Preparing},
		{"toppings", p.Toppings},
		{"ice", p.Ice},
		{"brewing", p.Brewing},
		{"completed", p.Completed},
		{"pump", p.Pump},
		{"valve", p.Valve},
	}
}

// HAL builds the device list for config/hal: six indicator LEDs, the pump
// and valve relays, and the level probe when enabled.
func (c Config) HAL() types.HALConfig {
	var out types.HALConfig
	for _, ind := range brew.Indicators() {
		out.Devices = append(out.Devices, types.HALDevice{
			ID:     ind.DeviceID(),
			Type:   "gpio_led",
			Params: types.GPIOOutParams{Pin: ind.Pin(c.Pins)},
		})
	}
	out.Devices = append(out.Devices,
		types.HALDevice{ID: types.DevPump, Type: "gpio_switch", Params: types.GPIOOutParams{Pin: c.Pins.Pump}},
		types.HALDevice{ID: types.DevValve, Type: "gpio_switch", Params: types.GPIOOutParams{Pin: c.Pins.Valve}},
	)
	if c.Level.Enabled {
		out.Devices = append(out.Devices, types.HALDevice{
			ID:   types.DevLevel,
			Type: "adc_level",
			Params: types.ADCLevelParams{
				Pin:        c.Pins.LevelSensor,
				EmptyRaw:   c.Level.EmptyRaw,
				FullRaw:    c.Level.FullRaw,
				IntervalMs: uint32(c.Level.Interval / time.Millisecond),
			},
		})
	}
	return out
}

// Sections returns the retained payload of each config/<section> topic.
func (c Config) Sections() map[string]any {
	b := c.Brew
	b.HardwareID = c.HardwareID
	b.Pins = c.Pins
	k := c.Kiosk
	k.HardwareID = c.HardwareID
	return map[string]any{
		"hal":       c.HAL(),
		"brew":      b,
		"kiosk":     k,
		"heartbeat": c.Heartbeat,
		"api":       c.API,
		"journal":   c.Journal,
	}
}

// YAML renders the config with secrets masked.
func (c Config) YAML() ([]byte, error) {
	if c.Kiosk.APIKey != "" {
		c.Kiosk.APIKey = "***"
	}
	if c.API.APIKey != "" {
		c.API.APIKey = "***"
	}
	return marshalYAML(c)
}

var durationType = reflect.TypeOf(time.Duration(0))

// marshalYAML writes durations as "20s" text, the form Load reads back.
func marshalYAML(v any) ([]byte, error) {
	n, err := yamlNode(reflect.ValueOf(v))
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(n)
}

func yamlNode(v reflect.Value) (*yaml.Node, error) {
	n := &yaml.Node{}
	switch {
	case v.Type() == durationType:
		err := n.Encode(time.Duration(v.Int()).String())
		return n, err
	case v.Kind() == reflect.Struct:
		n.Kind = yaml.MappingNode
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
			if name == "-" {
				continue
			}
			if name == "" {
				name = strings.ToLower(f.Name)
			}
			val, err := yamlNode(v.Field(i))
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: name}, val)
		}
		return n, nil
	}
	err := n.Encode(v.Interface())
	return n, err
}

// LoadFile is Load followed by Validate.
func LoadFile(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
