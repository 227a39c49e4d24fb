package types

import "time"

// Section payloads published retained on config/<section>.

// Pins is the physical wiring of the kiosk board.
type Pins struct {
	Status    int `json:"status" yaml:"status" mapstructure:"status"`
	Preparing int `json:"preparing" yaml:"preparing" mapstructure:"preparing"`
	Toppings  int `json:"toppings" yaml:"toppings" mapstructure:"toppings"`
	Ice       int `json:"ice" yaml:"ice" mapstructure:"ice"`
	Brewing   int `json:"brewing" yaml:"brewing" mapstructure:"brewing"`
	Completed int `json:"completed" yaml:"completed" mapstructure:"completed"`

	Pump        int `json:"pump" yaml:"pump" mapstructure:"pump"`
	Valve       int `json:"valve" yaml:"valve" mapstructure:"valve"`
	LevelSensor int `json:"level_sensor" yaml:"level_sensor" mapstructure:"level_sensor"`
}

// BrewConfig drives the brew sequencer (config/brew).
type BrewConfig struct {
	HardwareID string `json:"hardware_id" yaml:"-" mapstructure:"-"`
	Pins       Pins   `json:"pins" yaml:"-" mapstructure:"-"`

	StageDuration time.Duration `json:"stage_duration" yaml:"stage_duration" mapstructure:"stage_duration"`
	BlinkCount    int           `json:"blink_count" yaml:"blink_count" mapstructure:"blink_count"`
	BlinkInterval time.Duration `json:"blink_interval" yaml:"blink_interval" mapstructure:"blink_interval"`
	TickInterval  time.Duration `json:"tick_interval" yaml:"tick_interval" mapstructure:"tick_interval"`
	StageRelays   bool          `json:"stage_relays" yaml:"stage_relays" mapstructure:"stage_relays"`

	TestLEDOnTime         time.Duration `json:"test_led_on_time" yaml:"test_led_on_time" mapstructure:"test_led_on_time"`
	DefaultSignalPin      int           `json:"default_signal_pin" yaml:"default_signal_pin" mapstructure:"default_signal_pin"`
	DefaultSignalDuration time.Duration `json:"default_signal_duration" yaml:"default_signal_duration" mapstructure:"default_signal_duration"`
	MaxSignalDuration     time.Duration `json:"max_signal_duration" yaml:"max_signal_duration" mapstructure:"max_signal_duration"`
}

// KioskConfig configures the kiosk API client (config/kiosk).
type KioskConfig struct {
	HardwareID string `json:"hardware_id" yaml:"-" mapstructure:"-"`

	BaseURL             string        `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	APIKey              string        `json:"-" yaml:"api_key" mapstructure:"api_key"`
	PollInterval        time.Duration `json:"poll_interval" yaml:"poll_interval" mapstructure:"poll_interval"`
	CommandPollInterval time.Duration `json:"command_poll_interval" yaml:"command_poll_interval" mapstructure:"command_poll_interval"`
	RequestTimeout      time.Duration `json:"request_timeout" yaml:"request_timeout" mapstructure:"request_timeout"`
}

// HeartbeatConfig (config/heartbeat).
type HeartbeatConfig struct {
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`
}

// APIConfig configures the local HTTP API (config/api).
type APIConfig struct {
	Listen string `json:"listen" yaml:"listen" mapstructure:"listen"`
	APIKey string `json:"-" yaml:"api_key" mapstructure:"api_key"`
}

// JournalConfig configures the SQLite run journal (config/journal).
// An empty Path disables the journal.
type JournalConfig struct {
	Path      string `json:"path" yaml:"path" mapstructure:"path"`
	BatchSize int    `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`
}
