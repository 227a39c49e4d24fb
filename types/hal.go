package types

// ------------------------
// Common HAL state (retained)
// ------------------------

type HALState struct {
	Level  string `json:"level"`  // "idle", "ready", "stopped"
	Status string `json:"status"` // freeform short code
	TS     int64  `json:"ts_ms"`
}

// Link is the link/state reported for a capability.
type Link string

const (
	LinkUp       Link = "up"
	LinkDown     Link = "down"
	LinkDegraded Link = "degraded"
)

type CapabilityStatus struct {
	Link  Link   `json:"link"`
	TS    int64  `json:"ts_ms"`
	Error string `json:"error,omitempty"` // machine-readable short code
}

// ------------------------
// Capability kinds
// ------------------------

type Kind string

const (
	KindLED    Kind = "led"
	KindSwitch Kind = "switch"
	KindLevel  Kind = "level"
)

// ------------------------
// Polling (declarative)
// ------------------------

type PollSpec struct {
	Domain     string `json:"domain"`      // e.g. "env"
	Kind       Kind   `json:"kind"`        // e.g. "level"
	Name       string `json:"name"`        // e.g. "tank"
	Verb       string `json:"verb"`        // typically "read"
	IntervalMs uint32 `json:"interval_ms"` // >0
	JitterMs   uint16 `json:"jitter_ms"`   // optional
}

// ------------------------
// HAL configuration (topic config/hal)
// ------------------------

type HALConfig struct {
	Devices []HALDevice `json:"devices"`
	Pollers []PollSpec  `json:"pollers,omitempty"`
}

type HALDevice struct {
	ID     string `json:"id"`     // logical device id
	Type   string `json:"type"`   // "gpio_led", "gpio_switch", "adc_level"
	Params any    `json:"params"` // typed params or a JSON-like map
}

// ------------------------
// Generic replies
// ------------------------

type OKReply struct {
	OK bool `json:"ok"`
}

type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// ------------------------
// Info envelope (retained)
// ------------------------

type Info struct {
	SchemaVersion int    `json:"schema_version"`
	Driver        string `json:"driver"`
	Detail        any    `json:"detail,omitempty"`
}
