package types

// ---- Status notifications (device -> kiosk API) ----

// BrewStatus is the coarse order status understood by the kiosk API.
type BrewStatus string

const (
	StatusPreparing BrewStatus = "preparing"
	StatusBrewing   BrewStatus = "brewing"
	StatusCompleted BrewStatus = "completed"
)

// StatusUpdate is the body of POST /api/hardware/status and the payload of
// brew/status on the bus.
type StatusUpdate struct {
	OrderID    string     `json:"orderId"`
	Status     BrewStatus `json:"status"`
	Step       string     `json:"step"`
	Message    string     `json:"message"`
	HardwareID string     `json:"hardwareId"`
	Error      bool       `json:"error"`
}

// HAL device ids of the kiosk's outputs. Indicators are gpio_led devices in
// domain io; relays are gpio_switch devices in domain power.
const (
	DevLEDStatus    = "led-status"
	DevLEDPreparing = "led-preparing"
	DevLEDToppings  = "led-toppings"
	DevLEDIce       = "led-ice"
	DevLEDBrewing   = "led-brewing"
	DevLEDCompleted = "led-completed"
	DevPump         = "pump"
	DevValve        = "valve"
	DevLevel        = "tank"
)

// ---- Sequencer state (retained brew/state) ----

type BrewState struct {
	State     string `json:"state"` // idle, entry_active, stage1..stage5, finalizing
	RunID     string `json:"run_id,omitempty"`
	OrderID   string `json:"order_id,omitempty"`
	Stage     int    `json:"stage"` // 0 entry/idle, 1..5 active stage
	Step      string `json:"step,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
	StartedMs int64  `json:"started_ms,omitempty"`
	Trigger   string `json:"trigger,omitempty"` // active diagnostic trigger action
	TS        int64  `json:"ts_ms"`
}

// Idle reports whether a new order can be accepted.
func (s BrewState) Idle() bool { return s.State == "idle" && s.Trigger == "" }

// Transition is published on brew/transition for every state change.
type Transition struct {
	RunID   string `json:"run_id"`
	OrderID string `json:"order_id"`
	From    string `json:"from"`
	To      string `json:"to"`
	Stage   int    `json:"stage"`
	Reason  string `json:"reason,omitempty"`
	TS      int64  `json:"ts_ms"`
}

// ---- Inputs (bus topics brew/order, brew/trigger, brew/abort) ----

// OrderReceived starts a run. Drink details are informational only.
type OrderReceived struct {
	OrderID   string   `json:"orderId"`
	DrinkName string   `json:"drinkName,omitempty"`
	Toppings  []string `json:"toppings,omitempty"`
	Size      string   `json:"size,omitempty"`
}

// Trigger actions.
const (
	ActionTestLED          = "test_led"
	ActionCompletionSignal = "completion_signal"
)

// Trigger is a diagnostic command, as queued by the kiosk API.
// Zero LedPin / Duration select the defaults.
type Trigger struct {
	ID         string `json:"id,omitempty"`
	HardwareID string `json:"hardwareId,omitempty"`
	Action     string `json:"action"`
	OrderID    string `json:"orderId,omitempty"`
	LedPin     int    `json:"ledPin,omitempty"`
	Duration   int    `json:"duration,omitempty"` // milliseconds
}

type Abort struct {
	Reason string `json:"reason,omitempty"`
}

// ---- System ----

type Heartbeat struct {
	Seq      uint64 `json:"seq"`
	UptimeMs int64  `json:"uptime_ms"`
	TS       int64  `json:"ts_ms"`
}

// Delivery reports the outcome of forwarding a StatusUpdate to the kiosk API.
type Delivery struct {
	OrderID string     `json:"orderId"`
	Status  BrewStatus `json:"status"`
	Step    string     `json:"step"`
	OK      bool       `json:"ok"`
	Error   string     `json:"error,omitempty"`
	TS      int64      `json:"ts_ms"`
}
