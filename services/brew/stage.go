package brew

import (
	"fmt"

	"brewcode-go/types"
)

// Indicator is one of the six LEDs on the kiosk panel.
type Indicator int

const (
	IndStatus Indicator = iota
	IndPreparing
	IndToppings
	IndIce
	IndBrewing
	IndCompleted

	numIndicators
)

var indicatorNames = [numIndicators]string{
	"status", "preparing", "toppings", "ice", "brewing", "completed",
}

func (i Indicator) String() string {
	if i < 0 || i >= numIndicators {
		return fmt.Sprintf("indicator(%d)", int(i))
	}
	return indicatorNames[i]
}

// Indicators lists every indicator, entry first.
func Indicators() []Indicator {
	out := make([]Indicator, 0, numIndicators)
	for i := IndStatus; i < numIndicators; i++ {
		out = append(out, i)
	}
	return out
}

// StageIndicators lists the five stage indicators in run order.
func StageIndicators() []Indicator {
	return []Indicator{IndPreparing, IndToppings, IndIce, IndBrewing, IndCompleted}
}

// DeviceID is the HAL device backing the indicator.
func (i Indicator) DeviceID() string {
	switch i {
	case IndStatus:
		return types.DevLEDStatus
	case IndPreparing:
		return types.DevLEDPreparing
	case IndToppings:
		return types.DevLEDToppings
	case IndIce:
		return types.DevLEDIce
	case IndBrewing:
		return types.DevLEDBrewing
	case IndCompleted:
		return types.DevLEDCompleted
	}
	return ""
}

// Pin returns the GPIO wired to the indicator.
func (i Indicator) Pin(p types.Pins) int {
	switch i {
	case IndStatus:
		return p.Status
	case IndPreparing:
		return p.Preparing
	case IndToppings:
		return p.Toppings
	case IndIce:
		return p.Ice
	case IndBrewing:
		return p.Brewing
	case IndCompleted:
		return p.Completed
	}
	return -1
}

// IndicatorForPin is the reverse of Pin.
func IndicatorForPin(p types.Pins, pin int) (Indicator, bool) {
	for _, ind := range Indicators() {
		if ind.Pin(p) == pin {
			return ind, true
		}
	}
	return 0, false
}

// Relay is a stage-bound actuator.
type Relay int

const (
	RelayNone Relay = iota
	RelayPump
	RelayValve
)

func (r Relay) String() string {
	switch r {
	case RelayPump:
		return "pump"
	case RelayValve:
		return "valve"
	}
	return "none"
}

func (r Relay) DeviceID() string {
	switch r {
	case RelayPump:
		return types.DevPump
	case RelayValve:
		return types.DevValve
	}
	return ""
}

// Stage is one entry of the fixed run sequence.
type Stage struct {
	ID        string
	Indicator Indicator
	Status    types.BrewStatus
	Step      string
	Message   string
	Relay     Relay
}

// Update renders the stage notification.
func (s Stage) Update(orderID, hardwareID string) types.StatusUpdate {
	return types.StatusUpdate{
		OrderID:    orderID,
		Status:     s.Status,
		Step:       s.Step,
		Message:    s.Message,
		HardwareID: hardwareID,
	}
}

// Stages is the run sequence. Index 0 is the entry stage, which spans the
// whole run and has no notification of its own.
var Stages = [6]Stage{
	{ID: "entry", Indicator: IndStatus},
	{ID: "preparing", Indicator: IndPreparing, Status: types.StatusPreparing, Step: "preparing_cup", Message: "กำลังเตรียมแก้ว"},
	{ID: "toppings", Indicator: IndToppings, Status: types.StatusBrewing, Step: "adding_toppings", Message: "ใส่ท็อปปิ้ง", Relay: RelayValve},
	{ID: "ice", Indicator: IndIce, Status: types.StatusBrewing, Step: "adding_ice", Message: "ใส่น้ำแข็ง"},
	{ID: "brewing", Indicator: IndBrewing, Status: types.StatusBrewing, Step: "brewing_drink", Message: "ชงเครื่องดื่ม", Relay: RelayPump},
	{ID: "completed", Indicator: IndCompleted, Status: types.StatusCompleted, Step: "completed", Message: "เสร็จสิ้น"},
}

const lastStage = len(Stages) - 1

// finalUpdate is sent when the last stage ends and the blink starts.
var finalUpdate = Stage{
	ID:      "finalizing",
	Status:  types.StatusCompleted,
	Step:    "completed",
	Message: "เสร็จสิ้น! กรุณารับเครื่องดื่ม",
}

// State names as published on brew/state.
const (
	StateIdle       = "idle"
	StateEntry      = "entry_active"
	StateFinalizing = "finalizing"
)

func stageState(n int) string { return fmt.Sprintf("stage%d", n) }
