package brew

import (
	"io"
	"log"
	"strconv"
	"time"

	"brewcode-go/errcode"
	"brewcode-go/types"
	"brewcode-go/x/mathx"

	"github.com/rs/xid"
)

//go:generate mockgen -destination=mock_bank_test.go -package=brew brewcode-go/services/brew IndicatorBank,Reporter

// IndicatorBank drives the panel LEDs.
type IndicatorBank interface {
	Set(ind Indicator, on bool) error
	// Blink toggles each indicator count times, interval apart, leaving
	// them off. It returns once the blink has started.
	Blink(inds []Indicator, count int, interval time.Duration) error
}

// RelayBank drives the stage-bound relays.
type RelayBank interface {
	Switch(r Relay, on bool) error
}

// Reporter delivers status notifications. Failures are logged only.
type Reporter interface {
	Report(u types.StatusUpdate) error
}

// TransitionFunc observes every state change.
type TransitionFunc func(types.Transition)

// Defaults applied to zero config fields.
const (
	DefaultStageDuration     = 20 * time.Second
	DefaultBlinkCount        = 3
	DefaultBlinkInterval     = 300 * time.Millisecond
	DefaultTestLEDOnTime     = 500 * time.Millisecond
	DefaultSignalDuration    = 3000 * time.Millisecond
	DefaultMaxSignalDuration = 60 * time.Second
)

// DefaultPins is the wiring from the kiosk's LED guide.
var DefaultPins = types.Pins{
	Status: 2, Preparing: 4, Toppings: 5, Ice: 18, Brewing: 19, Completed: 21,
	Pump: 25, Valve: 26, LevelSensor: 34,
}

func withDefaults(c types.BrewConfig) types.BrewConfig {
	if c.StageDuration <= 0 {
		c.StageDuration = DefaultStageDuration
	}
	if c.BlinkCount <= 0 {
		c.BlinkCount = DefaultBlinkCount
	}
	if c.BlinkInterval <= 0 {
		c.BlinkInterval = DefaultBlinkInterval
	}
	if c.TestLEDOnTime <= 0 {
		c.TestLEDOnTime = DefaultTestLEDOnTime
	}
	if c.DefaultSignalDuration <= 0 {
		c.DefaultSignalDuration = DefaultSignalDuration
	}
	if c.MaxSignalDuration <= 0 {
		c.MaxSignalDuration = DefaultMaxSignalDuration
	}
	if c.Pins == (types.Pins{}) {
		c.Pins = DefaultPins
	}
	return c
}

type phase int

const (
	phaseIdle phase = iota
	phaseStage
	phaseFinalizing
)

type run struct {
	id      string
	orderID string
	stage   int           // 1..5 while phaseStage
	elapsed time.Duration // in current stage or in the blink
	total   time.Duration
}

// trigger is a diagnostic output sequence running outside a run.
type trigger struct {
	action  string
	inds    []Indicator
	idx     int
	onTime  time.Duration
	elapsed time.Duration
}

// Sequencer walks one order through the stage table. It never reads a
// clock: time only advances through Tick. Not safe for concurrent use.
type Sequencer struct {
	cfg    types.BrewConfig
	bank   IndicatorBank
	relays RelayBank
	rep    Reporter
	log    *log.Logger
	onTr   TransitionFunc

	phase phase
	run   *run
	trig  *trigger
}

type Option func(*Sequencer)

// WithRelays enables stage-bound relays when the config allows them.
func WithRelays(r RelayBank) Option { return func(s *Sequencer) { s.relays = r } }

func WithLogger(l *log.Logger) Option { return func(s *Sequencer) { s.log = l } }

func WithTransitions(f TransitionFunc) Option { return func(s *Sequencer) { s.onTr = f } }

func NewSequencer(cfg types.BrewConfig, bank IndicatorBank, rep Reporter, opts ...Option) *Sequencer {
	s := &Sequencer{
		cfg:  withDefaults(cfg),
		bank: bank,
		rep:  rep,
		log:  log.New(io.Discard, "", 0),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Sequencer) Config() types.BrewConfig { return s.cfg }

// SetConfig replaces the timing and wiring. Only allowed while idle.
func (s *Sequencer) SetConfig(cfg types.BrewConfig) error {
	if s.Active() {
		return errcode.Busy
	}
	s.cfg = withDefaults(cfg)
	return nil
}

// Active reports whether a run or a trigger owns the indicators.
func (s *Sequencer) Active() bool { return s.run != nil || s.trig != nil }

// State returns the current state name.
func (s *Sequencer) State() string {
	switch s.phase {
	case phaseStage:
		return stageState(s.run.stage)
	case phaseFinalizing:
		return StateFinalizing
	}
	return StateIdle
}

// OrderReceived starts a run. A run already in progress rejects the order
// with Busy; an active diagnostic trigger is cut short.
func (s *Sequencer) OrderReceived(orderID string) error {
	if orderID == "" {
		return errcode.New(errcode.InvalidParams, "order", "empty order id")
	}
	if s.run != nil {
		return errcode.New(errcode.Busy, "order", "run in progress for "+s.run.orderID)
	}
	if s.trig != nil {
		s.log.Println("info: order", orderID, "preempts", s.trig.action)
		s.stopTrigger()
	}

	s.run = &run{id: xid.New().String(), orderID: orderID}
	s.set(IndStatus, true)
	s.transition(StateIdle, StateEntry, 0, "order")

	// Entry hands over to stage 1 immediately.
	s.enterStage(1, StateEntry)
	return nil
}

// Tick advances time by dt. Elapsed time carries across stage boundaries,
// so a large dt may cross several stages.
func (s *Sequencer) Tick(dt time.Duration) {
	if dt < 0 {
		dt = 0
	}
	if s.trig != nil {
		s.tickTrigger(dt)
		return
	}
	if s.run == nil {
		return
	}
	s.run.elapsed += dt
	s.run.total += dt

	for s.run != nil {
		switch s.phase {
		case phaseStage:
			if s.run.elapsed < s.cfg.StageDuration {
				return
			}
			s.run.elapsed -= s.cfg.StageDuration
			if s.run.stage < lastStage {
				s.enterStage(s.run.stage+1, stageState(s.run.stage))
			} else {
				s.enterFinalizing()
			}
		case phaseFinalizing:
			if s.run.elapsed < s.blinkSpan() {
				return
			}
			s.finish()
		default:
			return
		}
	}
}

// Abort abandons the run or trigger and forces every output off.
func (s *Sequencer) Abort(reason string) error {
	if !s.Active() {
		return errcode.NotRunning
	}
	if s.trig != nil {
		s.stopTrigger()
	}
	if s.run != nil {
		from := s.State()
		s.allOff()
		s.phase = phaseIdle
		s.transition(from, StateIdle, 0, "abort: "+reason)
		s.run = nil
	}
	return nil
}

// Trigger validates and starts a diagnostic action.
func (s *Sequencer) Trigger(t types.Trigger) error {
	if t.HardwareID != "" && s.cfg.HardwareID != "" && t.HardwareID != s.cfg.HardwareID {
		return errcode.New(errcode.HardwareMismatch, "trigger", t.HardwareID)
	}
	switch t.Action {
	case types.ActionTestLED:
		return s.TestLED()
	case types.ActionCompletionSignal:
		return s.CompletionSignal(t.LedPin, time.Duration(t.Duration)*time.Millisecond)
	default:
		return errcode.New(errcode.UnknownAction, "trigger", t.Action)
	}
}

// TestLED lights each indicator in turn for TestLEDOnTime.
func (s *Sequencer) TestLED() error {
	if err := s.checkFree(types.ActionTestLED); err != nil {
		return err
	}
	s.startTrigger(&trigger{
		action: types.ActionTestLED,
		inds:   Indicators(),
		onTime: s.cfg.TestLEDOnTime,
	})
	return nil
}

// CompletionSignal holds the indicator on pin for duration. Zero values
// select the configured defaults; with no default pin configured the
// status indicator is used, wherever it is wired.
func (s *Sequencer) CompletionSignal(pin int, duration time.Duration) error {
	if pin == 0 {
		pin = s.cfg.DefaultSignalPin
	}
	if pin == 0 {
		pin = s.cfg.Pins.Status
	}
	if duration == 0 {
		duration = s.cfg.DefaultSignalDuration
	}
	if !mathx.Between(duration, 0, s.cfg.MaxSignalDuration) {
		return errcode.New(errcode.OutOfRange, "completion_signal", duration.String())
	}
	ind, ok := IndicatorForPin(s.cfg.Pins, pin)
	if !ok {
		return errcode.New(errcode.UnknownPin, "completion_signal", strconv.Itoa(pin))
	}
	if err := s.checkFree(types.ActionCompletionSignal); err != nil {
		return err
	}
	s.startTrigger(&trigger{
		action: types.ActionCompletionSignal,
		inds:   []Indicator{ind},
		onTime: duration,
	})
	return nil
}

// Snapshot is the externally visible state, without timestamps.
func (s *Sequencer) Snapshot() types.BrewState {
	st := types.BrewState{State: s.State()}
	if s.run != nil {
		st.RunID = s.run.id
		st.OrderID = s.run.orderID
		st.ElapsedMs = s.run.total.Milliseconds()
		if s.phase == phaseStage {
			st.Stage = s.run.stage
			st.Step = Stages[s.run.stage].Step
		} else {
			st.Stage = lastStage
			st.Step = finalUpdate.Step
		}
	}
	if s.trig != nil {
		st.Trigger = s.trig.action
	}
	return st
}

// ---- run internals ----

func (s *Sequencer) enterStage(n int, from string) {
	if n > 1 {
		prev := Stages[n-1]
		s.set(prev.Indicator, false)
		s.relay(prev.Relay, false)
	}
	st := Stages[n]
	s.phase = phaseStage
	s.run.stage = n
	s.set(st.Indicator, true)
	s.relay(st.Relay, true)
	s.transition(from, stageState(n), n, "")
	s.report(st.Update(s.run.orderID, s.cfg.HardwareID))
}

func (s *Sequencer) enterFinalizing() {
	last := Stages[lastStage]
	s.set(last.Indicator, false)
	s.relay(last.Relay, false)
	s.phase = phaseFinalizing
	if err := s.bank.Blink(StageIndicators(), s.cfg.BlinkCount, s.cfg.BlinkInterval); err != nil {
		s.log.Println("warn: blink failed:", err)
	}
	s.transition(stageState(lastStage), StateFinalizing, lastStage, "")
	s.report(finalUpdate.Update(s.run.orderID, s.cfg.HardwareID))
}

func (s *Sequencer) finish() {
	s.set(IndStatus, false)
	s.phase = phaseIdle
	s.transition(StateFinalizing, StateIdle, 0, "completed")
	s.run = nil
}

// blinkSpan is the time the blink takes: count on/off pairs.
func (s *Sequencer) blinkSpan() time.Duration {
	return time.Duration(2*s.cfg.BlinkCount) * s.cfg.BlinkInterval
}

func (s *Sequencer) allOff() {
	for _, ind := range Indicators() {
		s.set(ind, false)
	}
	s.relay(RelayPump, false)
	s.relay(RelayValve, false)
}

// ---- triggers ----

func (s *Sequencer) checkFree(action string) error {
	if s.run != nil {
		return errcode.New(errcode.Busy, action, "run in progress")
	}
	if s.trig != nil {
		return errcode.New(errcode.Busy, action, s.trig.action+" in progress")
	}
	return nil
}

func (s *Sequencer) startTrigger(t *trigger) {
	s.trig = t
	s.set(t.inds[0], true)
	s.log.Println("info: trigger", t.action, "started")
}

func (s *Sequencer) tickTrigger(dt time.Duration) {
	t := s.trig
	t.elapsed += dt
	for t.elapsed >= t.onTime {
		t.elapsed -= t.onTime
		s.set(t.inds[t.idx], false)
		t.idx++
		if t.idx == len(t.inds) {
			s.trig = nil
			s.log.Println("info: trigger", t.action, "done")
			return
		}
		s.set(t.inds[t.idx], true)
	}
}

func (s *Sequencer) stopTrigger() {
	t := s.trig
	if t.idx < len(t.inds) {
		s.set(t.inds[t.idx], false)
	}
	s.trig = nil
}

// ---- outputs ----

func (s *Sequencer) set(ind Indicator, on bool) {
	if err := s.bank.Set(ind, on); err != nil {
		s.log.Println("warn: indicator", ind, "set", on, "failed:", err)
	}
}

func (s *Sequencer) relay(r Relay, on bool) {
	if r == RelayNone || s.relays == nil || !s.cfg.StageRelays {
		return
	}
	if err := s.relays.Switch(r, on); err != nil {
		s.log.Println("warn: relay", r, "switch", on, "failed:", err)
	}
}

func (s *Sequencer) report(u types.StatusUpdate) {
	if s.rep == nil {
		return
	}
	if err := s.rep.Report(u); err != nil {
		s.log.Println("warn: status", u.Step, "not delivered:", err)
	}
}

func (s *Sequencer) transition(from, to string, stage int, reason string) {
	if s.onTr == nil || s.run == nil {
		return
	}
	s.onTr(types.Transition{
		RunID:   s.run.id,
		OrderID: s.run.orderID,
		From:    from,
		To:      to,
		Stage:   stage,
		Reason:  reason,
	})
}
