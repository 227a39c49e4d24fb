package timex

import (
	"sync"
	"time"
)

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// Ms converts a duration to whole milliseconds.
func Ms(d time.Duration) int64 { return d.Milliseconds() }

// Clock is the time source injected into services that stamp or measure time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System is the wall clock.
var System Clock = systemClock{}

// Manual is a Clock that only moves when told to.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(start time.Time) *Manual { return &Manual{now: start} }

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward and returns the new time.
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}

// Stopwatch yields the time elapsed between successive Lap calls.
type Stopwatch struct {
	clk  Clock
	last time.Time
}

func NewStopwatch(clk Clock) *Stopwatch {
	if clk == nil {
		clk = System
	}
	return &Stopwatch{clk: clk, last: clk.Now()}
}

// Lap returns the time since the previous Lap (or construction). Never negative.
func (s *Stopwatch) Lap() time.Duration {
	now := s.clk.Now()
	d := now.Sub(s.last)
	s.last = now
	if d < 0 {
		return 0
	}
	return d
}

// ResetTimer stops t, drains a pending fire and re-arms it for d.
func ResetTimer(t *time.Timer, d time.Duration) {
	if d < 0 {
		d = 0
	}
	if !t.Stop() {
		DrainTimer(t)
	}
	t.Reset(d)
}

func DrainTimer(t *time.Timer) {
	select {
	case <-t.C:
	default:
	}
}
