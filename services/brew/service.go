package brew

import (
	"context"
	"io"
	"log"
	"time"

	"brewcode-go/bus"
	"brewcode-go/errcode"
	"brewcode-go/types"
	"brewcode-go/x/payload"
	"brewcode-go/x/timex"
)

const defaultTickInterval = 100 * time.Millisecond

// Service owns the sequencer and connects it to the bus.
type Service struct {
	conn *bus.Connection
	log  *log.Logger
	clk  timex.Clock

	cfg     types.BrewConfig
	pending *types.BrewConfig
	seq     *Sequencer

	startedMs int64
	last      types.BrewState
}

func New(conn *bus.Connection, logger *log.Logger, clk timex.Clock) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if clk == nil {
		clk = timex.System
	}
	return &Service{conn: conn, log: logger, clk: clk}
}

func (s *Service) Start(ctx context.Context) { go s.Run(ctx) }

func (s *Service) Run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(topicConfig())
	orderSub := s.conn.Subscribe(TopicOrder())
	trigSub := s.conn.Subscribe(TopicTrigger())
	abortSub := s.conn.Subscribe(TopicAbort())
	defer s.conn.Unsubscribe(cfgSub)
	defer s.conn.Unsubscribe(orderSub)
	defer s.conn.Unsubscribe(trigSub)
	defer s.conn.Unsubscribe(abortSub)

	bank := newBusBank(ctx, s.conn, defaultHALTimeout)
	s.seq = NewSequencer(s.cfg, bank, busReporter{conn: s.conn},
		WithRelays(bank),
		WithLogger(s.log),
		WithTransitions(s.publishTransition),
	)
	sw := timex.NewStopwatch(s.clk)

	interval := tickInterval(s.seq.Config())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.publishState(true)
	s.log.Println("info: ready")

	for {
		select {
		case <-ctx.Done():
			if s.seq.Active() {
				// Context is gone; HAL calls will fail fast and be logged.
				_ = s.seq.Abort("shutdown")
			}
			s.publishState(true)
			s.log.Println("info: stopped")
			return

		case m := <-cfgSub.Channel():
			cfg, err := payload.Decode[types.BrewConfig](m.Payload)
			if err != nil {
				s.log.Println("error: config/brew:", err)
				continue
			}
			s.applyConfig(cfg)
			if iv := tickInterval(s.seq.Config()); iv != interval {
				interval = iv
				ticker.Reset(interval)
			}

		case m := <-orderSub.Channel():
			s.seq.Tick(sw.Lap())
			o, err := payload.Decode[types.OrderReceived](m.Payload)
			if err == nil {
				err = s.seq.OrderReceived(o.OrderID)
			}
			if err == nil {
				s.startedMs = s.clk.Now().UnixMilli()
				s.log.Println("info: order", o.OrderID, "started")
			} else {
				s.log.Println("warn: order", o.OrderID, "rejected:", err)
			}
			s.reply(m, err)
			s.publishState(false)

		case m := <-trigSub.Channel():
			s.seq.Tick(sw.Lap())
			tr, err := payload.Decode[types.Trigger](m.Payload)
			if err == nil {
				err = s.seq.Trigger(tr)
			}
			if err != nil {
				s.log.Println("warn: trigger", tr.Action, "rejected:", err)
			}
			s.reply(m, err)
			s.publishState(false)

		case m := <-abortSub.Channel():
			s.seq.Tick(sw.Lap())
			a, _ := payload.Decode[types.Abort](m.Payload)
			err := s.seq.Abort(a.Reason)
			if err == nil {
				s.log.Println("info: aborted:", a.Reason)
			}
			s.reply(m, err)
			s.publishState(false)

		case <-ticker.C:
			s.seq.Tick(sw.Lap())
			if s.pending != nil && !s.seq.Active() {
				s.applyConfig(*s.pending)
			}
			s.publishState(false)
		}
	}
}

// applyConfig defers changes that arrive mid-run until the sequencer is idle.
func (s *Service) applyConfig(cfg types.BrewConfig) {
	if err := s.seq.SetConfig(cfg); err != nil {
		s.pending = &cfg
		s.log.Println("info: config deferred until idle")
		return
	}
	s.cfg = cfg
	s.pending = nil
	s.log.Println("info: config applied")
}

func (s *Service) reply(m *bus.Message, err error) {
	if !m.CanReply() {
		return
	}
	if err != nil {
		s.conn.Reply(m, types.ErrorReply{OK: false, Error: string(errcode.Of(err))}, false)
		return
	}
	s.conn.Reply(m, types.OKReply{OK: true}, false)
}

// publishState publishes retained brew/state when it changed (or force).
func (s *Service) publishState(force bool) {
	st := s.seq.Snapshot()
	if st.RunID != "" {
		st.StartedMs = s.startedMs
	}
	changed := st.State != s.last.State || st.Stage != s.last.Stage ||
		st.Trigger != s.last.Trigger || st.RunID != s.last.RunID
	if !force && !changed {
		return
	}
	st.TS = s.clk.Now().UnixMilli()
	s.last = st
	s.conn.Publish(s.conn.NewMessage(TopicState(), st, true))
}

func (s *Service) publishTransition(tr types.Transition) {
	tr.TS = s.clk.Now().UnixMilli()
	s.conn.Publish(s.conn.NewMessage(TopicTransition(), tr, false))
}

func tickInterval(c types.BrewConfig) time.Duration {
	if c.TickInterval <= 0 {
		return defaultTickInterval
	}
	return c.TickInterval
}
