package heartbeat

import (
	"context"
	"io"
	"log"
	"time"

	"brewcode-go/bus"
	"brewcode-go/types"
	"brewcode-go/x/timex"
)

const defaultInterval = 30 * time.Second

var (
	topicConfigHeartbeat = bus.T("config", "heartbeat")
	TopicHeartbeat       = bus.T("system", "heartbeat")
)

type Service struct {
	Log *log.Logger
	Clk timex.Clock

	seq     uint64
	started time.Time
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	interval := defaultInterval
	tick := time.NewTicker(interval)
	defer tick.Stop()

	// loop until context is cancelled, respond to tick and config changes
	for {
		select {
		case <-ctx.Done():
			s.Log.Println("info: heartbeat service stopping")
			return
		case <-tick.C:
			s.beat(conn)
		case msg := <-cfgSub.Channel():
			iv, ok := intervalFrom(msg.Payload)
			if !ok || iv <= 0 || iv == interval {
				continue
			}
			interval = iv
			tick.Reset(interval)
			s.Log.Println("info: heartbeat interval set to", interval)
		}
	}
}

func (s *Service) beat(conn *bus.Connection) {
	now := s.Clk.Now()
	s.seq++
	conn.Publish(conn.NewMessage(TopicHeartbeat, types.Heartbeat{
		Seq:      s.seq,
		UptimeMs: timex.Ms(now.Sub(s.started)),
		TS:       now.UnixMilli(),
	}, false))
}

// intervalFrom accepts a typed config or a JSON-like map with the interval
// in seconds.
func intervalFrom(p any) (time.Duration, bool) {
	switch v := p.(type) {
	case types.HeartbeatConfig:
		return v.Interval, true
	case map[string]any:
		if f, ok := v["interval"].(float64); ok {
			return time.Duration(f * float64(time.Second)), true
		}
	}
	return 0, false
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	if s.Log == nil {
		s.Log = log.New(io.Discard, "", 0)
	}
	if s.Clk == nil {
		s.Clk = timex.System
	}
	s.started = s.Clk.Now()
	go s.serviceLoop(ctx, conn)
	return nil
}
