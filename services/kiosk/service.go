package kiosk

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"brewcode-go/bus"
	"brewcode-go/errcode"
	"brewcode-go/services/brew"
	"brewcode-go/services/heartbeat"
	"brewcode-go/types"
	"brewcode-go/x/payload"
	"brewcode-go/x/timex"
)

const (
	defaultPollInterval        = 5 * time.Second
	defaultCommandPollInterval = 2 * time.Second
	brewRequestTimeout         = 2 * time.Second
)

func T(tokens ...any) bus.Topic { return bus.T(tokens...) }

func topicConfig() bus.Topic { return T("config", "kiosk") }

// TopicDelivery carries the outcome of each forwarded notification.
func TopicDelivery() bus.Topic { return T("kiosk", "delivery") }

// Service is the uplink between the bus and the kiosk API.
type Service struct {
	conn *bus.Connection
	log  *log.Logger
	hc   *http.Client

	cfg    types.KioskConfig
	client *Client
	idle   bool
}

// New creates the uplink. hc may be nil.
func New(conn *bus.Connection, logger *log.Logger, hc *http.Client) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{conn: conn, log: logger, hc: hc}
}

func (s *Service) Start(ctx context.Context) { go s.Run(ctx) }

func (s *Service) Run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(topicConfig())
	statusSub := s.conn.Subscribe(brew.TopicStatus())
	stateSub := s.conn.Subscribe(brew.TopicState())
	hbSub := s.conn.Subscribe(heartbeat.TopicHeartbeat)
	defer s.conn.Unsubscribe(cfgSub)
	defer s.conn.Unsubscribe(statusSub)
	defer s.conn.Unsubscribe(stateSub)
	defer s.conn.Unsubscribe(hbSub)

	orderTimer := time.NewTimer(time.Hour)
	cmdTimer := time.NewTimer(time.Hour)
	defer orderTimer.Stop()
	defer cmdTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case m := <-cfgSub.Channel():
			cfg, err := payload.Decode[types.KioskConfig](m.Payload)
			if err != nil {
				s.log.Println("error: config/kiosk:", err)
				continue
			}
			s.configure(cfg)
			if s.client != nil {
				timex.ResetTimer(orderTimer, pollInterval(cfg))
				timex.ResetTimer(cmdTimer, commandInterval(cfg))
			} else {
				orderTimer.Stop()
				cmdTimer.Stop()
			}

		case m := <-stateSub.Channel():
			if st, ok := m.Payload.(types.BrewState); ok {
				s.idle = st.Idle()
			}

		case m := <-statusSub.Channel():
			u, ok := m.Payload.(types.StatusUpdate)
			if !ok {
				continue
			}
			s.forward(ctx, u)

		case <-hbSub.Channel():
			if s.client == nil {
				continue
			}
			if err := s.client.Heartbeat(ctx); err != nil {
				s.log.Println("warn: heartbeat:", err)
			}

		case <-orderTimer.C:
			if s.client == nil {
				continue
			}
			// Orders are only taken while idle so the kiosk keeps the queue.
			if s.idle {
				s.pollOrder(ctx)
			}
			orderTimer.Reset(pollInterval(s.cfg))

		case <-cmdTimer.C:
			if s.client == nil {
				continue
			}
			s.pollCommand(ctx)
			cmdTimer.Reset(commandInterval(s.cfg))
		}
	}
}

func (s *Service) configure(cfg types.KioskConfig) {
	s.cfg = cfg
	if cfg.BaseURL == "" {
		s.client = nil
		s.log.Println("info: no base_url, uplink disabled")
		return
	}
	s.client = NewClient(cfg, s.hc)
	s.log.Println("info: uplink to", cfg.BaseURL, "as", cfg.HardwareID)
}

// forward posts one notification. Failures are reported, never retried.
func (s *Service) forward(ctx context.Context, u types.StatusUpdate) {
	d := types.Delivery{OrderID: u.OrderID, Status: u.Status, Step: u.Step}
	switch {
	case s.client == nil:
		d.Error = string(errcode.Unsupported)
	default:
		if err := s.client.PostStatus(ctx, u); err != nil {
			s.log.Println("warn: status", u.OrderID, u.Step, "not delivered:", err)
			d.Error = string(errcode.Of(err))
		} else {
			d.OK = true
		}
	}
	d.TS = timex.NowMs()
	s.conn.Publish(s.conn.NewMessage(TopicDelivery(), d, false))
}

func (s *Service) pollOrder(ctx context.Context) {
	o, err := s.client.PollOrder(ctx)
	if err != nil {
		s.log.Println("warn: poll orders:", err)
		return
	}
	if o == nil {
		return
	}
	s.log.Println("info: order", o.OrderID, o.DrinkName)
	if err := s.brewRequest(ctx, brew.TopicOrder(), *o); err != nil {
		s.log.Println("warn: order", o.OrderID, "rejected:", err)
		// The server already marked it preparing; tell it the run failed.
		s.forward(ctx, types.StatusUpdate{
			OrderID:    o.OrderID,
			Status:     types.StatusPreparing,
			Step:       "rejected",
			Message:    string(errcode.Of(err)),
			HardwareID: s.cfg.HardwareID,
			Error:      true,
		})
		return
	}
	// Busy until brew/state says otherwise.
	s.idle = false
}

func (s *Service) pollCommand(ctx context.Context) {
	tr, err := s.client.PollCommand(ctx)
	if err != nil {
		s.log.Println("warn: poll commands:", err)
		return
	}
	if tr == nil {
		return
	}
	if err := s.brewRequest(ctx, brew.TopicTrigger(), *tr); err != nil {
		s.log.Println("warn: command", tr.ID, tr.Action, "rejected:", err)
		return
	}
	s.log.Println("info: command", tr.ID, tr.Action, "accepted")
}

func (s *Service) brewRequest(ctx context.Context, topic bus.Topic, v any) error {
	ctx, cancel := context.WithTimeout(ctx, brewRequestTimeout)
	defer cancel()
	reply, err := s.conn.RequestWait(ctx, s.conn.NewMessage(topic, v, false))
	if err != nil {
		return errcode.Wrap(errcode.Timeout, "brew", err)
	}
	switch r := reply.Payload.(type) {
	case types.OKReply:
		return nil
	case types.ErrorReply:
		return errcode.Code(r.Error)
	}
	return errcode.InvalidPayload
}

func pollInterval(c types.KioskConfig) time.Duration {
	if c.PollInterval <= 0 {
		return defaultPollInterval
	}
	return c.PollInterval
}

func commandInterval(c types.KioskConfig) time.Duration {
	if c.CommandPollInterval <= 0 {
		return defaultCommandPollInterval
	}
	return c.CommandPollInterval
}
