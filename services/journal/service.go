package journal

import (
	"context"
	"io"
	"log"

	"brewcode-go/bus"
	"brewcode-go/services/brew"
	"brewcode-go/services/kiosk"
	"brewcode-go/types"
	"brewcode-go/x/payload"
)

func topicConfig() bus.Topic { return bus.T("config", "journal") }

// Service writes brew transitions and kiosk deliveries to the journal.
// Rows are flushed when a run returns to idle.
type Service struct {
	conn  *bus.Connection
	log   *log.Logger
	store *Store
	path  string
}

func New(conn *bus.Connection, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{conn: conn, log: logger}
}

func (s *Service) Run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(topicConfig())
	trSub := s.conn.Subscribe(brew.TopicTransition())
	delSub := s.conn.Subscribe(kiosk.TopicDelivery())
	defer s.conn.Unsubscribe(cfgSub)
	defer s.conn.Unsubscribe(trSub)
	defer s.conn.Unsubscribe(delSub)
	defer s.close()

	for {
		select {
		case <-ctx.Done():
			s.drain(trSub, delSub)
			return
		case m := <-cfgSub.Channel():
			cfg, err := payload.Decode[types.JournalConfig](m.Payload)
			if err != nil {
				s.log.Println("error: config/journal:", err)
				continue
			}
			s.configure(cfg)
		case m := <-trSub.Channel():
			s.transition(m)
		case m := <-delSub.Channel():
			s.delivery(m)
		}
	}
}

// drain records what is already queued; Close then flushes it.
func (s *Service) drain(trSub, delSub *bus.Subscription) {
	for {
		select {
		case m := <-trSub.Channel():
			s.transition(m)
		case m := <-delSub.Channel():
			s.delivery(m)
		default:
			return
		}
	}
}

func (s *Service) transition(m *bus.Message) {
	tr, ok := m.Payload.(types.Transition)
	if !ok || s.store == nil {
		return
	}
	if err := s.store.AddTransition(tr); err != nil {
		s.log.Println("error: journal transition:", err)
	}
	if tr.To == brew.StateIdle {
		if err := s.store.Flush(); err != nil {
			s.log.Println("error: journal flush:", err)
		}
	}
}

func (s *Service) delivery(m *bus.Message) {
	d, ok := m.Payload.(types.Delivery)
	if !ok || s.store == nil {
		return
	}
	if err := s.store.AddDelivery(d); err != nil {
		s.log.Println("error: journal delivery:", err)
	}
}

func (s *Service) configure(cfg types.JournalConfig) {
	if cfg.Path == s.path && s.store != nil {
		return
	}
	s.close()
	s.path = cfg.Path
	if cfg.Path == "" {
		s.log.Println("info: journal disabled")
		return
	}
	st, err := Open(cfg.Path, cfg.BatchSize)
	if err != nil {
		s.log.Println("error: journal open:", err)
		return
	}
	s.store = st
	s.log.Println("info: journal at", cfg.Path)
}

func (s *Service) close() {
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.log.Println("error: journal close:", err)
	}
	s.store = nil
}
