package core

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

const (
	eventQueueLen = 16
	pollQueueLen  = 8
)

type capKey struct {
	domain string
	kind   string
	name   string
}

// Polled is implemented by devices that want a periodic "read" control.
type Polled interface {
	PollEvery() time.Duration
}

type HAL struct {
	conn *bus.Connection
	res  Resources
	log  *log.Logger

	// Device registry
	dev map[string]Device // devID -> device

	// Capability index: (domain,kind,name) -> devID
	capIndex map[capKey]string

	// Single-threaded publication of device events
	evCh chan Event

	pollCh chan PollReq
	poller *Poller
}

func NewHAL(conn *bus.Connection, reg ResourceRegistry, logger *log.Logger) *HAL {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	h := &HAL{
		conn:     conn,
		res:      Resources{Reg: reg},
		log:      logger,
		dev:      map[string]Device{},
		capIndex: map[capKey]string{},
		evCh:     make(chan Event, eventQueueLen),
		pollCh:   make(chan PollReq, pollQueueLen),
	}
	h.poller = NewPoller(h.pollCh)
	// HAL provides the emitter to devices.
	h.res.Pub = h
	return h
}

func (h *HAL) Run(ctx context.Context) {
	cfgSub := h.conn.Subscribe(topicConfigHAL())
	ctrlSub := h.conn.Subscribe(ctrlWildcard())
	defer h.conn.Unsubscribe(cfgSub)
	defer h.conn.Unsubscribe(ctrlSub)

	go h.poller.Run(ctx)

	h.pubHALState("idle", "awaiting_config")
	ready := false
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.pubHALState("stopped", "context_cancelled")
			return
		case msg := <-cfgSub.Channel():
			cfg, err := payload.Decode[types.HALConfig](msg.Payload)
			if err != nil {
				h.log.Println("error: config/hal:", err)
				h.pubHALState("error", "config_wrong_type")
				continue
			}
			// applyConfig is additive/idempotent for existing devices.
			h.applyConfig(ctx, cfg)
			if !ready {
				ready = true
				h.pubHALState("ready", "configured")
			}
		case m := <-ctrlSub.Channel():
			if !ready {
				h.replyErr(m, errcode.HALNotReady)
				continue
			}
			h.handleControl(m)
		case pr := <-h.pollCh:
			h.handlePoll(pr)
		case ev := <-h.evCh:
			// All device→HAL telemetry is published from this goroutine.
			h.handleEvent(ev)
		}
	}
}

func (h *HAL) applyConfig(ctx context.Context, cfg types.HALConfig) {
	for i := range cfg.Devices {
		dc := cfg.Devices[i]
		if _, exists := h.dev[dc.ID]; exists {
			continue
		}
		b, ok := lookupBuilder(dc.Type)
		if !ok {
			h.log.Println("warn: no builder for type:", dc.Type, "id:", dc.ID)
			continue
		}
		dev, err := b.Build(ctx, BuilderInput{
			ID:     dc.ID,
			Type:   dc.Type,
			Params: dc.Params,
			Res:    h.res,
		})
		if err != nil {
			h.log.Println("error: build failed for:", dc.ID, "err:", err)
			continue
		}
		if err := dev.Init(ctx); err != nil {
			h.log.Println("error: init failed for:", dc.ID, "err:", err)
			_ = dev.Close()
			continue
		}
		h.dev[dev.ID()] = dev

		for _, cs := range dev.Capabilities() {
			addr := h.addrOf(dev, cs)
			h.capIndex[capKey{domain: addr.Domain, kind: addr.Kind, name: addr.Name}] = dev.ID()

			h.conn.Publish(h.conn.NewMessage(capInfo(addr.Domain, addr.Kind, addr.Name), cs.Info, true))
			h.conn.Publish(h.conn.NewMessage(
				capStatus(addr.Domain, addr.Kind, addr.Name),
				types.CapabilityStatus{Link: types.LinkDown, TS: timex.NowMs()},
				true,
			))
			if p, ok := dev.(Polled); ok && p.PollEvery() > 0 {
				h.poller.Upsert(addr.Domain, cs.Kind, addr.Name, "read", p.PollEvery(), 0)
			}
		}
		h.log.Println("info: device ready:", dev.ID())
	}

	for _, ps := range cfg.Pollers {
		verb := ps.Verb
		if verb == "" {
			verb = "read"
		}
		h.poller.Upsert(ps.Domain, ps.Kind, ps.Name, verb,
			time.Duration(ps.IntervalMs)*time.Millisecond,
			time.Duration(ps.JitterMs)*time.Millisecond)
	}
}

func (h *HAL) addrOf(dev Device, cs CapabilitySpec) CapAddr {
	k := string(cs.Kind)
	domain := cs.Domain
	if domain == "" {
		domain = defaultDomainFor(k)
	}
	name := cs.Name
	if name == "" {
		name = dev.ID()
	}
	return CapAddr{Domain: domain, Kind: k, Name: name}
}

func (h *HAL) handleControl(msg *bus.Message) {
	// hal/cap/<domain>/<kind>/<name>/control/<verb>
	if msg.Topic.Len() < 7 {
		h.replyErr(msg, errcode.InvalidTopic)
		return
	}
	domain, _ := msg.Topic.At(2).(string)
	kind, _ := msg.Topic.At(3).(string)
	name, _ := msg.Topic.At(4).(string)
	verb, _ := msg.Topic.At(6).(string)

	res, err := h.control(CapAddr{Domain: domain, Kind: kind, Name: name}, verb, msg.Payload)
	if err != nil {
		h.replyFromError(msg, err)
		return
	}
	if res.OK {
		h.replyOK(msg)
		return
	}
	code := res.Error
	if code == "" {
		code = errcode.Busy
	}
	h.replyErr(msg, code)
}

func (h *HAL) control(addr CapAddr, verb string, arg any) (EnqueueResult, error) {
	ownerID, ok := h.capIndex[capKey{domain: addr.Domain, kind: addr.Kind, name: addr.Name}]
	if !ok {
		return EnqueueResult{}, errcode.UnknownCapability
	}
	dev := h.dev[ownerID]
	if dev == nil {
		return EnqueueResult{}, errcode.Error
	}
	return dev.Control(addr, verb, arg)
}

func (h *HAL) handlePoll(pr PollReq) {
	addr := CapAddr{Domain: pr.Domain, Kind: string(pr.Kind), Name: pr.Name}
	if res, err := h.control(addr, pr.Verb, nil); err != nil || !res.OK {
		h.log.Println("warn: poll", pr.Name, pr.Verb, "failed:", errcode.Of(err), res.Error)
	}
}

func (h *HAL) handleEvent(ev Event) {
	d, k, n := ev.Addr.Domain, ev.Addr.Kind, ev.Addr.Name

	// Error → retained status:degraded; no value published.
	if ev.Err != "" {
		h.conn.Publish(h.conn.NewMessage(
			capStatus(d, k, n),
			types.CapabilityStatus{Link: types.LinkDegraded, TS: ev.TSms, Error: ev.Err},
			true,
		))
		return
	}

	h.conn.Publish(h.conn.NewMessage(capValue(d, k, n), ev.Payload, true))
	h.conn.Publish(h.conn.NewMessage(
		capStatus(d, k, n),
		types.CapabilityStatus{Link: types.LinkUp, TS: ev.TSms},
		true,
	))
}

func (h *HAL) closeAll() {
	for id, d := range h.dev {
		if err := d.Close(); err != nil {
			h.log.Println("warn: close failed for:", id, "err:", err)
		}
	}
}

func (h *HAL) pubHALState(level, status string) {
	h.conn.Publish(h.conn.NewMessage(
		T("hal", "state"),
		types.HALState{Level: level, Status: status, TS: timex.NowMs()},
		true,
	))
}

func defaultDomainFor(kind string) string {
	switch kind {
	case "level":
		return "env"
	case "switch":
		return "power"
	default:
		return "io"
	}
}

// ---- HAL as EventEmitter (enqueue to single publisher) ----

func (h *HAL) Emit(ev Event) bool {
	select {
	case h.evCh <- ev:
		return true
	default:
		return false
	}
}
