// bus.go
package bus

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
)

// -----------------------------------------------------------------------------
// Topics
// -----------------------------------------------------------------------------

// Wildcard tokens. "+" matches exactly one level, "#" matches the remainder
// (zero or more levels) and must be the last token of a subscription.
const (
	Single = "+"
	Multi  = "#"
)

// Topic is a sequence of comparable tokens (usually strings or ints).
type Topic []any

// T builds a topic, panicking on tokens that cannot be used as map keys.
func T(tokens ...any) Topic {
	for _, tok := range tokens {
		if tok == nil || !reflect.TypeOf(tok).Comparable() {
			panic("bus: topic token is not comparable")
		}
	}
	return Topic(tokens)
}

func (t Topic) Len() int     { return len(t) }
func (t Topic) At(i int) any { return t[i] }

// Append returns a new topic; t is never modified.
func (t Topic) Append(tokens ...any) Topic {
	out := make(Topic, 0, len(t)+len(tokens))
	out = append(out, t...)
	return append(out, T(tokens...)...)
}

// Equal reports token-wise equality.
func (t Topic) Equal(o Topic) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if t[i] != o[i] {
			return false
		}
	}
	return true
}

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

// CanReply reports whether the sender expects a reply.
func (m *Message) CanReply() bool { return m != nil && len(m.ReplyTo) > 0 }

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic  Topic
	ch     chan *Message
	conn   *Connection
	closed bool // guarded by bus.mu
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// deliver never blocks: when the queue is full the oldest message is dropped.
func (s *Subscription) deliver(m *Message) {
	select {
	case s.ch <- m:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- m:
	default:
	}
}

// -----------------------------------------------------------------------------
// Trie node
// -----------------------------------------------------------------------------

type node struct {
	children map[any]*node
	subs     []*Subscription
	retained *Message
}

func (n *node) child(tok any, create bool) *node {
	if c, ok := n.children[tok]; ok {
		return c
	}
	if !create {
		return nil
	}
	if n.children == nil {
		n.children = make(map[any]*node)
	}
	c := &node{}
	n.children[tok] = c
	return c
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu    sync.Mutex
	root  *node
	qLen  int
	reqID atomic.Uint64
}

// NewBus creates a new bus with the given subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{root: &node{}, qLen: queueLen}
}

// NewMessage is a small constructor kept on the bus for symmetry with Connection.
func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

// Publish delivers a message to all matching subscribers and updates the
// retained store. A retained message with a nil payload clears the slot.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if msg.Retained {
		n := b.root
		for _, tok := range msg.Topic {
			n = n.child(tok, msg.Payload != nil)
			if n == nil {
				break
			}
		}
		if n != nil {
			if msg.Payload == nil {
				n.retained = nil
			} else {
				n.retained = msg
			}
		}
	}

	var subs []*Subscription
	collectSubs(b.root, msg.Topic, &subs)
	for _, s := range subs {
		s.deliver(msg)
	}
}

func collectSubs(n *node, t Topic, out *[]*Subscription) {
	if h := n.children[Multi]; h != nil {
		*out = append(*out, h.subs...)
	}
	if len(t) == 0 {
		*out = append(*out, n.subs...)
		return
	}
	if c := n.children[t[0]]; c != nil {
		collectSubs(c, t[1:], out)
	}
	if c := n.children[Single]; c != nil {
		collectSubs(c, t[1:], out)
	}
}

func collectRetained(n *node, pattern Topic, out *[]*Message) {
	if len(pattern) == 0 {
		if n.retained != nil {
			*out = append(*out, n.retained)
		}
		return
	}
	switch pattern[0] {
	case Multi:
		collectAll(n, out)
	case Single:
		for tok, c := range n.children {
			if tok == Single || tok == Multi {
				continue
			}
			collectRetained(c, pattern[1:], out)
		}
	default:
		if c := n.children[pattern[0]]; c != nil {
			collectRetained(c, pattern[1:], out)
		}
	}
}

func collectAll(n *node, out *[]*Message) {
	if n.retained != nil {
		*out = append(*out, n.retained)
	}
	for _, c := range n.children {
		collectAll(c, out)
	}
}

func (b *Bus) addSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	for _, tok := range sub.topic {
		n = n.child(tok, true)
	}
	n.subs = append(n.subs, sub)

	var retained []*Message
	collectRetained(b.root, sub.topic, &retained)
	for _, m := range retained {
		sub.deliver(m)
	}
}

// removeSubscription detaches sub from the trie and closes its channel.
func (b *Bus) removeSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub.closed {
		return
	}
	sub.closed = true
	defer close(sub.ch)

	n := b.root
	stack := make([]*node, 0, len(sub.topic))
	for _, tok := range sub.topic {
		c := n.child(tok, false)
		if c == nil {
			return
		}
		stack = append(stack, n)
		n = c
	}
	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}

	// Prune empty nodes bottom-up.
	for i := len(sub.topic) - 1; i >= 0; i-- {
		parent := stack[i]
		key := sub.topic[i]
		c := parent.children[key]
		if len(c.subs) == 0 && len(c.children) == 0 && c.retained == nil {
			delete(parent.children, key)
		} else {
			break
		}
	}
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

// ErrNoReply is returned by RequestWait when the reply subscription closes.
var ErrNoReply = errors.New("bus: reply subscription closed")

type Connection struct {
	bus  *Bus
	id   string
	mu   sync.Mutex
	subs []*Subscription
}

// NewConnection creates a new connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(topic, payload, retained)
}

// Publish sends a message via the bus.
func (c *Connection) Publish(msg *Message) { c.bus.Publish(msg) }

// Subscribe registers a subscription owned by this connection.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan *Message, c.bus.qLen),
		conn:  c,
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	c.bus.addSubscription(sub)
	return sub
}

// Unsubscribe removes a subscription owned by this connection. Safe to call twice.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	c.bus.removeSubscription(sub)
}

// Disconnect closes all subscriptions of this connection.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, s := range subs {
		c.bus.removeSubscription(s)
	}
}

// Request assigns a private reply topic (unless one is set), subscribes to it
// and publishes msg. The caller owns the returned subscription.
func (c *Connection) Request(msg *Message) *Subscription {
	if len(msg.ReplyTo) == 0 {
		msg.ReplyTo = T("_reply", c.id, c.bus.reqID.Add(1))
	}
	sub := c.Subscribe(msg.ReplyTo)
	c.Publish(msg)
	return sub
}

// RequestWait publishes msg and blocks for the first reply or ctx expiry.
func (c *Connection) RequestWait(ctx context.Context, msg *Message) (*Message, error) {
	sub := c.Request(msg)
	defer c.Unsubscribe(sub)

	select {
	case m, ok := <-sub.Channel():
		if !ok {
			return nil, ErrNoReply
		}
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Reply answers req on its ReplyTo topic. No-op when req carries no ReplyTo.
func (c *Connection) Reply(req *Message, payload any, retained bool) {
	if !req.CanReply() {
		return
	}
	c.Publish(&Message{Topic: req.ReplyTo, Payload: payload, Retained: retained})
}
