package kiosk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"brewcode-go/bus"
	"brewcode-go/services/brew"
	"brewcode-go/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKiosk serves one queued order and records posted statuses.
type fakeKiosk struct {
	mu       sync.Mutex
	order    string
	posted   []types.StatusUpdate
	orderHit int
}

func (f *fakeKiosk) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case r.URL.Path == "/api/hardware/orders":
		f.orderHit++
		if f.order == "" {
			w.Write([]byte(`{"success":true,"order":null}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "order": map[string]any{"orderId": f.order, "drinkName": "Latte"}})
		f.order = ""
	case r.URL.Path == "/api/hardware/trigger":
		w.Write([]byte(`{"success":true,"command":null}`))
	case r.URL.Path == "/api/hardware/status" && r.Method == http.MethodPost:
		var u types.StatusUpdate
		json.NewDecoder(r.Body).Decode(&u)
		f.posted = append(f.posted, u)
		w.Write([]byte(`{"success":true}`))
	default:
		w.Write([]byte(`{"success":true}`))
	}
}

func (f *fakeKiosk) snapshot() (int, []types.StatusUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orderHit, append([]types.StatusUpdate(nil), f.posted...)
}

func startKiosk(t *testing.T, fk *fakeKiosk) (*bus.Connection, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(fk)
	t.Cleanup(srv.Close)

	b := bus.NewBus(32)
	conn := b.NewConnection("test")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := testKioskConfig(srv.URL)
	cfg.PollInterval = 10 * time.Millisecond
	cfg.CommandPollInterval = 10 * time.Millisecond
	conn.Publish(conn.NewMessage(T("config", "kiosk"), cfg, true))

	New(b.NewConnection("kiosk"), nil, nil).Start(ctx)
	return conn, srv
}

func TestOrdersPolledOnlyWhenIdle(t *testing.T) {
	fk := &fakeKiosk{order: "K-77"}
	conn, _ := startKiosk(t, fk)

	orders := conn.Subscribe(brew.TopicOrder())
	defer conn.Unsubscribe(orders)

	// No brew/state yet: not idle, no polling.
	time.Sleep(50 * time.Millisecond)
	hits, _ := fk.snapshot()
	assert.Zero(t, hits)

	conn.Publish(conn.NewMessage(brew.TopicState(), types.BrewState{State: "idle"}, true))

	select {
	case m := <-orders.Channel():
		o := m.Payload.(types.OrderReceived)
		assert.Equal(t, "K-77", o.OrderID)
		assert.Equal(t, "Latte", o.DrinkName)
		conn.Reply(m, types.OKReply{OK: true}, false)
	case <-time.After(time.Second):
		t.Fatal("order was not forwarded")
	}

	// Accepted order marks the uplink busy until brew/state says idle.
	time.Sleep(20 * time.Millisecond)
	h1, _ := fk.snapshot()
	time.Sleep(50 * time.Millisecond)
	h2, _ := fk.snapshot()
	assert.Equal(t, h1, h2)
}

func TestStatusForwarded(t *testing.T) {
	fk := &fakeKiosk{}
	conn, _ := startKiosk(t, fk)
	deliveries := conn.Subscribe(TopicDelivery())
	defer conn.Unsubscribe(deliveries)

	u := types.StatusUpdate{OrderID: "A", Status: types.StatusPreparing, Step: "preparing_cup", HardwareID: "esp32-001"}
	// Give the service time to apply config/kiosk.
	time.Sleep(20 * time.Millisecond)
	conn.Publish(conn.NewMessage(brew.TopicStatus(), u, false))

	select {
	case m := <-deliveries.Channel():
		d := m.Payload.(types.Delivery)
		assert.True(t, d.OK, "delivery error %q", d.Error)
		assert.Equal(t, "preparing_cup", d.Step)
	case <-time.After(time.Second):
		t.Fatal("no delivery report")
	}
	_, posted := fk.snapshot()
	require.Len(t, posted, 1)
	assert.Equal(t, u, posted[0])
}

func TestRejectedOrderReportedAsError(t *testing.T) {
	fk := &fakeKiosk{order: "K-8"}
	conn, _ := startKiosk(t, fk)
	orders := conn.Subscribe(brew.TopicOrder())
	defer conn.Unsubscribe(orders)
	conn.Publish(conn.NewMessage(brew.TopicState(), types.BrewState{State: "idle"}, true))

	select {
	case m := <-orders.Channel():
		conn.Reply(m, types.ErrorReply{OK: false, Error: "busy"}, false)
	case <-time.After(time.Second):
		t.Fatal("order was not forwarded")
	}

	require.Eventually(t, func() bool {
		_, posted := fk.snapshot()
		return len(posted) == 1 && posted[0].Error && posted[0].OrderID == "K-8" && posted[0].Message == "busy"
	}, time.Second, 10*time.Millisecond)
}
