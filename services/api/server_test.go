package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"brewcode-go/bus"
	"brewcode-go/errcode"
	"brewcode-go/services/brew"
	"brewcode-go/services/hal"
	"brewcode-go/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBrew answers brew requests with fixed replies and records payloads.
func fakeBrew(ctx context.Context, conn *bus.Connection, replies map[string]any, got chan<- any) {
	orders := conn.Subscribe(brew.TopicOrder())
	trig := conn.Subscribe(brew.TopicTrigger())
	abort := conn.Subscribe(brew.TopicAbort())
	go func() {
		for {
			var m *bus.Message
			var key string
			select {
			case <-ctx.Done():
				return
			case m = <-orders.Channel():
				key = "order"
			case m = <-trig.Channel():
				key = "trigger"
			case m = <-abort.Channel():
				key = "abort"
			}
			got <- m.Payload
			conn.Reply(m, replies[key], false)
		}
	}()
}

func setup(t *testing.T, replies map[string]any) (*httptest.Server, *bus.Connection, chan any) {
	t.Helper()
	b := bus.NewBus(16)
	conn := b.NewConnection("test")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	got := make(chan any, 4)
	fakeBrew(ctx, b.NewConnection("brew"), replies, got)

	s := New(b.NewConnection("api"), nil)
	s.SetAPIKey("k3y")
	go s.Run(ctx)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, conn, got
}

func TestOrderRoundTrip(t *testing.T) {
	srv, _, got := setup(t, map[string]any{"order": types.OKReply{OK: true}})
	c := NewClient(srv.URL, "k3y")

	id, err := c.Order(context.Background(), "A-1")
	require.NoError(t, err)
	assert.Equal(t, "A-1", id)
	assert.Equal(t, types.OrderReceived{OrderID: "A-1"}, <-got)

	id, err = c.Order(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "local-"), id)
	<-got
}

func TestBusyMapsToConflict(t *testing.T) {
	srv, _, got := setup(t, map[string]any{"order": types.ErrorReply{Error: string(errcode.Busy)}})

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/orders", strings.NewReader(`{"orderId":"B"}`))
	req.Header.Set("Authorization", "Bearer k3y")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	<-got

	_, err = NewClient(srv.URL, "k3y").Order(context.Background(), "B")
	assert.Equal(t, errcode.Busy, errcode.Of(err))
}

func TestTriggerRejection(t *testing.T) {
	srv, _, got := setup(t, map[string]any{"trigger": types.ErrorReply{Error: string(errcode.UnknownPin)}})
	err := NewClient(srv.URL, "k3y").Trigger(context.Background(), types.Trigger{Action: types.ActionCompletionSignal, LedPin: 7})
	assert.Equal(t, errcode.UnknownPin, errcode.Of(err))
	tr := (<-got).(types.Trigger)
	assert.Equal(t, 7, tr.LedPin)
	assert.NotEmpty(t, tr.ID)
}

func TestAbortWithoutBody(t *testing.T) {
	srv, _, got := setup(t, map[string]any{"abort": types.OKReply{OK: true}})
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/abort", nil)
	req.Header.Set("X-API-Key", "k3y")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, types.Abort{Reason: "api"}, <-got)
}

func TestAuth(t *testing.T) {
	srv, _, _ := setup(t, nil)

	resp, err := http.Get(srv.URL + "/api/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, err = NewClient(srv.URL, "wrong").State(context.Background())
	assert.Equal(t, errcode.Unauthorized, errcode.Of(err))

	// Health is open.
	resp, err = http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStateAndLevelFollowBus(t *testing.T) {
	srv, conn, _ := setup(t, nil)
	c := NewClient(srv.URL, "k3y")

	_, err := c.State(context.Background())
	assert.Equal(t, errcode.NotRunning, errcode.Of(err))

	conn.Publish(conn.NewMessage(brew.TopicState(), types.BrewState{State: "stage2", OrderID: "X", Stage: 2}, true))
	conn.Publish(conn.NewMessage(hal.CapValue("env", "level", types.DevLevel), types.LevelValue{Percent: 42}, true))

	require.Eventually(t, func() bool {
		st, err := c.State(context.Background())
		return err == nil && st.State == "stage2" && st.OrderID == "X"
	}, time.Second, 10*time.Millisecond)

	var lv types.LevelValue
	require.Eventually(t, func() bool {
		return c.do(context.Background(), http.MethodGet, "/api/level", nil, &lv) == nil
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, uint8(42), lv.Percent)
}
