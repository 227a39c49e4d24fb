package heartbeat

import (
	"context"
	"testing"
	"time"

	"brewcode-go/bus"
	"brewcode-go/types"
	"brewcode-go/x/timex"
)

func TestHeartbeatFollowsConfiguredInterval(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("test")
	conn.Publish(conn.NewMessage(bus.T("config", "heartbeat"), types.HeartbeatConfig{Interval: 10 * time.Millisecond}, true))

	sub := conn.Subscribe(TopicHeartbeat)
	defer conn.Unsubscribe(sub)

	clk := timex.NewManual(time.Unix(100, 0))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &Service{Clk: clk}
	if err := s.Start(ctx, b.NewConnection("hb")); err != nil {
		t.Fatalf("start: %v", err)
	}
	clk.Advance(1500 * time.Millisecond)

	var last types.Heartbeat
	for i := 0; i < 2; i++ {
		select {
		case m := <-sub.Channel():
			last = m.Payload.(types.Heartbeat)
		case <-time.After(time.Second):
			t.Fatal("no heartbeat at configured interval")
		}
	}
	if last.Seq != 2 {
		t.Fatalf("want seq 2, got %d", last.Seq)
	}
	if last.UptimeMs != 1500 {
		t.Fatalf("want uptime 1500ms, got %d", last.UptimeMs)
	}
}

func TestIntervalFromLegacyMap(t *testing.T) {
	iv, ok := intervalFrom(map[string]any{"interval": 2.5})
	if !ok || iv != 2500*time.Millisecond {
		t.Fatalf("got %v %v", iv, ok)
	}
	if _, ok := intervalFrom("30"); ok {
		t.Fatal("string payload should be ignored")
	}
}
