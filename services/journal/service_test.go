package journal

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"brewcode-go/bus"
	"brewcode-go/services/brew"
	"brewcode-go/services/kiosk"
	"brewcode-go/types"
)

var _ = Describe("Service", func() {
	var (
		b      *bus.Bus
		conn   *bus.Connection
		cancel context.CancelFunc
		done   chan struct{}
		path   string
	)

	BeforeEach(func() {
		b = bus.NewBus(16)
		conn = b.NewConnection("test")
		path = filepath.Join(GinkgoT().TempDir(), "runs.db")

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan struct{})
		svc := New(b.NewConnection("journal"), nil)
		go func() {
			svc.Run(ctx)
			close(done)
		}()
	})

	AfterEach(func() {
		cancel()
		Eventually(done).Should(BeClosed())
	})

	publish := func(t bus.Topic, v any, retained bool) {
		conn.Publish(conn.NewMessage(t, v, retained))
	}

	rowsOf := func(runID string) func() []types.Transition {
		return func() []types.Transition {
			st, err := Open(path, 0)
			if err != nil {
				return nil
			}
			defer st.Close()
			rows, _ := st.Run(runID)
			return rows
		}
	}

	It("flushes a run when it returns to idle", func() {
		publish(bus.T("config", "journal"), types.JournalConfig{Path: path, BatchSize: 100}, true)

		steps := []types.Transition{
			{RunID: "r", OrderID: "o", From: brew.StateIdle, To: brew.StateEntry},
			{RunID: "r", OrderID: "o", From: brew.StateEntry, To: "stage1", Stage: 1},
		}
		// Config is applied asynchronously; keep publishing until the first row lands.
		Eventually(func() []types.Transition {
			publish(brew.TopicTransition(), steps[0], false)
			publish(brew.TopicTransition(), types.Transition{RunID: "r", OrderID: "o", From: brew.StateFinalizing, To: brew.StateIdle}, false)
			return rowsOf("r")()
		}, 2*time.Second, 50*time.Millisecond).ShouldNot(BeEmpty())

		publish(brew.TopicTransition(), types.Transition{RunID: "r2", OrderID: "o2", From: brew.StateIdle, To: brew.StateEntry}, false)
		publish(brew.TopicTransition(), steps[1], false)
		Consistently(rowsOf("r2"), 200*time.Millisecond).Should(BeEmpty())

		publish(brew.TopicTransition(), types.Transition{RunID: "r2", OrderID: "o2", From: brew.StateFinalizing, To: brew.StateIdle}, false)
		Eventually(rowsOf("r2")).Should(HaveLen(2))
	})

	It("records deliveries", func() {
		publish(bus.T("config", "journal"), types.JournalConfig{Path: path}, true)

		Eventually(func() int {
			publish(kiosk.TopicDelivery(), types.Delivery{OrderID: "d", Status: types.StatusCompleted, Step: "completed", OK: true}, false)
			publish(brew.TopicTransition(), types.Transition{RunID: "x", To: brew.StateIdle}, false)
			st, err := Open(path, 0)
			if err != nil {
				return 0
			}
			defer st.Close()
			dels, _ := st.Deliveries("d")
			return len(dels)
		}, 2*time.Second, 50*time.Millisecond).Should(BeNumerically(">=", 1))
	})

	It("keeps transitions queued at shutdown", func() {
		publish(bus.T("config", "journal"), types.JournalConfig{Path: path, BatchSize: 100}, true)
		Eventually(func() []types.Transition {
			publish(brew.TopicTransition(), types.Transition{RunID: "ready", To: brew.StateIdle}, false)
			return rowsOf("ready")()
		}, 2*time.Second, 50*time.Millisecond).ShouldNot(BeEmpty())

		publish(brew.TopicTransition(), types.Transition{RunID: "s", OrderID: "o", From: "stage3", To: brew.StateIdle, Reason: "abort: shutdown"}, false)
		publish(brew.TopicTransition(), types.Transition{RunID: "s", OrderID: "o", From: brew.StateIdle, To: brew.StateEntry}, false)
		cancel()
		Eventually(done).Should(BeClosed())

		Expect(rowsOf("s")()).To(HaveLen(2))
	})

	It("stays idle without a path", func() {
		publish(bus.T("config", "journal"), types.JournalConfig{}, true)
		publish(brew.TopicTransition(), types.Transition{RunID: "n", To: brew.StateIdle}, false)
		Consistently(func() bool {
			matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.db"))
			return err == nil && len(matches) == 0
		}, 200*time.Millisecond).Should(BeTrue())
	})
})
