package journal

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"brewcode-go/types"
)

var _ = Describe("Store", func() {
	var (
		path  string
		store *Store
	)

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "journal.db")
		var err error
		store, err = Open(path, 4)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	It("buffers rows until flushed", func() {
		Expect(store.AddTransition(types.Transition{RunID: "r1", OrderID: "o1", From: "idle", To: "entry_active"})).To(Succeed())
		Expect(store.Pending()).To(Equal(1))

		rows, err := store.Run("r1")
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(BeEmpty())

		Expect(store.Flush()).To(Succeed())
		Expect(store.Pending()).To(Equal(0))

		rows, err = store.Run("r1")
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(1))
		Expect(rows[0].To).To(Equal("entry_active"))
		Expect(rows[0].TS).NotTo(BeZero())
	})

	It("flushes on its own when the batch fills", func() {
		for i, to := range []string{"entry_active", "stage1", "stage2"} {
			Expect(store.AddTransition(types.Transition{RunID: "r2", OrderID: "o2", To: to, Stage: i})).To(Succeed())
		}
		Expect(store.AddDelivery(types.Delivery{OrderID: "o2", Status: types.StatusPreparing, Step: "order_received", OK: true})).To(Succeed())
		Expect(store.Pending()).To(Equal(0))

		rows, err := store.Run("r2")
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(3))
		Expect(rows[2].To).To(Equal("stage2"))
		Expect(rows[2].Stage).To(Equal(2))

		dels, err := store.Deliveries("o2")
		Expect(err).NotTo(HaveOccurred())
		Expect(dels).To(ConsistOf(HaveField("Step", "order_received")))
		Expect(dels[0].OK).To(BeTrue())
		Expect(dels[0].Status).To(Equal(types.StatusPreparing))
	})

	It("keeps failed deliveries with their error", func() {
		Expect(store.AddDelivery(types.Delivery{OrderID: "o3", Status: types.StatusBrewing, Step: "brewing", Error: "unreachable"})).To(Succeed())
		Expect(store.Flush()).To(Succeed())

		dels, err := store.Deliveries("o3")
		Expect(err).NotTo(HaveOccurred())
		Expect(dels).To(HaveLen(1))
		Expect(dels[0].OK).To(BeFalse())
		Expect(dels[0].Error).To(Equal("unreachable"))
	})

	It("writes buffered rows on close", func() {
		Expect(store.AddTransition(types.Transition{RunID: "r4", To: "idle"})).To(Succeed())
		Expect(store.Close()).To(Succeed())
		Expect(store.AddTransition(types.Transition{RunID: "r4"})).NotTo(Succeed())
		Expect(store.Flush()).To(Succeed())

		reopened, err := Open(path, 0)
		Expect(err).NotTo(HaveOccurred())
		defer reopened.Close()
		rows, err := reopened.Run("r4")
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(1))
	})
})
