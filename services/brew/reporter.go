package brew

import (
	"brewcode-go/bus"
	"brewcode-go/types"
)

var _ Reporter = busReporter{}

// busReporter publishes notifications on brew/status for the kiosk
// uplink and the journal.
type busReporter struct {
	conn *bus.Connection
}

func (r busReporter) Report(u types.StatusUpdate) error {
	r.conn.Publish(r.conn.NewMessage(TopicStatus(), u, false))
	return nil
}
