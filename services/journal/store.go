// Package journal records brew runs and kiosk notifications in SQLite.
package journal

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	// SQLite driver.
	_ "github.com/mattn/go-sqlite3"
	"github.com/tebeka/atexit"

	"brewcode-go/types"
)

const defaultBatchSize = 64

const schema = `
CREATE TABLE IF NOT EXISTS transitions (
	run_id   TEXT NOT NULL,
	order_id TEXT NOT NULL,
	from_state TEXT NOT NULL,
	to_state   TEXT NOT NULL,
	stage    INTEGER NOT NULL,
	reason   TEXT,
	ts_ms    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS transitions_run ON transitions (run_id);
CREATE TABLE IF NOT EXISTS notifications (
	order_id  TEXT NOT NULL,
	status    TEXT NOT NULL,
	step      TEXT NOT NULL,
	delivered INTEGER NOT NULL,
	error     TEXT,
	ts_ms     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS notifications_order ON notifications (order_id);
`

// Store buffers journal rows and writes them in one transaction per flush.
// A flush happens when the buffer reaches the batch size, on Flush, on
// Close, and at process exit through atexit.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	batch  int
	trs    []types.Transition
	dels   []types.Delivery
	closed bool
}

// Open creates or opens the database at path. batchSize <= 0 selects the
// default.
func Open(path string, batchSize int) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	s := &Store{db: db, batch: batchSize}
	atexit.Register(func() { _ = s.Flush() })
	return s, nil
}

// AddTransition buffers a state change.
func (s *Store) AddTransition(t types.Transition) error {
	if t.TS == 0 {
		t.TS = time.Now().UnixMilli()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return sql.ErrConnDone
	}
	s.trs = append(s.trs, t)
	if s.pendingLocked() >= s.batch {
		return s.flushLocked()
	}
	return nil
}

// AddDelivery buffers the outcome of a kiosk notification.
func (s *Store) AddDelivery(d types.Delivery) error {
	if d.TS == 0 {
		d.TS = time.Now().UnixMilli()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return sql.ErrConnDone
	}
	s.dels = append(s.dels, d)
	if s.pendingLocked() >= s.batch {
		return s.flushLocked()
	}
	return nil
}

// Pending is the number of buffered rows.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingLocked()
}

func (s *Store) pendingLocked() int { return len(s.trs) + len(s.dels) }

func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	if s.pendingLocked() == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := insertTransitions(tx, s.trs); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := insertDeliveries(tx, s.dels); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.trs = s.trs[:0]
	s.dels = s.dels[:0]
	return nil
}

func insertTransitions(tx *sql.Tx, rows []types.Transition) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT INTO transitions VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, t := range rows {
		if _, err := stmt.Exec(t.RunID, t.OrderID, t.From, t.To, t.Stage, t.Reason, t.TS); err != nil {
			return err
		}
	}
	return nil
}

func insertDeliveries(tx *sql.Tx, rows []types.Delivery) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT INTO notifications VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, d := range rows {
		if _, err := stmt.Exec(d.OrderID, string(d.Status), d.Step, d.OK, d.Error, d.TS); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and closes the database. Later adds fail; later flushes
// are no-ops.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	err := s.flushLocked()
	s.closed = true
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}

// Run returns the recorded transitions of one run in insertion order.
func (s *Store) Run(runID string) ([]types.Transition, error) {
	rows, err := s.db.Query(`SELECT run_id, order_id, from_state, to_state, stage, reason, ts_ms
		FROM transitions WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.Transition
	for rows.Next() {
		var t types.Transition
		var reason sql.NullString
		if err := rows.Scan(&t.RunID, &t.OrderID, &t.From, &t.To, &t.Stage, &reason, &t.TS); err != nil {
			return nil, err
		}
		t.Reason = reason.String
		out = append(out, t)
	}
	return out, rows.Err()
}

// Deliveries returns the recorded notifications of one order.
func (s *Store) Deliveries(orderID string) ([]types.Delivery, error) {
	rows, err := s.db.Query(`SELECT order_id, status, step, delivered, error, ts_ms
		FROM notifications WHERE order_id = ? ORDER BY rowid`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.Delivery
	for rows.Next() {
		var d types.Delivery
		var status string
		var msg sql.NullString
		if err := rows.Scan(&d.OrderID, &status, &d.Step, &d.OK, &msg, &d.TS); err != nil {
			return nil, err
		}
		d.Status = types.BrewStatus(status)
		d.Error = msg.String
		out = append(out, d)
	}
	return out, rows.Err()
}
