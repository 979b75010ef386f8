// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/trace/trace.go
// Summary: SQLite recorder for inbound editor notifications.
// Usage: Install Recorder.Record as the session tap; Load and Replay a
// recorded session to rebuild its frames offline.
// Notes: Writes are batched on a background goroutine so the session pump
// never waits on disk.

package trace

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"

	"github.com/framegrace/texelnvim/client"
	"github.com/framegrace/texelnvim/protocol"
)

const traceSchema = `
CREATE TABLE IF NOT EXISTS notifications (
    seq INTEGER PRIMARY KEY,
    ts INTEGER NOT NULL,
    method TEXT NOT NULL,
    payload BLOB NOT NULL
);
`

// GapMethod marks notifications the recorder lost. Its params hold the
// number of missing notifications.
const GapMethod = "trace_gap"

// ErrIncomplete is returned by Replay for a trace with lost notifications.
var ErrIncomplete = errors.New("trace: recording is incomplete")

// Config holds recorder settings.
type Config struct {
	// DBPath is the SQLite file to write.
	DBPath string

	// BatchSize flushes once this many notifications are queued (default: 100).
	BatchSize int

	// BatchTimeout flushes a partial batch after this long (default: 2 seconds).
	BatchTimeout time.Duration

	// ChannelBuffer is the queue size between the tap and the writer (default: 1000).
	ChannelBuffer int
}

// DefaultConfig returns a config with default values.
func DefaultConfig(dbPath string) Config {
	return Config{
		DBPath:        dbPath,
		BatchSize:     100,
		BatchTimeout:  2 * time.Second,
		ChannelBuffer: 1000,
	}
}

// Entry is one recorded notification.
type Entry struct {
	Seq    int64
	Time   time.Time
	Method string
	Params []interface{}
}

type record struct {
	ts      time.Time
	method  string
	payload []byte
}

// Recorder appends notifications to a trace database.
type Recorder struct {
	db     *sql.DB
	config Config

	mu         sync.Mutex
	seq        int64
	dropped    int
	pendingGap int

	batchChan chan record
	flushCh   chan chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// Open creates or appends to the trace at path with default settings.
func Open(path string) (*Recorder, error) {
	return OpenWithConfig(DefaultConfig(path))
}

// OpenWithConfig creates or appends to a trace database.
func OpenWithConfig(config Config) (*Recorder, error) {
	if config.DBPath == "" {
		return nil, errors.New("trace: empty database path")
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.BatchTimeout <= 0 {
		config.BatchTimeout = 2 * time.Second
	}
	if config.ChannelBuffer <= 0 {
		config.ChannelBuffer = 1000
	}

	if dir := filepath.Dir(config.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create trace directory: %w", err)
		}
	}

	db, err := openDB(config.DBPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(traceSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create trace schema: %w", err)
	}

	r := &Recorder{
		db:        db,
		config:    config,
		batchChan: make(chan record, config.ChannelBuffer),
		flushCh:   make(chan chan struct{}),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	if err := db.QueryRow("SELECT COALESCE(MAX(seq), 0) FROM notifications").Scan(&r.seq); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read trace sequence: %w", err)
	}

	go r.batchWriter()
	return r, nil
}

func openDB(path string) (*sql.DB, error) {
	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to trace database: %w", err)
	}
	return db, nil
}

// Record queues one notification. It matches client.NotificationTap and
// never blocks: when the writer falls behind the notification is dropped,
// and a gap marker is queued ahead of the next one that fits.
func (r *Recorder) Record(method string, params []interface{}) {
	payload, err := msgpack.Marshal(params)
	if err != nil {
		log.Printf("[TRACE] encode %s: %v", method, err)
		r.lose(1)
		return
	}
	select {
	case <-r.stopCh:
		return
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pendingGap > 0 {
		if !r.enqueue(gapRecord(r.pendingGap)) {
			r.dropped++
			r.pendingGap++
			return
		}
		r.pendingGap = 0
	}
	if !r.enqueue(record{ts: time.Now(), method: method, payload: payload}) {
		r.dropped++
		r.pendingGap++
	}
}

func (r *Recorder) enqueue(rec record) bool {
	select {
	case r.batchChan <- rec:
		return true
	default:
		return false
	}
}

func (r *Recorder) lose(n int) {
	r.mu.Lock()
	r.dropped += n
	r.pendingGap += n
	r.mu.Unlock()
}

func gapRecord(n int) record {
	payload, _ := msgpack.Marshal([]interface{}{n})
	return record{ts: time.Now(), method: GapMethod, payload: payload}
}

// Dropped reports how many notifications were lost.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func (r *Recorder) batchWriter() {
	defer close(r.doneCh)

	batch := make([]record, 0, r.config.BatchSize)
	timer := time.NewTimer(r.config.BatchTimeout)
	defer timer.Stop()

	flush := func() {
		if len(batch) > 0 {
			r.writeBatch(batch)
			batch = batch[:0]
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(r.config.BatchTimeout)
	}

	for {
		select {
		case rec := <-r.batchChan:
			batch = append(batch, rec)
			if len(batch) >= r.config.BatchSize {
				flush()
			}

		case <-timer.C:
			if len(batch) > 0 {
				r.writeBatch(batch)
				batch = batch[:0]
			}
			timer.Reset(r.config.BatchTimeout)

		case done := <-r.flushCh:
			r.drain(&batch)
			flush()
			close(done)

		case <-r.stopCh:
			r.drain(&batch)
			if len(batch) > 0 {
				r.writeBatch(batch)
			}
			return
		}
	}
}

func (r *Recorder) drain(batch *[]record) {
	for {
		select {
		case rec := <-r.batchChan:
			*batch = append(*batch, rec)
		default:
			return
		}
	}
}

func (r *Recorder) writeBatch(batch []record) {
	tx, err := r.db.Begin()
	if err != nil {
		log.Printf("[TRACE] Failed to begin transaction: %v", err)
		r.lose(len(batch))
		return
	}

	stmt, err := tx.Prepare("INSERT INTO notifications (seq, ts, method, payload) VALUES (?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		log.Printf("[TRACE] Failed to prepare statement: %v", err)
		r.lose(len(batch))
		return
	}
	defer stmt.Close()

	seq := r.seq
	for _, rec := range batch {
		seq++
		if _, err := stmt.Exec(seq, rec.ts.UnixNano(), rec.method, rec.payload); err != nil {
			tx.Rollback()
			log.Printf("[TRACE] Failed to insert notification: %v", err)
			r.lose(len(batch))
			return
		}
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[TRACE] Failed to commit batch: %v", err)
		r.lose(len(batch))
		return
	}
	r.seq = seq
}

// Flush blocks until every queued notification is written.
func (r *Recorder) Flush() error {
	done := make(chan struct{})
	select {
	case r.flushCh <- done:
		<-done
	case <-r.doneCh:
	}
	return nil
}

// Close writes pending notifications and closes the database.
func (r *Recorder) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.stopCh)
		<-r.doneCh
		r.mu.Lock()
		gap := r.pendingGap
		r.pendingGap = 0
		r.mu.Unlock()
		if gap > 0 {
			r.writeBatch([]record{gapRecord(gap)})
		}
		err = r.db.Close()
		if n := r.Dropped(); n > 0 {
			log.Printf("[TRACE] %d notifications dropped", n)
		}
	})
	return err
}

// Load returns every notification of a trace in recording order.
func Load(path string) ([]Entry, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query("SELECT seq, ts, method, payload FROM notifications ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to query trace: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			tsNano  int64
			payload []byte
		)
		if err := rows.Scan(&e.Seq, &tsNano, &e.Method, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan trace row: %w", err)
		}
		e.Time = time.Unix(0, tsNano)
		params, err := decodeParams(payload)
		if err != nil {
			return nil, fmt.Errorf("trace entry %d: %w", e.Seq, err)
		}
		e.Params = params
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// decodeParams decodes numbers the way the session decoder does, so
// replayed redraw batches look exactly like live ones.
func decodeParams(payload []byte) ([]interface{}, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	dec.UseLooseInterfaceDecoding(true)
	raw, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	params, ok := protocol.ToArray(raw)
	if !ok {
		return nil, protocol.Malformedf("trace payload is %T", raw)
	}
	return params, nil
}

// Replay feeds the redraw entries to m and returns the last published
// frame. Other notifications are skipped. A gap marker stops the replay
// with ErrIncomplete, since the model state past it cannot be trusted.
func Replay(entries []Entry, m *client.Model) (*client.Frame, error) {
	for _, e := range entries {
		if e.Method == GapMethod {
			missing := 0
			if len(e.Params) > 0 {
				missing, _ = protocol.ToInt(e.Params[0])
			}
			return m.Frame(), fmt.Errorf("trace entry %d: %d notifications missing: %w", e.Seq, missing, ErrIncomplete)
		}
		if e.Method != protocol.RedrawMethod {
			continue
		}
		events, err := protocol.DecodeRedraw(e.Params)
		if err != nil {
			return m.Frame(), fmt.Errorf("trace entry %d: %w", e.Seq, err)
		}
		if err := m.Apply(events); err != nil {
			return m.Frame(), fmt.Errorf("trace entry %d: %w", e.Seq, err)
		}
	}
	return m.Frame(), nil
}
