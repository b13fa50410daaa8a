// Package indexdb keeps an optional sqlite read-model of the update
// stream. It exists for the admin recent-events endpoint and offline
// inspection; the live registry never reads from it, and losing it
// loses nothing but history.
package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"terrainview.dev/internal/protocol"
)

type EventIndex struct {
	db *sql.DB

	ch   chan row
	wg   sync.WaitGroup
	once sync.Once

	// mu serializes RecordUpdate sends against Close closing ch.
	mu     sync.RWMutex
	closed bool

	dropped atomic.Uint64

	log *log.Logger
}

type row struct {
	TS       string
	Type     string
	PlayerID string
	X        sql.NullFloat64
	Z        sql.NullFloat64
}

// EventRow is one indexed update, as returned by Recent.
type EventRow struct {
	Seq      int64    `json:"seq"`
	TS       string   `json:"ts"`
	Type     string   `json:"type"`
	PlayerID string   `json:"player_id,omitempty"`
	X        *float64 `json:"x,omitempty"`
	Z        *float64 `json:"z,omitempty"`
}

func Open(path string, logger *log.Logger) (*EventIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	ix := &EventIndex{
		db: db,
		// Generous buffer: bursty fan-out must never stall on the indexer.
		ch:  make(chan row, 8192),
		log: logger,
	}
	ix.wg.Add(1)
	go func() {
		defer ix.wg.Done()
		ix.loop()
	}()
	return ix, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			type TEXT NOT NULL,
			player_id TEXT,
			x REAL,
			z REAL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_type_seq ON events(type, seq);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (ix *EventIndex) Close() error {
	var err error
	ix.once.Do(func() {
		ix.mu.Lock()
		ix.closed = true
		close(ix.ch)
		ix.mu.Unlock()
		ix.wg.Wait()
		err = ix.db.Close()
	})
	return err
}

// RecordUpdate enqueues u for indexing. It never blocks; if the
// indexer falls behind the update is dropped (the JSONL journal
// remains the source of truth).
func (ix *EventIndex) RecordUpdate(u protocol.Update) {
	if ix == nil {
		return
	}
	r := row{TS: time.Now().UTC().Format(time.RFC3339Nano), Type: u.Kind()}
	switch m := u.(type) {
	case protocol.PlayerCreated:
		r.PlayerID = m.Player.ID
		r.X = sql.NullFloat64{Float64: m.Player.X, Valid: true}
		r.Z = sql.NullFloat64{Float64: m.Player.Z, Valid: true}
	case protocol.PlayerMoved:
		r.PlayerID = m.ID
		r.X = sql.NullFloat64{Float64: m.X, Valid: true}
		r.Z = sql.NullFloat64{Float64: m.Z, Valid: true}
	case protocol.PlayerRemoved:
		r.PlayerID = m.ID
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return
	}
	select {
	case ix.ch <- r:
	default:
		ix.dropped.Add(1)
	}
}

// DroppedTotal reports how many updates were not indexed because the
// queue was saturated.
func (ix *EventIndex) DroppedTotal() uint64 { return ix.dropped.Load() }

// Recent returns the newest limit rows, newest first.
func (ix *EventIndex) Recent(ctx context.Context, limit int) ([]EventRow, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := ix.db.QueryContext(ctx,
		`SELECT seq, ts, type, player_id, x, z FROM events ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []EventRow{}
	for rows.Next() {
		var r EventRow
		var pid sql.NullString
		var x, z sql.NullFloat64
		if err := rows.Scan(&r.Seq, &r.TS, &r.Type, &pid, &x, &z); err != nil {
			return nil, err
		}
		if pid.Valid {
			r.PlayerID = pid.String
		}
		if x.Valid {
			v := x.Float64
			r.X = &v
		}
		if z.Valid {
			v := z.Float64
			r.Z = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (ix *EventIndex) loop() {
	for r := range ix.ch {
		if _, err := ix.db.Exec(
			`INSERT INTO events (ts, type, player_id, x, z) VALUES (?, ?, ?, ?, ?)`,
			r.TS, r.Type, nullString(r.PlayerID), r.X, r.Z,
		); err != nil {
			ix.log.Printf("indexdb: insert event: %v", err)
		}
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
