package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"conquest.ai/internal/persistence/snapshot"
	"conquest.ai/internal/sim/tuning"
	"conquest.ai/internal/sim/world"
)

// SQLiteIndex is a secondary, queryable copy of the session logs.
// Writes are queued to a single writer goroutine and dropped when it falls
// behind; the JSONL logs remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	// mu guards closed and the send on the queue against Close.
	mu     sync.RWMutex
	closed bool

	dropTick     atomic.Uint64
	dropAudit    atomic.Uint64
	dropSnapshot atomic.Uint64
	dropSession  atomic.Uint64
	writeErrors  atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
	reqSnapshot
	reqSessionStart
	reqSessionEnd
)

type req struct {
	kind reqKind

	tick     world.TickLogEntry
	audit    world.AuditEntry
	snapshot snapshotRow
	session  SessionInfo
}

type snapshotRow struct {
	SessionID string
	Tick      uint64
	Path      string
	Address   string
	Digest    string
	Owned     int
	Claims    uint64
	Failures  uint64
	Cancelled uint64
}

// SessionInfo describes one websocket session.
type SessionInfo struct {
	SessionID  string `json:"session_id"`
	ClientName string `json:"client_name,omitempty"`
	Remote     string `json:"remote,omitempty"`
	StartedAt  int64  `json:"started_at_ms"`
	EndedAt    int64  `json:"ended_at_ms,omitempty"`
	Address    string `json:"address,omitempty"`
	LastTick   uint64 `json:"last_tick,omitempty"`
}

// QueueStats reports the writer queue and the entries lost to backpressure.
type QueueStats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	DropTickTotal     uint64 `json:"drop_tick_total"`
	DropAuditTotal    uint64 `json:"drop_audit_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
	DropSessionTotal  uint64 `json:"drop_session_total"`
	WriteErrorTotal   uint64 `json:"write_error_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func openDB(path string) (*sql.DB, error) {
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
	return db, nil
}

func initPragmas(db *sql.DB) error {
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
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS configs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			client_name TEXT NOT NULL,
			remote TEXT NOT NULL,
			started_at_ms INTEGER NOT NULL,
			ended_at_ms INTEGER,
			address TEXT,
			last_tick INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			session_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			time_ms INTEGER NOT NULL,
			address TEXT NOT NULL,
			earned REAL NOT NULL,
			owned INTEGER NOT NULL,
			digest TEXT NOT NULL,
			PRIMARY KEY (session_id, tick)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_ticks_address ON ticks(address);`,
		`CREATE TABLE IF NOT EXISTS audits (
			session_id TEXT NOT NULL,
			tx_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			time_ms INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			owner_before TEXT NOT NULL,
			owner_after TEXT NOT NULL,
			price REAL NOT NULL,
			yield REAL NOT NULL,
			level INTEGER NOT NULL,
			powerup TEXT NOT NULL,
			reason TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (session_id, tx_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_pos_time ON audits(x, y, time_ms);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor ON audits(actor, time_ms);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			session_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			path TEXT NOT NULL,
			address TEXT NOT NULL,
			digest TEXT NOT NULL,
			owned INTEGER NOT NULL,
			claims INTEGER NOT NULL,
			failures INTEGER NOT NULL,
			cancelled INTEGER NOT NULL,
			PRIMARY KEY (session_id, tick)
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil {
		return nil
	}
	s.enqueue(req{kind: reqTick, tick: entry}, &s.dropTick)
	return nil
}

func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if s == nil {
		return nil
	}
	s.enqueue(req{kind: reqAudit, audit: entry}, &s.dropAudit)
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: snapshotRow{
		SessionID: snap.Header.SessionID,
		Tick:      snap.Header.Tick,
		Path:      path,
		Address:   snap.Address,
		Digest:    snap.Header.Digest,
		Owned:     snap.Owned(),
		Claims:    snap.Counters.Claims,
		Failures:  snap.Counters.Failures,
		Cancelled: snap.Counters.Cancelled,
	}}, &s.dropSnapshot)
}

func (s *SQLiteIndex) RecordSessionStart(info SessionInfo) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqSessionStart, session: info}, &s.dropSession)
}

// RecordSessionEnd fills in the end time, last address and tick of a session.
func (s *SQLiteIndex) RecordSessionEnd(info SessionInfo) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqSessionEnd, session: info}, &s.dropSession)
}

func (s *SQLiteIndex) Stats() QueueStats {
	if s == nil {
		return QueueStats{}
	}
	return QueueStats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropTickTotal:     s.dropTick.Load(),
		DropAuditTotal:    s.dropAudit.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
		DropSessionTotal:  s.dropSession.Load(),
		WriteErrorTotal:   s.writeErrors.Load(),
	}
}

// UpsertTuning stores the tuning the server actually runs with.
// It writes synchronously; call it once at startup.
func (s *SQLiteIndex) UpsertTuning(t tuning.Tuning) error {
	if s == nil {
		return nil
	}
	name, digest, raw, err := tuningRow(t)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO configs(name,digest,json,updated_at) VALUES(?,?,?,?)`,
		name, digest, string(raw), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

func tuningRow(t tuning.Tuning) (name, digest string, raw []byte, err error) {
	raw, err = json.Marshal(t)
	if err != nil {
		return "", "", nil, err
	}
	sum := sha256.Sum256(raw)
	return "tuning", hex.EncodeToString(sum[:]), raw, nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	stmts := map[reqKind]*sql.Stmt{}
	prepare := func(k reqKind, q string) {
		if st, err := s.db.Prepare(q); err == nil {
			stmts[k] = st
		}
	}
	prepare(reqTick, `INSERT OR REPLACE INTO ticks(session_id,tick,time_ms,address,earned,owned,digest) VALUES(?,?,?,?,?,?,?)`)
	prepare(reqAudit, `INSERT OR REPLACE INTO audits(session_id,tx_id,tick,time_ms,actor,action,x,y,owner_before,owner_after,price,yield,level,powerup,reason,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	prepare(reqSnapshot, `INSERT OR REPLACE INTO snapshots(session_id,tick,path,address,digest,owned,claims,failures,cancelled) VALUES(?,?,?,?,?,?,?,?,?)`)
	prepare(reqSessionStart, `INSERT OR REPLACE INTO sessions(session_id,client_name,remote,started_at_ms) VALUES(?,?,?,?)`)
	prepare(reqSessionEnd, `UPDATE sessions SET ended_at_ms=?, address=?, last_tick=? WHERE session_id=?`)
	defer func() {
		for _, st := range stmts {
			_ = st.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
	)
	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeErrors.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			s.writeErrors.Add(1)
			continue
		}
		st := stmts[r.kind]
		if st == nil {
			continue
		}
		if _, err := tx.Stmt(st).Exec(args(r)...); err != nil {
			s.writeErrors.Add(1)
			rollback()
			continue
		}
		opCount++
		// Session rows are read by the admin tool while the server runs.
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || r.kind == reqSessionStart || r.kind == reqSessionEnd {
			commit()
		}
	}
	commit()
}

func args(r req) []any {
	switch r.kind {
	case reqTick:
		t := r.tick
		return []any{t.SessionID, int64(t.Tick), t.TimeMs, t.Address, t.Earned, t.Owned, t.Digest}
	case reqAudit:
		a := r.audit
		raw, _ := json.Marshal(a)
		return []any{a.SessionID, a.TxID, int64(a.Tick), a.TimeMs, a.Actor, a.Action, a.Pos[0], a.Pos[1],
			a.OwnerBefore, a.OwnerAfter, a.Price, a.Yield, a.Level, a.Powerup, a.Reason, string(raw)}
	case reqSnapshot:
		sn := r.snapshot
		return []any{sn.SessionID, int64(sn.Tick), sn.Path, sn.Address, sn.Digest, sn.Owned,
			int64(sn.Claims), int64(sn.Failures), int64(sn.Cancelled)}
	case reqSessionStart:
		si := r.session
		return []any{si.SessionID, si.ClientName, si.Remote, si.StartedAt}
	case reqSessionEnd:
		si := r.session
		return []any{si.EndedAt, si.Address, int64(si.LastTick), si.SessionID}
	}
	return nil
}
