package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
)

// Reader runs the admin queries against an index file. It never writes.
type Reader struct {
	db *sql.DB
}

func OpenReader(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

type LeaderRow struct {
	Address  string  `json:"address"`
	Earned   float64 `json:"earned"`
	Sessions int     `json:"sessions"`
}

// Leaderboard sums accrued yield per address across every indexed session.
func (r *Reader) Leaderboard(ctx context.Context, limit int) ([]LeaderRow, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT address, SUM(earned) AS total, COUNT(DISTINCT session_id)
		FROM ticks
		WHERE address != '' AND earned > 0
		GROUP BY address
		ORDER BY total DESC, address ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LeaderRow
	for rows.Next() {
		var l LeaderRow
		if err := rows.Scan(&l.Address, &l.Earned, &l.Sessions); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type AuditRow struct {
	SessionID   string  `json:"session_id"`
	TxID        string  `json:"tx_id"`
	Tick        uint64  `json:"tick"`
	TimeMs      int64   `json:"time_ms"`
	Actor       string  `json:"actor"`
	Action      string  `json:"action"`
	X           int     `json:"x"`
	Y           int     `json:"y"`
	OwnerBefore string  `json:"owner_before,omitempty"`
	OwnerAfter  string  `json:"owner_after"`
	Price       float64 `json:"price"`
	Yield       float64 `json:"yield"`
	Level       int     `json:"level"`
	Powerup     string  `json:"powerup,omitempty"`
}

// CellHistory lists the applied changes to one territory, newest first.
func (r *Reader) CellHistory(ctx context.Context, x, y, limit int) ([]AuditRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, tx_id, tick, time_ms, actor, action, x, y, owner_before, owner_after, price, yield, level, powerup
		FROM audits
		WHERE x = ? AND y = ?
		ORDER BY time_ms DESC, tx_id DESC
		LIMIT ?`, x, y, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditRow
	for rows.Next() {
		var a AuditRow
		var tick int64
		if err := rows.Scan(&a.SessionID, &a.TxID, &tick, &a.TimeMs, &a.Actor, &a.Action, &a.X, &a.Y,
			&a.OwnerBefore, &a.OwnerAfter, &a.Price, &a.Yield, &a.Level, &a.Powerup); err != nil {
			return nil, err
		}
		a.Tick = uint64(tick)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Sessions lists sessions, most recently started first.
func (r *Reader) Sessions(ctx context.Context, limit int) ([]SessionInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, client_name, remote, started_at_ms,
			COALESCE(ended_at_ms, 0), COALESCE(address, ''), COALESCE(last_tick, 0)
		FROM sessions
		ORDER BY started_at_ms DESC, session_id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SessionInfo
	for rows.Next() {
		var s SessionInfo
		var last int64
		if err := rows.Scan(&s.SessionID, &s.ClientName, &s.Remote, &s.StartedAt, &s.EndedAt, &s.Address, &last); err != nil {
			return nil, err
		}
		s.LastTick = uint64(last)
		out = append(out, s)
	}
	return out, rows.Err()
}

type SnapshotRow struct {
	SessionID string `json:"session_id"`
	Tick      uint64 `json:"tick"`
	Path      string `json:"path"`
	Address   string `json:"address,omitempty"`
	Digest    string `json:"digest"`
	Owned     int    `json:"owned"`
}

// Snapshots lists the snapshots recorded for a session, newest first.
func (r *Reader) Snapshots(ctx context.Context, sessionID string) ([]SnapshotRow, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("empty session id")
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, tick, path, address, digest, owned
		FROM snapshots WHERE session_id = ? ORDER BY tick DESC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SnapshotRow
	for rows.Next() {
		var s SnapshotRow
		var tick int64
		if err := rows.Scan(&s.SessionID, &tick, &s.Path, &s.Address, &s.Digest, &s.Owned); err != nil {
			return nil, err
		}
		s.Tick = uint64(tick)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Tuning returns the stored tuning JSON and its digest.
func (r *Reader) Tuning(ctx context.Context) (digest, raw string, err error) {
	err = r.db.QueryRowContext(ctx, `SELECT digest, json FROM configs WHERE name = 'tuning'`).Scan(&digest, &raw)
	return digest, raw, err
}
