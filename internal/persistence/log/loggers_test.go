package log

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"conquest.ai/internal/sim/world"
)

func TestTickLoggerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	for i := 1; i <= 3; i++ {
		if err := l.WriteTick(world.TickLogEntry{SessionID: "s", Tick: uint64(i), Earned: 0.001 * float64(i)}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	path := l.Writer().CurrentPath()
	if !strings.HasPrefix(path, filepath.Join(dir, "events", "events-")) || !strings.HasSuffix(path, ".jsonl.zst") {
		t.Fatalf("unexpected path %q", path)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var got []world.TickLogEntry
	err := ReadJSONL(path, func(line json.RawMessage) error {
		var e world.TickLogEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		got = append(got, e)
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 3 || got[0].Tick != 1 || got[2].Tick != 3 {
		t.Fatalf("unexpected entries: %+v", got)
	}
}

func TestWriterRotatesHourly(t *testing.T) {
	dir := t.TempDir()
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	var closed []string
	w := NewJSONLZstdWriter(dir, "audit").WithClock(func() time.Time { return clock })
	w.OnClose(func(p string) { closed = append(closed, p) })

	if err := w.Write(map[string]int{"n": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	first := w.CurrentPath()
	clock = clock.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"n": 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	second := w.CurrentPath()
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if filepath.Base(first) != "audit-2026-03-01-10.jsonl.zst" || filepath.Base(second) != "audit-2026-03-01-11.jsonl.zst" {
		t.Fatalf("paths: %q %q", first, second)
	}
	if len(closed) != 2 || closed[0] != first || closed[1] != second {
		t.Fatalf("closed=%v", closed)
	}
	if w.Lines() != 2 {
		t.Fatalf("lines=%d want 2", w.Lines())
	}
	for _, p := range []string{first, second} {
		n := 0
		if err := ReadJSONL(p, func(json.RawMessage) error { n++; return nil }); err != nil {
			t.Fatalf("read %s: %v", p, err)
		}
		if n != 1 {
			t.Fatalf("%s has %d lines, want 1", p, n)
		}
	}
}

func TestAuditLoggerAppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	clock := func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	for i := 0; i < 2; i++ {
		l := NewAuditLogger(dir)
		l.Writer().WithClock(clock)
		if err := l.WriteAudit(world.AuditEntry{TxID: "tx", Action: "CLAIM", Pos: [2]int{i, i}}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := l.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}

	path := filepath.Join(dir, "audit", "audit-2026-03-01-12.jsonl.zst")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat: %v", err)
	}
	var pos [][2]int
	err := ReadJSONL(path, func(line json.RawMessage) error {
		var e world.AuditEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		pos = append(pos, e.Pos)
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(pos) != 2 || pos[1] != [2]int{1, 1} {
		t.Fatalf("unexpected entries: %v", pos)
	}
}
