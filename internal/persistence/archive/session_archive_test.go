package archive

import (
	"os"
	"testing"
	"time"

	"conquest.ai/internal/persistence/snapshot"
)

func TestArchiveSession_CopiesFinalSnapshot(t *testing.T) {
	dir := t.TempDir()
	snap := snapshot.SnapshotV1{
		Header:  snapshot.Header{Version: 1, SessionID: "S1", Tick: 9, Digest: "d9"},
		Address: "0xA",
		Territories: []snapshot.TerritoryV1{
			{X: 0, Y: 0, Owner: "0xA", Level: 2},
			{X: 1, Y: 0},
		},
		Leaderboard: []snapshot.LeaderV1{{Address: "0xB", Earned: 1}, {Address: "0xA", Earned: 0.25}},
		Counters:    snapshot.CountersV1{Claims: 3, Upgrades: 1},
	}
	src := snapshot.Path(dir, "S1", 9)
	if err := snapshot.WriteSnapshot(src, snap); err != nil {
		t.Fatalf("write: %v", err)
	}

	archived, metaPath, err := ArchiveSession(dir, "bot", src, snap, time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	got, err := snapshot.ReadSnapshot(archived)
	if err != nil {
		t.Fatalf("read archived: %v", err)
	}
	if got.Header.Tick != 9 || got.Owned() != 1 {
		t.Fatalf("archived snapshot=%+v", got.Header)
	}
	if _, err := os.Stat(metaPath); err != nil {
		t.Fatalf("meta.json: %v", err)
	}

	meta, err := ReadMeta(dir, "S1")
	if err != nil {
		t.Fatalf("read meta: %v", err)
	}
	if meta.ClientName != "bot" || meta.FinalTick != 9 || meta.Owned != 1 || meta.Claims != 3 {
		t.Fatalf("meta=%+v", meta)
	}
	if meta.Earned != 0.25 || meta.Snapshot != "final.snap.zst" {
		t.Fatalf("meta=%+v", meta)
	}
}

func TestArchiveSession_RequiresSessionID(t *testing.T) {
	if _, _, err := ArchiveSession(t.TempDir(), "", "missing", snapshot.SnapshotV1{}, time.Now()); err == nil {
		t.Fatalf("expected error")
	}
}
