package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"conquest.ai/internal/persistence/snapshot"
)

// SessionMeta summarizes a finished session next to its final snapshot.
type SessionMeta struct {
	SessionID  string  `json:"session_id"`
	ClientName string  `json:"client_name,omitempty"`
	Address    string  `json:"address,omitempty"`
	FinalTick  uint64  `json:"final_tick"`
	Digest     string  `json:"digest,omitempty"`
	Owned      int     `json:"owned"`
	Earned     float64 `json:"earned"`
	Claims     uint64  `json:"claims"`
	Upgrades   uint64  `json:"upgrades"`
	Powerups   uint64  `json:"powerups"`
	Failures   uint64  `json:"failures"`
	Snapshot   string  `json:"snapshot"`
	ArchivedAt string  `json:"archived_at"`
}

// Dir is where a session's archive lives under the data directory.
func Dir(dataDir, sessionID string) string {
	return filepath.Join(dataDir, "archive", sessionID)
}

// ArchiveSession copies the session's last snapshot into <data>/archive/<session>/
// and writes meta.json beside it. It returns both paths.
func ArchiveSession(dataDir, clientName, snapshotPath string, snap snapshot.SnapshotV1, now time.Time) (archivedPath, metaPath string, err error) {
	if snap.Header.SessionID == "" {
		return "", "", fmt.Errorf("snapshot has no session id")
	}
	dir := Dir(dataDir, snap.Header.SessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}

	archivedPath = filepath.Join(dir, "final.snap.zst")
	if err := copyFile(snapshotPath, archivedPath); err != nil {
		return "", "", err
	}

	meta := SessionMeta{
		SessionID:  snap.Header.SessionID,
		ClientName: clientName,
		Address:    snap.Address,
		FinalTick:  snap.Header.Tick,
		Digest:     snap.Header.Digest,
		Owned:      snap.Owned(),
		Claims:     snap.Counters.Claims,
		Upgrades:   snap.Counters.Upgrades,
		Powerups:   snap.Counters.Powerups,
		Failures:   snap.Counters.Failures,
		Snapshot:   filepath.Base(archivedPath),
		ArchivedAt: now.UTC().Format(time.RFC3339Nano),
	}
	for _, l := range snap.Leaderboard {
		if l.Address == snap.Address {
			meta.Earned = l.Earned
		}
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", "", err
	}
	metaPath = filepath.Join(dir, "meta.json")
	if err := os.WriteFile(metaPath, b, 0o644); err != nil {
		return "", "", err
	}
	return archivedPath, metaPath, nil
}

// ReadMeta loads a session's meta.json.
func ReadMeta(dataDir, sessionID string) (SessionMeta, error) {
	var m SessionMeta
	b, err := os.ReadFile(filepath.Join(Dir(dataDir, sessionID), "meta.json"))
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
