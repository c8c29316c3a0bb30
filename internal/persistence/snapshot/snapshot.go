package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version      int    `json:"version"`
	SessionID    string `json:"session_id"`
	Tick         uint64 `json:"tick"`
	ExportedAtMs int64  `json:"exported_at_ms"`
	Digest       string `json:"digest,omitempty"`
}

// SnapshotV1 is an export of one session for inspection. The server never reads it back.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Address string  `json:"address,omitempty"`
	Balance float64 `json:"balance"`

	Params ParamsV1 `json:"params"`

	Territories []TerritoryV1 `json:"territories"`
	Leaderboard []LeaderV1    `json:"leaderboard"`

	Counters CountersV1 `json:"counters"`
}

type ParamsV1 struct {
	InitialPrice       float64 `json:"initial_price"`
	PriceMultiplier    float64 `json:"price_multiplier"`
	BaseYield          float64 `json:"base_yield"`
	UpgradeYieldFactor float64 `json:"upgrade_yield_factor"`
	UpgradeCost        float64 `json:"upgrade_cost"`
	PowerupCost        float64 `json:"powerup_cost"`
	AccrualPeriodMs    int64   `json:"accrual_period_ms"`
	TxLatencyMs        int64   `json:"tx_latency_ms"`
}

type TerritoryV1 struct {
	X             int      `json:"x"`
	Y             int      `json:"y"`
	Owner         string   `json:"owner,omitempty"`
	Color         string   `json:"color,omitempty"`
	Price         float64  `json:"price"`
	LastClaimedMs int64    `json:"last_claimed_ms"`
	Yield         float64  `json:"yield"`
	Level         int      `json:"level"`
	Powerups      []string `json:"powerups,omitempty"`
}

type LeaderV1 struct {
	Address string  `json:"address"`
	Earned  float64 `json:"earned"`
}

type CountersV1 struct {
	NextTx    uint64 `json:"next_tx"`
	Claims    uint64 `json:"claims"`
	Upgrades  uint64 `json:"upgrades"`
	Powerups  uint64 `json:"powerups"`
	Failures  uint64 `json:"failures"`
	Cancelled uint64 `json:"cancelled"`
}

// Owned counts claimed territories.
func (s SnapshotV1) Owned() int {
	n := 0
	for _, t := range s.Territories {
		if t.Owner != "" {
			n++
		}
	}
	return n
}

// Path is where a session snapshot lives under the data directory.
func Path(dataDir, sessionID string, tick uint64) string {
	return filepath.Join(dataDir, "sessions", sessionID, "snapshots", fmt.Sprintf("%d.snap.zst", tick))
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// ReadHeader reads only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// Header line is duplicated inside the gob body.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}
