package main

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	persistlog "conquest.ai/internal/persistence/log"
	"conquest.ai/internal/persistence/snapshot"
	"conquest.ai/internal/protocol"
	"conquest.ai/internal/sim/territory"
	"conquest.ai/internal/sim/world"
)

const epsilon = 1e-9

type cell struct {
	Owner    string
	Level    int
	Price    float64
	Yield    float64
	Powerups []string
}

// snapshotMutations is how many audit entries the session had written when
// the snapshot was taken: one per applied claim, upgrade or powerup.
func snapshotMutations(snap snapshot.SnapshotV1) int {
	c := snap.Counters
	return int(c.Claims + c.Upgrades + c.Powerups)
}

// replayAudit applies the first limit audit entries in order; a negative limit
// applies all of them. Each entry's owner_before must match the replayed
// owner, otherwise the log has a gap.
func replayAudit(files []string, limit int) (map[[2]int]*cell, int, error) {
	board := map[[2]int]*cell{}
	applied := 0
	for _, path := range files {
		err := persistlog.ReadJSONL(path, func(line json.RawMessage) error {
			if limit >= 0 && applied >= limit {
				return nil
			}
			var e world.AuditEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return err
			}
			if err := applyEntry(board, e); err != nil {
				return fmt.Errorf("%s: %w", e.TxID, err)
			}
			applied++
			return nil
		})
		if err != nil {
			return nil, applied, err
		}
	}
	return board, applied, nil
}

func applyEntry(board map[[2]int]*cell, e world.AuditEntry) error {
	if e.Pos[0] < 0 || e.Pos[0] >= territory.Size || e.Pos[1] < 0 || e.Pos[1] >= territory.Size {
		return fmt.Errorf("position %v outside the grid", e.Pos)
	}
	c := board[e.Pos]
	if c == nil {
		c = &cell{Level: 1}
		board[e.Pos] = c
	}
	if c.Owner != e.OwnerBefore {
		return fmt.Errorf("cell %v owner_before=%q but replayed owner is %q", e.Pos, e.OwnerBefore, c.Owner)
	}
	switch e.Action {
	case protocol.ActionClaim:
		c.Powerups = nil
	case protocol.ActionUpgrade:
		if e.Level != c.Level+1 {
			return fmt.Errorf("cell %v upgraded to level %d from %d", e.Pos, e.Level, c.Level)
		}
	case protocol.ActionAddPowerup:
		for _, p := range c.Powerups {
			if p == e.Powerup {
				return fmt.Errorf("cell %v already has %s", e.Pos, e.Powerup)
			}
		}
		c.Powerups = append(c.Powerups, e.Powerup)
	default:
		return fmt.Errorf("unknown action %q", e.Action)
	}
	c.Owner = e.OwnerAfter
	c.Level = e.Level
	c.Price = e.Price
	c.Yield = e.Yield
	return nil
}

// sumEarnings totals earnings per address up to and including maxTick and
// checks the ticks are contiguous.
func sumEarnings(files []string, maxTick uint64) (map[string]float64, int, error) {
	earned := map[string]float64{}
	var last uint64
	n := 0
	for _, path := range files {
		err := persistlog.ReadJSONL(path, func(line json.RawMessage) error {
			var e world.TickLogEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return err
			}
			if e.Tick > maxTick {
				return nil
			}
			if n > 0 && e.Tick != last+1 {
				return fmt.Errorf("tick gap: %d after %d", e.Tick, last)
			}
			last = e.Tick
			n++
			if e.Address != "" && e.Earned > 0 {
				earned[e.Address] += e.Earned
			}
			return nil
		})
		if err != nil {
			return nil, n, err
		}
	}
	return earned, n, nil
}

func compareBoard(board map[[2]int]*cell, snap snapshot.SnapshotV1) []string {
	var out []string
	for _, t := range snap.Territories {
		pos := [2]int{t.X, t.Y}
		c := board[pos]
		if c == nil {
			if t.Owner != "" {
				out = append(out, fmt.Sprintf("cell %v owned by %s in snapshot but never claimed in audit", pos, t.Owner))
			}
			continue
		}
		if c.Owner != t.Owner || c.Level != t.Level {
			out = append(out, fmt.Sprintf("cell %v owner/level audit=%s/%d snapshot=%s/%d", pos, c.Owner, c.Level, t.Owner, t.Level))
		}
		if math.Abs(c.Price-t.Price) > epsilon || math.Abs(c.Yield-t.Yield) > epsilon {
			out = append(out, fmt.Sprintf("cell %v price/yield audit=%g/%g snapshot=%g/%g", pos, c.Price, c.Yield, t.Price, t.Yield))
		}
		if strings.Join(sorted(c.Powerups), ",") != strings.Join(sorted(t.Powerups), ",") {
			out = append(out, fmt.Sprintf("cell %v powerups audit=%v snapshot=%v", pos, c.Powerups, t.Powerups))
		}
	}
	return out
}

func compareEarnings(earned map[string]float64, snap snapshot.SnapshotV1) []string {
	var out []string
	seen := map[string]bool{}
	for _, l := range snap.Leaderboard {
		seen[l.Address] = true
		if math.Abs(earned[l.Address]-l.Earned) > 1e-6 {
			out = append(out, fmt.Sprintf("earned %s events=%.6f snapshot=%.6f", l.Address, earned[l.Address], l.Earned))
		}
	}
	for addr, v := range earned {
		if !seen[addr] {
			out = append(out, fmt.Sprintf("earned %s events=%.6f missing from snapshot leaderboard", addr, v))
		}
	}
	sort.Strings(out)
	return out
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
