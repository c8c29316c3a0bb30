package yield

import (
	"math"
	"time"

	"conquest.ai/internal/sim/territory"
)

// Multiplier is the effective yield multiplier of a cell:
// level, doubled by "2x Yield", times 1.5 with "Bonus".
func Multiplier(t territory.Territory) float64 {
	m := float64(t.Level)
	if t.Has(territory.PowerupDoubleYield) {
		m *= 2
	}
	if t.Has(territory.PowerupBonus) {
		m *= 1.5
	}
	return m
}

// Earned is what a cell has accrued since its last checkpoint.
func Earned(t territory.Territory, now time.Time) float64 {
	elapsed := now.Sub(t.LastClaimed)
	if elapsed <= 0 {
		return 0
	}
	minutes := float64(elapsed) / float64(time.Minute)
	return t.Yield * minutes * Multiplier(t)
}

// Accrue credits every cell owned by owner up to now and moves their
// checkpoint forward. It returns the total earned across those cells.
func Accrue(g *territory.Grid, owner string, now time.Time) float64 {
	if g == nil || owner == "" {
		return 0
	}
	total := 0.0
	for _, t := range g.OwnedBy(owner) {
		total += Earned(t, now)
		if now.After(t.LastClaimed) {
			t.LastClaimed = now
		}
		g.Put(t.X, t.Y, t)
	}
	return total
}

// Round4 rounds to the four decimals shown to players.
func Round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
