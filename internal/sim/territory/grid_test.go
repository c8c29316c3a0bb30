package territory

import (
	"testing"
	"time"
)

func TestNewGrid_Defaults(t *testing.T) {
	now := time.Unix(1700000000, 0)
	g := NewGrid(Defaults{Price: 0.01, Yield: 0.001}, now)

	n := 0
	g.Each(func(c Territory) {
		n++
		if c.Owned() {
			t.Fatalf("cell (%d,%d) owned at start", c.X, c.Y)
		}
		if c.Price != 0.01 || c.Yield != 0.001 || c.Level != 1 {
			t.Fatalf("cell (%d,%d) defaults: %+v", c.X, c.Y, c)
		}
		if !c.LastClaimed.Equal(now) {
			t.Fatalf("lastClaimed=%v want %v", c.LastClaimed, now)
		}
	})
	if n != Cells {
		t.Fatalf("cells=%d want %d", n, Cells)
	}
}

func TestGrid_OutOfRange(t *testing.T) {
	g := NewGrid(Defaults{Price: 0.01, Yield: 0.001}, time.Now())
	for _, c := range []Coord{{-1, 0}, {0, -1}, {8, 0}, {0, 8}, {100, 100}} {
		if _, ok := g.At(c.X, c.Y); ok {
			t.Fatalf("At(%d,%d) should be not found", c.X, c.Y)
		}
		if g.Put(c.X, c.Y, Territory{Owner: "0xA"}) {
			t.Fatalf("Put(%d,%d) should not store", c.X, c.Y)
		}
	}
	if got := g.CountOwned(); got != 0 {
		t.Fatalf("owned=%d want 0", got)
	}
}

func TestGrid_PutIsolatesPowerups(t *testing.T) {
	g := NewGrid(Defaults{Price: 0.01, Yield: 0.001}, time.Now())

	cell, _ := g.At(2, 3)
	cell.Owner = "0xA"
	cell.Powerups = []Powerup{PowerupShield}
	if !g.Put(2, 3, cell) {
		t.Fatalf("put failed")
	}

	// Mutating the caller's slice must not leak into the grid.
	cell.Powerups[0] = PowerupBonus

	got, _ := g.At(2, 3)
	if !got.Has(PowerupShield) || got.Has(PowerupBonus) {
		t.Fatalf("powerups=%v", got.Powerups)
	}
	if got.X != 2 || got.Y != 3 {
		t.Fatalf("coords=(%d,%d)", got.X, got.Y)
	}
	if owned := g.OwnedBy("0xA"); len(owned) != 1 {
		t.Fatalf("OwnedBy=%d want 1", len(owned))
	}
}

func TestGrid_Clone(t *testing.T) {
	g := NewGrid(Defaults{Price: 0.01, Yield: 0.001}, time.Now())
	c := g.Clone()
	cell, _ := c.At(0, 0)
	cell.Owner = "0xB"
	c.Put(0, 0, cell)

	if orig, _ := g.At(0, 0); orig.Owned() {
		t.Fatalf("clone shares storage with original")
	}
}

func TestParsePowerup(t *testing.T) {
	for _, p := range Powerups {
		got, ok := ParsePowerup(string(p))
		if !ok || got != p {
			t.Fatalf("ParsePowerup(%q)=%q,%v", p, got, ok)
		}
	}
	if _, ok := ParsePowerup("Teleport"); ok {
		t.Fatalf("unknown powerup accepted")
	}
}
