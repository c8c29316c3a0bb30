package territory

import "time"

// Size is the edge length of the board. The grid always holds Size*Size cells.
const (
	Size  = 8
	Cells = Size * Size
)

type Powerup string

const (
	PowerupDoubleYield Powerup = "2x Yield"
	PowerupShield      Powerup = "Shield"
	PowerupBonus       Powerup = "Bonus"
)

// Powerups lists every known kind in display order.
var Powerups = []Powerup{PowerupDoubleYield, PowerupShield, PowerupBonus}

func ParsePowerup(s string) (Powerup, bool) {
	for _, p := range Powerups {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// Colors is the cosmetic palette a claim picks from.
var Colors = []string{"Red", "Blue", "Green", "Yellow", "Purple", "Orange"}

type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func InBounds(x, y int) bool {
	return x >= 0 && x < Size && y >= 0 && y < Size
}

func (c Coord) Valid() bool { return InBounds(c.X, c.Y) }

// Territory is one cell of the board. Owner == "" means unclaimed.
type Territory struct {
	X           int
	Y           int
	Owner       string
	Color       string
	Price       float64
	LastClaimed time.Time
	Yield       float64
	Level       int
	Powerups    []Powerup
}

func (t Territory) Coord() Coord { return Coord{X: t.X, Y: t.Y} }

func (t Territory) Owned() bool { return t.Owner != "" }

func (t Territory) OwnedBy(addr string) bool { return addr != "" && t.Owner == addr }

func (t Territory) Has(p Powerup) bool {
	for _, have := range t.Powerups {
		if have == p {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with t.
func (t Territory) Clone() Territory {
	out := t
	if t.Powerups != nil {
		out.Powerups = append([]Powerup(nil), t.Powerups...)
	}
	return out
}
