package territory

import "time"

// Defaults are the values every cell starts with.
type Defaults struct {
	Price float64
	Yield float64
}

// Grid is a fixed pool of Cells territories stored row-major.
// It performs no rule validation; callers own the invariants.
type Grid struct {
	cells [Cells]Territory
}

func NewGrid(d Defaults, now time.Time) *Grid {
	g := &Grid{}
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			g.cells[index(x, y)] = Territory{
				X:           x,
				Y:           y,
				Price:       d.Price,
				LastClaimed: now,
				Yield:       d.Yield,
				Level:       1,
			}
		}
	}
	return g
}

func index(x, y int) int { return y*Size + x }

// At returns a copy of the cell at (x,y). ok is false when out of range.
func (g *Grid) At(x, y int) (Territory, bool) {
	if g == nil || !InBounds(x, y) {
		return Territory{}, false
	}
	return g.cells[index(x, y)].Clone(), true
}

// Put replaces the cell at (x,y). The stored coordinates always match the slot.
func (g *Grid) Put(x, y int, t Territory) bool {
	if g == nil || !InBounds(x, y) {
		return false
	}
	t = t.Clone()
	t.X, t.Y = x, y
	g.cells[index(x, y)] = t
	return true
}

// Each visits cells in row-major order. fn receives copies.
func (g *Grid) Each(fn func(t Territory)) {
	if g == nil {
		return
	}
	for i := range g.cells {
		fn(g.cells[i].Clone())
	}
}

func (g *Grid) OwnedBy(addr string) []Territory {
	var out []Territory
	g.Each(func(t Territory) {
		if t.OwnedBy(addr) {
			out = append(out, t)
		}
	})
	return out
}

// CountOwned returns the number of claimed cells.
func (g *Grid) CountOwned() int {
	n := 0
	g.Each(func(t Territory) {
		if t.Owned() {
			n++
		}
	})
	return n
}

func (g *Grid) Clone() *Grid {
	if g == nil {
		return nil
	}
	out := &Grid{}
	for i := range g.cells {
		out.cells[i] = g.cells[i].Clone()
	}
	return out
}
