package world

import (
	"encoding/binary"
	"encoding/hex"
	"math"

	"lukechampine.com/blake3"

	"conquest.ai/internal/sim/territory"
)

// stateDigest hashes the tick, active address, grid and leaderboard.
// Identical state yields identical digests across runs.
func (w *World) stateDigest() string {
	h := blake3.New(32, nil)
	var buf [8]byte
	u64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	f64 := func(v float64) { u64(math.Float64bits(v)) }
	str := func(s string) {
		u64(uint64(len(s)))
		_, _ = h.Write([]byte(s))
	}

	u64(w.tick.Load())
	str(w.address)
	w.grid.Each(func(t territory.Territory) {
		str(t.Owner)
		str(t.Color)
		f64(t.Price)
		u64(uint64(t.LastClaimed.UnixMilli()))
		f64(t.Yield)
		u64(uint64(t.Level))
		u64(uint64(len(t.Powerups)))
		for _, p := range t.Powerups {
			str(string(p))
		}
	})
	for _, e := range w.board.Entries() {
		str(e.Address)
		f64(e.Earned)
	}
	return hex.EncodeToString(h.Sum(nil))
}
