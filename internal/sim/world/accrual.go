package world

import (
	"fmt"
	"time"

	"conquest.ai/internal/protocol"
	"conquest.ai/internal/sim/yield"
)

// accrue runs one accrual pass for the connected address. It is a no-op on
// the grid when nobody is connected but still advances the tick.
func (w *World) accrue(now time.Time) float64 {
	tick := w.tick.Add(1)

	earned := 0.0
	if w.address != "" {
		earned = yield.Accrue(w.grid, w.address, now)
		if earned > 0 {
			w.board.Credit(w.address, earned)
			w.notice(protocol.NoticeSuccess, "", fmt.Sprintf("Earned %.4f ETH", yield.Round4(earned)))
		}
	}
	w.lastEarned = earned

	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{
			SessionID: w.cfg.SessionID,
			Tick:      tick,
			TimeMs:    now.UnixMilli(),
			Address:   w.address,
			Earned:    earned,
			Owned:     len(w.grid.OwnedBy(w.address)),
			Digest:    w.stateDigest(),
		})
	}
	w.pushState()
	return earned
}
