package world

import (
	"context"
	"errors"

	"conquest.ai/internal/persistence/snapshot"
	"conquest.ai/internal/sim/territory"
)

// ExportSnapshot copies the session state. Loop goroutine only, or after Run returned.
func (w *World) ExportSnapshot() snapshot.SnapshotV1 {
	s := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version:      1,
			SessionID:    w.cfg.SessionID,
			Tick:         w.tick.Load(),
			ExportedAtMs: w.now().UnixMilli(),
			Digest:       w.stateDigest(),
		},
		Address: w.address,
		Balance: w.balance,
		Params: snapshot.ParamsV1{
			InitialPrice:       w.cfg.InitialPrice,
			PriceMultiplier:    w.cfg.PriceMultiplier,
			BaseYield:          w.cfg.BaseYield,
			UpgradeYieldFactor: w.cfg.UpgradeYieldFactor,
			UpgradeCost:        w.cfg.UpgradeCost,
			PowerupCost:        w.cfg.PowerupCost,
			AccrualPeriodMs:    w.cfg.AccrualPeriod.Milliseconds(),
			TxLatencyMs:        w.cfg.TxLatency.Milliseconds(),
		},
		Territories: make([]snapshot.TerritoryV1, 0, territory.Cells),
		Counters:    w.counters,
	}
	s.Counters.NextTx = w.nextTxNum
	w.grid.Each(func(t territory.Territory) {
		tv := snapshot.TerritoryV1{
			X:             t.X,
			Y:             t.Y,
			Owner:         t.Owner,
			Color:         t.Color,
			Price:         t.Price,
			LastClaimedMs: t.LastClaimed.UnixMilli(),
			Yield:         t.Yield,
			Level:         t.Level,
		}
		for _, p := range t.Powerups {
			tv.Powerups = append(tv.Powerups, string(p))
		}
		s.Territories = append(s.Territories, tv)
	})
	for _, e := range w.board.Entries() {
		s.Leaderboard = append(s.Leaderboard, snapshot.LeaderV1{Address: e.Address, Earned: e.Earned})
	}
	return s
}

// offerSnapshot hands a snapshot to the sink without blocking the loop.
func (w *World) offerSnapshot() error {
	if w.snapshotSink == nil {
		return errors.New("snapshot sink not configured")
	}
	select {
	case w.snapshotSink <- w.ExportSnapshot():
		return nil
	default:
		return errors.New("snapshot sink backpressure")
	}
}

type adminSnapshotReq struct {
	Resp chan adminSnapshotResp
}

type adminSnapshotResp struct {
	Tick uint64
	Err  string
}

// RequestSnapshot asks the world loop goroutine to enqueue a snapshot.
// It is safe to call from other goroutines (e.g. HTTP handlers).
func (w *World) RequestSnapshot(ctx context.Context) (tick uint64, err error) {
	if w == nil || w.admin == nil {
		return 0, errors.New("admin snapshot not available")
	}
	resp := make(chan adminSnapshotResp, 1)

	select {
	case w.admin <- adminSnapshotReq{Resp: resp}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case r := <-resp:
		if r.Err != "" {
			return r.Tick, errors.New(r.Err)
		}
		return r.Tick, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (w *World) handleAdminSnapshot(req adminSnapshotReq) {
	r := adminSnapshotResp{Tick: w.tick.Load()}
	if err := w.offerSnapshot(); err != nil {
		r.Err = err.Error()
	}
	select {
	case req.Resp <- r:
	default:
		// Client timed out; don't block the sim loop.
	}
}
