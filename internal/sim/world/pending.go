package world

import (
	"context"
	"fmt"
	"sort"
	"time"

	"conquest.ai/internal/protocol"
	"conquest.ai/internal/sim/territory"
)

// pendingTx is a submitted action waiting for its simulated confirmation.
type pendingTx struct {
	id    string
	act   protocol.ActMsg
	actor string
	at    territory.Coord

	// Owner observed at submit; a claim only confirms if it is unchanged.
	ownerAtSubmit string
	powerup       territory.Powerup

	submittedAt time.Time
	cancel      context.CancelFunc
}

func (w *World) newTxID() string {
	w.nextTxNum++
	return fmt.Sprintf("tx_%06d", w.nextTxNum)
}

// submit registers tx and arms its confirmation timer. The timer goroutine
// only posts the id back to the loop; all state changes happen in confirm.
func (w *World) submit(tx *pendingTx) {
	ctx, cancel := context.WithCancel(w.ctx)
	tx.cancel = cancel
	tx.submittedAt = w.now()
	w.pending[tx.id] = tx

	latency := w.cfg.TxLatency
	go func(id string) {
		t := time.NewTimer(latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		select {
		case w.confirms <- id:
		case <-ctx.Done():
		}
	}(tx.id)

	w.sendResult(tx.act, protocol.StatusPending, tx.id, nil)
	w.pushState()
}

func (w *World) takePending(id string) (*pendingTx, bool) {
	tx, ok := w.pending[id]
	if !ok {
		return nil, false
	}
	delete(w.pending, id)
	if tx.cancel != nil {
		tx.cancel()
	}
	return tx, true
}

// cancelPending aborts every in-flight transaction in submit order. None of them apply.
func (w *World) cancelPending(reason error) {
	if len(w.pending) == 0 {
		return
	}
	ids := make([]string, 0, len(w.pending))
	for id := range w.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		tx, _ := w.takePending(id)
		w.counters.Cancelled++
		w.sendResult(tx.act, protocol.StatusFailed, tx.id, reason)
	}
}

// PendingCount is the number of unconfirmed transactions. Loop goroutine only.
func (w *World) PendingCount() int { return len(w.pending) }
