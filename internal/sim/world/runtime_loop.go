package world

import (
	"context"
	"time"

	"conquest.ai/internal/wallet"
)

const outFlushInterval = 50 * time.Millisecond

// Run drives the session until ctx is cancelled or Stop is called.
// On exit every pending transaction is cancelled and a final snapshot is offered to the sink.
func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.AccrualPeriod)
	defer ticker.Stop()
	flush := time.NewTicker(outFlushInterval)
	defer flush.Stop()
	defer w.shutdown()

	var changes <-chan []string
	if n, ok := w.wallet.(wallet.Notifier); ok {
		changes = n.AccountChanges()
	}

	w.pushState()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case env := <-w.inbox:
			w.handleEnvelope(env)
		case id := <-w.confirms:
			_ = w.confirm(id)
		case res := <-w.walletCh:
			w.handleWalletResult(res)
		case accounts, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			w.handleAccountsChanged(accounts)
		case req := <-w.admin:
			w.handleAdminSnapshot(req)
		case <-ticker.C:
			w.accrue(w.now())
		case <-flush.C:
		}
		w.flushOut()
		w.publishMetrics()
	}
}

func (w *World) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

func (w *World) shutdown() {
	w.shutOnce.Do(func() {
		w.cancelPending(ErrCancelled)
		w.cancel()
		w.offerSnapshot()
		w.publishMetrics()
	})
}

func (w *World) handleEnvelope(env Envelope) {
	switch {
	case env.Connect != nil:
		w.handleConnect(*env.Connect)
	case env.Accounts != nil:
		w.handleAccountsChanged(env.Accounts.Accounts)
	case env.Act != nil:
		w.handleAct(*env.Act)
	}
}
