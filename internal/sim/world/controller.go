package world

import (
	"fmt"
	"time"

	"conquest.ai/internal/protocol"
	"conquest.ai/internal/sim/territory"
)

func (w *World) handleAct(act protocol.ActMsg) {
	if err := w.act(act); err != nil {
		w.fail(act, "", err)
		w.pushState()
	}
}

// act validates an action and, for transactions, submits it. Validation
// errors leave state untouched.
func (w *World) act(act protocol.ActMsg) error {
	switch act.Action {
	case protocol.ActionSelect:
		return w.selectCell(act)
	case protocol.ActionClaim:
		return w.submitClaim(act)
	case protocol.ActionUpgrade:
		return w.submitUpgrade(act)
	case protocol.ActionAddPowerup:
		return w.submitPowerup(act)
	default:
		return fmt.Errorf("%w: unknown action %q", ErrBadRequest, act.Action)
	}
}

func (w *World) selectCell(act protocol.ActMsg) error {
	if !territory.InBounds(act.X, act.Y) {
		return fmt.Errorf("%w: cell (%d,%d) out of range", ErrBadRequest, act.X, act.Y)
	}
	w.selected = &territory.Coord{X: act.X, Y: act.Y}
	w.sendResult(act, protocol.StatusConfirmed, "", nil)
	w.pushState()
	return nil
}

func (w *World) submitClaim(act protocol.ActMsg) error {
	if w.address == "" {
		return ErrNotConnected
	}
	t, ok := w.grid.At(act.X, act.Y)
	if !ok {
		return fmt.Errorf("%w: cell (%d,%d) out of range", ErrBadRequest, act.X, act.Y)
	}
	if err := checkClaim(t, w.address, w.balance); err != nil {
		return err
	}
	w.submit(&pendingTx{
		id:            w.newTxID(),
		act:           act,
		actor:         w.address,
		at:            t.Coord(),
		ownerAtSubmit: t.Owner,
	})
	return nil
}

func (w *World) selectedCell() (territory.Territory, bool) {
	if w.selected == nil {
		return territory.Territory{}, false
	}
	return w.grid.At(w.selected.X, w.selected.Y)
}

func (w *World) submitUpgrade(act protocol.ActMsg) error {
	if w.address == "" {
		return ErrNotConnected
	}
	t, ok := w.selectedCell()
	if !ok {
		return ErrNotOwner
	}
	if err := checkUpgrade(t, w.address, w.balance, w.cfg.UpgradeCost); err != nil {
		return err
	}
	w.submit(&pendingTx{
		id:            w.newTxID(),
		act:           act,
		actor:         w.address,
		at:            t.Coord(),
		ownerAtSubmit: t.Owner,
	})
	return nil
}

func (w *World) submitPowerup(act protocol.ActMsg) error {
	if w.address == "" {
		return ErrNotConnected
	}
	kind, ok := territory.ParsePowerup(act.Powerup)
	if !ok {
		return fmt.Errorf("%w: unknown powerup %q", ErrBadRequest, act.Powerup)
	}
	t, ok := w.selectedCell()
	if !ok {
		return ErrNotOwner
	}
	if err := checkPowerup(t, w.address, w.balance, w.cfg.PowerupCost, kind); err != nil {
		return err
	}
	w.submit(&pendingTx{
		id:            w.newTxID(),
		act:           act,
		actor:         w.address,
		at:            t.Coord(),
		ownerAtSubmit: t.Owner,
		powerup:       kind,
	})
	return nil
}

// confirm applies a pending transaction against the current grid.
// Unknown or already cancelled ids are ignored.
func (w *World) confirm(id string) error {
	tx, ok := w.takePending(id)
	if !ok {
		return nil
	}
	now := w.now()
	cur, _ := w.grid.At(tx.at.X, tx.at.Y)

	var (
		next   territory.Territory
		notice string
		err    error
	)
	switch tx.act.Action {
	case protocol.ActionClaim:
		if cur.Owner != tx.ownerAtSubmit {
			err = fmt.Errorf("%w: owner %q -> %q", ErrConflict, tx.ownerAtSubmit, cur.Owner)
			break
		}
		if cur.Owned() && cur.Has(territory.PowerupShield) {
			err = ErrShielded
			break
		}
		next = applyClaim(cur, tx.actor, now, w.cfg, w.pickColor())
		w.counters.Claims++
		notice = "Territory claimed successfully!"
	case protocol.ActionUpgrade:
		if err = checkOwned(cur, tx.actor); err != nil {
			break
		}
		next = applyUpgrade(cur, w.cfg.UpgradeYieldFactor)
		w.counters.Upgrades++
		notice = fmt.Sprintf("Territory upgraded to level %d!", next.Level)
	case protocol.ActionAddPowerup:
		if err = checkOwned(cur, tx.actor); err != nil {
			break
		}
		if cur.Has(tx.powerup) {
			err = fmt.Errorf("%w: %s", ErrDuplicatePowerup, tx.powerup)
			break
		}
		next = applyPowerup(cur, tx.powerup)
		w.counters.Powerups++
		notice = fmt.Sprintf("%s powerup added!", tx.powerup)
	default:
		err = fmt.Errorf("%w: unknown action %q", ErrBadRequest, tx.act.Action)
	}
	if err != nil {
		w.fail(tx.act, tx.id, err)
		w.pushState()
		return err
	}

	w.grid.Put(tx.at.X, tx.at.Y, next)
	w.audit(tx, cur, next, now)
	w.sendResult(tx.act, protocol.StatusConfirmed, tx.id, nil)
	w.notice(protocol.NoticeSuccess, "", notice)
	if tx.act.Action == protocol.ActionClaim {
		w.refreshBalance(tx.actor)
	}
	w.pushState()
	return nil
}

func (w *World) pickColor() string {
	return w.cfg.Colors[w.rng.Intn(len(w.cfg.Colors))]
}

func (w *World) now() time.Time { return w.cfg.Now() }

func (w *World) audit(tx *pendingTx, before, after territory.Territory, now time.Time) {
	if w.auditLogger == nil {
		return
	}
	_ = w.auditLogger.WriteAudit(AuditEntry{
		SessionID:   w.cfg.SessionID,
		Tick:        w.tick.Load(),
		TimeMs:      now.UnixMilli(),
		TxID:        tx.id,
		Actor:       tx.actor,
		Action:      tx.act.Action,
		Pos:         [2]int{tx.at.X, tx.at.Y},
		OwnerBefore: before.Owner,
		OwnerAfter:  after.Owner,
		Price:       after.Price,
		Yield:       after.Yield,
		Level:       after.Level,
		Powerup:     string(tx.powerup),
	})
}
