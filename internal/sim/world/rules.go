package world

import (
	"fmt"
	"time"

	"conquest.ai/internal/sim/territory"
)

// The check* functions validate an action against a cell; apply* return the
// updated cell. None of them touch World state.

func checkClaim(t territory.Territory, caller string, balance float64) error {
	if caller == "" {
		return ErrNotConnected
	}
	if t.Owned() && t.Has(territory.PowerupShield) {
		return ErrShielded
	}
	// Unclaimed cells are free to take; only a transfer is priced against the balance.
	if t.Owned() && t.Price > balance {
		return fmt.Errorf("%w: price %.4f > balance %.4f", ErrInsufficientFunds, t.Price, balance)
	}
	return nil
}

func applyClaim(t territory.Territory, caller string, now time.Time, cfg Config, color string) territory.Territory {
	next := t.Clone()
	next.Owner = caller
	next.Color = color
	next.Price = t.Price * cfg.PriceMultiplier
	if now.After(t.LastClaimed) {
		next.LastClaimed = now
	}
	next.Yield = cfg.BaseYield * (1 + float64(t.X+t.Y)/territory.Size)
	next.Level = 1
	next.Powerups = nil
	return next
}

func checkOwned(t territory.Territory, caller string) error {
	if caller == "" {
		return ErrNotConnected
	}
	if !t.OwnedBy(caller) {
		return ErrNotOwner
	}
	return nil
}

// checkUpgrade gates on the cost but the cost is never charged.
func checkUpgrade(t territory.Territory, caller string, balance, cost float64) error {
	if err := checkOwned(t, caller); err != nil {
		return err
	}
	if balance < cost {
		return fmt.Errorf("%w: upgrade cost %.4f > balance %.4f", ErrInsufficientFunds, cost, balance)
	}
	return nil
}

func applyUpgrade(t territory.Territory, factor float64) territory.Territory {
	next := t.Clone()
	next.Level++
	next.Yield *= factor
	return next
}

func checkPowerup(t territory.Territory, caller string, balance, cost float64, kind territory.Powerup) error {
	if err := checkOwned(t, caller); err != nil {
		return err
	}
	if balance < cost {
		return fmt.Errorf("%w: powerup cost %.4f > balance %.4f", ErrInsufficientFunds, cost, balance)
	}
	if t.Has(kind) {
		return fmt.Errorf("%w: %s", ErrDuplicatePowerup, kind)
	}
	return nil
}

func applyPowerup(t territory.Territory, kind territory.Powerup) territory.Territory {
	next := t.Clone()
	next.Powerups = append(next.Powerups, kind)
	return next
}
