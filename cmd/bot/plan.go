package main

import (
	"math/rand"

	"conquest.ai/internal/protocol"
	"conquest.ai/internal/sim/territory"
)

// planner picks the bot's next move from the latest STATE. Upgrades and
// powerups act on the selection, so they come as SELECT followed by the action.
type planner struct {
	r *rand.Rand
}

func newPlanner(r *rand.Rand) *planner { return &planner{r: r} }

func (p *planner) next(st protocol.StateMsg, params protocol.GameParams) []protocol.ActMsg {
	mine := owned(st)
	if len(mine) > 0 && p.r.Intn(3) == 0 {
		c := mine[p.r.Intn(len(mine))]
		sel := protocol.ActMsg{Action: protocol.ActionSelect, X: c.X, Y: c.Y}
		if missing := missingPowerups(c, params.Powerups); len(missing) > 0 && st.Balance >= params.PowerupCost && p.r.Intn(2) == 0 {
			return []protocol.ActMsg{sel, {Action: protocol.ActionAddPowerup, X: c.X, Y: c.Y, Powerup: missing[p.r.Intn(len(missing))]}}
		}
		if st.Balance >= params.UpgradeCost {
			return []protocol.ActMsg{sel, {Action: protocol.ActionUpgrade, X: c.X, Y: c.Y}}
		}
	}

	var targets []protocol.TerritoryObs
	for _, c := range st.Grid {
		if c.Owner != st.Address && c.Price <= st.Balance && !hasPowerup(c, string(territory.PowerupShield)) {
			targets = append(targets, c)
		}
	}
	if len(targets) == 0 {
		return nil
	}
	c := targets[p.r.Intn(len(targets))]
	return []protocol.ActMsg{{Action: protocol.ActionClaim, X: c.X, Y: c.Y}}
}

func owned(st protocol.StateMsg) []protocol.TerritoryObs {
	var out []protocol.TerritoryObs
	if st.Address == "" {
		return out
	}
	for _, c := range st.Grid {
		if c.Owner == st.Address {
			out = append(out, c)
		}
	}
	return out
}

func missingPowerups(c protocol.TerritoryObs, all []string) []string {
	var out []string
	for _, p := range all {
		if !hasPowerup(c, p) {
			out = append(out, p)
		}
	}
	return out
}

func hasPowerup(c protocol.TerritoryObs, p string) bool {
	for _, have := range c.Powerups {
		if have == p {
			return true
		}
	}
	return false
}
