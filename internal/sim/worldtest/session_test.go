package worldtest

import (
	"testing"
	"time"

	"conquest.ai/internal/protocol"
	"conquest.ai/internal/sim/territory"
	"conquest.ai/internal/sim/world"
)

const (
	alice = "0x00000000000000000000000000000000000a11ce"
	bob   = "0x0000000000000000000000000000000000000b0b"
)

func fastConfig() world.Config {
	return world.Config{
		SessionID:     "S1",
		TxLatency:     5 * time.Millisecond,
		AccrualPeriod: time.Hour,
		Seed:          42,
	}
}

func cellAt(st protocol.StateMsg, x, y int) protocol.TerritoryObs {
	for _, c := range st.Grid {
		if c.X == x && c.Y == y {
			return c
		}
	}
	return protocol.TerritoryObs{}
}

func TestSession_ClaimUpgradePowerup(t *testing.T) {
	h := NewHarness(t, fastConfig(), 1.0)
	h.Connect(alice)

	if r := h.WaitResult(h.Act(protocol.ActionClaim, 3, 2, "")); r.Status != protocol.StatusConfirmed || !r.OK || r.TxID == "" {
		t.Fatalf("claim: %+v", r)
	}
	h.WaitNotice("Territory claimed successfully!")
	if r := h.WaitResult(h.Act(protocol.ActionSelect, 3, 2, "")); !r.OK {
		t.Fatalf("select: %+v", r)
	}
	if r := h.WaitResult(h.Act(protocol.ActionUpgrade, 0, 0, "")); !r.OK {
		t.Fatalf("upgrade: %+v", r)
	}
	h.WaitNotice("Territory upgraded to level 2!")
	if r := h.WaitResult(h.Act(protocol.ActionAddPowerup, 0, 0, string(territory.PowerupDoubleYield))); !r.OK {
		t.Fatalf("powerup: %+v", r)
	}

	st := h.WaitState(func(s protocol.StateMsg) bool {
		return s.Pending == 0 && len(cellAt(s, 3, 2).Powerups) == 1
	})
	c := cellAt(st, 3, 2)
	if c.Owner != alice || c.Level != 2 || c.Powerups[0] != string(territory.PowerupDoubleYield) {
		t.Fatalf("unexpected cell: %+v", c)
	}
	if st.Selected == nil || st.Selected.X != 3 || st.Selected.Y != 2 {
		t.Fatalf("selected=%+v", st.Selected)
	}
}

func TestSession_FailuresAreReported(t *testing.T) {
	h := NewHarness(t, fastConfig(), 1.0)

	r := h.WaitResult(h.Act(protocol.ActionClaim, 0, 0, ""))
	if r.Status != protocol.StatusFailed || r.Code != protocol.ErrNotConnected {
		t.Fatalf("unconnected claim: %+v", r)
	}
	h.WaitNotice("Please connect your wallet first!")

	h.Connect(alice)
	r = h.WaitResult(h.Act(protocol.ActionUpgrade, 0, 0, ""))
	if r.Code != protocol.ErrNotOwner {
		t.Fatalf("upgrade without selection: %+v", r)
	}
	r = h.WaitResult(h.Act(protocol.ActionSelect, 9, 9, ""))
	if r.Code != protocol.ErrBadRequest {
		t.Fatalf("select out of range: %+v", r)
	}
}

func TestSession_IndependentClaimsAllConfirm(t *testing.T) {
	h := NewHarness(t, fastConfig(), 1.0)
	h.Connect(alice)

	var ids []string
	for x := 0; x < territory.Size; x++ {
		ids = append(ids, h.Act(protocol.ActionClaim, x, 0, ""))
	}
	for _, id := range ids {
		if r := h.WaitResult(id); r.Status != protocol.StatusConfirmed {
			t.Fatalf("claim %s: %+v", id, r)
		}
	}
	st := h.WaitState(func(s protocol.StateMsg) bool { return s.Pending == 0 })
	for x := 0; x < territory.Size; x++ {
		if c := cellAt(st, x, 0); c.Owner != alice {
			t.Fatalf("cell (%d,0) owner=%q", x, c.Owner)
		}
	}
}

func TestSession_AccountSwitchThenTransfer(t *testing.T) {
	h := NewHarness(t, fastConfig(), 1.0)
	h.Wallet.SetBalance(bob, 0.5)
	h.Connect(alice)
	if r := h.WaitResult(h.Act(protocol.ActionClaim, 5, 5, "")); !r.OK {
		t.Fatalf("alice claim: %+v", r)
	}

	h.SwitchAccounts(bob)
	h.WaitState(func(s protocol.StateMsg) bool { return s.Address == bob && s.Balance == 0.5 })

	if r := h.WaitResult(h.Act(protocol.ActionClaim, 5, 5, "")); !r.OK {
		t.Fatalf("bob claim: %+v", r)
	}
	st := h.WaitState(func(s protocol.StateMsg) bool { return cellAt(s, 5, 5).Owner == bob })
	if c := cellAt(st, 5, 5); c.Price <= 0.015 || c.Level != 1 {
		t.Fatalf("unexpected cell after transfer: %+v", c)
	}

	h.SwitchAccounts()
	h.WaitNotice("Wallet disconnected")
	if st := h.WaitState(func(s protocol.StateMsg) bool { return !s.Connected }); st.Address != "" {
		t.Fatalf("address=%q after disconnect", st.Address)
	}
}

func TestSession_AccrualOnTicker(t *testing.T) {
	cfg := fastConfig()
	cfg.AccrualPeriod = 20 * time.Millisecond
	h := NewHarness(t, cfg, 1.0)
	h.Connect(alice)
	if r := h.WaitResult(h.Act(protocol.ActionClaim, 7, 7, "")); !r.OK {
		t.Fatalf("claim: %+v", r)
	}
	st := h.WaitState(func(s protocol.StateMsg) bool { return s.Tick >= 3 && s.Earned > 0 })
	if len(st.Leaderboard) != 1 || st.Leaderboard[0].Address != alice {
		t.Fatalf("leaderboard=%+v", st.Leaderboard)
	}
}
