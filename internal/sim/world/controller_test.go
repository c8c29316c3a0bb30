package world

import (
	"errors"
	"testing"

	"conquest.ai/internal/protocol"
	"conquest.ai/internal/sim/territory"
)

const (
	addrA = "0x000000000000000000000000000000000000000a"
	addrB = "0x000000000000000000000000000000000000000b"
)

func (tw *testWorld) claim(t *testing.T, x, y int) {
	t.Helper()
	if err := tw.act(act("c", protocol.ActionClaim, x, y)); err != nil {
		t.Fatalf("claim (%d,%d): %v", x, y, err)
	}
	if err := tw.confirm(tw.onlyPending(t)); err != nil {
		t.Fatalf("confirm claim (%d,%d): %v", x, y, err)
	}
}

func (tw *testWorld) selectAt(t *testing.T, x, y int) {
	t.Helper()
	if err := tw.act(act("s", protocol.ActionSelect, x, y)); err != nil {
		t.Fatalf("select (%d,%d): %v", x, y, err)
	}
}

func (tw *testWorld) addPowerup(t *testing.T, kind territory.Powerup) {
	t.Helper()
	a := act("p", protocol.ActionAddPowerup, 0, 0)
	a.Powerup = string(kind)
	if err := tw.act(a); err != nil {
		t.Fatalf("powerup %s: %v", kind, err)
	}
	if err := tw.confirm(tw.onlyPending(t)); err != nil {
		t.Fatalf("confirm powerup %s: %v", kind, err)
	}
}

func TestClaimUnownedCell(t *testing.T) {
	tw := newTestWorld(t, 1.0)
	tw.connect(t, addrA)

	if err := tw.act(act("c1", protocol.ActionClaim, 0, 0)); err != nil {
		t.Fatalf("claim: %v", err)
	}
	id := tw.onlyPending(t)
	if got, _ := tw.grid.At(0, 0); got.Owned() {
		t.Fatalf("cell changed before confirmation: %+v", got)
	}
	if err := tw.confirm(id); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	got, _ := tw.grid.At(0, 0)
	if got.Owner != addrA {
		t.Fatalf("owner=%q want %q", got.Owner, addrA)
	}
	if !approx(got.Price, 0.015) {
		t.Fatalf("price=%v want 0.015", got.Price)
	}
	if !approx(got.Yield, 0.001) || got.Level != 1 || len(got.Powerups) != 0 {
		t.Fatalf("unexpected cell after claim: %+v", got)
	}
	if !got.LastClaimed.Equal(tw.clock.Now()) {
		t.Fatalf("last claimed=%v want %v", got.LastClaimed, tw.clock.Now())
	}
	if got.Color == "" {
		t.Fatalf("expected a color")
	}
	if tw.PendingCount() != 0 {
		t.Fatalf("pending=%d want 0", tw.PendingCount())
	}

	results := ofType(drain(tw.out), protocol.TypeActionResult)
	if len(results) != 2 {
		t.Fatalf("results=%d want 2", len(results))
	}
	if results[0]["status"] != protocol.StatusPending || results[1]["status"] != protocol.StatusConfirmed {
		t.Fatalf("unexpected statuses: %v / %v", results[0]["status"], results[1]["status"])
	}
	if results[1]["tx_id"] != id {
		t.Fatalf("tx_id=%v want %s", results[1]["tx_id"], id)
	}
}

func TestClaimYieldGrowsTowardCorner(t *testing.T) {
	tw := newTestWorld(t, 1.0)
	tw.connect(t, addrA)
	tw.claim(t, 7, 7)
	got, _ := tw.grid.At(7, 7)
	want := 0.001 * (1 + 14.0/8)
	if !approx(got.Yield, want) {
		t.Fatalf("yield=%v want %v", got.Yield, want)
	}
}

func TestActionsRequireConnection(t *testing.T) {
	tw := newTestWorld(t, 1.0)
	for _, a := range []string{protocol.ActionClaim, protocol.ActionUpgrade, protocol.ActionAddPowerup} {
		msg := act("x", a, 0, 0)
		msg.Powerup = string(territory.PowerupShield)
		if err := tw.act(msg); !errors.Is(err, ErrNotConnected) {
			t.Fatalf("%s: err=%v want ErrNotConnected", a, err)
		}
	}
	if tw.PendingCount() != 0 {
		t.Fatalf("pending=%d want 0", tw.PendingCount())
	}
}

func TestHandleActReportsFailure(t *testing.T) {
	tw := newTestWorld(t, 1.0)
	tw.handleAct(act("c1", protocol.ActionClaim, 0, 0))

	msgs := drain(tw.out)
	results := ofType(msgs, protocol.TypeActionResult)
	if len(results) != 1 {
		t.Fatalf("results=%d want 1", len(results))
	}
	r := results[0]
	if r["status"] != protocol.StatusFailed || r["ok"] != false || r["code"] != protocol.ErrNotConnected || r["id"] != "c1" {
		t.Fatalf("unexpected result: %v", r)
	}
	notices := ofType(msgs, protocol.TypeNotice)
	if len(notices) != 1 || notices[0]["text"] != "Please connect your wallet first!" {
		t.Fatalf("unexpected notices: %v", notices)
	}
	if tw.counters.Failures != 1 {
		t.Fatalf("failures=%d want 1", tw.counters.Failures)
	}
}

func TestSelectOutOfRange(t *testing.T) {
	tw := newTestWorld(t, 1.0)
	if err := tw.act(act("s", protocol.ActionSelect, 8, 0)); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("err=%v want ErrBadRequest", err)
	}
	if tw.selected != nil {
		t.Fatalf("selection changed: %+v", tw.selected)
	}
	tw.selectAt(t, 3, 4)
	if tw.selected == nil || *tw.selected != (territory.Coord{X: 3, Y: 4}) {
		t.Fatalf("selected=%+v want (3,4)", tw.selected)
	}
	if st := tw.State(); st.Selected == nil || st.Selected.X != 3 || st.Selected.Y != 4 {
		t.Fatalf("state selected=%+v", st.Selected)
	}
}

func TestClaimOutOfRange(t *testing.T) {
	tw := newTestWorld(t, 1.0)
	tw.connect(t, addrA)
	if err := tw.act(act("c", protocol.ActionClaim, -1, 3)); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("err=%v want ErrBadRequest", err)
	}
}

func TestUnknownAction(t *testing.T) {
	tw := newTestWorld(t, 1.0)
	if err := tw.act(act("x", "BURN", 0, 0)); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("err=%v want ErrBadRequest", err)
	}
}

func TestShieldBlocksClaim(t *testing.T) {
	tw := newTestWorld(t, 1.0)
	tw.connect(t, addrA)
	tw.claim(t, 2, 2)
	tw.selectAt(t, 2, 2)
	tw.addPowerup(t, territory.PowerupShield)

	tw.handleAccountsChanged([]string{addrB})
	if tw.address != addrB {
		t.Fatalf("address=%q want %q", tw.address, addrB)
	}
	tw.balance = 10
	if err := tw.act(act("c", protocol.ActionClaim, 2, 2)); !errors.Is(err, ErrShielded) {
		t.Fatalf("err=%v want ErrShielded", err)
	}
	if got, _ := tw.grid.At(2, 2); got.Owner != addrA {
		t.Fatalf("owner=%q want %q", got.Owner, addrA)
	}
}

func TestShieldAddedWhileClaimPending(t *testing.T) {
	tw := newTestWorld(t, 1.0)
	tw.connect(t, addrA)
	tw.claim(t, 2, 2)

	tw.handleAccountsChanged([]string{addrB})
	tw.balance = 1
	if err := tw.act(act("c", protocol.ActionClaim, 2, 2)); err != nil {
		t.Fatalf("claim: %v", err)
	}
	claimID := tw.onlyPending(t)

	// A's shield lands first.
	cell, _ := tw.grid.At(2, 2)
	cell.Powerups = append(cell.Powerups, territory.PowerupShield)
	tw.grid.Put(2, 2, cell)

	if err := tw.confirm(claimID); !errors.Is(err, ErrShielded) {
		t.Fatalf("err=%v want ErrShielded", err)
	}
	if got, _ := tw.grid.At(2, 2); got.Owner != addrA {
		t.Fatalf("owner=%q want %q", got.Owner, addrA)
	}
}

func TestClaimOwnedCellNeedsFunds(t *testing.T) {
	tw := newTestWorld(t, 1.0)
	tw.connect(t, addrA)
	tw.claim(t, 3, 3)

	tw.handleAccountsChanged([]string{addrB})
	tw.balance = 0.01
	err := tw.act(act("c", protocol.ActionClaim, 3, 3))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err=%v want ErrInsufficientFunds", err)
	}
	if Code(err) != protocol.ErrInsufficientFunds {
		t.Fatalf("code=%q", Code(err))
	}

	tw.balance = 0.015
	tw.claim(t, 3, 3)
	got, _ := tw.grid.At(3, 3)
	if got.Owner != addrB || !approx(got.Price, 0.0225) {
		t.Fatalf("unexpected cell after transfer: %+v", got)
	}
}

func TestClaimTransferResetsUpgrades(t *testing.T) {
	tw := newTestWorld(t, 1.0)
	tw.connect(t, addrA)
	tw.claim(t, 1, 0)
	tw.selectAt(t, 1, 0)
	if err := tw.act(act("u", protocol.ActionUpgrade, 0, 0)); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if err := tw.confirm(tw.onlyPending(t)); err != nil {
		t.Fatalf("confirm upgrade: %v", err)
	}
	tw.addPowerup(t, territory.PowerupBonus)

	tw.handleAccountsChanged([]string{addrB})
	tw.balance = 1
	tw.claim(t, 1, 0)
	got, _ := tw.grid.At(1, 0)
	if got.Owner != addrB || got.Level != 1 || len(got.Powerups) != 0 {
		t.Fatalf("unexpected cell after transfer: %+v", got)
	}
	if want := 0.001 * (1 + 1.0/8); !approx(got.Yield, want) {
		t.Fatalf("yield=%v want %v", got.Yield, want)
	}
}

func TestOverlappingClaimsConflict(t *testing.T) {
	tw := newTestWorld(t, 1.0)
	tw.connect(t, addrA)
	if err := tw.act(act("a", protocol.ActionClaim, 1, 1)); err != nil {
		t.Fatalf("claim A: %v", err)
	}
	idA := tw.onlyPending(t)

	tw.handleAccountsChanged([]string{addrB})
	if err := tw.act(act("b", protocol.ActionClaim, 1, 1)); err != nil {
		t.Fatalf("claim B: %v", err)
	}
	var idB string
	for _, id := range tw.pendingIDs() {
		if id != idA {
			idB = id
		}
	}
	if idB == "" {
		t.Fatalf("missing second pending tx: %v", tw.pendingIDs())
	}

	if err := tw.confirm(idB); err != nil {
		t.Fatalf("confirm B: %v", err)
	}
	if err := tw.confirm(idA); !errors.Is(err, ErrConflict) {
		t.Fatalf("confirm A err=%v want ErrConflict", err)
	}
	got, _ := tw.grid.At(1, 1)
	if got.Owner != addrB || !approx(got.Price, 0.015) {
		t.Fatalf("unexpected cell: %+v", got)
	}
	if tw.counters.Claims != 1 || tw.counters.Failures != 1 {
		t.Fatalf("counters=%+v", tw.counters)
	}
}

func TestConfirmUnknownIsIgnored(t *testing.T) {
	tw := newTestWorld(t, 1.0)
	if err := tw.confirm("tx_999999"); err != nil {
		t.Fatalf("err=%v", err)
	}
	if msgs := drain(tw.out); len(msgs) != 0 {
		t.Fatalf("unexpected output: %v", msgs)
	}
}

func TestUpgradeDoesNotChargeBalance(t *testing.T) {
	tw := newTestWorld(t, 1.0)
	tw.connect(t, addrA)
	tw.claim(t, 0, 0)
	tw.selectAt(t, 0, 0)
	tw.addPowerup(t, territory.PowerupBonus)
	before, _ := tw.grid.At(0, 0)

	if err := tw.act(act("u", protocol.ActionUpgrade, 0, 0)); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if err := tw.confirm(tw.onlyPending(t)); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	got, _ := tw.grid.At(0, 0)
	if got.Level != 2 || !approx(got.Yield, 0.0015) {
		t.Fatalf("unexpected cell: %+v", got)
	}
	if got.Owner != addrA || len(got.Powerups) != 1 || got.Powerups[0] != territory.PowerupBonus {
		t.Fatalf("upgrade changed owner or powerups: %+v", got)
	}
	if got.Price != before.Price || got.Color != before.Color {
		t.Fatalf("upgrade changed price or color: before=%+v after=%+v", before, got)
	}
	if tw.balance != 1.0 {
		t.Fatalf("balance=%v want 1.0", tw.balance)
	}
	if tw.counters.Upgrades != 1 {
		t.Fatalf("upgrades=%d want 1", tw.counters.Upgrades)
	}
}

func TestUpgradeRequiresOwnership(t *testing.T) {
	tw := newTestWorld(t, 1.0)
	tw.connect(t, addrA)

	if err := tw.act(act("u", protocol.ActionUpgrade, 0, 0)); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("no selection err=%v want ErrNotOwner", err)
	}
	tw.selectAt(t, 5, 5)
	if err := tw.act(act("u", protocol.ActionUpgrade, 0, 0)); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("unowned err=%v want ErrNotOwner", err)
	}
}

func TestUpgradeRequiresFunds(t *testing.T) {
	tw := newTestWorld(t, 0.001)
	tw.connect(t, addrA)
	tw.claim(t, 0, 0)
	tw.selectAt(t, 0, 0)
	if err := tw.act(act("u", protocol.ActionUpgrade, 0, 0)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err=%v want ErrInsufficientFunds", err)
	}
}

func TestUpgradeLosesOwnershipWhilePending(t *testing.T) {
	tw := newTestWorld(t, 1.0)
	tw.connect(t, addrA)
	tw.claim(t, 0, 0)
	tw.selectAt(t, 0, 0)
	if err := tw.act(act("u", protocol.ActionUpgrade, 0, 0)); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	id := tw.onlyPending(t)

	cell, _ := tw.grid.At(0, 0)
	cell.Owner = addrB
	tw.grid.Put(0, 0, cell)

	if err := tw.confirm(id); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err=%v want ErrNotOwner", err)
	}
	if got, _ := tw.grid.At(0, 0); got.Level != 1 {
		t.Fatalf("level=%d want 1", got.Level)
	}
}

func TestPowerupRules(t *testing.T) {
	tw := newTestWorld(t, 1.0)
	tw.connect(t, addrA)
	tw.claim(t, 0, 0)
	tw.selectAt(t, 0, 0)

	bad := act("p", protocol.ActionAddPowerup, 0, 0)
	bad.Powerup = "3x Yield"
	if err := tw.act(bad); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("unknown kind err=%v want ErrBadRequest", err)
	}

	tw.addPowerup(t, territory.PowerupDoubleYield)
	got, _ := tw.grid.At(0, 0)
	if !got.Has(territory.PowerupDoubleYield) || len(got.Powerups) != 1 {
		t.Fatalf("unexpected powerups: %v", got.Powerups)
	}

	dup := act("p", protocol.ActionAddPowerup, 0, 0)
	dup.Powerup = string(territory.PowerupDoubleYield)
	if err := tw.act(dup); !errors.Is(err, ErrDuplicatePowerup) {
		t.Fatalf("duplicate err=%v want ErrDuplicatePowerup", err)
	}
}

func TestDuplicatePowerupWhilePending(t *testing.T) {
	tw := newTestWorld(t, 1.0)
	tw.connect(t, addrA)
	tw.claim(t, 0, 0)
	tw.selectAt(t, 0, 0)

	p := act("p", protocol.ActionAddPowerup, 0, 0)
	p.Powerup = string(territory.PowerupShield)
	if err := tw.act(p); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := tw.act(p); err != nil {
		t.Fatalf("second: %v", err)
	}
	ids := tw.pendingIDs()
	if len(ids) != 2 {
		t.Fatalf("pending=%v want 2", ids)
	}
	if err := tw.confirm(ids[0]); err != nil {
		t.Fatalf("confirm first: %v", err)
	}
	if err := tw.confirm(ids[1]); !errors.Is(err, ErrDuplicatePowerup) {
		t.Fatalf("confirm second err=%v want ErrDuplicatePowerup", err)
	}
	if got, _ := tw.grid.At(0, 0); len(got.Powerups) != 1 {
		t.Fatalf("powerups=%v want one", got.Powerups)
	}
}

func TestPowerupRequiresFunds(t *testing.T) {
	tw := newTestWorld(t, 0.004)
	tw.connect(t, addrA)
	tw.claim(t, 0, 0)
	tw.selectAt(t, 0, 0)
	p := act("p", protocol.ActionAddPowerup, 0, 0)
	p.Powerup = string(territory.PowerupBonus)
	if err := tw.act(p); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err=%v want ErrInsufficientFunds", err)
	}
}

func TestClaimEveryCell(t *testing.T) {
	tw := newTestWorld(t, 1.0)
	tw.connect(t, addrA)
	for y := 0; y < territory.Size; y++ {
		for x := 0; x < territory.Size; x++ {
			tw.claim(t, x, y)
		}
	}
	if got := tw.grid.CountOwned(); got != territory.Cells {
		t.Fatalf("owned=%d want %d", got, territory.Cells)
	}
	if got := len(tw.State().Grid); got != territory.Cells {
		t.Fatalf("state grid=%d want %d", got, territory.Cells)
	}
	if tw.counters.Claims != territory.Cells {
		t.Fatalf("claims=%d", tw.counters.Claims)
	}
}

func TestAuditRecordsMutations(t *testing.T) {
	tw := newTestWorld(t, 1.0)
	rec := &recordingLogger{}
	tw.SetAuditLogger(rec)
	tw.connect(t, addrA)
	tw.claim(t, 4, 1)

	if len(rec.audits) != 1 {
		t.Fatalf("audits=%d want 1", len(rec.audits))
	}
	a := rec.audits[0]
	if a.Action != protocol.ActionClaim || a.Actor != addrA || a.Pos != [2]int{4, 1} || a.OwnerBefore != "" || a.OwnerAfter != addrA {
		t.Fatalf("unexpected audit: %+v", a)
	}
	if !approx(a.Price, 0.015) || a.SessionID != "test" || a.TxID == "" {
		t.Fatalf("unexpected audit: %+v", a)
	}
}

type recordingLogger struct {
	ticks  []TickLogEntry
	audits []AuditEntry
}

func (r *recordingLogger) WriteTick(e TickLogEntry) error {
	r.ticks = append(r.ticks, e)
	return nil
}

func (r *recordingLogger) WriteAudit(e AuditEntry) error {
	r.audits = append(r.audits, e)
	return nil
}
