package world

import (
	"encoding/json"
	"math"
	"sort"
	"testing"
	"time"

	"conquest.ai/internal/protocol"
	"conquest.ai/internal/wallet"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type testWorld struct {
	*World
	wallet *wallet.Simulated
	clock  *fakeClock
	out    chan []byte
}

// newTestWorld builds a session that is driven by hand: nothing runs Run, and
// the tx latency is long enough that confirmations only happen through confirm.
func newTestWorld(t *testing.T, balance float64) *testWorld {
	t.Helper()
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	sim := wallet.NewSimulated(balance)
	out := make(chan []byte, 1024)
	w, err := New(Config{
		SessionID: "test",
		TxLatency: time.Hour,
		Seed:      1,
		Now:       clk.Now,
	}, sim, out)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	t.Cleanup(w.shutdown)
	return &testWorld{World: w, wallet: sim, clock: clk, out: out}
}

// connect runs a CONNECT through the wallet round trip.
func (tw *testWorld) connect(t *testing.T, addr string) {
	t.Helper()
	tw.handleConnect(protocol.ConnectMsg{Address: addr})
	tw.handleWalletResult(tw.nextWalletResult(t))
	if tw.address != addr {
		t.Fatalf("address=%q want %q", tw.address, addr)
	}
}

func (tw *testWorld) nextWalletResult(t *testing.T) walletResult {
	t.Helper()
	select {
	case res := <-tw.walletCh:
		return res
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for wallet result")
	}
	return walletResult{}
}

func (tw *testWorld) pendingIDs() []string {
	ids := make([]string, 0, len(tw.pending))
	for id := range tw.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// onlyPending returns the id of the single pending transaction.
func (tw *testWorld) onlyPending(t *testing.T) string {
	t.Helper()
	ids := tw.pendingIDs()
	if len(ids) != 1 {
		t.Fatalf("pending=%v want exactly one", ids)
	}
	return ids[0]
}

func act(id, action string, x, y int) protocol.ActMsg {
	return protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		ID:              id,
		Action:          action,
		X:               x,
		Y:               y,
	}
}

// drain returns every queued outbound message decoded as a generic map.
func drain(out chan []byte) []map[string]any {
	var msgs []map[string]any
	for {
		select {
		case b := <-out:
			var m map[string]any
			if err := json.Unmarshal(b, &m); err == nil {
				msgs = append(msgs, m)
			}
		default:
			return msgs
		}
	}
}

func ofType(msgs []map[string]any, typ string) []map[string]any {
	var out []map[string]any
	for _, m := range msgs {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-12 }
