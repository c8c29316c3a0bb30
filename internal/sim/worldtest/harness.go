package worldtest

import (
	"context"
	"encoding/json"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"conquest.ai/internal/protocol"
	"conquest.ai/internal/sim/world"
	"conquest.ai/internal/wallet"
)

// Harness drives a running session through its exported surface only:
// envelopes go into Inbox, and every outbound message is decoded (and
// schema-checked when a schema exists) as it arrives.
type Harness struct {
	T      *testing.T
	W      *world.World
	Wallet *wallet.Simulated

	out     chan []byte
	val     *protocol.Validator
	cancel  context.CancelFunc
	done    chan error
	nextRef atomic.Uint64

	States  []protocol.StateMsg
	Results []protocol.ActionResultMsg
	Notices []protocol.NoticeMsg
}

func NewHarness(t *testing.T, cfg world.Config, balance float64) *Harness {
	t.Helper()

	val, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	sim := wallet.NewSimulated(balance)
	out := make(chan []byte, 1024)
	w, err := world.New(cfg, sim, out)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Harness{
		T:      t,
		W:      w,
		Wallet: sim,
		out:    out,
		val:    val,
		cancel: cancel,
		done:   make(chan error, 1),
	}
	go func() { h.done <- w.Run(ctx) }()
	t.Cleanup(h.Close)
	return h
}

// Close stops the session and waits for Run to return.
func (h *Harness) Close() {
	h.cancel()
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		h.T.Errorf("world did not stop")
	}
}

func (h *Harness) Connect(addr string) protocol.StateMsg {
	h.T.Helper()
	h.W.Inbox() <- world.Envelope{Connect: &protocol.ConnectMsg{
		Type:            protocol.TypeConnect,
		ProtocolVersion: protocol.Version,
		Address:         addr,
	}}
	return h.WaitState(func(s protocol.StateMsg) bool { return s.Connected })
}

func (h *Harness) SwitchAccounts(accounts ...string) {
	h.W.Inbox() <- world.Envelope{Accounts: &protocol.AccountsChangedMsg{
		Type:            protocol.TypeAccountsChanged,
		ProtocolVersion: protocol.Version,
		Accounts:        accounts,
	}}
}

// Act submits an action and returns its client id.
func (h *Harness) Act(action string, x, y int, powerup string) string {
	id := "A" + strconv.FormatUint(h.nextRef.Add(1), 10)
	h.W.Inbox() <- world.Envelope{Act: &protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		ID:              id,
		Action:          action,
		X:               x,
		Y:               y,
		Powerup:         powerup,
	}}
	return id
}

// WaitResult blocks until the action id reaches a terminal status.
func (h *Harness) WaitResult(id string) protocol.ActionResultMsg {
	h.T.Helper()
	var res protocol.ActionResultMsg
	h.wait(func() bool {
		for _, r := range h.Results {
			if r.ID == id && r.Status != protocol.StatusPending {
				res = r
				return true
			}
		}
		return false
	})
	return res
}

func (h *Harness) WaitState(match func(protocol.StateMsg) bool) protocol.StateMsg {
	h.T.Helper()
	var st protocol.StateMsg
	h.wait(func() bool {
		if len(h.States) == 0 {
			return false
		}
		st = h.States[len(h.States)-1]
		return match(st)
	})
	return st
}

func (h *Harness) WaitNotice(text string) protocol.NoticeMsg {
	h.T.Helper()
	var n protocol.NoticeMsg
	h.wait(func() bool {
		for _, got := range h.Notices {
			if got.Text == text {
				n = got
				return true
			}
		}
		return false
	})
	return n
}

func (h *Harness) LastState() protocol.StateMsg {
	if len(h.States) == 0 {
		return protocol.StateMsg{}
	}
	return h.States[len(h.States)-1]
}

func (h *Harness) wait(cond func() bool) {
	h.T.Helper()
	deadline := time.After(3 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case b := <-h.out:
			h.record(b)
		case <-deadline:
			h.T.Fatalf("timed out; last state=%+v", h.LastState())
		}
	}
}

func (h *Harness) record(b []byte) {
	h.T.Helper()
	base, err := protocol.DecodeBase(b)
	if err != nil {
		h.T.Fatalf("decode: %v", err)
	}
	if base.Type != protocol.TypeNotice {
		if _, err := h.val.Validate(b); err != nil {
			h.T.Fatalf("%s violates schema: %v", base.Type, err)
		}
	}
	switch base.Type {
	case protocol.TypeState:
		var st protocol.StateMsg
		mustUnmarshal(h.T, b, &st)
		h.States = append(h.States, st)
	case protocol.TypeActionResult:
		var r protocol.ActionResultMsg
		mustUnmarshal(h.T, b, &r)
		h.Results = append(h.Results, r)
	case protocol.TypeNotice:
		var n protocol.NoticeMsg
		mustUnmarshal(h.T, b, &n)
		h.Notices = append(h.Notices, n)
	}
}

func mustUnmarshal(t *testing.T, b []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
}
