package world

import (
	"encoding/json"

	"conquest.ai/internal/protocol"
	"conquest.ai/internal/sim/territory"
)

// maxBacklog bounds the results and notices held while the client is slow.
const maxBacklog = 256

// send queues a result or notice. These are never replaced by later
// messages: when out is full they wait in the backlog, in order.
func (w *World) send(v any) {
	if w.out == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	w.flushOut()
	if len(w.backlog) == 0 && tryPush(w.out, b) {
		return
	}
	if len(w.backlog) >= maxBacklog {
		w.outDropped++
		return
	}
	w.backlog = append(w.backlog, b)
}

// flushOut moves backlog into out, then delivers a deferred STATE once the
// backlog is empty.
func (w *World) flushOut() {
	if w.out == nil {
		return
	}
	for len(w.backlog) > 0 {
		if !tryPush(w.out, w.backlog[0]) {
			return
		}
		w.backlog[0] = nil
		w.backlog = w.backlog[1:]
	}
	if w.stateDirty {
		w.stateDirty = false
		w.pushState()
	}
}

func tryPush(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
		return false
	}
}

func (w *World) sendResult(act protocol.ActMsg, status, txID string, err error) {
	msg := protocol.ActionResultMsg{
		Type:            protocol.TypeActionResult,
		ProtocolVersion: protocol.Version,
		Tick:            w.tick.Load(),
		ID:              act.ID,
		Action:          act.Action,
		Status:          status,
		OK:              err == nil,
		TxID:            txID,
	}
	if err != nil {
		msg.Code = Code(err)
		msg.Message = err.Error()
	}
	w.send(msg)
}

func (w *World) fail(act protocol.ActMsg, txID string, err error) {
	w.counters.Failures++
	w.sendResult(act, protocol.StatusFailed, txID, err)
	w.notice(protocol.NoticeError, Code(err), noticeText(err))
}

func (w *World) notice(level, code, text string) {
	w.send(protocol.NoticeMsg{
		Type:            protocol.TypeNotice,
		ProtocolVersion: protocol.Version,
		Level:           level,
		Code:            code,
		Text:            text,
	})
}

// pushState sends the current STATE. Each STATE supersedes the previous one,
// so when the client is behind it is deferred and rebuilt on the next flush.
func (w *World) pushState() {
	if w.out == nil {
		return
	}
	if len(w.backlog) > 0 {
		w.stateDirty = true
		return
	}
	b, err := json.Marshal(w.State())
	if err != nil {
		return
	}
	w.stateDirty = !tryPush(w.out, b)
}

// State builds the client view. Loop goroutine only.
func (w *World) State() protocol.StateMsg {
	st := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Tick:            w.tick.Load(),
		Address:         w.address,
		Connected:       w.address != "",
		Balance:         w.balance,
		Earned:          w.board.Get(w.address),
		Pending:         len(w.pending),
		Grid:            make([]protocol.TerritoryObs, 0, territory.Cells),
		Leaderboard:     []protocol.LeaderObs{},
	}
	if w.selected != nil {
		st.Selected = &protocol.CellRef{X: w.selected.X, Y: w.selected.Y}
	}
	w.grid.Each(func(t territory.Territory) {
		st.Grid = append(st.Grid, territoryObs(t))
	})
	for _, e := range w.board.Top(w.cfg.LeaderboardTop) {
		st.Leaderboard = append(st.Leaderboard, protocol.LeaderObs{Address: e.Address, Earned: e.Earned})
	}
	return st
}

func territoryObs(t territory.Territory) protocol.TerritoryObs {
	powerups := make([]string, 0, len(t.Powerups))
	for _, p := range t.Powerups {
		powerups = append(powerups, string(p))
	}
	return protocol.TerritoryObs{
		X:             t.X,
		Y:             t.Y,
		Owner:         t.Owner,
		Color:         t.Color,
		Price:         t.Price,
		LastClaimedMs: t.LastClaimed.UnixMilli(),
		Yield:         t.Yield,
		Level:         t.Level,
		Powerups:      powerups,
	}
}
