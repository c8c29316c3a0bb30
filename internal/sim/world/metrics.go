package world

// WorldMetrics is a thread-safe read-only view of key session signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	SessionID string `json:"session_id"`
	Tick      uint64 `json:"tick"`

	Connected bool    `json:"connected"`
	Address   string  `json:"address,omitempty"`
	Balance   float64 `json:"balance"`

	Owned   int `json:"owned"`
	Claimed int `json:"claimed"`
	Pending int `json:"pending"`

	Earned     float64 `json:"earned"`
	LastEarned float64 `json:"last_earned"`

	Claims    uint64 `json:"claims"`
	Upgrades  uint64 `json:"upgrades"`
	Powerups  uint64 `json:"powerups"`
	Failures  uint64 `json:"failures"`
	Cancelled uint64 `json:"cancelled"`

	// OutDropped counts results and notices lost to a full backlog.
	OutDropped uint64 `json:"out_dropped"`

	QueueDepths QueueDepths `json:"queue_depths"`
}

type QueueDepths struct {
	Inbox    int `json:"inbox"`
	Confirms int `json:"confirms"`
	Wallet   int `json:"wallet"`
	Backlog  int `json:"backlog"`
}

func (w *World) publishMetrics() {
	w.metrics.Store(WorldMetrics{
		SessionID:  w.cfg.SessionID,
		Tick:       w.tick.Load(),
		Connected:  w.address != "",
		Address:    w.address,
		Balance:    w.balance,
		Owned:      len(w.grid.OwnedBy(w.address)),
		Claimed:    w.grid.CountOwned(),
		Pending:    len(w.pending),
		Earned:     w.board.Get(w.address),
		LastEarned: w.lastEarned,
		Claims:     w.counters.Claims,
		Upgrades:   w.counters.Upgrades,
		Powerups:   w.counters.Powerups,
		Failures:   w.counters.Failures,
		Cancelled:  w.counters.Cancelled,
		OutDropped: w.outDropped,
		QueueDepths: QueueDepths{
			Inbox:    len(w.inbox),
			Confirms: len(w.confirms),
			Wallet:   len(w.walletCh),
			Backlog:  len(w.backlog),
		},
	})
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}
