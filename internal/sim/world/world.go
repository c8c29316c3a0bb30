package world

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"

	"conquest.ai/internal/persistence/snapshot"
	"conquest.ai/internal/protocol"
	"conquest.ai/internal/sim/territory"
	"conquest.ai/internal/sim/yield"
	"conquest.ai/internal/wallet"
)

// Envelope carries one client intent into the world loop. Exactly one field is set.
type Envelope struct {
	Connect  *protocol.ConnectMsg
	Accounts *protocol.AccountsChangedMsg
	Act      *protocol.ActMsg
}

// World is a single-threaded authoritative game session.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg    Config
	wallet wallet.Adapter
	out    chan []byte
	rng    *rand.Rand

	// Results and notices waiting for room in out, oldest first.
	backlog    [][]byte
	stateDirty bool
	outDropped uint64

	tick atomic.Uint64

	grid     *territory.Grid
	board    *yield.Leaderboard
	address  string
	balance  float64
	selected *territory.Coord

	pending   map[string]*pendingTx
	nextTxNum uint64
	walletSeq uint64

	counters   snapshot.CountersV1
	lastEarned float64

	// Cancelled when the world stops; parent of every pending tx and wallet call.
	ctx    context.Context
	cancel context.CancelFunc

	inbox    chan Envelope
	confirms chan string
	walletCh chan walletResult
	admin    chan adminSnapshotReq
	stop     chan struct{}
	stopOnce sync.Once
	shutOnce sync.Once

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger

	// Optional snapshot sink (may be nil). Snapshot writing should be off-thread.
	snapshotSink chan<- snapshot.SnapshotV1

	metrics atomic.Value
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// TickLogEntry records one accrual pass.
type TickLogEntry struct {
	SessionID string  `json:"session_id"`
	Tick      uint64  `json:"tick"`
	TimeMs    int64   `json:"time_ms"`
	Address   string  `json:"address,omitempty"`
	Earned    float64 `json:"earned"`
	Owned     int     `json:"owned"`
	Digest    string  `json:"digest"`
}

// AuditEntry records one applied territory mutation.
type AuditEntry struct {
	SessionID   string  `json:"session_id"`
	Tick        uint64  `json:"tick"`
	TimeMs      int64   `json:"time_ms"`
	TxID        string  `json:"tx_id"`
	Actor       string  `json:"actor"`
	Action      string  `json:"action"`
	Pos         [2]int  `json:"pos"`
	OwnerBefore string  `json:"owner_before,omitempty"`
	OwnerAfter  string  `json:"owner_after"`
	Price       float64 `json:"price"`
	Yield       float64 `json:"yield"`
	Level       int     `json:"level"`
	Powerup     string  `json:"powerup,omitempty"`
	Reason      string  `json:"reason,omitempty"`
}

// New creates a session. out receives encoded server messages; it may be nil.
func New(cfg Config, wa wallet.Adapter, out chan []byte) (*World, error) {
	if wa == nil {
		return nil, fmt.Errorf("nil wallet adapter")
	}
	cfg.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	w := &World{
		cfg:    cfg,
		wallet: wa,
		out:    out,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		grid: territory.NewGrid(territory.Defaults{
			Price: cfg.InitialPrice,
			Yield: cfg.BaseYield,
		}, cfg.Now()),
		board:    yield.NewLeaderboard(),
		pending:  map[string]*pendingTx{},
		ctx:      ctx,
		cancel:   cancel,
		inbox:    make(chan Envelope, 64),
		confirms: make(chan string, 64),
		walletCh: make(chan walletResult, 32),
		admin:    make(chan adminSnapshotReq, 4),
		stop:     make(chan struct{}),
	}
	w.publishMetrics()
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger)                  { w.auditLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) Inbox() chan<- Envelope { return w.inbox }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.SessionID
}

// Welcome describes the session to a freshly connected client.
func (w *World) Welcome() protocol.WelcomeMsg {
	powerups := make([]string, 0, len(territory.Powerups))
	for _, p := range territory.Powerups {
		powerups = append(powerups, string(p))
	}
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       w.cfg.SessionID,
		GridSize:        territory.Size,
		Params: protocol.GameParams{
			InitialPrice:       w.cfg.InitialPrice,
			PriceMultiplier:    w.cfg.PriceMultiplier,
			BaseYield:          w.cfg.BaseYield,
			UpgradeYieldFactor: w.cfg.UpgradeYieldFactor,
			UpgradeCost:        w.cfg.UpgradeCost,
			PowerupCost:        w.cfg.PowerupCost,
			AccrualPeriodMs:    w.cfg.AccrualPeriod.Milliseconds(),
			TxLatencyMs:        w.cfg.TxLatency.Milliseconds(),
			Powerups:           powerups,
		},
	}
}
