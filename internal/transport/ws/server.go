package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"conquest.ai/internal/protocol"
	"conquest.ai/internal/sim/world"
	"conquest.ai/internal/wallet"
)

// SessionInfo identifies one connection.
type SessionInfo struct {
	ID         string    `json:"session_id"`
	ClientName string    `json:"client_name"`
	Remote     string    `json:"remote"`
	StartedAt  time.Time `json:"-"`
}

// Config describes how each connection's session is built.
type Config struct {
	// World is the template for every session; SessionID is filled per connection.
	World world.Config
	// NewWallet returns the wallet adapter for a new session.
	NewWallet func() wallet.Adapter

	ActionsPerSecond float64
	ActionBurst      int

	// Setup runs after the session is created and before it starts. The
	// returned func runs after the session has stopped.
	Setup func(w *world.World, info SessionInfo) (teardown func())

	Logger *log.Logger
}

type Server struct {
	cfg Config
	log *log.Logger
	val *protocol.Validator

	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*session
	handlers sync.WaitGroup

	total    atomic.Uint64
	rejected atomic.Uint64
	limited  atomic.Uint64
	invalid  atomic.Uint64
}

type session struct {
	info SessionInfo
	w    *world.World
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.NewWallet == nil {
		return nil, errors.New("ws: nil wallet factory")
	}
	if cfg.ActionsPerSecond <= 0 {
		cfg.ActionsPerSecond = 10
	}
	if cfg.ActionBurst <= 0 {
		cfg.ActionBurst = 20
	}
	val, err := protocol.NewValidator()
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg: cfg,
		log: cfg.Logger,
		val: val,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		sessions: map[string]*session{},
	}, nil
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		s.handlers.Add(1)
		defer s.handlers.Done()
		defer conn.Close()

		hello, ok := s.handshake(conn)
		if !ok {
			s.rejected.Add(1)
			return
		}

		info := SessionInfo{
			ID:         "S" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
			ClientName: hello.ClientName,
			Remote:     r.RemoteAddr,
			StartedAt:  time.Now(),
		}
		out := make(chan []byte, queueSize(hello.Capabilities.MaxQueue))

		wcfg := s.cfg.World
		wcfg.SessionID = info.ID
		w, err := world.New(wcfg, s.cfg.NewWallet(), out)
		if err != nil {
			s.printf("ws: session %s: %v", info.ID, err)
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session unavailable"), time.Now().Add(time.Second))
			return
		}
		teardown := func() {}
		if s.cfg.Setup != nil {
			if td := s.cfg.Setup(w, info); td != nil {
				teardown = td
			}
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		// Unblocks the reader when the session ends from the server side.
		go func() {
			<-ctx.Done()
			_ = conn.Close()
		}()
		runDone := make(chan struct{})
		go func() {
			defer close(runDone)
			_ = w.Run(ctx)
		}()

		s.register(&session{info: info, w: w})
		s.total.Add(1)
		s.printf("ws: session %s open client=%q remote=%s", info.ID, info.ClientName, info.Remote)
		defer func() {
			cancel()
			<-runDone
			s.unregister(info.ID)
			teardown()
			s.printf("ws: session %s closed tick=%d", info.ID, w.CurrentTick())
		}()

		if err := writeJSON(conn, w.Welcome()); err != nil {
			return
		}

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		s.readLoop(ctx, conn, w, out)
	}
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, w *world.World, out chan []byte) {
	limiter := rate.NewLimiter(rate.Limit(s.cfg.ActionsPerSecond), s.cfg.ActionBurst)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := s.val.Validate(msg)
		if err != nil {
			s.invalid.Add(1)
			reply(out, protocol.NoticeMsg{
				Type:            protocol.TypeNotice,
				ProtocolVersion: protocol.Version,
				Level:           protocol.NoticeError,
				Code:            protocol.ErrProtoBadRequest,
				Text:            "Invalid message",
			})
			continue
		}
		if base.ProtocolVersion != protocol.Version {
			s.invalid.Add(1)
			reply(out, protocol.NoticeMsg{
				Type:            protocol.TypeNotice,
				ProtocolVersion: protocol.Version,
				Level:           protocol.NoticeError,
				Code:            protocol.ErrProtoBadRequest,
				Text:            "Unsupported protocol version",
			})
			continue
		}

		var env world.Envelope
		switch base.Type {
		case protocol.TypeConnect:
			var m protocol.ConnectMsg
			if json.Unmarshal(msg, &m) != nil {
				continue
			}
			env.Connect = &m
		case protocol.TypeAccountsChanged:
			var m protocol.AccountsChangedMsg
			if json.Unmarshal(msg, &m) != nil {
				continue
			}
			env.Accounts = &m
		case protocol.TypeAct:
			var m protocol.ActMsg
			if json.Unmarshal(msg, &m) != nil {
				continue
			}
			if !limiter.Allow() {
				s.limited.Add(1)
				reply(out, protocol.ActionResultMsg{
					Type:            protocol.TypeActionResult,
					ProtocolVersion: protocol.Version,
					Tick:            w.CurrentTick(),
					ID:              m.ID,
					Action:          m.Action,
					Status:          protocol.StatusFailed,
					Code:            protocol.ErrRateLimit,
					Message:         "too many actions",
				})
				continue
			}
			env.Act = &m
		default:
			// HELLO again, or a server-side type echoed back.
			continue
		}

		select {
		case w.Inbox() <- env:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (protocol.HelloMsg, bool) {
	var hello protocol.HelloMsg
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return hello, false
	}
	base, err := s.val.Validate(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return hello, false
	}
	if err := json.Unmarshal(msg, &hello); err != nil {
		closeWith(conn, "bad HELLO")
		return hello, false
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return hello, false
	}
	if hello.ClientName == "" {
		hello.ClientName = "client"
	}
	return hello, true
}

func queueSize(requested int) int {
	switch {
	case requested <= 0:
		return 128
	case requested < 16:
		return 16
	case requested > 512:
		return 512
	default:
		return requested
	}
}

// reply queues a transport-level message for the writer without blocking the reader.
func reply(out chan []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func (s *Server) register(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.info.ID] = sess
}

func (s *Server) unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// SessionStatus is the admin view of a live session.
type SessionStatus struct {
	SessionInfo
	StartedAtMs int64              `json:"started_at_ms"`
	Metrics     world.WorldMetrics `json:"metrics"`
}

// Sessions lists live sessions ordered by start time.
func (s *Server) Sessions() []SessionStatus {
	s.mu.Lock()
	list := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	s.mu.Unlock()

	out := make([]SessionStatus, 0, len(list))
	for _, sess := range list {
		out = append(out, SessionStatus{
			SessionInfo: sess.info,
			StartedAtMs: sess.info.StartedAt.UnixMilli(),
			Metrics:     sess.w.Metrics(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAtMs != out[j].StartedAtMs {
			return out[i].StartedAtMs < out[j].StartedAtMs
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// RequestSnapshot asks a live session to write a snapshot.
func (s *Server) RequestSnapshot(ctx context.Context, id string) (uint64, error) {
	s.mu.Lock()
	sess := s.sessions[id]
	s.mu.Unlock()
	if sess == nil {
		return 0, errors.New("unknown session")
	}
	return sess.w.RequestSnapshot(ctx)
}

type Stats struct {
	Active        int    `json:"active"`
	OpenedTotal   uint64 `json:"opened_total"`
	RejectedTotal uint64 `json:"rejected_total"`
	RateLimited   uint64 `json:"rate_limited_total"`
	InvalidTotal  uint64 `json:"invalid_total"`
}

func (s *Server) Stats() Stats {
	s.mu.Lock()
	active := len(s.sessions)
	s.mu.Unlock()
	return Stats{
		Active:        active,
		OpenedTotal:   s.total.Load(),
		RejectedTotal: s.rejected.Load(),
		RateLimited:   s.limited.Load(),
		InvalidTotal:  s.invalid.Load(),
	}
}

// Wait blocks until every connection handler has returned or d elapses.
func (s *Server) Wait(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

func (s *Server) printf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}
