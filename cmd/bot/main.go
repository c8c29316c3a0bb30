package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"conquest.ai/internal/protocol"
)

func main() {
	var (
		url        = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name       = flag.String("name", "bot", "client name")
		address    = flag.String("address", "", "wallet address to connect with (empty lets the wallet choose)")
		every      = flag.Duration("every", 2*time.Second, "interval between actions")
		maxPending = flag.Int("max_pending", 2, "do not act while this many transactions are in flight")
		seed       = flag.Int64("seed", 0, "rng seed (0 = time based)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 32},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	b := &bot{
		conn:       conn,
		logger:     logger,
		address:    *address,
		maxPending: *maxPending,
		planner:    newPlanner(rand.New(rand.NewSource(*seed))),
	}

	msgs := make(chan []byte, 64)
	go func() {
		defer close(msgs)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				logger.Printf("read: %v", err)
				return
			}
			msgs <- msg
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	ticker := time.NewTicker(*every)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			b.handle(msg)
		case <-ticker.C:
			b.step()
		}
	}
}

type bot struct {
	conn       *websocket.Conn
	logger     *log.Logger
	address    string
	maxPending int
	planner    *planner

	params    protocol.GameParams
	state     *protocol.StateMsg
	connectAt time.Time
	seq       int
}

func (b *bot) handle(msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var w protocol.WelcomeMsg
		if json.Unmarshal(msg, &w) != nil {
			return
		}
		b.params = w.Params
		b.logger.Printf("WELCOME session=%s grid=%d claim_price=%.4f", w.SessionID, w.GridSize, w.Params.InitialPrice)

	case protocol.TypeState:
		var st protocol.StateMsg
		if json.Unmarshal(msg, &st) != nil {
			return
		}
		b.state = &st
		if !st.Connected && time.Since(b.connectAt) > 5*time.Second {
			b.connectAt = time.Now()
			_ = b.conn.WriteJSON(protocol.ConnectMsg{
				Type:            protocol.TypeConnect,
				ProtocolVersion: protocol.Version,
				Address:         b.address,
			})
		}

	case protocol.TypeActionResult:
		var r protocol.ActionResultMsg
		if json.Unmarshal(msg, &r) != nil {
			return
		}
		switch r.Status {
		case protocol.StatusConfirmed:
			b.logger.Printf("%s %s confirmed tx=%s", r.ID, r.Action, r.TxID)
		case protocol.StatusFailed:
			b.logger.Printf("%s %s failed code=%s msg=%q", r.ID, r.Action, r.Code, r.Message)
		}

	case protocol.TypeNotice:
		var n protocol.NoticeMsg
		if json.Unmarshal(msg, &n) != nil {
			return
		}
		b.logger.Printf("NOTICE [%s] %s", n.Level, n.Text)
	}
}

func (b *bot) step() {
	st := b.state
	if st == nil || !st.Connected || st.Pending >= b.maxPending {
		return
	}
	for _, act := range b.planner.next(*st, b.params) {
		b.seq++
		act.Type = protocol.TypeAct
		act.ProtocolVersion = protocol.Version
		act.ID = fmt.Sprintf("B%d", b.seq)
		if err := b.conn.WriteJSON(act); err != nil {
			b.logger.Printf("send %s: %v", act.Action, err)
			return
		}
	}
	b.logger.Printf("tick=%d balance=%.4f earned=%.4f owned=%d", st.Tick, st.Balance, st.Earned, len(owned(*st)))
}
