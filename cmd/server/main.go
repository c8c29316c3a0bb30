package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"conquest.ai/internal/sim/tuning"
	"conquest.ai/internal/sim/world"
	"conquest.ai/internal/transport/ws"
	"conquest.ai/internal/wallet"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable indexing (ticks/audits/sessions/snapshot metadata)")
		ethRPC     = flag.String("eth_rpc", "", "Ethereum JSON-RPC url for balances (or set CONQUEST_ETH_RPC); empty uses the simulated wallet")
		simBalance = flag.Float64("sim_balance", 1.0, "starting ETH balance of simulated wallets")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	// Optional read-model index (the JSONL logs stay authoritative).
	idx, err := openRuntimeIndex(*dataDir, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertTuning(tune); err != nil {
			logger.Printf("index backend: upsert tuning: %v", err)
		}
	}

	mirror, err := buildMirror(*dataDir, logger)
	if err != nil {
		logger.Fatalf("init mirror: %v", err)
	}
	defer mirror.Close()

	ctx, cancel := signalContext()
	defer cancel()

	newWallet, closeWallet, err := walletFactory(ctx, *ethRPC, *simBalance, logger)
	if err != nil {
		logger.Fatalf("wallet: %v", err)
	}
	defer closeWallet()

	rt := &sessionRuntime{
		dataDir: *dataDir,
		idx:     idx,
		mirror:  mirror,
		logger:  logger,
		now:     time.Now,
	}
	wsSrv, err := ws.NewServer(ws.Config{
		World:            worldConfig(tune),
		NewWallet:        newWallet,
		ActionsPerSecond: tune.RateLimits.ActionsPerSecond,
		ActionBurst:      tune.RateLimits.ActionBurst,
		Setup:            rt.setup,
		Logger:           logger,
	})
	if err != nil {
		logger.Fatalf("ws: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, wsSrv.Stats(), wsSrv.Sessions(), idx, mirror)
	})

	enableAdminHTTP := envBool("CONQUEST_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("CONQUEST_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		registerAdmin(mux, wsSrv)
	} else {
		logger.Printf("admin endpoints disabled (CONQUEST_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (accrual=%s tx_latency=%s)", *addr, tune.AccrualPeriod(), tune.TxLatency())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	// Hijacked websocket handlers are not tracked by Shutdown; give them a
	// moment to stop their sessions and archive.
	wsSrv.Wait(5 * time.Second)
}

func worldConfig(t tuning.Tuning) world.Config {
	return world.Config{
		InitialPrice:       t.InitialPrice,
		PriceMultiplier:    t.PriceMultiplier,
		BaseYield:          t.BaseYield,
		UpgradeYieldFactor: t.UpgradeYieldFactor,
		UpgradeCost:        t.UpgradeCost,
		PowerupCost:        t.PowerupCost,
		AccrualPeriod:      t.AccrualPeriod(),
		TxLatency:          t.TxLatency(),
		WalletTimeout:      t.WalletTimeout(),
		Colors:             append([]string(nil), t.Colors...),
		LeaderboardTop:     t.LeaderboardTop,
	}
}

// walletFactory picks the balance source. One Ethereum client is shared by
// every session; simulated wallets are per session.
func walletFactory(ctx context.Context, rpcFlag string, simBalance float64, logger *log.Logger) (func() wallet.Adapter, func(), error) {
	rpc := strings.TrimSpace(rpcFlag)
	if rpc == "" {
		rpc = strings.TrimSpace(os.Getenv("CONQUEST_ETH_RPC"))
	}
	if rpc == "" {
		logger.Printf("wallet: simulated (balance=%.4f ETH)", simBalance)
		return func() wallet.Adapter { return wallet.NewSimulated(simBalance) }, func() {}, nil
	}
	dctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	eth, err := wallet.DialEthereum(dctx, rpc)
	if err != nil {
		return nil, nil, err
	}
	logger.Printf("wallet: ethereum rpc")
	return func() wallet.Adapter { return eth }, eth.Close, nil
}

func registerAdmin(mux *http.ServeMux, wsSrv *ws.Server) {
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			Stats    ws.Stats           `json:"stats"`
			Sessions []ws.SessionStatus `json:"sessions"`
		}{
			Stats:    wsSrv.Stats(),
			Sessions: wsSrv.Sessions(),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	})
	mux.HandleFunc("/admin/v1/sessions", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(wsSrv.Sessions())
	})
	mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		id := strings.TrimSpace(r.URL.Query().Get("session"))
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		tick, err := wsSrv.RequestSnapshot(ctx2, id)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "session": id, "tick": tick, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "session": id, "tick": tick})
	})
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
