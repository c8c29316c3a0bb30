package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestSimulated_ConnectAndBalance(t *testing.T) {
	s := NewSimulated(1.0)
	s.SetBalance("0xB", 0.25)

	acct, err := s.Connect(context.Background(), "0xA")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if acct.Address != "0xA" || acct.Balance != 1.0 {
		t.Fatalf("account=%+v", acct)
	}
	if bal, _ := s.Balance(context.Background(), "0xB"); bal != 0.25 {
		t.Fatalf("balance=%v want 0.25", bal)
	}

	acct, err = s.Connect(context.Background(), "")
	if err != nil || acct.Address != DefaultSimulatedAddress {
		t.Fatalf("default connect: %+v %v", acct, err)
	}
}

func TestSimulated_Failures(t *testing.T) {
	s := NewSimulated(1.0)

	s.SetUnavailable(true)
	if _, err := s.Connect(context.Background(), "0xA"); !errors.Is(err, ErrNoWalletExtension) {
		t.Fatalf("err=%v want ErrNoWalletExtension", err)
	}
	s.SetUnavailable(false)

	s.SetReject(true)
	if _, err := s.Connect(context.Background(), "0xA"); !errors.Is(err, ErrUserRejected) {
		t.Fatalf("err=%v want ErrUserRejected", err)
	}
	s.SetReject(false)

	s.SetBalanceFailure(true)
	if _, err := s.Balance(context.Background(), "0xA"); !errors.Is(err, ErrBalanceFetch) {
		t.Fatalf("err=%v want ErrBalanceFetch", err)
	}
}

func TestSimulated_AccountChanges(t *testing.T) {
	s := NewSimulated(1.0)
	var n Notifier = s
	s.SwitchAccounts([]string{"0xB"})
	s.SwitchAccounts(nil)

	if got := <-n.AccountChanges(); len(got) != 1 || got[0] != "0xB" {
		t.Fatalf("first change=%v", got)
	}
	if got := <-n.AccountChanges(); len(got) != 0 {
		t.Fatalf("second change=%v want empty", got)
	}
}

type rpcReq struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params []any           `json:"params"`
}

func newRPCServer(t *testing.T, fail *atomic.Bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		switch {
		case fail.Load():
			resp["error"] = map[string]any{"code": -32000, "message": "node unavailable"}
		case req.Method == "eth_getBalance":
			// 1.5 ETH
			resp["result"] = "0x14d1120d7b160000"
		default:
			resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestEthereum_ConnectReadsBalance(t *testing.T) {
	var fail atomic.Bool
	srv := newRPCServer(t, &fail)
	defer srv.Close()

	eth, err := DialEthereum(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer eth.Close()

	raw := "0x00000000000000000000000000000000000000a1"
	acct, err := eth.Connect(context.Background(), raw)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if acct.Address != common.HexToAddress(raw).Hex() {
		t.Fatalf("address=%s", acct.Address)
	}
	if acct.Balance != 1.5 {
		t.Fatalf("balance=%v want 1.5", acct.Balance)
	}

	fail.Store(true)
	if _, err := eth.Balance(context.Background(), acct.Address); !errors.Is(err, ErrBalanceFetch) {
		t.Fatalf("err=%v want ErrBalanceFetch", err)
	}
}

func TestEthereum_ConnectRejectsBadAddress(t *testing.T) {
	var fail atomic.Bool
	srv := newRPCServer(t, &fail)
	defer srv.Close()

	eth, err := DialEthereum(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer eth.Close()

	if _, err := eth.Connect(context.Background(), ""); !errors.Is(err, ErrNoWalletExtension) {
		t.Fatalf("err=%v want ErrNoWalletExtension", err)
	}
	if _, err := eth.Connect(context.Background(), "0xA"); !errors.Is(err, ErrUserRejected) {
		t.Fatalf("err=%v want ErrUserRejected", err)
	}
}

func TestWeiToEther(t *testing.T) {
	one := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	if got := WeiToEther(one); got != 1 {
		t.Fatalf("WeiToEther(1e18)=%v", got)
	}
	if got := WeiToEther(nil); got != 0 {
		t.Fatalf("WeiToEther(nil)=%v", got)
	}
}

func TestEthereum_NormalizeMatchesConnect(t *testing.T) {
	var fail atomic.Bool
	srv := newRPCServer(t, &fail)
	defer srv.Close()

	eth, err := DialEthereum(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer eth.Close()

	lower := "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd"
	acct, err := eth.Connect(context.Background(), lower)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if acct.Address == lower {
		t.Fatalf("connect kept the lowercase form")
	}
	if got := eth.Normalize(" " + lower + " "); got != acct.Address {
		t.Fatalf("Normalize=%s want %s", got, acct.Address)
	}
	if got := eth.Normalize("not-an-address"); got != "not-an-address" {
		t.Fatalf("Normalize(invalid)=%s", got)
	}
	if got := NewSimulated(1).Normalize(" 0xA "); got != "0xA" {
		t.Fatalf("simulated Normalize=%q", got)
	}
}
