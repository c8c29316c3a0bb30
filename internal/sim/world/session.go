package world

import (
	"context"
	"fmt"
	"strings"

	"conquest.ai/internal/protocol"
	"conquest.ai/internal/wallet"
)

type walletOp int

const (
	walletConnect walletOp = iota + 1
	walletBalance
)

type walletResult struct {
	op      walletOp
	seq     uint64
	address string
	account wallet.Account
	balance float64
	err     error
}

// callWallet runs fn off the loop and posts its result back through walletCh.
func (w *World) callWallet(fn func(ctx context.Context) walletResult) {
	ctx, cancel := context.WithTimeout(w.ctx, w.cfg.WalletTimeout)
	go func() {
		defer cancel()
		res := fn(ctx)
		select {
		case w.walletCh <- res:
		case <-w.ctx.Done():
		}
	}()
}

func (w *World) handleConnect(msg protocol.ConnectMsg) {
	w.walletSeq++
	seq := w.walletSeq
	requested := strings.TrimSpace(msg.Address)
	wa := w.wallet
	w.callWallet(func(ctx context.Context) walletResult {
		acct, err := wa.Connect(ctx, requested)
		return walletResult{op: walletConnect, seq: seq, account: acct, err: err}
	})
}

func (w *World) refreshBalance(addr string) {
	if addr == "" {
		return
	}
	wa := w.wallet
	w.callWallet(func(ctx context.Context) walletResult {
		bal, err := wa.Balance(ctx, addr)
		return walletResult{op: walletBalance, address: addr, balance: bal, err: err}
	})
}

func (w *World) handleWalletResult(res walletResult) {
	switch res.op {
	case walletConnect:
		// A later connect or account switch supersedes this one.
		if res.seq != w.walletSeq {
			return
		}
		if res.err != nil {
			w.notice(protocol.NoticeError, Code(res.err), noticeText(res.err))
			return
		}
		w.address = res.account.Address
		w.balance = res.account.Balance
		w.notice(protocol.NoticeSuccess, "", "Wallet connected!")
		w.pushState()
	case walletBalance:
		if res.address != w.address {
			return
		}
		if res.err != nil {
			w.notice(protocol.NoticeError, Code(res.err), noticeText(res.err))
			return
		}
		w.balance = res.balance
		w.pushState()
	}
}

// handleAccountsChanged follows the wallet's account list: empty disconnects,
// otherwise the first account becomes active and its balance is re-read.
func (w *World) handleAccountsChanged(accounts []string) {
	w.walletSeq++
	addr := ""
	if len(accounts) > 0 {
		addr = w.wallet.Normalize(accounts[0])
	}
	if addr == "" {
		if w.address == "" {
			return
		}
		w.address = ""
		w.balance = 0
		w.notice(protocol.NoticeInfo, "", "Wallet disconnected")
		w.pushState()
		return
	}
	if addr != w.address {
		w.address = addr
		w.balance = 0
		w.notice(protocol.NoticeInfo, "", fmt.Sprintf("Switched to %s", shortAddress(addr)))
	}
	w.refreshBalance(addr)
	w.pushState()
}

func shortAddress(a string) string {
	if len(a) <= 10 {
		return a
	}
	return a[:6] + "..." + a[len(a)-4:]
}
