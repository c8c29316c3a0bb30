// Package wallet is the boundary to whatever holds the player's funds.
// The game only needs an address and a balance; it never submits transactions.
package wallet

import (
	"context"
	"errors"
)

var (
	ErrNoWalletExtension = errors.New("no wallet available")
	ErrUserRejected      = errors.New("wallet connection rejected")
	ErrBalanceFetch      = errors.New("balance fetch failed")
)

type Account struct {
	Address string  `json:"address"`
	Balance float64 `json:"balance"`
}

// Adapter connects an account and reads balances. Implementations must be
// safe for concurrent use; calls may block and should honour ctx.
type Adapter interface {
	// Connect returns the connected account. requested is the address the
	// client asked for; adapters that pick the account themselves may ignore it.
	Connect(ctx context.Context, requested string) (Account, error)
	Balance(ctx context.Context, address string) (float64, error)
	// Normalize returns the canonical form of address, the same form Connect
	// reports. It must not block.
	Normalize(address string) string
}

// Notifier is implemented by adapters that observe account switches.
// An empty list means the wallet disconnected.
type Notifier interface {
	AccountChanges() <-chan []string
}
