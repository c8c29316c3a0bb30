package world

import (
	"errors"

	"conquest.ai/internal/protocol"
	"conquest.ai/internal/wallet"
)

var (
	ErrNotConnected      = errors.New("wallet not connected")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrShielded          = errors.New("territory is shielded")
	ErrNotOwner          = errors.New("territory not owned by caller")
	ErrDuplicatePowerup  = errors.New("powerup already active")
	ErrConflict          = errors.New("territory changed while transaction was pending")
	ErrBadRequest        = errors.New("bad request")
	ErrCancelled         = errors.New("transaction cancelled")
)

// Code maps an error to its wire code.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotConnected):
		return protocol.ErrNotConnected
	case errors.Is(err, ErrInsufficientFunds):
		return protocol.ErrInsufficientFunds
	case errors.Is(err, ErrShielded):
		return protocol.ErrShielded
	case errors.Is(err, ErrNotOwner):
		return protocol.ErrNotOwner
	case errors.Is(err, ErrDuplicatePowerup):
		return protocol.ErrDuplicatePowerup
	case errors.Is(err, ErrConflict):
		return protocol.ErrConflict
	case errors.Is(err, ErrBadRequest):
		return protocol.ErrBadRequest
	case errors.Is(err, ErrCancelled):
		return protocol.ErrCancelled
	case errors.Is(err, wallet.ErrNoWalletExtension):
		return protocol.ErrWalletUnavailable
	case errors.Is(err, wallet.ErrUserRejected):
		return protocol.ErrConnectionRejected
	case errors.Is(err, wallet.ErrBalanceFetch):
		return protocol.ErrBalanceFetchFailed
	default:
		return protocol.ErrInternal
	}
}

// noticeText is the player facing text for a failure.
func noticeText(err error) string {
	switch {
	case errors.Is(err, ErrNotConnected):
		return "Please connect your wallet first!"
	case errors.Is(err, ErrInsufficientFunds):
		return "Insufficient funds!"
	case errors.Is(err, ErrShielded):
		return "This territory is protected by a shield!"
	case errors.Is(err, ErrNotOwner):
		return "You don't own this territory!"
	case errors.Is(err, ErrDuplicatePowerup):
		return "Powerup already active!"
	case errors.Is(err, ErrConflict):
		return "Territory changed while your transaction was pending"
	case errors.Is(err, ErrCancelled):
		return "Transaction cancelled"
	case errors.Is(err, wallet.ErrNoWalletExtension):
		return "Please install a wallet to play!"
	case errors.Is(err, wallet.ErrUserRejected):
		return "Failed to connect wallet"
	case errors.Is(err, wallet.ErrBalanceFetch):
		return "Failed to fetch balance"
	default:
		return "Transaction failed"
	}
}
