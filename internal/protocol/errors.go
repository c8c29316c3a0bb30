package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Wallet.
	ErrNotConnected       = "E_NOT_CONNECTED"
	ErrWalletUnavailable  = "E_WALLET_UNAVAILABLE"
	ErrConnectionRejected = "E_CONNECTION_REJECTED"
	ErrBalanceFetchFailed = "E_BALANCE_FETCH_FAILED"

	// Rule/action layer.
	ErrBadRequest        = "E_BAD_REQUEST"
	ErrInsufficientFunds = "E_INSUFFICIENT_FUNDS"
	ErrShielded          = "E_SHIELDED"
	ErrNotOwner          = "E_NOT_OWNER"
	ErrDuplicatePowerup  = "E_DUPLICATE_POWERUP"
	ErrRateLimit         = "E_RATE_LIMIT"
	ErrConflict          = "E_CONFLICT"
	ErrCancelled         = "E_CANCELLED"
	ErrInternal          = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:    {},
	ErrNotConnected:       {},
	ErrWalletUnavailable:  {},
	ErrConnectionRejected: {},
	ErrBalanceFetchFailed: {},
	ErrBadRequest:         {},
	ErrInsufficientFunds:  {},
	ErrShielded:           {},
	ErrNotOwner:           {},
	ErrDuplicatePowerup:   {},
	ErrRateLimit:          {},
	ErrConflict:           {},
	ErrCancelled:          {},
	ErrInternal:           {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
