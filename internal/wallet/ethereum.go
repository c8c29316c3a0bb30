package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
)

// Ethereum reads balances from a JSON-RPC node. The client supplies the
// address; the node is only ever queried, never sent transactions.
type Ethereum struct {
	client *ethclient.Client
}

func DialEthereum(ctx context.Context, rpcURL string) (*Ethereum, error) {
	rpcURL = strings.TrimSpace(rpcURL)
	if rpcURL == "" {
		return nil, fmt.Errorf("empty rpc url")
	}
	c, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return &Ethereum{client: c}, nil
}

func (e *Ethereum) Close() {
	if e != nil && e.client != nil {
		e.client.Close()
	}
}

func (e *Ethereum) Connect(ctx context.Context, requested string) (Account, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return Account{}, ErrNoWalletExtension
	}
	if !common.IsHexAddress(requested) {
		return Account{}, fmt.Errorf("%w: invalid address %q", ErrUserRejected, requested)
	}
	addr := e.Normalize(requested)
	bal, err := e.Balance(ctx, addr)
	if err != nil {
		return Account{}, err
	}
	return Account{Address: addr, Balance: bal}, nil
}

// Normalize returns the EIP-55 checksummed form of a hex address. Anything
// else is returned trimmed.
func (e *Ethereum) Normalize(address string) string {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return address
	}
	return common.HexToAddress(address).Hex()
}

func (e *Ethereum) Balance(ctx context.Context, address string) (float64, error) {
	if !common.IsHexAddress(address) {
		return 0, fmt.Errorf("%w: invalid address %q", ErrBalanceFetch, address)
	}
	wei, err := e.client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBalanceFetch, err)
	}
	return WeiToEther(wei), nil
}

// WeiToEther converts for display and comparisons; precision loss past float64 is accepted.
func WeiToEther(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether)).Float64()
	return f
}
