package wallet

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

const DefaultSimulatedAddress = "0x00000000000000000000000000000000000000a1"

// Simulated is an in-memory wallet. Unknown addresses read DefaultBalance.
type Simulated struct {
	mu             sync.Mutex
	balances       map[string]float64
	defaultBalance float64

	unavailable bool
	reject      bool
	balanceErr  bool

	changes chan []string
}

func NewSimulated(defaultBalance float64) *Simulated {
	return &Simulated{
		balances:       map[string]float64{},
		defaultBalance: defaultBalance,
		changes:        make(chan []string, 8),
	}
}

func (s *Simulated) SetBalance(address string, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[address] = v
}

// SetUnavailable makes Connect behave as if no wallet is installed.
func (s *Simulated) SetUnavailable(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = v
}

func (s *Simulated) SetReject(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject = v
}

func (s *Simulated) SetBalanceFailure(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balanceErr = v
}

// SwitchAccounts emits an account change. It drops the event if nobody is listening.
func (s *Simulated) SwitchAccounts(accounts []string) {
	cp := append([]string{}, accounts...)
	select {
	case s.changes <- cp:
	default:
	}
}

func (s *Simulated) AccountChanges() <-chan []string { return s.changes }

func (s *Simulated) Connect(ctx context.Context, requested string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	s.mu.Lock()
	unavailable, reject := s.unavailable, s.reject
	s.mu.Unlock()
	if unavailable {
		return Account{}, ErrNoWalletExtension
	}
	if reject {
		return Account{}, ErrUserRejected
	}
	addr := strings.TrimSpace(requested)
	if addr == "" {
		addr = DefaultSimulatedAddress
	}
	bal, err := s.Balance(ctx, addr)
	if err != nil {
		return Account{}, err
	}
	return Account{Address: addr, Balance: bal}, nil
}

func (s *Simulated) Balance(ctx context.Context, address string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBalanceFetch, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balanceErr {
		return 0, fmt.Errorf("%w: simulated failure", ErrBalanceFetch)
	}
	if v, ok := s.balances[address]; ok {
		return v, nil
	}
	return s.defaultBalance, nil
}

// Normalize only trims; simulated addresses are compared as given.
func (s *Simulated) Normalize(address string) string { return strings.TrimSpace(address) }
