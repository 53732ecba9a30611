package funds

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrInsufficientBalance is returned when the source account cannot cover a transfer.
var ErrInsufficientBalance = errors.New("insufficient balance")

// MemoryBank is an in-process account ledger. Transfers are atomic under its mutex.
type MemoryBank struct {
	mu       sync.Mutex
	balances map[string]uint64
}

func NewMemoryBank() *MemoryBank {
	return &MemoryBank{balances: make(map[string]uint64)}
}

// Deposit mints amount into account.
func (b *MemoryBank) Deposit(_ context.Context, account string, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	balance := b.balances[account]
	if balance+amount < balance {
		return fmt.Errorf("deposit of %d overflows balance of %s", amount, account)
	}
	b.balances[account] = balance + amount
	return nil
}

func (b *MemoryBank) Transfer(_ context.Context, amount uint64, from, to string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.balances[from] < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientBalance, from, b.balances[from], amount)
	}
	if from == to {
		return nil
	}
	if b.balances[to]+amount < b.balances[to] {
		return fmt.Errorf("transfer of %d overflows balance of %s", amount, to)
	}
	b.balances[from] -= amount
	b.balances[to] += amount
	return nil
}

func (b *MemoryBank) Balance(_ context.Context, account string) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[account], nil
}
