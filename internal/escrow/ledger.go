package escrow

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger is the fund-movement capability escrow runs on. Transfer is
// all-or-nothing: on error no balance has changed.
type Ledger interface {
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
}

// MemoryLedger keeps balances in process. Receive hooks let tests stand in
// for recipients that run code when funds arrive, which is how the
// reentrancy properties get exercised.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
	hooks    map[common.Address]func(ctx context.Context) error
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[common.Address]*big.Int),
		hooks:    make(map[common.Address]func(ctx context.Context) error),
	}
}

// SetBalance seeds an account.
func (l *MemoryLedger) SetBalance(addr common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[addr] = new(big.Int).Set(amount)
}

// Balance returns the current balance of addr.
func (l *MemoryLedger) Balance(addr common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// OnReceive installs a hook invoked after addr is credited. A hook error
// rejects the transfer and the ledger reverts the movement.
func (l *MemoryLedger) OnReceive(addr common.Address, hook func(ctx context.Context) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks[addr] = hook
}

func (l *MemoryLedger) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid transfer amount")
	}

	l.mu.Lock()
	fromBal := l.balances[from]
	if fromBal == nil {
		fromBal = new(big.Int)
		l.balances[from] = fromBal
	}
	if fromBal.Cmp(amount) < 0 {
		l.mu.Unlock()
		return fmt.Errorf("insufficient funds: %s has %s, needs %s", from.Hex(), fromBal, amount)
	}
	toBal := l.balances[to]
	if toBal == nil {
		toBal = new(big.Int)
		l.balances[to] = toBal
	}
	fromBal.Sub(fromBal, amount)
	toBal.Add(toBal, amount)
	hook := l.hooks[to]
	// Release before the hook: the recipient may re-enter the escrow service,
	// which may transfer again.
	l.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			l.mu.Lock()
			l.balances[to].Sub(l.balances[to], amount)
			l.balances[from].Add(l.balances[from], amount)
			l.mu.Unlock()
			return fmt.Errorf("recipient rejected transfer: %w", err)
		}
	}
	return nil
}
