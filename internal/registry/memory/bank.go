package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/LeJamon/goOfferd/internal/core/amount"
	"github.com/LeJamon/goOfferd/internal/core/identity"
	"go.uber.org/zap"
)

// Bank is an in-memory ledger of balances. Funds sent by the market leave
// the custody account, funds collected for offers enter it.
type Bank struct {
	mu       sync.Mutex
	custody  identity.ID
	balances map[identity.ID]amount.Amount
	journal  journal

	hooks     map[identity.ID]Hook
	rejecting map[identity.ID]error
	logger    *zap.Logger
}

// NewBank creates a bank whose custody account is custody
func NewBank(custody identity.ID) *Bank {
	return &Bank{
		custody:   custody,
		balances:  make(map[identity.ID]amount.Amount),
		journal:   newJournal(),
		hooks:     make(map[identity.ID]Hook),
		rejecting: make(map[identity.ID]error),
		logger:    zap.NewNop(),
	}
}

// SetLogger sets the logger failed reversals are reported to
func (b *Bank) SetLogger(logger *zap.Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger.Named("bank")
}

// Custody returns the custody account
func (b *Bank) Custody() identity.ID {
	return b.custody
}

// Fund credits id with amt
func (b *Bank) Fund(id identity.ID, amt amount.Amount) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.credit(id, amt); err != nil {
		return err
	}
	b.journal.touch(balanceKey(id))
	return nil
}

// BalanceOf returns the balance of id
func (b *Bank) BalanceOf(id identity.ID) amount.Amount {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[id]
}

func (b *Bank) credit(id identity.ID, amt amount.Amount) error {
	next, err := b.balances[id].Add(amt)
	if err != nil {
		return err
	}
	b.balances[id] = next
	return nil
}

func (b *Bank) debit(id identity.ID, amt amount.Amount) error {
	next, err := b.balances[id].Sub(amt)
	if err != nil {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientFunds, id, b.balances[id], amt)
	}
	if next.IsZero() {
		delete(b.balances, id)
	} else {
		b.balances[id] = next
	}
	return nil
}

func (b *Bank) move(from, to identity.ID, amt amount.Amount) error {
	if err := b.debit(from, amt); err != nil {
		return err
	}
	if err := b.credit(to, amt); err != nil {
		_ = b.credit(from, amt)
		return err
	}
	return nil
}

// transfer moves amt and records the move under the innermost savepoint.
// The undo step moves the same amount back, so balance changes made by
// others in the meantime survive a rollback.
func (b *Bank) transfer(from, to identity.ID, amt amount.Amount) (*undoStep, error) {
	if err := b.move(from, to, amt); err != nil {
		return nil, err
	}
	return b.journal.record(func() error {
		if err := b.move(to, from, amt); err != nil {
			return fmt.Errorf("return %s from %s to %s: %w", amt, to, from, err)
		}
		return nil
	}, balanceKey(from), balanceKey(to)), nil
}

// Send pays amt from custody to to, then runs the recipient's hook. A
// rejecting recipient or a failing hook leaves balances unchanged. If the
// hook spent the payment before failing it cannot be reclaimed, and the
// returned error says so.
func (b *Bank) Send(ctx context.Context, amt amount.Amount, to identity.ID) error {
	if to.IsNull() {
		return ErrNullIdentity
	}

	b.mu.Lock()
	if err := b.rejecting[to]; err != nil {
		b.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	step, err := b.transfer(b.custody, to, amt)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	hook := b.hooks[to]
	b.mu.Unlock()

	if hook == nil {
		return nil
	}
	if err := hook(ctx); err != nil {
		b.mu.Lock()
		defer b.mu.Unlock()
		if clawback := b.move(to, b.custody, amt); clawback != nil {
			b.logger.Error("failed to reclaim rejected payment",
				zap.Stringer("recipient", to), zap.Stringer("amount", amt), zap.Error(clawback))
			return fmt.Errorf("%w: %v; reclaim payment: %w", ErrRejected, err, clawback)
		}
		b.journal.cancel(step)
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	return nil
}

// Collect moves amt from from into custody
func (b *Bank) Collect(_ context.Context, from identity.ID, amt amount.Amount) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.transfer(from, b.custody, amt)
	return err
}

// OnReceive installs a hook that runs whenever id is paid. A nil hook removes it.
func (b *Bank) OnReceive(id identity.ID, hook Hook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if hook == nil {
		delete(b.hooks, id)
		return
	}
	b.hooks[id] = hook
}

// Reject makes payments to id fail with reason until called with nil
func (b *Bank) Reject(id identity.ID, reason error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if reason == nil {
		delete(b.rejecting, id)
		return
	}
	b.rejecting[id] = reason
}

// Balances returns a copy of every non-zero balance
func (b *Bank) Balances() map[identity.ID]amount.Amount {
	b.mu.Lock()
	defer b.mu.Unlock()
	return maps.Clone(b.balances)
}

// Savepoint opens a savepoint over the sends and collections that follow.
// rollback moves their funds back, newest first; release keeps them. Funds
// moved by Fund are never undone.
func (b *Bank) Savepoint() (rollback, release func()) {
	b.mu.Lock()
	f := b.journal.open()
	b.mu.Unlock()

	rollback = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if err := b.journal.rollback(f); err != nil {
			b.logger.Error("failed to undo payments", zap.Error(err))
		}
	}
	release = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.journal.release(f)
	}
	return rollback, release
}
