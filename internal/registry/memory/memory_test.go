package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/LeJamon/goOfferd/internal/core/amount"
	"github.com/LeJamon/goOfferd/internal/core/identity"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var (
	collection = identity.MustParse("0xc000000000000000000000000000000000000001")
	custody    = identity.MustParse("0xe000000000000000000000000000000000000001")
	alice      = identity.MustParse("0xa000000000000000000000000000000000000001")
	bob        = identity.MustParse("0xb000000000000000000000000000000000000001")
	item       = *uint256.NewInt(7)
)

func TestRegistryMintAndTransfer(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	require.NoError(t, r.Mint(collection, item, alice))
	assert.ErrorIs(t, r.Mint(collection, item, bob), ErrItemExists)

	owner, err := r.OwnerOf(ctx, collection, item)
	require.NoError(t, err)
	assert.Equal(t, alice, owner)

	_, err = r.OwnerOf(ctx, collection, *uint256.NewInt(8))
	assert.ErrorIs(t, err, ErrUnknownItem)

	assert.ErrorIs(t, r.Transfer(ctx, collection, item, bob, alice), ErrNotOwner)
	require.NoError(t, r.Transfer(ctx, collection, item, alice, bob))

	owner, err = r.OwnerOf(ctx, collection, item)
	require.NoError(t, err)
	assert.Equal(t, bob, owner)
}

func TestRegistryApprovals(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	require.NoError(t, r.Mint(collection, item, alice))

	ok, err := r.IsApprovedForTransfer(ctx, collection, item, custody)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, r.Approve(bob, collection, item, custody), ErrNotOwner)
	require.NoError(t, r.Approve(alice, collection, item, custody))
	ok, _ = r.IsApprovedForTransfer(ctx, collection, item, custody)
	assert.True(t, ok)

	// A transfer clears the per-item approval
	require.NoError(t, r.Transfer(ctx, collection, item, alice, bob))
	ok, _ = r.IsApprovedForTransfer(ctx, collection, item, custody)
	assert.False(t, ok)

	r.SetApprovalForAll(bob, custody, true)
	ok, _ = r.IsApprovedForTransfer(ctx, collection, item, custody)
	assert.True(t, ok)

	r.SetApprovalForAll(bob, custody, false)
	ok, _ = r.IsApprovedForTransfer(ctx, collection, item, custody)
	assert.False(t, ok)
}

func TestRegistryHookRejects(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	require.NoError(t, r.Mint(collection, item, alice))
	require.NoError(t, r.Approve(alice, collection, item, custody))

	r.OnReceive(bob, func(context.Context) error { return errors.New("no thanks") })
	err := r.Transfer(ctx, collection, item, alice, bob)
	assert.ErrorIs(t, err, ErrRejected)

	owner, _ := r.OwnerOf(ctx, collection, item)
	assert.Equal(t, alice, owner)
	ok, _ := r.IsApprovedForTransfer(ctx, collection, item, custody)
	assert.True(t, ok, "approval must survive a rejected transfer")
}

func TestRegistrySavepoint(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	require.NoError(t, r.Mint(collection, item, alice))

	require.NoError(t, r.Approve(alice, collection, item, custody))

	rollback, _ := r.Savepoint()
	require.NoError(t, r.Transfer(ctx, collection, item, alice, bob))
	r.SetApprovalForAll(alice, bob, true)
	rollback()

	owner, _ := r.OwnerOf(ctx, collection, item)
	assert.Equal(t, alice, owner)
	ok, _ := r.IsApprovedForTransfer(ctx, collection, item, custody)
	assert.True(t, ok, "per-item approval must come back with the item")
	ok, _ = r.IsApprovedForTransfer(ctx, collection, item, bob)
	assert.True(t, ok, "approvals granted directly are kept")
}

func TestRegistryRollbackKeepsConcurrentMints(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	require.NoError(t, r.Mint(collection, item, alice))

	rollback, _ := r.Savepoint()
	require.NoError(t, r.Transfer(ctx, collection, item, alice, bob))
	other := *uint256.NewInt(8)
	require.NoError(t, r.Mint(collection, other, bob))
	rollback()

	owner, _ := r.OwnerOf(ctx, collection, item)
	assert.Equal(t, alice, owner)
	owner, err := r.OwnerOf(ctx, collection, other)
	require.NoError(t, err)
	assert.Equal(t, bob, owner)
}

func TestRegistryNestedSavepoints(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	require.NoError(t, r.Mint(collection, item, alice))

	rollback, _ := r.Savepoint()
	require.NoError(t, r.Transfer(ctx, collection, item, alice, bob))
	_, release := r.Savepoint()
	require.NoError(t, r.Transfer(ctx, collection, item, bob, custody))
	release()

	owner, _ := r.OwnerOf(ctx, collection, item)
	assert.Equal(t, custody, owner)

	rollback()
	owner, _ = r.OwnerOf(ctx, collection, item)
	assert.Equal(t, alice, owner, "released savepoint is undone with the one below it")
}

func TestRegistryFailureInjection(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	require.NoError(t, r.Mint(collection, item, alice))

	boom := errors.New("boom")
	r.FailTransfers(boom)
	assert.ErrorIs(t, r.Transfer(ctx, collection, item, alice, bob), boom)
	r.FailTransfers(nil)

	r.FailQueries(boom)
	_, err := r.OwnerOf(ctx, collection, item)
	assert.ErrorIs(t, err, boom)
	_, err = r.IsApprovedForTransfer(ctx, collection, item, custody)
	assert.ErrorIs(t, err, boom)
}

func TestBankSendAndCollect(t *testing.T) {
	ctx := context.Background()
	b := NewBank(custody)
	require.NoError(t, b.Fund(alice, amount.FromUint64(100)))

	require.NoError(t, b.Collect(ctx, alice, amount.FromUint64(60)))
	assert.Equal(t, amount.FromUint64(40), b.BalanceOf(alice))
	assert.Equal(t, amount.FromUint64(60), b.BalanceOf(custody))

	assert.ErrorIs(t, b.Collect(ctx, alice, amount.FromUint64(41)), ErrInsufficientFunds)

	require.NoError(t, b.Send(ctx, amount.FromUint64(25), bob))
	assert.Equal(t, amount.FromUint64(25), b.BalanceOf(bob))
	assert.Equal(t, amount.FromUint64(35), b.BalanceOf(custody))

	assert.ErrorIs(t, b.Send(ctx, amount.FromUint64(36), bob), ErrInsufficientFunds)
	assert.ErrorIs(t, b.Send(ctx, amount.FromUint64(1), identity.Null), ErrNullIdentity)
}

func TestBankRejectAndHooks(t *testing.T) {
	ctx := context.Background()
	b := NewBank(custody)
	require.NoError(t, b.Fund(custody, amount.FromUint64(10)))

	b.Reject(bob, errors.New("closed"))
	assert.ErrorIs(t, b.Send(ctx, amount.FromUint64(1), bob), ErrRejected)
	b.Reject(bob, nil)

	called := 0
	b.OnReceive(bob, func(context.Context) error {
		called++
		return errors.New("hook failed")
	})
	assert.ErrorIs(t, b.Send(ctx, amount.FromUint64(3), bob), ErrRejected)
	assert.Equal(t, 1, called)
	assert.True(t, b.BalanceOf(bob).IsZero())
	assert.Equal(t, amount.FromUint64(10), b.BalanceOf(custody))

	b.OnReceive(bob, nil)
	require.NoError(t, b.Send(ctx, amount.FromUint64(3), bob))
	assert.Equal(t, map[identity.ID]amount.Amount{
		bob:     amount.FromUint64(3),
		custody: amount.FromUint64(7),
	}, b.Balances())
}

func TestBankSavepoint(t *testing.T) {
	ctx := context.Background()
	b := NewBank(custody)
	require.NoError(t, b.Fund(custody, amount.FromUint64(10)))

	rollback, _ := b.Savepoint()
	require.NoError(t, b.Send(ctx, amount.FromUint64(4), alice))
	rollback()

	assert.True(t, b.BalanceOf(alice).IsZero())
	assert.Equal(t, amount.FromUint64(10), b.BalanceOf(custody))

	_, release := b.Savepoint()
	require.NoError(t, b.Send(ctx, amount.FromUint64(4), alice))
	release()
	assert.Equal(t, amount.FromUint64(4), b.BalanceOf(alice))
}

func TestBankRollbackKeepsConcurrentFunding(t *testing.T) {
	ctx := context.Background()
	b := NewBank(custody)
	require.NoError(t, b.Fund(custody, amount.FromUint64(10)))

	rollback, _ := b.Savepoint()
	require.NoError(t, b.Send(ctx, amount.FromUint64(4), alice))

	done := make(chan error)
	go func() { done <- b.Fund(bob, amount.FromUint64(5)) }()
	require.NoError(t, <-done)
	require.NoError(t, b.Fund(alice, amount.FromUint64(1)))
	rollback()

	assert.Equal(t, amount.FromUint64(5), b.BalanceOf(bob))
	assert.Equal(t, amount.FromUint64(1), b.BalanceOf(alice))
	assert.Equal(t, amount.FromUint64(10), b.BalanceOf(custody))
}

func TestBankReportsUnreclaimablePayment(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.ErrorLevel)
	b := NewBank(custody)
	b.SetLogger(zap.New(core))
	require.NoError(t, b.Fund(custody, amount.FromUint64(10)))

	// bob passes the payment on before rejecting it
	b.OnReceive(bob, func(ctx context.Context) error {
		require.NoError(t, b.Collect(ctx, bob, amount.FromUint64(4)))
		return errors.New("changed my mind")
	})
	err := b.Send(ctx, amount.FromUint64(4), bob)
	assert.ErrorIs(t, err, ErrRejected)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, 1, logs.FilterMessage("failed to reclaim rejected payment").Len())
	assert.Equal(t, amount.FromUint64(10), b.BalanceOf(custody))
}

func TestBankPendingAndLoad(t *testing.T) {
	ctx := context.Background()
	b := NewBank(custody)
	require.NoError(t, b.Fund(alice, amount.FromUint64(9)))

	rollback, _ := b.Savepoint()
	require.NoError(t, b.Collect(ctx, alice, amount.FromUint64(9)))
	records, flushed := b.Pending()
	assert.Len(t, records, 1, "moves under an open savepoint are not pending")
	rollback()

	records, flushed = b.Pending()
	require.Len(t, records, 2)
	assert.Nil(t, records[balanceKey(custody)])
	flushed()
	records, _ = b.Pending()
	assert.Empty(t, records)

	restored := NewBank(custody)
	require.NoError(t, restored.Load(map[string][]byte{
		balanceKey(alice): amount.FromUint64(9).Uint256().Bytes(),
	}))
	assert.Equal(t, amount.FromUint64(9), restored.BalanceOf(alice))
	assert.ErrorIs(t, restored.Load(map[string][]byte{"short": nil}), ErrCorruptRecord)
}

func TestRegistryPendingAndLoad(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	require.NoError(t, r.Mint(collection, item, alice))
	require.NoError(t, r.Approve(alice, collection, item, custody))
	r.SetApprovalForAll(alice, bob, true)
	require.NoError(t, r.Transfer(ctx, collection, item, alice, bob))

	records, flushed := r.Pending()
	flushed()

	restored := NewRegistry()
	live := make(map[string][]byte)
	for k, v := range records {
		if v != nil {
			live[k] = v
		}
	}
	require.NoError(t, restored.Load(live))
	owner, err := restored.OwnerOf(ctx, collection, item)
	require.NoError(t, err)
	assert.Equal(t, bob, owner)
	ok, _ := restored.IsApprovedForTransfer(ctx, collection, item, custody)
	assert.False(t, ok, "transfer cleared the per-item approval")
	other := *uint256.NewInt(8)
	require.NoError(t, restored.Mint(collection, other, alice))
	ok, _ = restored.IsApprovedForTransfer(ctx, collection, other, bob)
	assert.True(t, ok)

	assert.ErrorIs(t, restored.Load(map[string][]byte{"x": nil}), ErrCorruptRecord)
}
