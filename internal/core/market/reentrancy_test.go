package market

import (
	"context"
	"errors"
	"testing"

	"github.com/LeJamon/goOfferd/internal/core/event"
	"github.com/LeJamon/goOfferd/internal/core/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReentrantCancelDuringRefund(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.engine.PlaceOffer(ctx, collection, item, whole("2"), buyer))

	var reentrant error
	var visible bool
	h.bank.OnReceive(buyer, func(ctx context.Context) error {
		_, visible = h.engine.Offer(ctx, collection, item, buyer)
		reentrant = h.engine.CancelOffer(ctx, collection, item, buyer)
		return nil
	})

	require.NoError(t, h.engine.CancelOffer(ctx, collection, item, buyer))
	assert.ErrorIs(t, reentrant, result.TefREENTRANT)
	assert.False(t, visible, "the offer is erased before the refund is sent")

	// Refunded exactly once
	assert.Equal(t, whole("10"), h.bank.BalanceOf(buyer))
	assert.Equal(t, []event.Name{event.NameOfferPlaced, event.NameOfferCancelled}, h.names())
}

func TestReentrantAcceptDuringSettlement(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.engine.PlaceOffer(ctx, collection, item, whole("1"), buyer))

	var reentrant error
	h.bank.OnReceive(seller, func(ctx context.Context) error {
		reentrant = h.engine.AcceptOffer(ctx, collection, item, buyer, seller)
		return nil
	})

	require.NoError(t, h.engine.AcceptOffer(ctx, collection, item, buyer, seller))
	assert.ErrorIs(t, reentrant, result.TefREENTRANT)
	assert.Equal(t, whole("0.975"), h.bank.BalanceOf(seller))
}

func TestReentrantCancelDuringAcceptIsRejected(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.engine.PlaceOffer(ctx, collection, item, whole("1"), buyer))

	// The buyer tries to pull the offer back while receiving the item
	var reentrant error
	h.registry.OnReceive(buyer, func(ctx context.Context) error {
		reentrant = h.engine.CancelOffer(ctx, collection, item, buyer)
		return nil
	})

	require.NoError(t, h.engine.AcceptOffer(ctx, collection, item, buyer, seller))
	assert.ErrorIs(t, reentrant, result.TefREENTRANT)
	assert.Equal(t, whole("9"), h.bank.BalanceOf(buyer))
}

func TestReentrantPlaceJoinsOuterOperation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.engine.PlaceOffer(ctx, collection, item, whole("1"), buyer))

	// The seller reinvests the proceeds in an offer on another item
	var nested error
	h.bank.OnReceive(seller, func(ctx context.Context) error {
		nested = h.engine.PlaceOffer(ctx, collection, other, whole("0.5"), seller)
		return nil
	})

	require.NoError(t, h.engine.AcceptOffer(ctx, collection, item, buyer, seller))
	require.NoError(t, nested)

	_, ok := h.engine.Offer(ctx, collection, other, seller)
	assert.True(t, ok)
	assert.Equal(t, whole("0.475"), h.bank.BalanceOf(seller))

	// Notifications keep the order the operations completed in
	assert.Equal(t, []event.Name{event.NameOfferPlaced, event.NameOfferPlaced, event.NameOfferAccepted}, h.names())
	assert.Len(t, h.store.persisted, 2, "the nested placement is persisted with the settlement")
	assert.Len(t, h.store.persisted[1].Offers, 2)
}

func TestReentrantPlaceRolledBackWithOuterFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.engine.PlaceOffer(ctx, collection, item, whole("1"), buyer))
	h.events = nil

	var nested error
	h.bank.OnReceive(seller, func(ctx context.Context) error {
		nested = h.engine.PlaceOffer(ctx, collection, other, whole("0.5"), seller)
		return nil
	})
	h.bank.Reject(feeSink, errors.New("cannot receive"))

	err := h.engine.AcceptOffer(ctx, collection, item, buyer, seller)
	assert.ErrorIs(t, err, result.TecFEE_TRANSFER_FAILED)
	require.NoError(t, nested)

	_, ok := h.engine.Offer(ctx, collection, other, seller)
	assert.False(t, ok, "the nested placement must not survive")
	assert.Empty(t, h.events, "the nested notification must be dropped")
	assertSettledNothing(t, h)
}

func TestFailedNestedOperationDoesNotAbortOuter(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.engine.PlaceOffer(ctx, collection, item, whole("1"), buyer))

	// The seller cannot afford the nested offer; the hook ignores the failure
	var nested error
	h.bank.OnReceive(seller, func(ctx context.Context) error {
		nested = h.engine.PlaceOffer(ctx, collection, other, whole("5"), seller)
		return nil
	})

	require.NoError(t, h.engine.AcceptOffer(ctx, collection, item, buyer, seller))
	assert.ErrorIs(t, nested, result.TecUNFUNDED)
	assert.Equal(t, whole("0.975"), h.bank.BalanceOf(seller))
	assert.Equal(t, 0, h.engine.OfferCount(ctx))
}

func TestReentrantAdminCallDuringSettlement(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.engine.PlaceOffer(ctx, collection, item, whole("1"), buyer))

	h.bank.OnReceive(seller, func(ctx context.Context) error {
		return h.engine.SetFeeBasisPoints(ctx, admin, 0)
	})

	require.NoError(t, h.engine.AcceptOffer(ctx, collection, item, buyer, seller))

	// The fee was fixed when the settlement started
	assert.Equal(t, whole("0.025"), h.bank.BalanceOf(feeSink))
	assert.Equal(t, uint32(0), h.engine.Settings(ctx).FeeBasisPoints)
}

func TestCallsOutsideAnOperationAreTopLevel(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.engine.PlaceOffer(ctx, collection, item, whole("1"), buyer))

	// A context kept after the operation returned no longer nests
	var kept context.Context
	h.bank.OnReceive(buyer, func(ctx context.Context) error {
		kept = ctx
		return nil
	})
	require.NoError(t, h.engine.CancelOffer(ctx, collection, item, buyer))
	require.NotNil(t, kept)

	require.NoError(t, h.engine.PlaceOffer(kept, collection, item, whole("1"), buyer))
	require.NoError(t, h.engine.CancelOffer(kept, collection, item, buyer))
}

// assertSettledNothing checks the harness is back to its state after the
// buyer's one-unit offer was placed
func assertSettledNothing(t *testing.T, h *harness) {
	t.Helper()
	ctx := context.Background()

	_, ok := h.engine.Offer(ctx, collection, item, buyer)
	assert.True(t, ok)
	owner, err := h.registry.OwnerOf(ctx, collection, item)
	require.NoError(t, err)
	assert.Equal(t, seller, owner)
	assert.True(t, h.bank.BalanceOf(seller).IsZero())
	assert.Equal(t, whole("1"), h.bank.BalanceOf(engineID))
	assert.Equal(t, whole("9"), h.bank.BalanceOf(buyer))
}
