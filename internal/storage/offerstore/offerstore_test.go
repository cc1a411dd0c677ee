package offerstore

import (
	"context"
	"testing"

	"github.com/LeJamon/goOfferd/internal/core/amount"
	"github.com/LeJamon/goOfferd/internal/core/identity"
	"github.com/LeJamon/goOfferd/internal/core/ledger"
	"github.com/LeJamon/goOfferd/internal/registry/memory"
	"github.com/LeJamon/goOfferd/internal/storage/database"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	collection = identity.MustParse("0xc000000000000000000000000000000000000001")
	alice      = identity.MustParse("0xa000000000000000000000000000000000000001")
	bob        = identity.MustParse("0xb000000000000000000000000000000000000001")
	settings   = ledger.Settings{FeeBasisPoints: 250, FeeRecipient: bob, Owner: alice}
)

func offer(item uint64, offerer identity.ID, value string) ledger.Offer {
	return ledger.Offer{
		Collection: collection,
		ItemID:     *uint256.NewInt(item),
		Offerer:    offerer,
		Amount:     amount.MustParse(value),
	}
}

func TestRestoreEmptyStoreSavesSettings(t *testing.T) {
	ctx := context.Background()
	store := New(database.NewMemDB(), nil)

	l := ledger.New(settings)
	restored, err := store.Restore(ctx, l)
	require.NoError(t, err)
	assert.False(t, restored)

	got, offers, found, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, settings, got)
	assert.Empty(t, offers)
}

func TestPersistAndRestore(t *testing.T) {
	ctx := context.Background()
	db := database.NewMemDB()
	store := New(db, nil)

	l := ledger.New(settings)
	_, err := store.Restore(ctx, l)
	require.NoError(t, err)

	// Apply changes through a table, as the engine does
	table := ledger.NewStateTable(l)
	require.NoError(t, table.InsertOffer(offer(1, alice, "100")))
	require.NoError(t, table.InsertOffer(offer(2, bob, "115792089237316195423570985008687907853269984665640564039457584007913129639935")))
	changes, err := table.Apply()
	require.NoError(t, err)
	require.NoError(t, store.Persist(changes))

	table = ledger.NewStateTable(l)
	require.NoError(t, table.EraseOffer(offer(1, alice, "100").Key()))
	next := settings
	next.FeeBasisPoints = 10
	require.NoError(t, table.WriteSettings(next))
	changes, err = table.Apply()
	require.NoError(t, err)
	require.NoError(t, store.Persist(changes))

	fresh := ledger.New(ledger.Settings{})
	restored, err := New(db, nil).Restore(ctx, fresh)
	require.NoError(t, err)
	assert.True(t, restored)

	assert.Equal(t, next, fresh.ReadSettings())
	assert.Equal(t, 1, fresh.Len())
	got, ok := fresh.ReadOffer(offer(2, bob, "1").Key())
	require.True(t, ok)
	assert.Equal(t, offer(2, bob, "115792089237316195423570985008687907853269984665640564039457584007913129639935"), got)
}

func TestPersistNothing(t *testing.T) {
	db := database.NewMemDB()
	require.NoError(t, New(db, nil).Persist(ledger.Changes{}))
	assert.Equal(t, 0, db.Len())
}

func TestLoadCorruptRecord(t *testing.T) {
	ctx := context.Background()
	db := database.NewMemDB()
	require.NoError(t, db.Write(ctx, []byte(keySettings), []byte{0xc1}))

	_, _, _, err := New(db, nil).Load(ctx)
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestParticipantsPersistWithChanges(t *testing.T) {
	ctx := context.Background()
	db := database.NewMemDB()
	store := New(db, nil)
	custody := identity.MustParse("0xe000000000000000000000000000000000000001")
	bank := memory.NewBank(custody)
	registry := memory.NewRegistry()
	require.NoError(t, store.Attach("bank", 'b', bank))
	require.NoError(t, store.Attach("registry", 'r', registry))

	l := ledger.New(settings)
	_, err := store.Restore(ctx, l)
	require.NoError(t, err)

	// Direct changes are written by Sync
	require.NoError(t, bank.Fund(alice, amount.FromUint64(100)))
	require.NoError(t, registry.Mint(collection, *uint256.NewInt(1), bob))
	require.NoError(t, store.Sync(ctx))

	// Collaborator effects ride along with the ledger changes
	table := ledger.NewStateTable(l)
	require.NoError(t, table.InsertOffer(offer(1, alice, "40")))
	require.NoError(t, bank.Collect(ctx, alice, amount.FromUint64(40)))
	changes, err := table.Apply()
	require.NoError(t, err)
	require.NoError(t, store.Persist(changes))

	restoredBank := memory.NewBank(custody)
	restoredRegistry := memory.NewRegistry()
	fresh := New(db, nil)
	require.NoError(t, fresh.Attach("bank", 'b', restoredBank))
	require.NoError(t, fresh.Attach("registry", 'r', restoredRegistry))
	restored, err := fresh.Restore(ctx, ledger.New(ledger.Settings{}))
	require.NoError(t, err)
	assert.True(t, restored)

	assert.Equal(t, amount.FromUint64(60), restoredBank.BalanceOf(alice))
	assert.Equal(t, amount.FromUint64(40), restoredBank.BalanceOf(custody))
	owner, err := restoredRegistry.OwnerOf(ctx, collection, *uint256.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, bob, owner)
}

func TestAttachRejectsTakenPrefixes(t *testing.T) {
	store := New(database.NewMemDB(), nil)
	bank := memory.NewBank(alice)
	assert.ErrorIs(t, store.Attach("bank", prefixOffer, bank), ErrReservedPrefix)
	assert.ErrorIs(t, store.Attach("bank", keySettings[0], bank), ErrReservedPrefix)
	require.NoError(t, store.Attach("bank", 'b', bank))
	assert.ErrorIs(t, store.Attach("other", 'b', memory.NewRegistry()), ErrPrefixAttached)
}

func TestSyncWithoutParticipantsWritesNothing(t *testing.T) {
	db := database.NewMemDB()
	require.NoError(t, New(db, nil).Sync(context.Background()))
	assert.Equal(t, 0, db.Len())
}
