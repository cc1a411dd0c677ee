package di

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/LeJamon/goOfferd/internal/config"
	"github.com/LeJamon/goOfferd/internal/core/amount"
	"github.com/LeJamon/goOfferd/internal/core/identity"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	owner      = identity.MustParse("0xa000000000000000000000000000000000000001")
	feeSink    = identity.MustParse("0xfee0000000000000000000000000000000000001")
	engineID   = identity.MustParse("0xe000000000000000000000000000000000000001")
	collection = identity.MustParse("0xc000000000000000000000000000000000000001")
	bidder     = identity.MustParse("0xb000000000000000000000000000000000000001")
)

func testConfig(dir string) *config.Config {
	return &config.Config{
		Market: config.MarketConfig{
			Owner:          owner.String(),
			FeeBasisPoints: 250,
			FeeRecipient:   feeSink.String(),
			EngineIdentity: engineID.String(),
			Decimals:       18,
		},
		Storage: config.StorageConfig{
			Backend: config.StorageBackendPebble,
			Path:    filepath.Join(dir, "data"),
			Sync:    true,
		},
		Audit: config.AuditConfig{
			Driver:   config.AuditDriverSQLite,
			DSN:      filepath.Join(dir, "audit.db"),
			TailSize: 16,
			Timeout:  5 * time.Second,
		},
		RPC: config.RPCConfig{
			Bind:            "127.0.0.1",
			Port:            0,
			Timeout:         5 * time.Second,
			DevMethods:      true,
			WebsocketBuffer: 8,
		},
		Log: config.LogConfig{Level: "info", Format: "console"},
	}
}

func newTestContainer(t *testing.T, cfg *config.Config) *Container {
	t.Helper()
	c := New()
	c.Register(ServiceLogger, zap.NewNop())
	require.NoError(t, NewProvider(c, cfg, "test").RegisterAll())
	return c
}

func TestProviderWiresMarket(t *testing.T) {
	cfg := testConfig(t.TempDir())
	c := newTestContainer(t, cfg)

	server, err := GetRPCServer(c)
	require.NoError(t, err)
	assert.Contains(t, server.Methods(), "dev_mint")

	ws, err := GetWebSocketServer(c)
	require.NoError(t, err)
	assert.Equal(t, 0, ws.Connections())

	engine, err := GetEngine(c)
	require.NoError(t, err)
	assert.Equal(t, engineID, engine.Self())
	assert.Equal(t, uint32(250), engine.Settings(context.Background()).FeeBasisPoints)

	bank, err := GetBank(c)
	require.NoError(t, err)
	assert.Equal(t, engineID, bank.Custody())

	require.NoError(t, bank.Fund(bidder, amount.FromUint64(100)))
	require.NoError(t, engine.PlaceOffer(context.Background(), collection, *uint256.NewInt(7), amount.FromUint64(40), bidder))

	bus, err := GetBus(c)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), bus.Seq())

	require.NoError(t, c.Close())
}

func TestProviderRestoresState(t *testing.T) {
	cfg := testConfig(t.TempDir())
	ctx := context.Background()

	c := newTestContainer(t, cfg)
	engine, err := GetEngine(c)
	require.NoError(t, err)
	bank, err := GetBank(c)
	require.NoError(t, err)
	require.NoError(t, bank.Fund(bidder, amount.FromUint64(100)))
	require.NoError(t, engine.PlaceOffer(ctx, collection, *uint256.NewInt(7), amount.FromUint64(40), bidder))
	require.NoError(t, engine.SetFeeBasisPoints(ctx, owner, 100))
	require.NoError(t, c.Close())

	// A restart keeps the offer book, the settings, the event sequence and
	// the funds held for the offer
	c = newTestContainer(t, cfg)
	defer c.Close()

	engine, err = GetEngine(c)
	require.NoError(t, err)
	assert.Equal(t, 1, engine.OfferCount(ctx))
	assert.Equal(t, uint32(100), engine.Settings(ctx).FeeBasisPoints)

	offer, ok := engine.Offer(ctx, collection, *uint256.NewInt(7), bidder)
	require.True(t, ok)
	assert.Equal(t, amount.FromUint64(40), offer.Amount)

	bus, err := GetBus(c)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), bus.Seq())

	store, err := GetAudit(c)
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Len(t, store.Recent(10), 2)

	bank, err = GetBank(c)
	require.NoError(t, err)
	assert.Equal(t, amount.FromUint64(60), bank.BalanceOf(bidder))
	assert.Equal(t, amount.FromUint64(40), bank.BalanceOf(engineID))

	require.NoError(t, engine.CancelOffer(ctx, collection, *uint256.NewInt(7), bidder))
	assert.Equal(t, amount.FromUint64(100), bank.BalanceOf(bidder))
	assert.True(t, bank.BalanceOf(engineID).IsZero())
}

func TestProviderRestoresItemsForSettlement(t *testing.T) {
	cfg := testConfig(t.TempDir())
	ctx := context.Background()
	seller := identity.MustParse("0x5e00000000000000000000000000000000000001")
	item := *uint256.NewInt(9)

	// Set up through the stores the development methods use
	c := newTestContainer(t, cfg)
	registry, err := GetRegistry(c)
	require.NoError(t, err)
	bank, err := GetBank(c)
	require.NoError(t, err)
	offers, err := GetOfferStore(c)
	require.NoError(t, err)
	require.NoError(t, registry.Mint(collection, item, seller))
	registry.SetApprovalForAll(seller, engineID, true)
	require.NoError(t, bank.Fund(bidder, amount.FromUint64(100)))
	require.NoError(t, offers.Sync(ctx))

	engine, err := GetEngine(c)
	require.NoError(t, err)
	require.NoError(t, engine.PlaceOffer(ctx, collection, item, amount.FromUint64(100), bidder))
	require.NoError(t, c.Close())

	c = newTestContainer(t, cfg)
	defer c.Close()
	engine, err = GetEngine(c)
	require.NoError(t, err)
	require.NoError(t, engine.AcceptOffer(ctx, collection, item, bidder, seller))

	registry, err = GetRegistry(c)
	require.NoError(t, err)
	bank, err = GetBank(c)
	require.NoError(t, err)
	holder, err := registry.OwnerOf(ctx, collection, item)
	require.NoError(t, err)
	assert.Equal(t, bidder, holder)
	assert.Equal(t, amount.FromUint64(98), bank.BalanceOf(seller))
	assert.Equal(t, amount.FromUint64(2), bank.BalanceOf(feeSink))
}

func TestProviderWithoutAudit(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Storage.Backend = config.StorageBackendMemory
	cfg.Audit.Driver = config.AuditDriverNone
	cfg.RPC.DevMethods = false

	c := newTestContainer(t, cfg)
	defer c.Close()

	store, err := GetAudit(c)
	require.NoError(t, err)
	assert.Nil(t, store)

	server, err := GetRPCServer(c)
	require.NoError(t, err)
	assert.NotContains(t, server.Methods(), "dev_mint")
}

func TestProviderRejectsBadMarketConfig(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Storage.Backend = config.StorageBackendMemory
	cfg.Audit.Driver = config.AuditDriverNone
	cfg.Market.EngineIdentity = "not-an-identity"

	c := newTestContainer(t, cfg)
	_, err := GetEngine(c)
	assert.Error(t, err)

	assert.Error(t, NewProvider(New(), nil, "test").RegisterAll())
}
