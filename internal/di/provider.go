package di

import (
	"context"
	"fmt"
	"time"

	"github.com/LeJamon/goOfferd/internal/config"
	"github.com/LeJamon/goOfferd/internal/core/event"
	"github.com/LeJamon/goOfferd/internal/core/ledger"
	"github.com/LeJamon/goOfferd/internal/core/market"
	offerdlog "github.com/LeJamon/goOfferd/internal/log"
	"github.com/LeJamon/goOfferd/internal/metrics"
	"github.com/LeJamon/goOfferd/internal/registry/memory"
	"github.com/LeJamon/goOfferd/internal/rpc"
	"github.com/LeJamon/goOfferd/internal/rpc/rpc_types"
	"github.com/LeJamon/goOfferd/internal/storage"
	"github.com/LeJamon/goOfferd/internal/storage/audit"
	"github.com/LeJamon/goOfferd/internal/storage/database"
	"github.com/LeJamon/goOfferd/internal/storage/offerstore"
	"go.uber.org/zap"
)

// offersDB is the name of the key/value database holding the offer book
const offersDB = "offers"

// Key prefixes of the collaborators stored in the offers database
const (
	prefixBank     = 'b'
	prefixRegistry = 'r'
)

// Provider configures and registers services in the container.
type Provider struct {
	container *Container
	config    *config.Config
	version   string
}

// NewProvider creates a new service provider.
func NewProvider(container *Container, cfg *config.Config, version string) *Provider {
	return &Provider{
		container: container,
		config:    cfg,
		version:   version,
	}
}

// RegisterAll registers all services. A logger registered in the container
// beforehand is kept; otherwise one is built from the log configuration.
func (p *Provider) RegisterAll() error {
	if p.config == nil {
		return fmt.Errorf("di: configuration is required")
	}
	p.container.Register(ServiceConfig, p.config)

	if !p.container.Has(ServiceLogger) {
		p.container.RegisterBuilder(ServiceLogger, func(c *Container) (interface{}, error) {
			return offerdlog.New(offerdlog.Options{
				Level:  p.config.Log.Level,
				Format: p.config.Log.Format,
				File:   p.config.ResolvePath(p.config.Log.File),
			})
		})
	}

	p.registerStorageBuilders()
	p.registerMarketBuilders()
	p.registerRPCBuilders()

	return nil
}

// registerStorageBuilders registers storage service builders.
func (p *Provider) registerStorageBuilders() {
	p.container.RegisterBuilder(ServiceStorage, func(c *Container) (interface{}, error) {
		sc := p.config.Storage
		return storage.Open(sc.Backend, p.config.ResolvePath(sc.Path), sc.Sync)
	})

	p.container.RegisterBuilder(ServiceOfferStore, func(c *Container) (interface{}, error) {
		manager, err := GetStorage(c)
		if err != nil {
			return nil, err
		}
		logger, err := GetLogger(c)
		if err != nil {
			return nil, err
		}
		registry, err := GetRegistry(c)
		if err != nil {
			return nil, err
		}
		bank, err := GetBank(c)
		if err != nil {
			return nil, err
		}
		db, err := manager.OpenDB(offersDB)
		if err != nil {
			return nil, fmt.Errorf("open %s database: %w", offersDB, err)
		}

		// Custody and ownership are restored with the offers they back
		store := offerstore.New(db, logger)
		if err := store.Attach("bank", prefixBank, bank); err != nil {
			return nil, err
		}
		if err := store.Attach("registry", prefixRegistry, registry); err != nil {
			return nil, err
		}
		return store, nil
	})

	// Audit is nil when no driver is configured
	p.container.RegisterBuilder(ServiceAudit, func(c *Container) (interface{}, error) {
		ac := p.config.Audit
		if !ac.Enabled() {
			return nil, nil
		}
		logger, err := GetLogger(c)
		if err != nil {
			return nil, err
		}
		dsn := ac.DSN
		if ac.Driver == config.AuditDriverSQLite {
			dsn = p.config.ResolvePath(dsn)
		}
		ctx, cancel := context.WithTimeout(context.Background(), ac.Timeout)
		defer cancel()
		return audit.Open(ctx, audit.Config{
			Driver:   ac.Driver,
			DSN:      dsn,
			TailSize: ac.TailSize,
			Timeout:  ac.Timeout,
		}, logger)
	})
}

// registerMarketBuilders registers the event bus, the collaborators, the
// ledger and the engine.
func (p *Provider) registerMarketBuilders() {
	p.container.RegisterBuilder(ServiceBus, func(c *Container) (interface{}, error) {
		logger, err := GetLogger(c)
		if err != nil {
			return nil, err
		}
		store, err := GetAudit(c)
		if err != nil {
			return nil, err
		}

		bus := event.NewBus(
			event.WithLogger(logger),
			event.WithDropHook(metrics.EventDropped),
		)
		if store != nil {
			ctx, cancel := context.WithTimeout(context.Background(), p.config.Audit.Timeout)
			defer cancel()
			seq, err := store.LastSeq(ctx)
			if err != nil {
				return nil, fmt.Errorf("read audit position: %w", err)
			}
			bus.ResumeFrom(seq)
			bus.AddSink(store)
		}
		return bus, nil
	})

	p.container.RegisterBuilder(ServiceRegistry, func(c *Container) (interface{}, error) {
		logger, err := GetLogger(c)
		if err != nil {
			return nil, err
		}
		registry := memory.NewRegistry()
		registry.SetLogger(logger)
		return registry, nil
	})

	p.container.RegisterBuilder(ServiceBank, func(c *Container) (interface{}, error) {
		self, err := p.config.Market.Engine()
		if err != nil {
			return nil, err
		}
		logger, err := GetLogger(c)
		if err != nil {
			return nil, err
		}
		bank := memory.NewBank(self)
		bank.SetLogger(logger)
		return bank, nil
	})

	p.container.RegisterBuilder(ServiceLedger, func(c *Container) (interface{}, error) {
		settings, err := p.config.Market.Settings()
		if err != nil {
			return nil, err
		}
		store, err := GetOfferStore(c)
		if err != nil {
			return nil, err
		}
		logger, err := GetLogger(c)
		if err != nil {
			return nil, err
		}

		l := ledger.New(settings)
		restored, err := store.Restore(context.Background(), l)
		if err != nil {
			return nil, fmt.Errorf("restore offer ledger: %w", err)
		}
		if !restored {
			logger.Info("initialized offer ledger from configuration",
				zap.Uint32("fee_basis_points", settings.FeeBasisPoints))
		}
		return l, nil
	})

	p.container.RegisterBuilder(ServiceEngine, func(c *Container) (interface{}, error) {
		self, err := p.config.Market.Engine()
		if err != nil {
			return nil, err
		}
		l, err := GetLedger(c)
		if err != nil {
			return nil, err
		}
		registry, err := GetRegistry(c)
		if err != nil {
			return nil, err
		}
		bank, err := GetBank(c)
		if err != nil {
			return nil, err
		}
		bus, err := GetBus(c)
		if err != nil {
			return nil, err
		}
		store, err := GetOfferStore(c)
		if err != nil {
			return nil, err
		}
		logger, err := GetLogger(c)
		if err != nil {
			return nil, err
		}

		return market.New(l, registry, bank, market.Options{
			Self:     self,
			Bus:      bus,
			Store:    store,
			Observer: metrics.Market{},
			Logger:   logger,
		})
	})
}

// registerRPCBuilders registers the JSON-RPC and websocket servers.
func (p *Provider) registerRPCBuilders() {
	p.container.RegisterBuilder(ServiceRPCServer, func(c *Container) (interface{}, error) {
		engine, err := GetEngine(c)
		if err != nil {
			return nil, err
		}
		bus, err := GetBus(c)
		if err != nil {
			return nil, err
		}
		store, err := GetAudit(c)
		if err != nil {
			return nil, err
		}
		logger, err := GetLogger(c)
		if err != nil {
			return nil, err
		}

		rc := p.config.RPC
		services := &rpc_types.ServiceContainer{
			Market:      engine,
			Decimals:    p.config.Market.Decimals,
			Version:     p.version,
			StartTime:   time.Now(),
			Subscribers: bus.Subscribers,
		}
		if store != nil {
			services.Events = rpc.AuditEvents(store)
		}
		if rc.DevMethods {
			registry, err := GetRegistry(c)
			if err != nil {
				return nil, err
			}
			bank, err := GetBank(c)
			if err != nil {
				return nil, err
			}
			offers, err := GetOfferStore(c)
			if err != nil {
				return nil, err
			}
			services.Registry = registry
			services.Bank = bank
			services.SyncDev = offers.Sync
			logger.Warn("development methods enabled")
		}

		return rpc.NewServer(services, rpc.Options{
			Timeout:           rc.Timeout,
			RequireSignatures: rc.RequireSignatures,
			DevMethods:        rc.DevMethods,
			Logger:            logger,
		}), nil
	})

	p.container.RegisterBuilder(ServiceWebSocket, func(c *Container) (interface{}, error) {
		server, err := GetRPCServer(c)
		if err != nil {
			return nil, err
		}
		bus, err := GetBus(c)
		if err != nil {
			return nil, err
		}
		logger, err := GetLogger(c)
		if err != nil {
			return nil, err
		}
		return rpc.NewWebSocketServer(server, bus, p.config.RPC.WebsocketBuffer, logger), nil
	})
}

// Helper functions for type-safe service retrieval

// GetConfig retrieves the configuration from the container.
func GetConfig(c *Container) (*config.Config, error) {
	svc, err := c.Get(ServiceConfig)
	if err != nil {
		return nil, err
	}
	return svc.(*config.Config), nil
}

// GetLogger retrieves the logger from the container.
func GetLogger(c *Container) (*zap.Logger, error) {
	svc, err := c.Get(ServiceLogger)
	if err != nil {
		return nil, err
	}
	return svc.(*zap.Logger), nil
}

// GetStorage retrieves the key/value storage manager from the container.
func GetStorage(c *Container) (database.Manager, error) {
	svc, err := c.Get(ServiceStorage)
	if err != nil {
		return nil, err
	}
	return svc.(database.Manager), nil
}

// GetOfferStore retrieves the offer store from the container.
func GetOfferStore(c *Container) (*offerstore.Store, error) {
	svc, err := c.Get(ServiceOfferStore)
	if err != nil {
		return nil, err
	}
	return svc.(*offerstore.Store), nil
}

// GetAudit retrieves the audit store. It returns nil without an error when
// no audit trail is configured.
func GetAudit(c *Container) (*audit.Store, error) {
	svc, err := c.Get(ServiceAudit)
	if err != nil {
		return nil, err
	}
	store, _ := svc.(*audit.Store)
	return store, nil
}

// GetBus retrieves the event bus from the container.
func GetBus(c *Container) (*event.Bus, error) {
	svc, err := c.Get(ServiceBus)
	if err != nil {
		return nil, err
	}
	return svc.(*event.Bus), nil
}

// GetRegistry retrieves the asset registry from the container.
func GetRegistry(c *Container) (*memory.Registry, error) {
	svc, err := c.Get(ServiceRegistry)
	if err != nil {
		return nil, err
	}
	return svc.(*memory.Registry), nil
}

// GetBank retrieves the value transfer from the container.
func GetBank(c *Container) (*memory.Bank, error) {
	svc, err := c.Get(ServiceBank)
	if err != nil {
		return nil, err
	}
	return svc.(*memory.Bank), nil
}

// GetLedger retrieves the offer ledger from the container.
func GetLedger(c *Container) (*ledger.Ledger, error) {
	svc, err := c.Get(ServiceLedger)
	if err != nil {
		return nil, err
	}
	return svc.(*ledger.Ledger), nil
}

// GetEngine retrieves the market engine from the container.
func GetEngine(c *Container) (*market.Engine, error) {
	svc, err := c.Get(ServiceEngine)
	if err != nil {
		return nil, err
	}
	return svc.(*market.Engine), nil
}

// GetRPCServer retrieves the JSON-RPC server from the container.
func GetRPCServer(c *Container) (*rpc.Server, error) {
	svc, err := c.Get(ServiceRPCServer)
	if err != nil {
		return nil, err
	}
	return svc.(*rpc.Server), nil
}

// GetWebSocketServer retrieves the websocket server from the container.
func GetWebSocketServer(c *Container) (*rpc.WebSocketServer, error) {
	svc, err := c.Get(ServiceWebSocket)
	if err != nil {
		return nil, err
	}
	return svc.(*rpc.WebSocketServer), nil
}
