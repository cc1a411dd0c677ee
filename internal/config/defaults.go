package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	StorageBackendMemory  = "memory"
	StorageBackendPebble  = "pebble"
	StorageBackendLevelDB = "leveldb"
	StorageBackendBbolt   = "bbolt"

	AuditDriverNone     = "none"
	AuditDriverSQLite   = "sqlite"
	AuditDriverPostgres = "postgres"

	// MaxFeeBasisPoints is the highest fee rate the market accepts (10%)
	MaxFeeBasisPoints = 1000
)

// setDefaults sets the default value of every key
func setDefaults(v *viper.Viper) {
	// Market. Keys without a useful default are still registered so that
	// environment overrides reach Unmarshal.
	v.SetDefault("market.owner", "")
	v.SetDefault("market.fee_recipient", "")
	v.SetDefault("market.engine_identity", "")
	v.SetDefault("market.fee_basis_points", 250)
	v.SetDefault("market.decimals", 18)

	// Storage
	v.SetDefault("storage.backend", StorageBackendMemory)
	v.SetDefault("storage.path", "data")
	v.SetDefault("storage.sync", true)

	// Audit
	v.SetDefault("audit.driver", AuditDriverNone)
	v.SetDefault("audit.dsn", "")
	v.SetDefault("audit.tail_size", 256)
	v.SetDefault("audit.timeout", 5*time.Second)

	// RPC
	v.SetDefault("rpc.bind", "127.0.0.1")
	v.SetDefault("rpc.port", 5005)
	v.SetDefault("rpc.timeout", 30*time.Second)
	v.SetDefault("rpc.require_signatures", true)
	v.SetDefault("rpc.dev_methods", false)
	v.SetDefault("rpc.websocket_buffer", 64)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
}
