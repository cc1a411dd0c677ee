package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/LeJamon/goOfferd/internal/core/identity"
	"github.com/LeJamon/goOfferd/internal/core/ledger"
)

// Config represents the complete offerd configuration
type Config struct {
	Market  MarketConfig  `toml:"market" mapstructure:"market"`
	Storage StorageConfig `toml:"storage" mapstructure:"storage"`
	Audit   AuditConfig   `toml:"audit" mapstructure:"audit"`
	RPC     RPCConfig     `toml:"rpc" mapstructure:"rpc"`
	Log     LogConfig     `toml:"log" mapstructure:"log"`

	configPath string
}

// MarketConfig holds the initial marketplace settings. They are only used
// when the offer store holds no persisted settings yet.
type MarketConfig struct {
	Owner          string `toml:"owner" mapstructure:"owner"`
	FeeBasisPoints uint32 `toml:"fee_basis_points" mapstructure:"fee_basis_points"`
	FeeRecipient   string `toml:"fee_recipient" mapstructure:"fee_recipient"`
	EngineIdentity string `toml:"engine_identity" mapstructure:"engine_identity"`
	Decimals       int32  `toml:"decimals" mapstructure:"decimals"`
}

// StorageConfig selects the durable offer store
type StorageConfig struct {
	Backend string `toml:"backend" mapstructure:"backend"` // memory, pebble, leveldb or bbolt
	Path    string `toml:"path" mapstructure:"path"`
	Sync    bool   `toml:"sync" mapstructure:"sync"`
}

// AuditConfig selects the SQL audit trail
type AuditConfig struct {
	Driver   string        `toml:"driver" mapstructure:"driver"` // none, sqlite or postgres
	DSN      string        `toml:"dsn" mapstructure:"dsn"`
	TailSize int           `toml:"tail_size" mapstructure:"tail_size"`
	Timeout  time.Duration `toml:"timeout" mapstructure:"timeout"`
}

// RPCConfig configures the JSON-RPC host
type RPCConfig struct {
	Bind              string        `toml:"bind" mapstructure:"bind"`
	Port              int           `toml:"port" mapstructure:"port"`
	Timeout           time.Duration `toml:"timeout" mapstructure:"timeout"`
	RequireSignatures bool          `toml:"require_signatures" mapstructure:"require_signatures"`
	DevMethods        bool          `toml:"dev_methods" mapstructure:"dev_methods"`
	WebsocketBuffer   int           `toml:"websocket_buffer" mapstructure:"websocket_buffer"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level  string `toml:"level" mapstructure:"level"`
	Format string `toml:"format" mapstructure:"format"` // console or json
	File   string `toml:"file" mapstructure:"file"`
}

// GetConfigPath returns the path of the loaded configuration file
func (c *Config) GetConfigPath() string {
	return c.configPath
}

// ResolvePath makes a relative path relative to the configuration file
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || c.configPath == "" {
		return p
	}
	return filepath.Join(filepath.Dir(c.configPath), p)
}

// Settings returns the initial marketplace settings
func (m *MarketConfig) Settings() (ledger.Settings, error) {
	owner, err := identity.Parse(m.Owner)
	if err != nil {
		return ledger.Settings{}, fmt.Errorf("owner: %w", err)
	}
	recipient, err := identity.Parse(m.FeeRecipient)
	if err != nil {
		return ledger.Settings{}, fmt.Errorf("fee_recipient: %w", err)
	}
	return ledger.Settings{
		FeeBasisPoints: m.FeeBasisPoints,
		FeeRecipient:   recipient,
		Owner:          owner,
	}, nil
}

// Engine returns the identity the engine acts under toward the registry
func (m *MarketConfig) Engine() (identity.ID, error) {
	id, err := identity.Parse(m.EngineIdentity)
	if err != nil {
		return identity.Null, fmt.Errorf("engine_identity: %w", err)
	}
	return id, nil
}

// Address returns the host:port the RPC server listens on
func (r *RPCConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Bind, r.Port)
}

// Enabled reports whether an audit trail is configured
func (a *AuditConfig) Enabled() bool {
	return a.Driver != "" && a.Driver != AuditDriverNone
}
