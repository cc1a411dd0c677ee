package config

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// ValidateConfig performs validation on the complete configuration
func ValidateConfig(config *Config) error {
	if err := validateMarketConfig(&config.Market); err != nil {
		return fmt.Errorf("market config validation failed: %w", err)
	}
	if err := validateStorageConfig(&config.Storage); err != nil {
		return fmt.Errorf("storage config validation failed: %w", err)
	}
	if err := validateAuditConfig(&config.Audit); err != nil {
		return fmt.Errorf("audit config validation failed: %w", err)
	}
	if err := validateRPCConfig(&config.RPC); err != nil {
		return fmt.Errorf("rpc config validation failed: %w", err)
	}
	if err := validateLogConfig(&config.Log); err != nil {
		return fmt.Errorf("log config validation failed: %w", err)
	}
	return nil
}

func validateMarketConfig(m *MarketConfig) error {
	if m.Owner == "" {
		return errors.New("owner is required")
	}
	if m.FeeRecipient == "" {
		return errors.New("fee_recipient is required")
	}
	if m.EngineIdentity == "" {
		return errors.New("engine_identity is required")
	}

	settings, err := m.Settings()
	if err != nil {
		return err
	}
	if settings.Owner.IsNull() {
		return errors.New("owner must not be the null identity")
	}
	if settings.FeeRecipient.IsNull() {
		return errors.New("fee_recipient must not be the null identity")
	}
	engine, err := m.Engine()
	if err != nil {
		return err
	}
	if engine.IsNull() {
		return errors.New("engine_identity must not be the null identity")
	}

	if m.FeeBasisPoints > MaxFeeBasisPoints {
		return fmt.Errorf("fee_basis_points must be at most %d, got %d", MaxFeeBasisPoints, m.FeeBasisPoints)
	}
	if m.Decimals < 0 || m.Decimals > 77 {
		return fmt.Errorf("decimals must be between 0 and 77, got %d", m.Decimals)
	}
	return nil
}

func validateStorageConfig(s *StorageConfig) error {
	switch strings.ToLower(s.Backend) {
	case StorageBackendMemory:
		return nil
	case StorageBackendPebble, StorageBackendLevelDB, StorageBackendBbolt:
		if s.Path == "" {
			return fmt.Errorf("path is required for the %s backend", s.Backend)
		}
		return nil
	default:
		return fmt.Errorf("invalid backend: %q (valid: memory, pebble, leveldb, bbolt)", s.Backend)
	}
}

func validateAuditConfig(a *AuditConfig) error {
	switch a.Driver {
	case "", AuditDriverNone:
		return nil
	case AuditDriverSQLite, AuditDriverPostgres:
	default:
		return fmt.Errorf("invalid driver: %q (valid: none, sqlite, postgres)", a.Driver)
	}
	if a.DSN == "" {
		return fmt.Errorf("dsn is required for the %s driver", a.Driver)
	}
	if a.TailSize <= 0 {
		return fmt.Errorf("tail_size must be positive, got %d", a.TailSize)
	}
	if a.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", a.Timeout)
	}
	return nil
}

func validateRPCConfig(r *RPCConfig) error {
	if r.Port < 0 || r.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 0-65535)", r.Port)
	}
	if r.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", r.Timeout)
	}
	if r.WebsocketBuffer <= 0 {
		return fmt.Errorf("websocket_buffer must be positive, got %d", r.WebsocketBuffer)
	}
	return nil
}

func validateLogConfig(l *LogConfig) error {
	if _, err := zapcore.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("invalid level: %q", l.Level)
	}
	switch l.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("invalid format: %q (valid: console, json)", l.Format)
	}
}
