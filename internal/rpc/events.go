package rpc

import (
	"context"

	"github.com/LeJamon/goOfferd/internal/core/event"
	"github.com/LeJamon/goOfferd/internal/rpc/rpc_types"
	"github.com/LeJamon/goOfferd/internal/storage/audit"
)

// auditLog exposes an audit store to the RPC handlers
type auditLog struct {
	store *audit.Store
}

// AuditEvents adapts store to rpc_types.EventLog
func AuditEvents(store *audit.Store) rpc_types.EventLog {
	return auditLog{store: store}
}

func (a auditLog) Recent(limit int) []event.Record {
	return a.store.Recent(limit)
}

func (a auditLog) Query(ctx context.Context, f rpc_types.EventFilter) ([]event.Record, error) {
	return a.store.Query(ctx, audit.Filter{Name: f.Name, AfterSeq: f.AfterSeq, Limit: f.Limit})
}
