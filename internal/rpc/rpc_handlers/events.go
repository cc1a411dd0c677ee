package rpc_handlers

import (
	"encoding/json"

	"github.com/LeJamon/goOfferd/internal/core/event"
	"github.com/LeJamon/goOfferd/internal/rpc/rpc_types"
)

const (
	defaultEventLimit = 20
	maxEventLimit     = 1000
)

// RecentEventsMethod handles the recent_events RPC method. Without filters
// it answers from the in-memory tail of the audit trail; a name or
// after_seq filter queries the database.
type RecentEventsMethod struct{ guestMethod }

func (m *RecentEventsMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request struct {
		Limit    int    `json:"limit"`
		Name     string `json:"name"`
		AfterSeq uint64 `json:"after_seq"`
	}
	if rpcErr := rpc_types.ParseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	if ctx.Services == nil || ctx.Services.Events == nil {
		return nil, rpc_types.RpcErrorNotEnabled("audit")
	}

	limit := request.Limit
	if limit == 0 {
		limit = defaultEventLimit
	}
	if limit < 0 || limit > maxEventLimit {
		return nil, rpc_types.RpcErrorInvalidField("limit")
	}
	if request.Name != "" {
		if _, err := event.New(event.Name(request.Name)); err != nil {
			return nil, rpc_types.RpcErrorInvalidField("name")
		}
	}

	var records []event.Record
	if request.Name == "" && request.AfterSeq == 0 {
		records = ctx.Services.Events.Recent(limit)
	} else {
		var err error
		records, err = ctx.Services.Events.Query(ctx.Context, rpc_types.EventFilter{
			Name:     event.Name(request.Name),
			AfterSeq: request.AfterSeq,
			Limit:    limit,
		})
		if err != nil {
			return nil, rpc_types.RpcErrorInternal("Failed to query audit trail: " + err.Error())
		}
	}

	if records == nil {
		records = []event.Record{}
	}
	return map[string]interface{}{
		"events": records,
		"limit":  limit,
	}, nil
}
