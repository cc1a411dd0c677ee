package rpc_handlers

import (
	"encoding/json"
	"time"

	"github.com/LeJamon/goOfferd/internal/rpc/rpc_types"
)

// ServerInfoMethod handles the server_info RPC method
type ServerInfoMethod struct{ guestMethod }

func (m *ServerInfoMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	svc := ctx.Services
	if svc == nil {
		return nil, rpc_types.RpcErrorInternal("Services not available")
	}

	info := map[string]interface{}{
		"build_version": svc.Version,
		"uptime":        int64(time.Since(svc.StartTime).Seconds()),
		"time":          time.Now().UTC().Format(time.RFC3339),
		"audit":         svc.Events != nil,
		"dev_methods":   svc.Registry != nil,
	}
	if svc.Subscribers != nil {
		info["subscribers"] = svc.Subscribers()
	}
	if svc.Market != nil {
		info["offer_count"] = svc.Market.OfferCount(ctx.Context)
	}

	return map[string]interface{}{"info": info}, nil
}

// PingMethod handles the ping RPC method
type PingMethod struct{ guestMethod }

func (m *PingMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	return map[string]interface{}{}, nil
}
