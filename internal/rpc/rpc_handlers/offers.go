package rpc_handlers

import (
	"encoding/json"

	"github.com/LeJamon/goOfferd/internal/rpc/rpc_types"
)

// PlaceOfferMethod handles the place_offer RPC method. The caller is the offerer.
type PlaceOfferMethod struct{ signerMethod }

func (m *PlaceOfferMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request struct {
		rpc_types.AssetParams
		Amount rpc_types.Numeric `json:"amount"`
	}
	if rpcErr := rpc_types.ParseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	collection, itemID, rpcErr := request.Parse()
	if rpcErr != nil {
		return nil, rpcErr
	}
	amt, rpcErr := rpc_types.RequireAmount("amount", request.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	svc, rpcErr := market(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}

	return applied("place_offer", svc.PlaceOffer(ctx.Context, collection, itemID, amt, ctx.Caller))
}

// CancelOfferMethod handles the cancel_offer RPC method. The caller is the offerer.
type CancelOfferMethod struct{ signerMethod }

func (m *CancelOfferMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request rpc_types.AssetParams
	if rpcErr := rpc_types.ParseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	collection, itemID, rpcErr := request.Parse()
	if rpcErr != nil {
		return nil, rpcErr
	}
	svc, rpcErr := market(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}

	return applied("cancel_offer", svc.CancelOffer(ctx.Context, collection, itemID, ctx.Caller))
}

// AcceptOfferMethod handles the accept_offer RPC method. The caller is the
// current owner of the item.
type AcceptOfferMethod struct{ signerMethod }

func (m *AcceptOfferMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request struct {
		rpc_types.AssetParams
		Offerer string `json:"offerer"`
	}
	if rpcErr := rpc_types.ParseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	collection, itemID, rpcErr := request.Parse()
	if rpcErr != nil {
		return nil, rpcErr
	}
	offerer, rpcErr := rpc_types.RequireIdentity("offerer", request.Offerer)
	if rpcErr != nil {
		return nil, rpcErr
	}
	svc, rpcErr := market(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}

	return applied("accept_offer", svc.AcceptOffer(ctx.Context, collection, itemID, offerer, ctx.Caller))
}
