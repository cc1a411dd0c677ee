package rpc_handlers

import (
	"encoding/json"

	"github.com/LeJamon/goOfferd/internal/rpc/rpc_types"
)

// OfferInfoMethod handles the offer_info RPC method
type OfferInfoMethod struct{ guestMethod }

func (m *OfferInfoMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
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

	offer, found := svc.Offer(ctx.Context, collection, itemID, offerer)
	if !found {
		return nil, rpc_types.RpcErrorObjectNotFound("No active offer for this item and offerer")
	}
	return map[string]interface{}{
		"offer": FormatOffer(offer, ctx.Services.Decimals),
	}, nil
}

// ItemOffersMethod handles the item_offers RPC method
type ItemOffersMethod struct{ guestMethod }

func (m *ItemOffersMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
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

	offers := svc.OffersForItem(ctx.Context, collection, itemID)
	formatted := make([]interface{}, 0, len(offers))
	for _, o := range offers {
		formatted = append(formatted, FormatOffer(o, ctx.Services.Decimals))
	}
	return map[string]interface{}{
		"collection": collection.String(),
		"item_id":    request.ItemID.String(),
		"offers":     formatted,
	}, nil
}

// MarketInfoMethod handles the market_info RPC method
type MarketInfoMethod struct{ guestMethod }

func (m *MarketInfoMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	svc, rpcErr := market(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}

	return map[string]interface{}{
		"settings":        FormatSettings(svc.Settings(ctx.Context)),
		"offer_count":     svc.OfferCount(ctx.Context),
		"engine_identity": svc.Self().String(),
		"decimals":        ctx.Services.Decimals,
	}, nil
}
