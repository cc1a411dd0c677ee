package rpc_handlers

import (
	"encoding/json"

	"github.com/LeJamon/goOfferd/internal/core/identity"
	"github.com/LeJamon/goOfferd/internal/rpc/rpc_types"
)

// Development methods drive the in-memory asset registry and value ledger
// of a standalone server. They are only registered when enabled.

func devServices(ctx *rpc_types.RpcContext) (rpc_types.DevRegistry, rpc_types.DevBank, *rpc_types.RpcError) {
	if ctx.Services == nil || ctx.Services.Registry == nil || ctx.Services.Bank == nil {
		return nil, nil, rpc_types.RpcErrorNotEnabled("dev_methods")
	}
	return ctx.Services.Registry, ctx.Services.Bank, nil
}

// syncDev stores what a development method changed
func syncDev(ctx *rpc_types.RpcContext) *rpc_types.RpcError {
	if ctx.Services.SyncDev == nil {
		return nil
	}
	if err := ctx.Services.SyncDev(ctx.Context); err != nil {
		return rpc_types.RpcErrorInternal("store development change: " + err.Error())
	}
	return nil
}

// DevMintMethod handles the dev_mint RPC method
type DevMintMethod struct{ guestMethod }

func (m *DevMintMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request struct {
		rpc_types.AssetParams
		Owner string `json:"owner"`
	}
	if rpcErr := rpc_types.ParseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	collection, itemID, rpcErr := request.Parse()
	if rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := rpc_types.RequireIdentity("owner", request.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	registry, _, rpcErr := devServices(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}

	if err := registry.Mint(collection, itemID, owner); err != nil {
		return nil, rpc_types.RpcErrorInvalidParams(err.Error())
	}
	if rpcErr := syncDev(ctx); rpcErr != nil {
		return nil, rpcErr
	}
	return map[string]interface{}{
		"collection": collection.String(),
		"item_id":    request.ItemID.String(),
		"owner":      owner.String(),
	}, nil
}

// DevFundMethod handles the dev_fund RPC method
type DevFundMethod struct{ guestMethod }

func (m *DevFundMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request struct {
		Account string            `json:"account"`
		Amount  rpc_types.Numeric `json:"amount"`
	}
	if rpcErr := rpc_types.ParseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	account, rpcErr := rpc_types.RequireIdentity("account", request.Account)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amt, rpcErr := rpc_types.RequireAmount("amount", request.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	_, bank, rpcErr := devServices(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}

	if err := bank.Fund(account, amt); err != nil {
		return nil, rpc_types.RpcErrorInvalidParams(err.Error())
	}
	if rpcErr := syncDev(ctx); rpcErr != nil {
		return nil, rpcErr
	}
	return balance(ctx, bank, account), nil
}

// DevBalanceMethod handles the dev_balance RPC method
type DevBalanceMethod struct{ guestMethod }

func (m *DevBalanceMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request struct {
		Account string `json:"account"`
	}
	if rpcErr := rpc_types.ParseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	account, rpcErr := rpc_types.RequireIdentity("account", request.Account)
	if rpcErr != nil {
		return nil, rpcErr
	}
	_, bank, rpcErr := devServices(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}

	return balance(ctx, bank, account), nil
}

func balance(ctx *rpc_types.RpcContext, bank rpc_types.DevBank, account identity.ID) map[string]interface{} {
	return map[string]interface{}{
		"account": account.String(),
		"balance": FormatAmount(bank.BalanceOf(account), ctx.Services.Decimals),
	}
}

// DevApproveMethod handles the dev_approve RPC method. The caller must own
// the item; an empty operator clears the approval.
type DevApproveMethod struct{ signerMethod }

func (m *DevApproveMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request struct {
		rpc_types.AssetParams
		Operator string `json:"operator"`
	}
	if rpcErr := rpc_types.ParseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	collection, itemID, rpcErr := request.Parse()
	if rpcErr != nil {
		return nil, rpcErr
	}
	operator := identity.Null
	if request.Operator != "" {
		if operator, rpcErr = rpc_types.RequireIdentity("operator", request.Operator); rpcErr != nil {
			return nil, rpcErr
		}
	}
	registry, _, rpcErr := devServices(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}

	if err := registry.Approve(ctx.Caller, collection, itemID, operator); err != nil {
		return nil, rpc_types.RpcErrorInvalidParams(err.Error())
	}
	if rpcErr := syncDev(ctx); rpcErr != nil {
		return nil, rpcErr
	}
	return map[string]interface{}{
		"collection": collection.String(),
		"item_id":    request.ItemID.String(),
		"operator":   operator.String(),
	}, nil
}

// DevApproveAllMethod handles the dev_approve_all RPC method, granting or
// revoking an operator for every item the caller owns
type DevApproveAllMethod struct{ signerMethod }

func (m *DevApproveAllMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request struct {
		Operator string `json:"operator"`
		Approved *bool  `json:"approved"`
	}
	if rpcErr := rpc_types.ParseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	operator, rpcErr := rpc_types.RequireIdentity("operator", request.Operator)
	if rpcErr != nil {
		return nil, rpcErr
	}
	approved := true
	if request.Approved != nil {
		approved = *request.Approved
	}
	registry, _, rpcErr := devServices(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}

	registry.SetApprovalForAll(ctx.Caller, operator, approved)
	if rpcErr := syncDev(ctx); rpcErr != nil {
		return nil, rpcErr
	}
	return map[string]interface{}{
		"owner":    ctx.Caller.String(),
		"operator": operator.String(),
		"approved": approved,
	}, nil
}
