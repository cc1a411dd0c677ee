package rpc_handlers

import (
	"encoding/json"

	"github.com/LeJamon/goOfferd/internal/rpc/rpc_types"
)

// SetFeeMethod handles the set_fee RPC method (owner only)
type SetFeeMethod struct{ signerMethod }

func (m *SetFeeMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request struct {
		FeeBasisPoints *uint32 `json:"fee_basis_points"`
	}
	if rpcErr := rpc_types.ParseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	if request.FeeBasisPoints == nil {
		return nil, rpc_types.RpcErrorMissingField("fee_basis_points")
	}
	svc, rpcErr := market(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}

	return applied("set_fee", svc.SetFeeBasisPoints(ctx.Context, ctx.Caller, *request.FeeBasisPoints))
}

// SetFeeRecipientMethod handles the set_fee_recipient RPC method (owner only)
type SetFeeRecipientMethod struct{ signerMethod }

func (m *SetFeeRecipientMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request struct {
		FeeRecipient string `json:"fee_recipient"`
	}
	if rpcErr := rpc_types.ParseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	recipient, rpcErr := rpc_types.RequireIdentity("fee_recipient", request.FeeRecipient)
	if rpcErr != nil {
		return nil, rpcErr
	}
	svc, rpcErr := market(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}

	return applied("set_fee_recipient", svc.SetFeeRecipient(ctx.Context, ctx.Caller, recipient))
}

// TransferOwnershipMethod handles the transfer_ownership RPC method (owner only)
type TransferOwnershipMethod struct{ signerMethod }

func (m *TransferOwnershipMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request struct {
		NewOwner string `json:"new_owner"`
	}
	if rpcErr := rpc_types.ParseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	newOwner, rpcErr := rpc_types.RequireIdentity("new_owner", request.NewOwner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	svc, rpcErr := market(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}

	return applied("transfer_ownership", svc.TransferOwnership(ctx.Context, ctx.Caller, newOwner))
}
