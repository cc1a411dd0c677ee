package rpc_handlers

import (
	"github.com/LeJamon/goOfferd/internal/core/amount"
	"github.com/LeJamon/goOfferd/internal/core/ledger"
	"github.com/LeJamon/goOfferd/internal/rpc/rpc_types"
)

// FormatAmount renders an amount in base units and in whole units
func FormatAmount(a amount.Amount, decimals int32) map[string]interface{} {
	return map[string]interface{}{
		"value":   a.String(),
		"display": a.Format(decimals),
	}
}

// FormatOffer renders one ledger offer
func FormatOffer(o ledger.Offer, decimals int32) map[string]interface{} {
	return map[string]interface{}{
		"collection": o.Collection.String(),
		"item_id":    ledger.FormatItemID(&o.ItemID),
		"offerer":    o.Offerer.String(),
		"amount":     FormatAmount(o.Amount, decimals),
	}
}

// FormatSettings renders the marketplace settings
func FormatSettings(s ledger.Settings) map[string]interface{} {
	return map[string]interface{}{
		"fee_basis_points": s.FeeBasisPoints,
		"fee_recipient":    s.FeeRecipient.String(),
		"owner":            s.Owner.String(),
	}
}

// market returns the market service or an internal error when the server
// was started without one
func market(ctx *rpc_types.RpcContext) (rpc_types.MarketService, *rpc_types.RpcError) {
	if ctx.Services == nil || ctx.Services.Market == nil {
		return nil, rpc_types.RpcErrorInternal("Market service not available")
	}
	return ctx.Services.Market, nil
}

// applied builds the response of a state-changing method
func applied(method string, err error) (interface{}, *rpc_types.RpcError) {
	if err != nil {
		return nil, rpc_types.RpcErrorFromResult(err)
	}
	return map[string]interface{}{
		"engine_result": "tesSUCCESS",
		"method":        method,
	}, nil
}

// guestMethod and signerMethod give handlers their role
type guestMethod struct{}

func (guestMethod) RequiredRole() rpc_types.Role { return rpc_types.RoleGuest }

type signerMethod struct{}

func (signerMethod) RequiredRole() rpc_types.Role { return rpc_types.RoleSigner }
