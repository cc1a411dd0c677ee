package rpc

import (
	"github.com/LeJamon/goOfferd/internal/rpc/rpc_handlers"
)

// registerAllMethods registers all RPC methods
// This function is called by NewServer to set up the complete method registry
func (s *Server) registerAllMethods(dev bool) {
	// Server Information Methods
	s.registry.Register("server_info", &rpc_handlers.ServerInfoMethod{})
	s.registry.Register("ping", &rpc_handlers.PingMethod{})

	// Offer Methods
	s.registry.Register("place_offer", &rpc_handlers.PlaceOfferMethod{})
	s.registry.Register("cancel_offer", &rpc_handlers.CancelOfferMethod{})
	s.registry.Register("accept_offer", &rpc_handlers.AcceptOfferMethod{})

	// Market Configuration Methods (owner only)
	s.registry.Register("set_fee", &rpc_handlers.SetFeeMethod{})
	s.registry.Register("set_fee_recipient", &rpc_handlers.SetFeeRecipientMethod{})
	s.registry.Register("transfer_ownership", &rpc_handlers.TransferOwnershipMethod{})

	// Query Methods
	s.registry.Register("offer_info", &rpc_handlers.OfferInfoMethod{})
	s.registry.Register("item_offers", &rpc_handlers.ItemOffersMethod{})
	s.registry.Register("market_info", &rpc_handlers.MarketInfoMethod{})
	s.registry.Register("recent_events", &rpc_handlers.RecentEventsMethod{})

	if !dev {
		return
	}

	// Standalone mode methods
	s.registry.Register("dev_mint", &rpc_handlers.DevMintMethod{})
	s.registry.Register("dev_fund", &rpc_handlers.DevFundMethod{})
	s.registry.Register("dev_approve", &rpc_handlers.DevApproveMethod{})
	s.registry.Register("dev_approve_all", &rpc_handlers.DevApproveAllMethod{})
	s.registry.Register("dev_balance", &rpc_handlers.DevBalanceMethod{})
}
