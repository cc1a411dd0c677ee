package market

import (
	"context"
	"errors"

	"github.com/LeJamon/goOfferd/internal/core/amount"
	"github.com/LeJamon/goOfferd/internal/core/event"
	"github.com/LeJamon/goOfferd/internal/core/identity"
	"github.com/LeJamon/goOfferd/internal/core/ledger"
	"github.com/LeJamon/goOfferd/internal/core/result"
	"github.com/holiman/uint256"
)

// PlaceOffer registers offerer's bid of amt on (collection, itemID). The
// item does not need to be listed. When the value transfer can collect
// funds, amt is taken into custody after the offer is recorded.
func (e *Engine) PlaceOffer(ctx context.Context, collection identity.ID, itemID uint256.Int, amt amount.Amount, offerer identity.ID) error {
	return e.run(ctx, OpPlaceOffer, false, func(ctx context.Context, s *scope) error {
		if amt.IsZero() {
			return result.TemBAD_AMOUNT
		}
		if offerer.IsNull() {
			return result.TemBAD_OFFERER
		}

		offer := ledger.Offer{
			Collection: collection,
			ItemID:     itemID,
			Offerer:    offerer,
			Amount:     amt,
		}
		if err := s.table.InsertOffer(offer); err != nil {
			if errors.Is(err, ledger.ErrOfferExists) {
				return result.TecDUPLICATE
			}
			return result.Wrap(result.TefINTERNAL, err)
		}

		if e.collector != nil {
			s.savepoint(e.transferSP)
			if err := e.collector.Collect(ctx, offerer, amt); err != nil {
				return result.Wrap(result.TecUNFUNDED, err)
			}
		}

		s.emit(event.OfferPlaced{
			Collection: collection,
			ItemID:     ledger.FormatItemID(&itemID),
			Offerer:    offerer,
			Amount:     amt,
		})
		return nil
	})
}

// CancelOffer withdraws offerer's bid on (collection, itemID) and refunds
// the full amount. The offer is removed before the refund is sent.
func (e *Engine) CancelOffer(ctx context.Context, collection identity.ID, itemID uint256.Int, offerer identity.ID) error {
	return e.run(ctx, OpCancelOffer, true, func(ctx context.Context, s *scope) error {
		key := ledger.NewOfferKey(collection, &itemID, offerer)
		offer, ok := s.table.ReadOffer(key)
		if !ok {
			return result.TecNO_ENTRY
		}
		if err := s.table.EraseOffer(key); err != nil {
			return result.Wrap(result.TefINTERNAL, err)
		}

		s.savepoint(e.transferSP)
		if err := e.transfer.Send(ctx, offer.Amount, offerer); err != nil {
			return result.Wrap(result.TecREFUND_FAILED, err)
		}

		s.emit(event.OfferCancelled{
			Collection: collection,
			ItemID:     ledger.FormatItemID(&itemID),
			Offerer:    offerer,
			Amount:     offer.Amount,
		})
		return nil
	})
}

// AcceptOffer settles offerer's bid on (collection, itemID). caller must be
// the current owner of the item and the engine must be approved to move it.
// The item goes to the offerer, the amount net of the marketplace fee goes to
// the caller and the fee goes to the fee recipient, or none of it happens.
func (e *Engine) AcceptOffer(ctx context.Context, collection identity.ID, itemID uint256.Int, offerer, caller identity.ID) error {
	return e.run(ctx, OpAcceptOffer, true, func(ctx context.Context, s *scope) error {
		key := ledger.NewOfferKey(collection, &itemID, offerer)
		offer, ok := s.table.ReadOffer(key)
		if !ok {
			return result.TecNO_ENTRY
		}

		owner, err := e.registry.OwnerOf(ctx, collection, itemID)
		if err != nil {
			return result.Wrap(result.TefINTERNAL, err)
		}
		if owner != caller {
			return result.TecNOT_ASSET_OWNER
		}

		approved, err := e.registry.IsApprovedForTransfer(ctx, collection, itemID, e.self)
		if err != nil {
			return result.Wrap(result.TefINTERNAL, err)
		}
		if !approved {
			return result.TecNO_AUTH
		}

		settings := s.table.ReadSettings()
		fee, net := offer.Amount.SplitFee(settings.FeeBasisPoints)

		// State first: a call made by any collaborator below sees the offer gone
		if err := s.table.EraseOffer(key); err != nil {
			return result.Wrap(result.TefINTERNAL, err)
		}

		s.savepoint(e.registrySP)
		if err := e.registry.Transfer(ctx, collection, itemID, owner, offerer); err != nil {
			return result.Wrap(result.TecASSET_TRANSFER_FAILED, err)
		}
		if e.registrySP == nil {
			s.onRollback(e.returnAsset(ctx, collection, itemID, offerer, owner))
		}

		s.savepoint(e.transferSP)
		if err := e.transfer.Send(ctx, net, owner); err != nil {
			return result.Wrap(result.TecSELLER_PAYMENT_FAILED, err)
		}
		if fee.IsPositive() {
			if err := e.transfer.Send(ctx, fee, settings.FeeRecipient); err != nil {
				return result.Wrap(result.TecFEE_TRANSFER_FAILED, err)
			}
		}

		s.emit(event.OfferAccepted{
			Collection: collection,
			ItemID:     ledger.FormatItemID(&itemID),
			Seller:     owner,
			Buyer:      offerer,
			Amount:     offer.Amount,
			Fee:        fee,
		})
		return nil
	})
}

// returnAsset builds the undo step of a registry transfer for registries
// without savepoints
func (e *Engine) returnAsset(ctx context.Context, collection identity.ID, itemID uint256.Int, holder, owner identity.ID) func() {
	return func() {
		if err := e.registry.Transfer(ctx, collection, itemID, holder, owner); err != nil {
			e.logger.Error("failed to return asset after aborted settlement",
				zapAsset(collection, &itemID), zapID("holder", holder), zapID("owner", owner), zapErr(err))
		}
	}
}

// Offer returns offerer's live offer on (collection, itemID)
func (e *Engine) Offer(ctx context.Context, collection identity.ID, itemID uint256.Int, offerer identity.ID) (ledger.Offer, bool) {
	return e.view(ctx).ReadOffer(ledger.NewOfferKey(collection, &itemID, offerer))
}

// OffersForItem returns every live offer on (collection, itemID), ordered by offerer
func (e *Engine) OffersForItem(ctx context.Context, collection identity.ID, itemID uint256.Int) []ledger.Offer {
	return ledger.OffersForItem(e.view(ctx), ledger.AssetRef{Collection: collection, ItemID: itemID})
}

// OfferCount returns the number of live offers
func (e *Engine) OfferCount(ctx context.Context) int {
	return ledger.CountOffers(e.view(ctx))
}

// Settings returns the marketplace configuration
func (e *Engine) Settings(ctx context.Context) ledger.Settings {
	return e.view(ctx).ReadSettings()
}
