package market

import (
	"context"

	"github.com/LeJamon/goOfferd/internal/core/event"
	"github.com/LeJamon/goOfferd/internal/core/identity"
	"github.com/LeJamon/goOfferd/internal/core/ledger"
	"github.com/LeJamon/goOfferd/internal/core/result"
)

// requireOwner checks caller against the administrator stored in v
func requireOwner(v ledger.View, caller identity.ID) (ledger.Settings, error) {
	settings := v.ReadSettings()
	if caller.IsNull() || caller != settings.Owner {
		return settings, result.TefNO_PERMISSION
	}
	return settings, nil
}

// SetFeeBasisPoints changes the marketplace fee rate
func (e *Engine) SetFeeBasisPoints(ctx context.Context, caller identity.ID, bps uint32) error {
	return e.run(ctx, OpSetFeeBasisPoints, false, func(ctx context.Context, s *scope) error {
		settings, err := requireOwner(s.table, caller)
		if err != nil {
			return err
		}
		if bps > ledger.MaxFeeBasisPoints {
			return result.TemBAD_FEE
		}

		previous := settings.FeeBasisPoints
		settings.FeeBasisPoints = bps
		if err := s.table.WriteSettings(settings); err != nil {
			return result.Wrap(result.TefINTERNAL, err)
		}
		s.emit(event.FeeBasisPointsUpdated{Previous: previous, Current: bps})
		return nil
	})
}

// SetFeeRecipient changes the identity fees are paid to
func (e *Engine) SetFeeRecipient(ctx context.Context, caller, recipient identity.ID) error {
	return e.run(ctx, OpSetFeeRecipient, false, func(ctx context.Context, s *scope) error {
		settings, err := requireOwner(s.table, caller)
		if err != nil {
			return err
		}
		if recipient.IsNull() {
			return result.TemBAD_RECIPIENT
		}

		previous := settings.FeeRecipient
		settings.FeeRecipient = recipient
		if err := s.table.WriteSettings(settings); err != nil {
			return result.Wrap(result.TefINTERNAL, err)
		}
		s.emit(event.FeeRecipientUpdated{Previous: previous, Current: recipient})
		return nil
	})
}

// TransferOwnership hands the administrator role to newOwner
func (e *Engine) TransferOwnership(ctx context.Context, caller, newOwner identity.ID) error {
	return e.run(ctx, OpTransferOwnership, false, func(ctx context.Context, s *scope) error {
		settings, err := requireOwner(s.table, caller)
		if err != nil {
			return err
		}
		if newOwner.IsNull() {
			return result.TemBAD_OWNER
		}

		previous := settings.Owner
		settings.Owner = newOwner
		if err := s.table.WriteSettings(settings); err != nil {
			return result.Wrap(result.TefINTERNAL, err)
		}
		s.emit(event.OwnershipTransferred{Previous: previous, Current: newOwner})
		return nil
	})
}
