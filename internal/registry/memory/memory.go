// Package memory provides in-process implementations of the asset registry
// and the value transfer the market engine settles against. They are used by
// standalone servers and by tests, which use the receiver hooks to call back
// into the engine.
package memory

import (
	"context"
	"errors"
)

var (
	ErrUnknownItem       = errors.New("unknown item")
	ErrItemExists        = errors.New("item already minted")
	ErrNotOwner          = errors.New("not the owner of the item")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrRejected          = errors.New("recipient rejected the transfer")
	ErrNullIdentity      = errors.New("null identity")
)

// Hook runs when an identity receives an item or funds. It is handed the
// context of the transfer; an error aborts the transfer.
type Hook func(ctx context.Context) error
