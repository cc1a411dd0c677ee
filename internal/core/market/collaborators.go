package market

import (
	"context"
	"time"

	"github.com/LeJamon/goOfferd/internal/core/amount"
	"github.com/LeJamon/goOfferd/internal/core/identity"
	"github.com/LeJamon/goOfferd/internal/core/ledger"
	"github.com/LeJamon/goOfferd/internal/core/result"
	"github.com/holiman/uint256"
)

//go:generate mockgen -destination=mocks/collaborators.go -package=mocks github.com/LeJamon/goOfferd/internal/core/market AssetRegistry,ValueTransfer

// AssetRegistry is the system of record for item ownership.
// Implementations that call back into the engine must pass on the context
// they received. A call made with any other context is not recognized as
// nested: it waits for the engine lock held by the very operation that made
// it, and returns only once that context is done.
type AssetRegistry interface {
	OwnerOf(ctx context.Context, collection identity.ID, itemID uint256.Int) (identity.ID, error)
	// IsApprovedForTransfer covers both per-item and blanket approval
	IsApprovedForTransfer(ctx context.Context, collection identity.ID, itemID uint256.Int, operator identity.ID) (bool, error)
	Transfer(ctx context.Context, collection identity.ID, itemID uint256.Int, from, to identity.ID) error
}

// ValueTransfer sends funds held by the engine. Send may run code controlled
// by the recipient, which may re-enter the engine with ctx. As with
// AssetRegistry, a call back into the engine with a fresh context blocks
// until that context is done.
type ValueTransfer interface {
	Send(ctx context.Context, amt amount.Amount, to identity.ID) error
}

// ValueCollector is optionally implemented by a ValueTransfer that can take
// funds into custody when an offer is placed.
type ValueCollector interface {
	Collect(ctx context.Context, from identity.ID, amt amount.Amount) error
}

// Savepointer is optionally implemented by collaborators whose effects can be
// undone. Savepoint opens a savepoint over the effects the engine causes
// from then on. rollback undoes them; release keeps them, folding them into
// the savepoint opened before this one if any. Exactly one of the two is
// called. Changes made to the collaborator by other callers in the meantime
// must survive either.
type Savepointer interface {
	Savepoint() (rollback, release func())
}

// Store receives the changes of every committed operation
type Store interface {
	Persist(changes ledger.Changes) error
}

// Observer receives operation outcomes
type Observer interface {
	OperationDone(op string, code result.Result, elapsed time.Duration)
	OffersChanged(live int)
}
