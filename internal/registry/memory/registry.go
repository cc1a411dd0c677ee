package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/LeJamon/goOfferd/internal/core/identity"
	"github.com/LeJamon/goOfferd/internal/core/ledger"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// Registry is an in-memory record of item ownership and transfer approvals.
type Registry struct {
	mu        sync.Mutex
	owners    map[ledger.AssetRef]identity.ID
	approvals map[ledger.AssetRef]identity.ID
	operators map[identity.ID]map[identity.ID]bool
	journal   journal

	hooks        map[identity.ID]Hook
	failTransfer error
	failQuery    error
	logger       *zap.Logger
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		owners:    make(map[ledger.AssetRef]identity.ID),
		approvals: make(map[ledger.AssetRef]identity.ID),
		operators: make(map[identity.ID]map[identity.ID]bool),
		journal:   newJournal(),
		hooks:     make(map[identity.ID]Hook),
		logger:    zap.NewNop(),
	}
}

// SetLogger sets the logger failed reversals are reported to
func (r *Registry) SetLogger(logger *zap.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger.Named("registry")
}

func ref(collection identity.ID, itemID uint256.Int) ledger.AssetRef {
	return ledger.AssetRef{Collection: collection, ItemID: itemID}
}

// Mint records a new item owned by owner
func (r *Registry) Mint(collection identity.ID, itemID uint256.Int, owner identity.ID) error {
	if owner.IsNull() {
		return ErrNullIdentity
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := ref(collection, itemID)
	if _, exists := r.owners[k]; exists {
		return ErrItemExists
	}
	r.owners[k] = owner
	r.journal.touch(ownerKey(k))
	return nil
}

// OwnerOf returns the current owner of an item
func (r *Registry) OwnerOf(_ context.Context, collection identity.ID, itemID uint256.Int) (identity.ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failQuery != nil {
		return identity.Null, r.failQuery
	}
	owner, ok := r.owners[ref(collection, itemID)]
	if !ok {
		return identity.Null, fmt.Errorf("%w: %s/%s", ErrUnknownItem, collection, ledger.FormatItemID(&itemID))
	}
	return owner, nil
}

// Approve lets operator move one item on behalf of its owner. A null
// operator clears the approval.
func (r *Registry) Approve(caller, collection identity.ID, itemID uint256.Int, operator identity.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := ref(collection, itemID)
	owner, ok := r.owners[k]
	if !ok {
		return ErrUnknownItem
	}
	if owner != caller {
		return ErrNotOwner
	}
	if operator.IsNull() {
		delete(r.approvals, k)
	} else {
		r.approvals[k] = operator
	}
	r.journal.touch(approvalKey(k))
	return nil
}

// SetApprovalForAll grants or revokes operator's right to move every item of owner
func (r *Registry) SetApprovalForAll(owner, operator identity.ID, approved bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := r.operators[owner]
	if ops == nil {
		ops = make(map[identity.ID]bool)
		r.operators[owner] = ops
	}
	if approved {
		ops[operator] = true
	} else {
		delete(ops, operator)
	}
	r.journal.touch(operatorKey(owner, operator))
}

// IsApprovedForTransfer reports whether operator holds either a per-item or
// a blanket approval from the item's owner
func (r *Registry) IsApprovedForTransfer(_ context.Context, collection identity.ID, itemID uint256.Int, operator identity.ID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failQuery != nil {
		return false, r.failQuery
	}
	k := ref(collection, itemID)
	owner, ok := r.owners[k]
	if !ok {
		return false, ErrUnknownItem
	}
	if r.approvals[k] == operator {
		return true, nil
	}
	return r.operators[owner][operator], nil
}

// Transfer moves an item from its owner to another identity and clears the
// per-item approval. The recipient's hook runs after the move; if it fails
// the move is undone.
func (r *Registry) Transfer(ctx context.Context, collection identity.ID, itemID uint256.Int, from, to identity.ID) error {
	if to.IsNull() {
		return ErrNullIdentity
	}

	r.mu.Lock()
	if r.failTransfer != nil {
		err := r.failTransfer
		r.mu.Unlock()
		return err
	}
	k := ref(collection, itemID)
	owner, ok := r.owners[k]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownItem
	}
	if owner != from {
		r.mu.Unlock()
		return ErrNotOwner
	}
	approval, hadApproval := r.approvals[k]
	r.owners[k] = to
	delete(r.approvals, k)
	step := r.journal.record(func() error {
		if current := r.owners[k]; current != to {
			return fmt.Errorf("return %s/%s to %s: now owned by %s",
				collection, ledger.FormatItemID(&itemID), from, current)
		}
		r.restore(k, from, approval, hadApproval)
		return nil
	}, ownerKey(k), approvalKey(k))
	hook := r.hooks[to]
	r.mu.Unlock()

	if hook == nil {
		return nil
	}
	if err := hook(ctx); err != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		if current := r.owners[k]; current != to {
			r.logger.Error("failed to reclaim rejected item",
				zap.Stringer("collection", collection), zap.String("item", ledger.FormatItemID(&itemID)),
				zap.Stringer("recipient", to), zap.Stringer("owner", current))
			return fmt.Errorf("%w: %v; reclaim item: now owned by %s", ErrRejected, err, current)
		}
		r.restore(k, from, approval, hadApproval)
		r.journal.cancel(step)
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	return nil
}

func (r *Registry) restore(k ledger.AssetRef, owner, approval identity.ID, hadApproval bool) {
	r.owners[k] = owner
	if hadApproval {
		r.approvals[k] = approval
	} else {
		delete(r.approvals, k)
	}
}

// OnReceive installs a hook that runs whenever id receives an item. A nil
// hook removes it.
func (r *Registry) OnReceive(id identity.ID, hook Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hook == nil {
		delete(r.hooks, id)
		return
	}
	r.hooks[id] = hook
}

// FailTransfers makes every transfer fail with err until called with nil
func (r *Registry) FailTransfers(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failTransfer = err
}

// FailQueries makes owner and approval lookups fail with err until called with nil
func (r *Registry) FailQueries(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failQuery = err
}

// Savepoint opens a savepoint over the transfers that follow. rollback
// returns their items, newest first; release keeps them. Mints and
// approvals granted directly are never undone.
func (r *Registry) Savepoint() (rollback, release func()) {
	r.mu.Lock()
	f := r.journal.open()
	r.mu.Unlock()

	rollback = func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if err := r.journal.rollback(f); err != nil {
			r.logger.Error("failed to undo transfers", zap.Error(err))
		}
	}
	release = func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.journal.release(f)
	}
	return rollback, release
}
