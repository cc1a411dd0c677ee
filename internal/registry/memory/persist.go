package memory

import (
	"errors"
	"fmt"

	"github.com/LeJamon/goOfferd/internal/core/amount"
	"github.com/LeJamon/goOfferd/internal/core/identity"
	"github.com/LeJamon/goOfferd/internal/core/ledger"
)

// Records are keyed by the binary form of what they hold:
//
//	bank:     account                      -> balance (32 bytes, big endian)
//	registry: "o" || collection || item id -> owner
//	          "a" || collection || item id -> approved operator
//	          "p" || owner || operator     -> 0x01
//
// A nil value in Pending deletes the record.

var ErrCorruptRecord = errors.New("corrupt collaborator record")

const (
	recordOwner    = 'o'
	recordApproval = 'a'
	recordOperator = 'p'
)

func balanceKey(id identity.ID) string {
	return string(id[:])
}

func ownerKey(k ledger.AssetRef) string {
	return string(recordOwner) + string(k.Bytes())
}

func approvalKey(k ledger.AssetRef) string {
	return string(recordApproval) + string(k.Bytes())
}

func operatorKey(owner, operator identity.ID) string {
	return string(recordOperator) + string(owner[:]) + string(operator[:])
}

func assetFromKey(key string) (ledger.AssetRef, bool) {
	raw := []byte(key[1:])
	if len(raw) != identity.Size+32 {
		return ledger.AssetRef{}, false
	}
	var k ledger.AssetRef
	copy(k.Collection[:], raw[:identity.Size])
	k.ItemID.SetBytes(raw[identity.Size:])
	return k, true
}

// Pending returns the balances changed since they were last flushed. Calling
// flushed marks them written.
func (b *Bank) Pending() (records map[string][]byte, flushed func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	seqs := b.journal.pending()
	records = make(map[string][]byte, len(seqs))
	for key := range seqs {
		id, _ := identity.FromBytes([]byte(key))
		if bal, ok := b.balances[id]; ok {
			raw := bal.Bytes32()
			records[key] = raw[:]
		} else {
			records[key] = nil
		}
	}
	return records, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.journal.flushed(seqs)
	}
}

// Load restores balances read back from storage
func (b *Bank) Load(records map[string][]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, raw := range records {
		id, err := identity.FromBytes([]byte(key))
		if err != nil {
			return fmt.Errorf("%w: account %x", ErrCorruptRecord, key)
		}
		bal, err := amount.FromBytes(raw)
		if err != nil {
			return fmt.Errorf("%w: balance of %s", ErrCorruptRecord, id)
		}
		if bal.IsZero() {
			delete(b.balances, id)
			continue
		}
		b.balances[id] = bal
	}
	return nil
}

// Pending returns the ownership and approval records changed since they
// were last flushed. Calling flushed marks them written.
func (r *Registry) Pending() (records map[string][]byte, flushed func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seqs := r.journal.pending()
	records = make(map[string][]byte, len(seqs))
	for key := range seqs {
		records[key] = r.recordValue(key)
	}
	return records, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.journal.flushed(seqs)
	}
}

func (r *Registry) recordValue(key string) []byte {
	switch key[0] {
	case recordOwner, recordApproval:
		k, ok := assetFromKey(key)
		if !ok {
			return nil
		}
		m := r.owners
		if key[0] == recordApproval {
			m = r.approvals
		}
		if id, ok := m[k]; ok {
			return id[:]
		}
	case recordOperator:
		if len(key) != 1+2*identity.Size {
			return nil
		}
		var owner, operator identity.ID
		copy(owner[:], key[1:1+identity.Size])
		copy(operator[:], key[1+identity.Size:])
		if r.operators[owner][operator] {
			return []byte{1}
		}
	}
	return nil
}

// Load restores ownership and approvals read back from storage
func (r *Registry) Load(records map[string][]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, raw := range records {
		if len(key) == 0 {
			return fmt.Errorf("%w: empty key", ErrCorruptRecord)
		}
		switch key[0] {
		case recordOwner, recordApproval:
			k, ok := assetFromKey(key)
			if !ok {
				return fmt.Errorf("%w: key %x", ErrCorruptRecord, key)
			}
			id, err := identity.FromBytes(raw)
			if err != nil {
				return fmt.Errorf("%w: value of %x: %v", ErrCorruptRecord, key, err)
			}
			if key[0] == recordOwner {
				r.owners[k] = id
			} else {
				r.approvals[k] = id
			}
		case recordOperator:
			if len(key) != 1+2*identity.Size {
				return fmt.Errorf("%w: key %x", ErrCorruptRecord, key)
			}
			var owner, operator identity.ID
			copy(owner[:], key[1:1+identity.Size])
			copy(operator[:], key[1+identity.Size:])
			ops := r.operators[owner]
			if ops == nil {
				ops = make(map[identity.ID]bool)
				r.operators[owner] = ops
			}
			ops[operator] = true
		default:
			return fmt.Errorf("%w: key %x", ErrCorruptRecord, key)
		}
	}
	return nil
}
