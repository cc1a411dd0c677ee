package ledger

import (
	"bytes"
	"fmt"

	"github.com/LeJamon/goOfferd/internal/core/amount"
	"github.com/LeJamon/goOfferd/internal/core/identity"
	"github.com/holiman/uint256"
)

// KeySize is the size of the binary form of an OfferKey
const KeySize = identity.Size + 32 + identity.Size

// MaxFeeBasisPoints is the fixed ceiling of the marketplace fee (10%)
const MaxFeeBasisPoints = 1000

// AssetRef identifies one non-fungible item.
type AssetRef struct {
	Collection identity.ID
	ItemID     uint256.Int
}

// OfferKey identifies an offer: one offerer's bid on one item.
// It is comparable and used directly as a map key.
type OfferKey struct {
	Collection identity.ID
	ItemID     uint256.Int
	Offerer    identity.ID
}

// NewOfferKey builds the key of offerer's offer on (collection, itemID)
func NewOfferKey(collection identity.ID, itemID *uint256.Int, offerer identity.ID) OfferKey {
	k := OfferKey{Collection: collection, Offerer: offerer}
	k.ItemID.Set(itemID)
	return k
}

// Asset returns the item the offer is made on
func (k OfferKey) Asset() AssetRef {
	return AssetRef{Collection: k.Collection, ItemID: k.ItemID}
}

// Bytes returns the binary form: collection || item id (big endian) || offerer.
// Keys of the same item share a prefix and sort by offerer.
func (k OfferKey) Bytes() []byte {
	buf := make([]byte, 0, KeySize)
	buf = append(buf, k.Collection[:]...)
	item := k.ItemID.Bytes32()
	buf = append(buf, item[:]...)
	buf = append(buf, k.Offerer[:]...)
	return buf
}

// Compare orders keys by their binary form
func (k OfferKey) Compare(other OfferKey) int {
	return bytes.Compare(k.Bytes(), other.Bytes())
}

// OfferKeyFromBytes parses the binary form produced by Bytes
func OfferKeyFromBytes(b []byte) (OfferKey, bool) {
	if len(b) != KeySize {
		return OfferKey{}, false
	}
	var k OfferKey
	copy(k.Collection[:], b[:identity.Size])
	k.ItemID.SetBytes(b[identity.Size : identity.Size+32])
	copy(k.Offerer[:], b[identity.Size+32:])
	return k, true
}

// Bytes returns the binary prefix shared by all offer keys of this item
func (a AssetRef) Bytes() []byte {
	buf := make([]byte, 0, identity.Size+32)
	buf = append(buf, a.Collection[:]...)
	item := a.ItemID.Bytes32()
	return append(buf, item[:]...)
}

// Offer is one party's standing bid on one item.
type Offer struct {
	Collection identity.ID
	ItemID     uint256.Int
	Offerer    identity.ID
	Amount     amount.Amount
}

// Key returns the ledger key of the offer
func (o Offer) Key() OfferKey {
	return OfferKey{Collection: o.Collection, ItemID: o.ItemID, Offerer: o.Offerer}
}

// IsLive reports whether the offer is a live record; absent offers have a
// zero amount.
func (o Offer) IsLive() bool {
	return o.Amount.IsPositive()
}

// Settings is the marketplace configuration.
type Settings struct {
	FeeBasisPoints uint32
	FeeRecipient   identity.ID
	Owner          identity.ID
}

// ParseItemID parses a base-10 or 0x-prefixed hex item identifier
func ParseItemID(s string) (uint256.Int, error) {
	var id uint256.Int
	a, err := amount.Parse(s)
	if err != nil {
		return id, fmt.Errorf("invalid item id %q: %w", s, err)
	}
	id.Set(a.Uint256())
	return id, nil
}

// FormatItemID returns the base-10 form of an item identifier
func FormatItemID(id *uint256.Int) string {
	return id.ToBig().String()
}
