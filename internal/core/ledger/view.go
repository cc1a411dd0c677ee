package ledger

import "errors"

var (
	// ErrOfferExists is returned when inserting over a live offer
	ErrOfferExists = errors.New("offer already exists")

	// ErrOfferNotFound is returned when erasing an absent offer
	ErrOfferNotFound = errors.New("offer not found")
)

// View provides read/write access to offer ledger state.
// A View is implemented by the base Ledger and by StateTable, which layers
// tracked changes over another View.
type View interface {
	// ReadOffer returns the live offer stored under k
	ReadOffer(k OfferKey) (Offer, bool)

	// InsertOffer stores a new offer; the key must be free
	InsertOffer(o Offer) error

	// EraseOffer removes the live offer under k
	EraseOffer(k OfferKey) error

	// ReadSettings returns the marketplace configuration
	ReadSettings() Settings

	// WriteSettings replaces the marketplace configuration
	WriteSettings(s Settings) error

	// ForEachOffer calls fn for every live offer until fn returns false.
	// Iteration order is unspecified.
	ForEachOffer(fn func(o Offer) bool)
}
