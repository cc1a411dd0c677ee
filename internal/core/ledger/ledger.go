// Package ledger holds the offer ledger: live offers keyed by
// (collection, item, offerer), the marketplace settings, and the change
// tables used to apply or discard the effects of one operation.
package ledger

import (
	"sort"
	"sync"
)

// Ledger is the authoritative in-memory state. It is safe for concurrent
// readers; writers are expected to be serialized by the market engine.
type Ledger struct {
	mu       sync.RWMutex
	offers   map[OfferKey]Offer
	settings Settings
}

// New creates a ledger with the given initial settings
func New(settings Settings) *Ledger {
	return &Ledger{
		offers:   make(map[OfferKey]Offer),
		settings: settings,
	}
}

// ReadOffer returns the live offer stored under k
func (l *Ledger) ReadOffer(k OfferKey) (Offer, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.offers[k]
	return o, ok
}

// InsertOffer stores a new offer
func (l *Ledger) InsertOffer(o Offer) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := o.Key()
	if _, exists := l.offers[k]; exists {
		return ErrOfferExists
	}
	l.offers[k] = o
	return nil
}

// EraseOffer removes the live offer under k
func (l *Ledger) EraseOffer(k OfferKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.offers[k]; !exists {
		return ErrOfferNotFound
	}
	delete(l.offers, k)
	return nil
}

// ReadSettings returns the marketplace configuration
func (l *Ledger) ReadSettings() Settings {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.settings
}

// WriteSettings replaces the marketplace configuration
func (l *Ledger) WriteSettings(s Settings) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.settings = s
	return nil
}

// ForEachOffer iterates over a snapshot of the live offers
func (l *Ledger) ForEachOffer(fn func(o Offer) bool) {
	l.mu.RLock()
	snapshot := make([]Offer, 0, len(l.offers))
	for _, o := range l.offers {
		snapshot = append(snapshot, o)
	}
	l.mu.RUnlock()

	for _, o := range snapshot {
		if !fn(o) {
			return
		}
	}
}

// Len returns the number of live offers
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.offers)
}

// Load replaces the ledger contents, used when restoring from a store.
func (l *Ledger) Load(settings Settings, offers []Offer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.settings = settings
	l.offers = make(map[OfferKey]Offer, len(offers))
	for _, o := range offers {
		if o.IsLive() {
			l.offers[o.Key()] = o
		}
	}
}

// OffersForItem returns the live offers on one item, ordered by offerer.
func OffersForItem(v View, asset AssetRef) []Offer {
	var out []Offer
	v.ForEachOffer(func(o Offer) bool {
		if o.Collection == asset.Collection && o.ItemID.Eq(&asset.ItemID) {
			out = append(out, o)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key().Compare(out[j].Key()) < 0
	})
	return out
}

// CountOffers returns the number of live offers visible through v
func CountOffers(v View) int {
	n := 0
	v.ForEachOffer(func(Offer) bool {
		n++
		return true
	})
	return n
}
