package ledger

import (
	"fmt"
	"sort"
)

// Action represents the type of modification to a ledger entry
type Action int

const (
	// ActionCache means the entry was read but not modified
	ActionCache Action = iota
	// ActionInsert means a new entry was created
	ActionInsert
	// ActionModify means an existing entry was replaced
	ActionModify
	// ActionErase means an entry was deleted
	ActionErase
)

// String returns the name of the action
func (a Action) String() string {
	switch a {
	case ActionCache:
		return "cache"
	case ActionInsert:
		return "insert"
	case ActionModify:
		return "modify"
	case ActionErase:
		return "erase"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// trackedOffer represents an offer being tracked for changes
type trackedOffer struct {
	action   Action
	original Offer // state in the parent view (zero for inserts)
	current  Offer // state seen through the table (zero after erase)
}

// Change describes one committed modification of an offer.
type Change struct {
	Action Action
	Key    OfferKey
	Before Offer // zero for inserts
	After  Offer // zero for erasures
}

// Changes is the list of modifications a StateTable committed to its parent.
type Changes struct {
	Offers []Change

	// Settings is non-nil when the marketplace settings were written
	SettingsBefore *Settings
	Settings       *Settings
}

// IsEmpty reports whether nothing was committed
func (c Changes) IsEmpty() bool {
	return len(c.Offers) == 0 && c.Settings == nil
}

// StateTable wraps a View and tracks all modifications made through it.
// Nothing reaches the parent until Apply is called; dropping the table
// discards every tracked change. Tables stack: the parent of a table may
// itself be a table.
type StateTable struct {
	parent   View
	items    map[OfferKey]*trackedOffer
	settings *Settings
	applied  bool
}

// NewStateTable creates a new StateTable layered over parent
func NewStateTable(parent View) *StateTable {
	return &StateTable{
		parent: parent,
		items:  make(map[OfferKey]*trackedOffer),
	}
}

// ReadOffer reads an offer, tracking it as cached
func (t *StateTable) ReadOffer(k OfferKey) (Offer, bool) {
	// Check if already tracked
	if entry, exists := t.items[k]; exists {
		if entry.action == ActionErase {
			return Offer{}, false
		}
		return entry.current, true
	}

	o, ok := t.parent.ReadOffer(k)
	if ok {
		t.items[k] = &trackedOffer{
			action:   ActionCache,
			original: o,
			current:  o,
		}
	}
	return o, ok
}

// InsertOffer adds a new offer
func (t *StateTable) InsertOffer(o Offer) error {
	k := o.Key()
	if entry, exists := t.items[k]; exists {
		if entry.action != ActionErase {
			return ErrOfferExists
		}
		// Re-inserting an erased offer becomes a modify
		entry.action = ActionModify
		entry.current = o
		return nil
	}

	if _, exists := t.parent.ReadOffer(k); exists {
		return ErrOfferExists
	}

	t.items[k] = &trackedOffer{
		action:  ActionInsert,
		current: o,
	}
	return nil
}

// EraseOffer removes an offer
func (t *StateTable) EraseOffer(k OfferKey) error {
	if entry, exists := t.items[k]; exists {
		switch entry.action {
		case ActionErase:
			return ErrOfferNotFound
		case ActionInsert:
			// Inserting then erasing = no change
			delete(t.items, k)
			return nil
		default:
			entry.action = ActionErase
			entry.current = Offer{}
			return nil
		}
	}

	original, ok := t.parent.ReadOffer(k)
	if !ok {
		return ErrOfferNotFound
	}
	t.items[k] = &trackedOffer{
		action:   ActionErase,
		original: original,
	}
	return nil
}

// ReadSettings returns the settings as seen through the table
func (t *StateTable) ReadSettings() Settings {
	if t.settings != nil {
		return *t.settings
	}
	return t.parent.ReadSettings()
}

// WriteSettings records new settings
func (t *StateTable) WriteSettings(s Settings) error {
	t.settings = &s
	return nil
}

// ForEachOffer iterates over the parent's offers with this table's changes
// applied on top.
func (t *StateTable) ForEachOffer(fn func(o Offer) bool) {
	stopped := false
	t.parent.ForEachOffer(func(o Offer) bool {
		if entry, tracked := t.items[o.Key()]; tracked {
			if entry.action == ActionErase {
				return true
			}
			o = entry.current
		}
		if !fn(o) {
			stopped = true
			return false
		}
		return true
	})
	if stopped {
		return
	}
	for _, entry := range t.items {
		if entry.action == ActionInsert {
			if !fn(entry.current) {
				return
			}
		}
	}
}

// IsErased returns true if the offer under k has been erased in this table
func (t *StateTable) IsErased(k OfferKey) bool {
	if entry, exists := t.items[k]; exists {
		return entry.action == ActionErase
	}
	return false
}

// Apply commits all changes to the parent view and returns them, ordered by
// key. A table can be applied once.
func (t *StateTable) Apply() (Changes, error) {
	if t.applied {
		return Changes{}, fmt.Errorf("state table already applied")
	}
	t.applied = true

	keys := make([]OfferKey, 0, len(t.items))
	for k, entry := range t.items {
		if entry.action != ActionCache {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Compare(keys[j]) < 0
	})

	var changes Changes
	for _, k := range keys {
		entry := t.items[k]
		switch entry.action {
		case ActionInsert:
			if err := t.parent.InsertOffer(entry.current); err != nil {
				return changes, fmt.Errorf("insert offer: %w", err)
			}

		case ActionModify:
			if entry.original == entry.current {
				continue
			}
			if err := t.parent.EraseOffer(k); err != nil {
				return changes, fmt.Errorf("modify offer: %w", err)
			}
			if err := t.parent.InsertOffer(entry.current); err != nil {
				return changes, fmt.Errorf("modify offer: %w", err)
			}

		case ActionErase:
			if err := t.parent.EraseOffer(k); err != nil {
				return changes, fmt.Errorf("erase offer: %w", err)
			}
		}

		changes.Offers = append(changes.Offers, Change{
			Action: entry.action,
			Key:    k,
			Before: entry.original,
			After:  entry.current,
		})
	}

	if t.settings != nil {
		before := t.parent.ReadSettings()
		if before != *t.settings {
			if err := t.parent.WriteSettings(*t.settings); err != nil {
				return changes, fmt.Errorf("write settings: %w", err)
			}
			changes.SettingsBefore = &before
			changes.Settings = t.settings
		}
	}

	return changes, nil
}
