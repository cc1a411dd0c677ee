package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrUnknownEvent = errors.New("unknown event name")

// New returns a zero event of the given type
func New(name Name) (Event, error) {
	switch name {
	case NameOfferPlaced:
		return &OfferPlaced{}, nil
	case NameOfferCancelled:
		return &OfferCancelled{}, nil
	case NameOfferAccepted:
		return &OfferAccepted{}, nil
	case NameFeeBasisPointsUpdated:
		return &FeeBasisPointsUpdated{}, nil
	case NameFeeRecipientUpdated:
		return &FeeRecipientUpdated{}, nil
	case NameOwnershipTransferred:
		return &OwnershipTransferred{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
}

// Decode parses the JSON payload of an event of the given type
func Decode(name Name, data []byte) (Event, error) {
	ptr, err := New(name)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, ptr); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	// Hand out values, as the engine publishes them
	switch e := ptr.(type) {
	case *OfferPlaced:
		return *e, nil
	case *OfferCancelled:
		return *e, nil
	case *OfferAccepted:
		return *e, nil
	case *FeeBasisPointsUpdated:
		return *e, nil
	case *FeeRecipientUpdated:
		return *e, nil
	case *OwnershipTransferred:
		return *e, nil
	}
	return ptr, nil
}

// UnmarshalJSON decodes a record produced by encoding/json on a Record
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		Seq   uint64          `json:"seq"`
		Time  time.Time       `json:"time"`
		Name  Name            `json:"name"`
		Event json.RawMessage `json:"event"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ev, err := Decode(raw.Name, raw.Event)
	if err != nil {
		return err
	}
	*r = Record{Seq: raw.Seq, Time: raw.Time, Name: raw.Name, Event: ev}
	return nil
}
