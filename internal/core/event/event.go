// Package event defines the notifications emitted by the market, which form
// its audit trail, and the bus that delivers them.
package event

import (
	"time"

	"github.com/LeJamon/goOfferd/internal/core/amount"
	"github.com/LeJamon/goOfferd/internal/core/identity"
)

// Name identifies a notification type
type Name string

const (
	NameOfferPlaced           Name = "OfferPlaced"
	NameOfferCancelled        Name = "OfferCancelled"
	NameOfferAccepted         Name = "OfferAccepted"
	NameFeeBasisPointsUpdated Name = "FeeBasisPointsUpdated"
	NameFeeRecipientUpdated   Name = "FeeRecipientUpdated"
	NameOwnershipTransferred  Name = "OwnershipTransferred"
)

func (n Name) String() string {
	return string(n)
}

// Event is a notification payload
type Event interface {
	EventName() Name
}

// OfferPlaced is emitted when an offer is registered
type OfferPlaced struct {
	Collection identity.ID   `json:"collection"`
	ItemID     string        `json:"item_id"`
	Offerer    identity.ID   `json:"offerer"`
	Amount     amount.Amount `json:"amount"`
}

// OfferCancelled is emitted when an offerer withdraws an offer and is refunded
type OfferCancelled struct {
	Collection identity.ID   `json:"collection"`
	ItemID     string        `json:"item_id"`
	Offerer    identity.ID   `json:"offerer"`
	Amount     amount.Amount `json:"amount"`
}

// OfferAccepted is emitted when an owner settles an offer
type OfferAccepted struct {
	Collection identity.ID   `json:"collection"`
	ItemID     string        `json:"item_id"`
	Seller     identity.ID   `json:"seller"`
	Buyer      identity.ID   `json:"buyer"`
	Amount     amount.Amount `json:"amount"`
	Fee        amount.Amount `json:"fee"`
}

// FeeBasisPointsUpdated is emitted when the fee rate changes
type FeeBasisPointsUpdated struct {
	Previous uint32 `json:"previous"`
	Current  uint32 `json:"current"`
}

// FeeRecipientUpdated is emitted when the fee recipient changes
type FeeRecipientUpdated struct {
	Previous identity.ID `json:"previous"`
	Current  identity.ID `json:"current"`
}

// OwnershipTransferred is emitted when the market owner changes
type OwnershipTransferred struct {
	Previous identity.ID `json:"previous"`
	Current  identity.ID `json:"current"`
}

func (OfferPlaced) EventName() Name           { return NameOfferPlaced }
func (OfferCancelled) EventName() Name        { return NameOfferCancelled }
func (OfferAccepted) EventName() Name         { return NameOfferAccepted }
func (FeeBasisPointsUpdated) EventName() Name { return NameFeeBasisPointsUpdated }
func (FeeRecipientUpdated) EventName() Name   { return NameFeeRecipientUpdated }
func (OwnershipTransferred) EventName() Name  { return NameOwnershipTransferred }

// Record is a published notification with its position in the audit trail
type Record struct {
	Seq   uint64    `json:"seq"`
	Time  time.Time `json:"time"`
	Name  Name      `json:"name"`
	Event Event     `json:"event"`
}
