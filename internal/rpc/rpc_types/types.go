package rpc_types

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/LeJamon/goOfferd/internal/core/amount"
	"github.com/LeJamon/goOfferd/internal/core/event"
	"github.com/LeJamon/goOfferd/internal/core/identity"
	"github.com/LeJamon/goOfferd/internal/core/ledger"
	"github.com/holiman/uint256"
)

// Role describes what a method requires from the request
type Role int

const (
	// RoleGuest methods only read state
	RoleGuest Role = iota
	// RoleSigner methods act on behalf of an authenticated caller
	RoleSigner
)

// RpcContext contains request-specific information
type RpcContext struct {
	Context  context.Context
	ClientIP string

	// Caller is the authenticated identity for RoleSigner methods
	Caller identity.ID

	Services *ServiceContainer
}

// MethodHandler interface - all RPC methods implement this
type MethodHandler interface {
	Handle(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError)
	RequiredRole() Role
}

// MethodRegistry for dynamic method registration
type MethodRegistry struct {
	methods map[string]MethodHandler
}

func NewMethodRegistry() *MethodRegistry {
	return &MethodRegistry{
		methods: make(map[string]MethodHandler),
	}
}

func (r *MethodRegistry) Register(name string, handler MethodHandler) {
	r.methods[name] = handler
}

func (r *MethodRegistry) Get(name string) (MethodHandler, bool) {
	handler, exists := r.methods[name]
	return handler, exists
}

// List returns the registered method names in sorted order
func (r *MethodRegistry) List() []string {
	methods := make([]string, 0, len(r.methods))
	for name := range r.methods {
		methods = append(methods, name)
	}
	sort.Strings(methods)
	return methods
}

// MarketService is the settlement engine as seen by RPC handlers
type MarketService interface {
	PlaceOffer(ctx context.Context, collection identity.ID, itemID uint256.Int, amt amount.Amount, offerer identity.ID) error
	CancelOffer(ctx context.Context, collection identity.ID, itemID uint256.Int, offerer identity.ID) error
	AcceptOffer(ctx context.Context, collection identity.ID, itemID uint256.Int, offerer, caller identity.ID) error

	SetFeeBasisPoints(ctx context.Context, caller identity.ID, bps uint32) error
	SetFeeRecipient(ctx context.Context, caller, recipient identity.ID) error
	TransferOwnership(ctx context.Context, caller, newOwner identity.ID) error

	Offer(ctx context.Context, collection identity.ID, itemID uint256.Int, offerer identity.ID) (ledger.Offer, bool)
	OffersForItem(ctx context.Context, collection identity.ID, itemID uint256.Int) []ledger.Offer
	OfferCount(ctx context.Context) int
	Settings(ctx context.Context) ledger.Settings
	Self() identity.ID
}

// EventFilter selects audit records
type EventFilter struct {
	Name     event.Name
	AfterSeq uint64
	Limit    int
}

// EventLog exposes the audit trail
type EventLog interface {
	Recent(limit int) []event.Record
	Query(ctx context.Context, f EventFilter) ([]event.Record, error)
}

// DevRegistry is the in-memory asset registry used in standalone mode
type DevRegistry interface {
	Mint(collection identity.ID, itemID uint256.Int, owner identity.ID) error
	Approve(caller, collection identity.ID, itemID uint256.Int, operator identity.ID) error
	SetApprovalForAll(owner, operator identity.ID, approved bool)
}

// DevBank is the in-memory value ledger used in standalone mode
type DevBank interface {
	Fund(id identity.ID, amt amount.Amount) error
	BalanceOf(id identity.ID) amount.Amount
}

// ServiceContainer holds references to the services RPC handlers need
type ServiceContainer struct {
	Market MarketService

	// Events is nil when no audit trail is configured
	Events EventLog

	// Registry and Bank are nil unless development methods are enabled
	Registry DevRegistry
	Bank     DevBank
	// SyncDev stores the changes development methods made. It may be nil.
	SyncDev func(ctx context.Context) error

	Decimals  int32
	Version   string
	StartTime time.Time

	// Subscribers reports the live websocket subscriptions
	Subscribers func() int
}
