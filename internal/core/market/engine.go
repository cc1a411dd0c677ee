// Package market implements the settlement engine: placing, withdrawing and
// accepting offers on non-fungible items, and the owner-gated marketplace
// configuration.
//
// Every operation runs as one atomic unit. Ledger effects are staged in a
// state table and collaborator effects are covered by savepoints, so a
// failure at any step leaves nothing behind. Collaborators may call back into
// the engine with the context they were handed; such calls run inside the
// caller's unit of work and see its staged state.
package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LeJamon/goOfferd/internal/core/event"
	"github.com/LeJamon/goOfferd/internal/core/identity"
	"github.com/LeJamon/goOfferd/internal/core/ledger"
	"github.com/LeJamon/goOfferd/internal/core/result"
	"go.uber.org/zap"
)

// Operation names used in logs and metrics
const (
	OpPlaceOffer        = "place_offer"
	OpCancelOffer       = "cancel_offer"
	OpAcceptOffer       = "accept_offer"
	OpSetFeeBasisPoints = "set_fee_basis_points"
	OpSetFeeRecipient   = "set_fee_recipient"
	OpTransferOwnership = "transfer_ownership"
)

var ErrNullEngineIdentity = errors.New("engine identity must not be null")

// Options holds the optional parts of an Engine
type Options struct {
	// Self is the identity the engine acts as towards the asset registry
	Self identity.ID

	Bus      *event.Bus
	Store    Store
	Observer Observer
	Logger   *zap.Logger
}

// Engine processes offers against a ledger
type Engine struct {
	// lock holds a token while a top-level operation runs
	lock chan struct{}

	ledger    *ledger.Ledger
	registry  AssetRegistry
	transfer  ValueTransfer
	collector ValueCollector

	// set when the collaborator can take savepoints
	registrySP Savepointer
	transferSP Savepointer

	self     identity.ID
	bus      *event.Bus
	store    Store
	observer Observer
	logger   *zap.Logger
}

// New creates an engine over l. The ledger settings are validated: the fee
// must not exceed MaxFeeBasisPoints and the fee recipient and owner must not
// be null.
func New(l *ledger.Ledger, registry AssetRegistry, transfer ValueTransfer, opts Options) (*Engine, error) {
	if l == nil || registry == nil || transfer == nil {
		return nil, errors.New("market: ledger, registry and value transfer are required")
	}
	if err := validateSettings(l.ReadSettings()); err != nil {
		return nil, err
	}
	if opts.Self.IsNull() {
		return nil, ErrNullEngineIdentity
	}

	e := &Engine{
		lock:     make(chan struct{}, 1),
		ledger:   l,
		registry: registry,
		transfer: transfer,
		self:     opts.Self,
		bus:      opts.Bus,
		store:    opts.Store,
		observer: opts.Observer,
		logger:   opts.Logger,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if c, ok := transfer.(ValueCollector); ok {
		e.collector = c
	}
	if sp, ok := registry.(Savepointer); ok {
		e.registrySP = sp
	}
	if sp, ok := transfer.(Savepointer); ok {
		e.transferSP = sp
	}
	return e, nil
}

func validateSettings(s ledger.Settings) error {
	if s.FeeBasisPoints > ledger.MaxFeeBasisPoints {
		return fmt.Errorf("fee of %d basis points: %w", s.FeeBasisPoints, result.TemBAD_FEE)
	}
	if s.FeeRecipient.IsNull() {
		return fmt.Errorf("fee recipient: %w", result.TemBAD_RECIPIENT)
	}
	if s.Owner.IsNull() {
		return fmt.Errorf("owner: %w", result.TemBAD_OWNER)
	}
	return nil
}

// Self returns the identity the engine acts as
func (e *Engine) Self() identity.ID {
	return e.self
}

// run executes fn as one unit of work. A call made from inside another
// operation of this engine (recognized through ctx) nests into it instead of
// waiting for the engine lock. A top-level call gives up waiting when ctx is
// done. settles marks cancel and accept, which may not
// be re-entered while either is executing.
func (e *Engine) run(ctx context.Context, op string, settles bool, fn func(ctx context.Context, s *scope) error) (err error) {
	start := time.Now()
	parent, closing := activeScope(ctx, e)
	if closing {
		return e.finish(op, start, nil, result.TefREENTRANT)
	}
	if parent == nil {
		if err := e.acquire(ctx); err != nil {
			return e.finish(op, start, nil, result.Wrap(result.TefINTERNAL, err))
		}
		defer func() { <-e.lock }()
	} else if settles && *parent.settling {
		return e.finish(op, start, parent, result.TefREENTRANT)
	}

	s := newScope(e, parent, op)
	if settles {
		*s.settling = true
		defer func() { *s.settling = false }()
	}

	defer func() {
		if r := recover(); r != nil {
			s.rollback()
			err = e.finish(op, start, parent, result.Wrap(result.TefINTERNAL, fmt.Errorf("panic: %v", r)))
		}
	}()

	if err := fn(s.context(ctx), s); err != nil {
		s.rollback()
		return e.finish(op, start, parent, err)
	}

	changes, err := s.commit()
	if err != nil {
		s.rollback()
		return e.finish(op, start, parent, result.Wrap(result.TefINTERNAL, err))
	}
	if s.isRoot() {
		e.publish(s, changes)
	}
	return e.finish(op, start, parent, nil)
}

// acquire takes the engine lock, giving up when ctx is done first. An
// uncontended lock is taken even if ctx is already done.
func (e *Engine) acquire(ctx context.Context) error {
	select {
	case e.lock <- struct{}{}:
		return nil
	default:
	}
	select {
	case e.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for engine: %w", ctx.Err())
	}
}

// publish makes the effects of a committed top-level operation visible
// outside the engine
func (e *Engine) publish(s *scope, changes ledger.Changes) {
	if e.store != nil {
		if err := e.store.Persist(changes); err != nil {
			e.logger.Error("failed to persist committed changes",
				zap.String("op", s.op), zap.Int("offers", len(changes.Offers)), zap.Error(err))
		}
	}
	if e.bus != nil {
		e.bus.Publish(s.events...)
	}
	if e.observer != nil {
		e.observer.OffersChanged(e.ledger.Len())
	}
}

func (e *Engine) finish(op string, start time.Time, parent *scope, err error) error {
	code := result.Code(err)
	elapsed := time.Since(start)
	if e.observer != nil {
		e.observer.OperationDone(op, code, elapsed)
	}

	fields := []zap.Field{
		zap.String("op", op),
		zap.String("result", code.String()),
		zap.Bool("nested", parent != nil),
		zap.Duration("elapsed", elapsed),
	}
	switch {
	case err == nil:
		e.logger.Debug("operation applied", fields...)
	case code == result.TefINTERNAL:
		e.logger.Error("operation failed", append(fields, zap.Error(err))...)
	default:
		e.logger.Info("operation rejected", append(fields, zap.Error(err))...)
	}
	return err
}

// view returns the state an operation called with ctx observes
func (e *Engine) view(ctx context.Context) ledger.View {
	if s, closing := activeScope(ctx, e); s != nil && !closing {
		return s.table
	}
	return e.ledger
}
