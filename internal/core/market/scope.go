package market

import (
	"context"
	"sync/atomic"

	"github.com/LeJamon/goOfferd/internal/core/event"
	"github.com/LeJamon/goOfferd/internal/core/ledger"
	"go.uber.org/zap"
)

type scopeKey struct{}

const (
	scopeOpen int32 = iota
	scopeClosing
	scopeDone
)

// scope is the unit of work of one engine operation. Its table holds the
// ledger effects and its savepoints and compensations undo collaborator
// effects. Events are published only when the outermost scope commits.
type scope struct {
	engine *Engine
	parent *scope
	op     string

	table *ledger.StateTable
	// savepoints are taken before the first effect on each collaborator
	savepoints    []savepoint
	compensations []func()
	events        []event.Event

	// settling is shared by every scope of one call chain
	settling *bool
	state    atomic.Int32
}

func newScope(e *Engine, parent *scope, op string) *scope {
	s := &scope{engine: e, parent: parent, op: op}
	if parent != nil {
		s.table = ledger.NewStateTable(parent.table)
		s.settling = parent.settling
	} else {
		s.table = ledger.NewStateTable(e.ledger)
		s.settling = new(bool)
	}
	return s
}

type savepoint struct {
	on                Savepointer
	rollback, release func()
}

// savepoint opens a savepoint on c unless the scope already holds one. It
// must be called before the scope's first effect on c. The parent's
// savepoint is taken first so that releasing this one folds into it.
func (s *scope) savepoint(c Savepointer) {
	if c == nil {
		return
	}
	for _, sp := range s.savepoints {
		if sp.on == c {
			return
		}
	}
	if s.parent != nil {
		s.parent.savepoint(c)
	}
	rollback, release := c.Savepoint()
	s.savepoints = append(s.savepoints, savepoint{on: c, rollback: rollback, release: release})
}

// activeScope returns the open scope of e carried by ctx. A scope that is
// being rolled back is reported with closing set.
func activeScope(ctx context.Context, e *Engine) (s *scope, closing bool) {
	s, _ = ctx.Value(scopeKey{}).(*scope)
	if s == nil || s.engine != e {
		return nil, false
	}
	switch s.state.Load() {
	case scopeOpen:
		return s, false
	case scopeClosing:
		return s, true
	default:
		return nil, false
	}
}

func (s *scope) isRoot() bool {
	return s.parent == nil
}

func (s *scope) context(ctx context.Context) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

func (s *scope) emit(ev event.Event) {
	s.events = append(s.events, ev)
}

// onRollback registers an undo step for an effect without a savepoint
func (s *scope) onRollback(fn func()) {
	s.compensations = append(s.compensations, fn)
}

// rollback undoes every collaborator effect of the scope, newest first. The
// table and the pending events are dropped with the scope.
func (s *scope) rollback() {
	s.state.Store(scopeClosing)
	defer s.state.Store(scopeDone)

	for i := len(s.compensations) - 1; i >= 0; i-- {
		s.guard(s.compensations[i])
	}
	for i := len(s.savepoints) - 1; i >= 0; i-- {
		s.guard(s.savepoints[i].rollback)
	}
	s.compensations = nil
	s.savepoints = nil
	s.events = nil
}

func (s *scope) guard(step func()) {
	defer func() {
		if r := recover(); r != nil {
			s.engine.logger.Error("rollback step panicked",
				zap.String("op", s.op), zap.Any("panic", r))
		}
	}()
	step()
}

// commit applies the table to the parent and releases the savepoints. A
// nested scope hands its pending events and compensations to its parent;
// the outermost scope returns the changes made to the ledger.
func (s *scope) commit() (ledger.Changes, error) {
	changes, err := s.table.Apply()
	if err != nil {
		return changes, err
	}
	defer s.state.Store(scopeDone)

	for i := len(s.savepoints) - 1; i >= 0; i-- {
		s.savepoints[i].release()
	}
	s.savepoints = nil
	if s.parent != nil {
		s.parent.events = append(s.parent.events, s.events...)
		s.parent.compensations = append(s.parent.compensations, s.compensations...)
	}
	return changes, nil
}
