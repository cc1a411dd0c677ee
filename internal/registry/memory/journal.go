package memory

import "errors"

// journal tracks the savepoints open on a collaborator and the records not
// yet persisted. It is guarded by the mutex of its owner.
//
// Only changes made for the market (sends, collections and transfers) are
// recorded under a savepoint, and each is undone by its own inverse. Changes
// made directly, such as funding or minting, are never undone, so a rollback
// running concurrently with them leaves them in place.
type journal struct {
	frames []*frame
	dirty  map[string]uint64
	seq    uint64
}

type frame struct {
	undo    []*undoStep
	touched map[string]struct{}
}

type undoStep struct {
	apply     func() error
	cancelled bool
}

func newJournal() journal {
	return journal{dirty: make(map[string]uint64)}
}

// touch marks key as changed outside any savepoint
func (j *journal) touch(key string) {
	j.seq++
	j.dirty[key] = j.seq
}

// record registers undo as the inverse of a change to keys. Without an open
// savepoint the change is final and nil is returned.
func (j *journal) record(undo func() error, keys ...string) *undoStep {
	if len(j.frames) == 0 {
		for _, key := range keys {
			j.touch(key)
		}
		return nil
	}
	f := j.frames[len(j.frames)-1]
	for _, key := range keys {
		f.touched[key] = struct{}{}
	}
	step := &undoStep{apply: undo}
	f.undo = append(f.undo, step)
	return step
}

// cancel drops a step whose change was already reversed
func (j *journal) cancel(step *undoStep) {
	if step != nil {
		step.cancelled = true
	}
}

func (j *journal) open() *frame {
	f := &frame{touched: make(map[string]struct{})}
	j.frames = append(j.frames, f)
	return f
}

func (j *journal) index(f *frame) int {
	for i := len(j.frames) - 1; i >= 0; i-- {
		if j.frames[i] == f {
			return i
		}
	}
	return -1
}

// release folds f, and any savepoint opened after it, into the savepoint
// below. Releasing the outermost savepoint makes its changes final.
func (j *journal) release(f *frame) {
	i := j.index(f)
	if i < 0 {
		return
	}
	for _, done := range j.frames[i:] {
		if i == 0 {
			for key := range done.touched {
				j.touch(key)
			}
			continue
		}
		below := j.frames[i-1]
		below.undo = append(below.undo, done.undo...)
		for key := range done.touched {
			below.touched[key] = struct{}{}
		}
	}
	j.frames = j.frames[:i]
}

// rollback undoes everything recorded since f was opened, newest first
func (j *journal) rollback(f *frame) error {
	i := j.index(f)
	if i < 0 {
		return nil
	}
	var errs []error
	for k := len(j.frames) - 1; k >= i; k-- {
		done := j.frames[k]
		for n := len(done.undo) - 1; n >= 0; n-- {
			if step := done.undo[n]; !step.cancelled {
				if err := step.apply(); err != nil {
					errs = append(errs, err)
				}
			}
		}
		for key := range done.touched {
			if i == 0 {
				j.touch(key)
			} else {
				j.frames[i-1].touched[key] = struct{}{}
			}
		}
	}
	j.frames = j.frames[:i]
	return errors.Join(errs...)
}

// pending returns the dirty keys and the sequence they were marked at
func (j *journal) pending() map[string]uint64 {
	out := make(map[string]uint64, len(j.dirty))
	for key, seq := range j.dirty {
		out[key] = seq
	}
	return out
}

// flushed clears keys that were not changed again since pending reported them
func (j *journal) flushed(keys map[string]uint64) {
	for key, seq := range keys {
		if j.dirty[key] == seq {
			delete(j.dirty, key)
		}
	}
}
