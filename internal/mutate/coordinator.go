// Package mutate implements the optimistic-write protocol that keeps the
// query cache responsive while remote writes are in flight.
//
// # Protocol
//
// Every write path (create, update, delete, toggle) runs the same four-step
// protocol, parameterized by a projector and a reconciliation scope:
//
//  1. Suspend background refetches for the target key, so a racing refetch
//     cannot overwrite the snapshot before it is taken.
//  2. Snapshot the key's current value and generation, then apply the
//     optimistic projection. The generation produced by this write (g_opt)
//     identifies the mutation from here on.
//  3. Issue the remote write asynchronously; the caller observes the
//     optimistic value immediately via cache reads.
//  4. On settlement: success invalidates the reconciliation scope, so the
//     next read refetches authoritative state (server-assigned fields may
//     differ from the optimistic projection). Failure restores the snapshot
//     verbatim - but only if the key's generation still equals g_opt. If an
//     overlapping mutation has written since, rolling back would clobber its
//     optimistic state with stale data, so the key is invalidated instead.
//     Either way the refetch suspension is released.
//
// The generation comparison in step 4 is the central correctness rule:
// rollback is only safe when no interleaving write has occurred.
//
// Mutations are never cancelled by later mutations on the same key; both
// proceed and the generation check keeps their settlements coherent even
// when they arrive out of order.
package mutate

import (
	"context"
	"sync"

	"github.com/dyluth/vesper/internal/cache"
)

// State is the lifecycle state of one dispatched mutation.
type State string

const (
	// StatePending - intent issued, optimistic projection not yet applied.
	StatePending State = "pending"

	// StateApplied - optimistic value committed to the cache, remote write
	// in flight.
	StateApplied State = "applied"

	// StateSettledSuccess - remote write succeeded; reconciliation scope
	// invalidated. Terminal.
	StateSettledSuccess State = "settled_success"

	// StateSettledFailure - remote write failed; cache rolled back or
	// invalidated. Terminal.
	StateSettledFailure State = "settled_failure"
)

// Mutation describes one optimistic write.
type Mutation struct {
	// Key is the cache key holding the value this mutation projects into.
	Key cache.Key

	// Apply is the pure optimistic projector: flip the boolean in place
	// within the collection, filter out the deleted id, append the created
	// element, or replace the matching element.
	Apply cache.Projector

	// Remote issues the authoritative write. It must not touch the cache.
	Remote func(ctx context.Context) error

	// Reconcile lists the keys to invalidate once the remote write
	// succeeds: the narrowest keys whose cached values could disagree with
	// the store afterwards. Usually just the collection key itself - list
	// ordering can change on any item write, so item-level invalidation
	// alone would be insufficient. When empty it defaults to Key, so a
	// successful mutation always leaves its target marked for refetch.
	Reconcile []cache.Key
}

// Ticket tracks a dispatched mutation through settlement. The caller is free
// to drop it (fire-and-forget) or to block on Done / Wait.
type Ticket struct {
	mu    sync.Mutex
	state State
	err   error
	done  chan struct{}
}

// State returns the mutation's current lifecycle state.
func (t *Ticket) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Done returns a channel closed once the mutation has settled.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Err returns the settlement error, or nil. Only meaningful once Done is
// closed.
func (t *Ticket) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Wait blocks until the mutation settles or the context is cancelled, and
// returns the settlement error.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return t.Err()
	}
}

func (t *Ticket) settle(state State, err error) {
	t.mu.Lock()
	t.state = state
	t.err = err
	t.mu.Unlock()
	close(t.done)
}

// Coordinator runs the optimistic-write protocol against one cache store.
// It is instantiated once per session and shared by every entity family;
// the per-family differences live entirely in the Mutation values.
type Coordinator struct {
	cache *cache.Store

	// OnFailure, when set, is called after a failed mutation has been
	// rolled back or invalidated. Used to surface a user-visible
	// notification; the error is also available on the Ticket.
	OnFailure func(m Mutation, err error)
}

// NewCoordinator creates a coordinator over the given cache store.
func NewCoordinator(c *cache.Store) *Coordinator {
	return &Coordinator{cache: c}
}

// Dispatch runs a mutation through the protocol. The optimistic projection
// is applied synchronously - a cache read issued immediately after Dispatch
// returns sees the new value - while the remote write settles in the
// background.
//
// Returns a ValidationError without touching the cache or the network if
// the mutation is malformed.
func (c *Coordinator) Dispatch(ctx context.Context, m Mutation) (*Ticket, error) {
	if m.Key.IsZero() {
		return nil, &ValidationError{Reason: "mutation has no target key"}
	}
	if m.Apply == nil {
		return nil, &ValidationError{Reason: "mutation has no projector"}
	}
	if m.Remote == nil {
		return nil, &ValidationError{Reason: "mutation has no remote write"}
	}

	t := &Ticket{state: StatePending, done: make(chan struct{})}

	// Step 1: pause background refetches before the snapshot is taken.
	resume := c.cache.SuspendRefetch(m.Key)

	// Steps 2-3: snapshot and optimistic projection, atomically.
	gOpt, snap := c.cache.Write(m.Key, m.Apply)
	t.mu.Lock()
	t.state = StateApplied
	t.mu.Unlock()

	// Step 4: settle in the background.
	go func() {
		defer resume()

		err := m.Remote(ctx)
		if err == nil {
			scope := m.Reconcile
			if len(scope) == 0 {
				scope = []cache.Key{m.Key}
			}
			for _, k := range scope {
				c.cache.Invalidate(k)
			}
			t.settle(StateSettledSuccess, nil)
			return
		}

		// Rollback is safe only while the generation still equals g_opt.
		// RestoreIf checks and restores under one lock, so a concurrent
		// Dispatch cannot slip a write in between the check and the restore.
		if !c.cache.RestoreIf(m.Key, snap, gOpt) {
			// The key changed since g_opt - an overlapping mutation wrote
			// or an invalidation landed. Rolling back would regress past
			// that state, so re-derive truth from the store instead.
			c.cache.Invalidate(m.Key)
		}

		if c.OnFailure != nil {
			c.OnFailure(m, err)
		}
		t.settle(StateSettledFailure, &RemoteWriteError{Err: err})
	}()

	return t, nil
}
