package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/roach88/flowtree/internal/ir"
)

// registryWeight is the full capacity of the registry semaphore. Flow
// holders take one unit; a registry holder takes all of it.
const registryWeight = 1 << 30

// Local is an in-process Locker.
type Local struct {
	registry *semaphore.Weighted

	mu    sync.Mutex
	flows map[ir.FlowID]*flowSlot
}

type flowSlot struct {
	sem  *semaphore.Weighted
	refs int
}

var _ Locker = (*Local)(nil)

// NewLocal returns a ready Local locker.
func NewLocal() *Local {
	return &Local{
		registry: semaphore.NewWeighted(registryWeight),
		flows:    make(map[ir.FlowID]*flowSlot),
	}
}

// Acquire implements Locker.
func (l *Local) Acquire(ctx context.Context, scope Scope) (Release, error) {
	if scope.Registry {
		if err := l.registry.Acquire(ctx, registryWeight); err != nil {
			return nil, waitErr("registry", err)
		}
		return onceRelease(func() error {
			l.registry.Release(registryWeight)
			return nil
		}), nil
	}

	if err := l.registry.Acquire(ctx, 1); err != nil {
		return nil, waitErr("registry", err)
	}

	flows := scope.sortedFlows()
	held := make([]ir.FlowID, 0, len(flows))
	releaseAll := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.releaseFlow(held[i])
		}
		l.registry.Release(1)
	}

	for _, f := range flows {
		if err := l.acquireFlow(ctx, f); err != nil {
			releaseAll()
			return nil, waitErr("flow "+f.String(), err)
		}
		held = append(held, f)
	}

	return onceRelease(func() error {
		releaseAll()
		return nil
	}), nil
}

func (l *Local) acquireFlow(ctx context.Context, f ir.FlowID) error {
	l.mu.Lock()
	slot, ok := l.flows[f]
	if !ok {
		slot = &flowSlot{sem: semaphore.NewWeighted(1)}
		l.flows[f] = slot
	}
	slot.refs++
	l.mu.Unlock()

	if err := slot.sem.Acquire(ctx, 1); err != nil {
		l.dropRef(f, slot)
		return err
	}
	return nil
}

func (l *Local) releaseFlow(f ir.FlowID) {
	l.mu.Lock()
	slot := l.flows[f]
	l.mu.Unlock()

	slot.sem.Release(1)
	l.dropRef(f, slot)
}

func (l *Local) dropRef(f ir.FlowID, slot *flowSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.flows, f)
	}
}

func waitErr(what string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", ErrTimeout, what, err)
	}
	return fmt.Errorf("acquire %s: %w", what, err)
}

func onceRelease(fn func() error) Release {
	var once sync.Once
	var err error
	return func() error {
		once.Do(func() { err = fn() })
		return err
	}
}
