package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowtree/internal/ir"
	"github.com/roach88/flowtree/internal/lock"
	"github.com/roach88/flowtree/internal/store/memstore"
)

func TestConcurrentMutations_StayContiguous(t *testing.T) {
	e := newMemEngine(t)
	seed(t, e, "1.1=r1", "1.2=r2", "1.3=r3")
	ctx := context.Background()

	const perFlow = 25
	var wg sync.WaitGroup
	for f := 1; f <= 3; f++ {
		wg.Add(1)
		go func(flow ir.FlowID) {
			defer wg.Done()
			for i := 0; i < perFlow; i++ {
				_, err := e.InsertMessage(ctx, flow, ir.RootPath(flow).Child(1), text("m"))
				assert.NoError(t, err)
			}
		}(ir.FlowID(f))
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			res, err := e.ExchangeFlows(ctx, 1, 3)
			assert.NoError(t, err)
			assert.True(t, res.Success)
		}
	}()
	wg.Wait()

	requireValid(t, e)
	flows, err := e.ListFlows(ctx)
	require.NoError(t, err)
	total := 0
	for _, f := range flows {
		total += f.Messages
	}
	assert.Equal(t, 3+3*perFlow, total)
}

// blockingLocker hands out one lease and times out every other request.
type blockingLocker struct{ held chan struct{} }

func (b blockingLocker) Acquire(ctx context.Context, _ lock.Scope) (lock.Release, error) {
	select {
	case b.held <- struct{}{}:
		return func() error { <-b.held; return nil }, nil
	case <-ctx.Done():
		return nil, lock.ErrTimeout
	}
}

func TestLockTimeout_IsPersistenceFailure(t *testing.T) {
	locker := blockingLocker{held: make(chan struct{}, 1)}
	e := newTestEngine(t, memstore.New(), WithLocker(locker))
	seed(t, e, "1.1=r")

	release, err := locker.Acquire(context.Background(), lock.FlowScope(1))
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = e.InsertMessage(ctx, 1, mustPath("1.1.1"), text("x"))
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, lock.ErrTimeout)
	assert.Equal(t, []string{"1.1=r"}, tree(t, e))
}
