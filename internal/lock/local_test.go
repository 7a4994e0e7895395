package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowtree/internal/ir"
)

func TestScopeSortedFlows(t *testing.T) {
	s := FlowScope(3, 1, 3, 2)
	assert.Equal(t, []ir.FlowID{1, 2, 3}, s.sortedFlows())
	assert.True(t, RegistryScope().Registry)
}

// lockerContract runs the exclusion rules shared by every Locker.
func lockerContract(t *testing.T, newLocker func(t *testing.T) Locker) {
	t.Run("SameFlowExcludes", func(t *testing.T) {
		l := newLocker(t)
		ctx := context.Background()

		release, err := l.Acquire(ctx, FlowScope(1))
		require.NoError(t, err)

		short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err = l.Acquire(short, FlowScope(1))
		assert.ErrorIs(t, err, ErrTimeout)

		require.NoError(t, release())
		release, err = l.Acquire(ctx, FlowScope(1))
		require.NoError(t, err)
		require.NoError(t, release())
	})

	t.Run("DifferentFlowsProceed", func(t *testing.T) {
		l := newLocker(t)
		ctx := context.Background()

		r1, err := l.Acquire(ctx, FlowScope(1))
		require.NoError(t, err)
		r2, err := l.Acquire(ctx, FlowScope(2))
		require.NoError(t, err)
		require.NoError(t, r1())
		require.NoError(t, r2())
	})

	t.Run("RegistryExcludesFlows", func(t *testing.T) {
		l := newLocker(t)
		ctx := context.Background()

		release, err := l.Acquire(ctx, RegistryScope())
		require.NoError(t, err)

		short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err = l.Acquire(short, FlowScope(7))
		assert.ErrorIs(t, err, ErrTimeout)

		require.NoError(t, release())
	})

	t.Run("FlowBlocksRegistry", func(t *testing.T) {
		l := newLocker(t)
		ctx := context.Background()

		release, err := l.Acquire(ctx, FlowScope(4))
		require.NoError(t, err)

		short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err = l.Acquire(short, RegistryScope())
		assert.ErrorIs(t, err, ErrTimeout)

		require.NoError(t, release())
		release, err = l.Acquire(ctx, RegistryScope())
		require.NoError(t, err)
		require.NoError(t, release())
	})

	t.Run("ReleaseIsIdempotent", func(t *testing.T) {
		l := newLocker(t)
		release, err := l.Acquire(context.Background(), FlowScope(1))
		require.NoError(t, err)
		assert.NoError(t, release())
		assert.NoError(t, release())
	})
}

func TestLocal(t *testing.T) {
	lockerContract(t, func(t *testing.T) Locker { return NewLocal() })
}

func TestLocal_MutualExclusion(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var inside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			scope := FlowScope(ir.FlowID(i%3 + 1))
			if i%5 == 0 {
				scope = RegistryScope()
			}
			release, err := l.Acquire(ctx, scope)
			if !assert.NoError(t, err) {
				return
			}
			defer release()
			if scope.Registry {
				assert.Equal(t, int32(1), inside.Add(1))
				time.Sleep(time.Millisecond)
				inside.Add(-1)
			}
		}(i)
	}
	wg.Wait()
}

func TestLocal_SlotsAreReclaimed(t *testing.T) {
	l := NewLocal()
	release, err := l.Acquire(context.Background(), FlowScope(1, 2))
	require.NoError(t, err)
	assert.Len(t, l.flows, 2)
	require.NoError(t, release())
	assert.Empty(t, l.flows)
}
