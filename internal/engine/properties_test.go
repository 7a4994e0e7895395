package engine

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowtree/internal/ir"
)

// randomTree seeds a contiguous forest: flows 1..flows, each with up to
// width children per node down to depth.
func randomTree(rng *rand.Rand, flows, width, depth int) []string {
	var pairs []string
	var grow func(p ir.Path)
	grow = func(p ir.Path) {
		pairs = append(pairs, p.String()+"="+p.String())
		if p.Depth() >= depth {
			return
		}
		n := rng.Intn(width + 1)
		for i := 1; i <= n; i++ {
			grow(p.Child(i))
		}
	}
	for f := 1; f <= flows; f++ {
		grow(ir.RootPath(ir.FlowID(f)))
	}
	return pairs
}

// childCount returns how many direct children parent has.
func childCount(t *testing.T, e *Engine, parent ir.Path) int {
	t.Helper()
	msgs, err := e.ListFlowMessages(context.Background(), ir.FlowOf(parent))
	require.NoError(t, err)
	n := 0
	for _, m := range msgs {
		if m.Identifier.Depth() == parent.Depth()+1 && m.Identifier.IsDescendantOf(parent) {
			n++
		}
	}
	return n
}

func TestProperty_ContiguityUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	e := newMemEngine(t)
	seed(t, e, randomTree(rng, 3, 3, 4)...)
	requireValid(t, e)

	ctx := context.Background()
	for step := 0; step < 200; step++ {
		msgs, err := e.ListMessages(ctx)
		require.NoError(t, err)
		pick := msgs[rng.Intn(len(msgs))]

		if rng.Intn(2) == 0 || pick.Identifier.Depth() < 3 {
			// Insert a child of pick at a random position 1..k+1.
			parent := pick.Identifier
			at := parent.Child(1 + rng.Intn(childCount(t, e, parent)+1))
			_, err := e.InsertMessage(ctx, pick.FlowID, at, text(fmt.Sprintf("s%d", step)))
			require.NoError(t, err, "insert %s", at)
		} else if childCount(t, e, pick.Identifier) == 0 {
			_, err := e.DeleteMessage(ctx, pick.FlowID, pick.Identifier)
			require.NoError(t, err, "delete %s", pick.Identifier)
		}

		violations, err := e.Verify(ctx)
		require.NoError(t, err)
		require.Empty(t, violations, "step %d", step)
	}
}

func TestProperty_InsertThenDeleteRestores(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		e := newMemEngine(t)
		seed(t, e, randomTree(rng, 2, 4, 4)...)
		before := snapshot(t, e)

		msgs, err := e.ListMessages(ctx)
		require.NoError(t, err)
		parent := msgs[rng.Intn(len(msgs))]
		at := parent.Identifier.Child(1 + rng.Intn(childCount(t, e, parent.Identifier)+1))

		_, err = e.InsertMessage(ctx, parent.FlowID, at, text("tmp"))
		require.NoError(t, err)
		_, err = e.DeleteMessage(ctx, parent.FlowID, at)
		require.NoError(t, err)

		assert.Equal(t, before, snapshot(t, e), "round %d at %s", round, at)
	}
}

func TestProperty_ExchangeIsInvolution(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *Engine) {
		rng := rand.New(rand.NewSource(3))
		seed(t, e, randomTree(rng, 4, 3, 4)...)
		before := snapshot(t, e)
		ctx := context.Background()

		res, err := e.ExchangeFlows(ctx, 2, 4)
		require.NoError(t, err)
		require.True(t, res.Success)

		// Every message kept its ID and suffix; only the flow ordinal moved.
		after := snapshot(t, e)
		require.Len(t, after, len(before))
		for id, was := range before {
			now := after[id]
			want := was.FlowID
			switch was.FlowID {
			case 2:
				want = 4
			case 4:
				want = 2
			}
			assert.Equal(t, want, now.FlowID, id)
			assert.Equal(t, was.Identifier.WithSegment(1, int(want)), now.Identifier, id)
			assert.True(t, was.Content.Equal(now.Content), id)
		}
		requireValid(t, e)

		res, err = e.ExchangeFlows(ctx, 4, 2)
		require.NoError(t, err)
		require.True(t, res.Success)
		assert.Equal(t, before, snapshot(t, e))
	})
}

func TestProperty_MainFlowInsertThenDeleteRestores(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	e := newMemEngine(t)

	// Leave flow 2 vacant so the insert has a gap to fill.
	var pairs []string
	for _, pair := range randomTree(rng, 5, 2, 3) {
		path, _ := splitPair(pair)
		if ir.FlowOf(ir.MustParsePath(path)) != 2 {
			pairs = append(pairs, pair)
		}
	}
	seed(t, e, pairs...)
	before := snapshot(t, e)
	ctx := context.Background()

	res, err := e.InsertMainFlow(ctx, 2, text("inserted"))
	require.NoError(t, err)
	require.True(t, res.Success)
	requireValid(t, e)

	msgs, err := e.ListFlowMessages(ctx, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	shifted := snapshot(t, e)
	for id, was := range before {
		if was.FlowID > 2 {
			assert.Equal(t, was.FlowID+1, shifted[id].FlowID, id)
		}
	}

	res, err = e.DeleteMainFlow(ctx, 2)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, before, snapshot(t, e))
}
