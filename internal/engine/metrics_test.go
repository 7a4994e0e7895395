package engine

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowtree/internal/store/memstore"
)

func TestMetrics_CountOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := newTestEngine(t, memstore.New(), WithRegisterer(reg))
	seed(t, e, "1.1=r", "1.1.1=A", "1.1.2=B")
	ctx := context.Background()

	_, err := e.InsertMessage(ctx, 1, mustPath("1.1.1"), text("X"))
	require.NoError(t, err)
	res, err := e.InsertMainFlow(ctx, 1, text("dup"))
	require.NoError(t, err)
	require.False(t, res.Success)

	m := e.metrics
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues(OpInsertMessage, outcomeOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.renumbered.WithLabelValues(OpInsertMessage)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues(OpInsertMainFlow, outcomeRejected)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.renumbered.WithLabelValues(OpInsertMainFlow)))

	n, err := testutil.GatherAndCount(reg, "flowtree_mutation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMetrics_NilRegisterer(t *testing.T) {
	e := New(memstore.New())
	_, err := e.DeleteMessagesByFlow(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.mutations.WithLabelValues(OpDeleteMessagesByFlow, outcomeOK)))
}
