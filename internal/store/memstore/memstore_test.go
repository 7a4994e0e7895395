package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowtree/internal/store"
	"github.com/roach88/flowtree/internal/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Backend { return New() })
}

func TestWithTx_CanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertOne(ctx, storetest.Msg("a", "1.1", "x"))
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.Len())
}
