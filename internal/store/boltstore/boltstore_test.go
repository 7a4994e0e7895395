package boltstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowtree/internal/store"
	"github.com/roach88/flowtree/internal/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Backend {
		s, err := Open(filepath.Join(t.TempDir(), "flows.bolt"))
		require.NoError(t, err)
		return s
	})
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "flows.bolt")

	s1, err := Open(path)
	require.NoError(t, err)
	storetest.Seed(t, s1, storetest.Msg("a", "1.3.1", "x"), storetest.Msg("b", "1.3", "y"))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	assert.Equal(t, []string{"1.3", "1.3.1"}, storetest.Paths(t, s2))
}
