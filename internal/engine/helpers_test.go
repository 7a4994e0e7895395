package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowtree/internal/flowlog"
	"github.com/roach88/flowtree/internal/ir"
	"github.com/roach88/flowtree/internal/store"
	"github.com/roach88/flowtree/internal/store/memstore"
	"github.com/roach88/flowtree/internal/store/pebblestore"
	"github.com/roach88/flowtree/internal/store/storetest"
	"github.com/roach88/flowtree/internal/testutil"
)

type backendCase struct {
	name string
	open func(t *testing.T) store.Backend
}

var backends = []backendCase{
	{"memory", func(t *testing.T) store.Backend { return memstore.New() }},
	{"sqlite", func(t *testing.T) store.Backend {
		s, err := store.Open(filepath.Join(t.TempDir(), "engine.db"))
		require.NoError(t, err)
		return s
	}},
	{"pebble", func(t *testing.T) store.Backend {
		s, err := pebblestore.Open(t.TempDir())
		require.NoError(t, err)
		return s
	}},
}

// forEachBackend runs fn once per store implementation.
func forEachBackend(t *testing.T, fn func(t *testing.T, e *Engine)) {
	for _, bc := range backends {
		t.Run(bc.name, func(t *testing.T) {
			b := bc.open(t)
			t.Cleanup(func() { b.Close() })
			fn(t, newTestEngine(t, b))
		})
	}
}

func newTestEngine(t *testing.T, b store.Backend, opts ...Option) *Engine {
	t.Helper()
	base := []Option{
		WithIDGenerator(testutil.NewSequentialIDs("new")),
		WithLogger(flowlog.Discard()),
		WithRegisterer(prometheus.NewRegistry()),
	}
	return New(b, append(base, opts...)...)
}

func newMemEngine(t *testing.T) *Engine {
	return newTestEngine(t, memstore.New())
}

// seed loads "identifier=content" pairs without renumbering.
func seed(t *testing.T, e *Engine, pairs ...string) {
	t.Helper()
	msgs := make([]ir.Message, 0, len(pairs))
	for i, pair := range pairs {
		path, content := splitPair(pair)
		msgs = append(msgs, storetest.Msg(fmt.Sprintf("seed-%02d", i+1), path, content))
	}
	storetest.Seed(t, e.Backend(), msgs...)
}

func splitPair(pair string) (string, string) {
	for i := 0; i < len(pair); i++ {
		if pair[i] == '=' {
			return pair[:i], pair[i+1:]
		}
	}
	return pair, ""
}

// tree renders the store as "identifier=content" lines in path order.
func tree(t *testing.T, e *Engine) []string {
	t.Helper()
	msgs, err := e.ListMessages(context.Background())
	require.NoError(t, err)
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Identifier.String() + "=" + m.Content.String()
	}
	return out
}

// snapshot captures full message state keyed by ID.
func snapshot(t *testing.T, e *Engine) map[string]ir.Message {
	t.Helper()
	msgs, err := e.ListMessages(context.Background())
	require.NoError(t, err)
	out := make(map[string]ir.Message, len(msgs))
	for _, m := range msgs {
		out[m.ID] = m
	}
	return out
}

func requireValid(t *testing.T, e *Engine) {
	t.Helper()
	violations, err := e.Verify(context.Background())
	require.NoError(t, err)
	require.Empty(t, violations)
}

func mustPath(s string) ir.Path {
	return ir.MustParsePath(s)
}

func text(s string) ir.Content {
	return ir.NewTextContent(s)
}
