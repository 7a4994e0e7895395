// Package storetest is the conformance suite every store.Backend must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowtree/internal/ir"
	"github.com/roach88/flowtree/internal/queryir"
	"github.com/roach88/flowtree/internal/store"
)

// Factory opens a fresh, empty backend. The suite closes it.
type Factory func(t *testing.T) store.Backend

// Msg builds a message whose flow is derived from its path.
func Msg(id, path, content string) ir.Message {
	p := ir.MustParsePath(path)
	return ir.Message{ID: id, FlowID: ir.FlowOf(p), Identifier: p, Content: ir.NewTextContent(content)}
}

// Seed inserts msgs in one transaction.
func Seed(t *testing.T, b store.Backend, msgs ...ir.Message) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, b.WithTx(ctx, func(tx store.Tx) error {
		for _, m := range msgs {
			if err := tx.InsertOne(ctx, m); err != nil {
				return err
			}
		}
		return nil
	}))
}

// Paths lists the identifiers currently stored, in Find order.
func Paths(t *testing.T, b store.Backend) []string {
	t.Helper()
	msgs, err := store.ReadAll(context.Background(), b)
	require.NoError(t, err)
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Identifier.String()
	}
	return out
}

// Run executes the conformance suite against backends built by open.
func Run(t *testing.T, open Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, b store.Backend)
	}{
		{"EmptyFindIsNonNil", testEmptyFind},
		{"NumericOrdering", testNumericOrdering},
		{"InsertDuplicateID", testInsertDuplicateID},
		{"InsertRejectsMalformed", testInsertRejectsMalformed},
		{"FindOne", testFindOne},
		{"Count", testCount},
		{"UpdateManySnapshot", testUpdateManySnapshot},
		{"UpdateManyRejectsIDChange", testUpdateManyRejectsIDChange},
		{"DeleteOne", testDeleteOne},
		{"DeleteMany", testDeleteMany},
		{"RollbackOnError", testRollbackOnError},
		{"TransientDuplicatesAllowed", testTransientDuplicates},
		{"Matches", testMatches},
		{"ContentRoundTrip", testContentRoundTrip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := open(t)
			t.Cleanup(func() { b.Close() })
			tt.fn(t, b)
		})
	}
}

func testEmptyFind(t *testing.T, b store.Backend) {
	msgs, err := store.ReadAll(context.Background(), b)
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func testNumericOrdering(t *testing.T, b store.Backend) {
	Seed(t, b,
		Msg("a", "1.2.10", "x"),
		Msg("b", "1.2.9", "x"),
		Msg("c", "1.2", "x"),
		Msg("d", "1.10", "x"),
		Msg("e", "1.2.9.1", "x"),
	)
	assert.Equal(t, []string{"1.2", "1.2.9", "1.2.9.1", "1.2.10", "1.10"}, Paths(t, b))
}

func testInsertDuplicateID(t *testing.T, b store.Backend) {
	Seed(t, b, Msg("a", "1.1", "x"))
	ctx := context.Background()
	err := b.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertOne(ctx, Msg("a", "1.2", "y"))
	})
	assert.True(t, errors.Is(err, store.ErrDuplicateID), "got %v", err)
}

func testInsertRejectsMalformed(t *testing.T, b store.Backend) {
	ctx := context.Background()
	bad := Msg("a", "1.2.1", "x")
	bad.FlowID = 3
	err := b.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertOne(ctx, bad)
	})
	assert.ErrorIs(t, err, ir.ErrInvalidPath)
}

func testFindOne(t *testing.T, b store.Backend) {
	Seed(t, b, Msg("a", "1.1.2", "two"), Msg("b", "1.1.1", "one"))
	ctx := context.Background()
	require.NoError(t, b.WithTx(ctx, func(tx store.Tx) error {
		m, ok, err := tx.FindOne(ctx, queryir.FlowEquals{Flow: 1})
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "b", m.ID)

		_, ok, err = tx.FindOne(ctx, queryir.FlowEquals{Flow: 9})
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	}))
}

func testCount(t *testing.T, b store.Backend) {
	Seed(t, b, Msg("a", "1.1", "x"), Msg("b", "1.1.1", "x"), Msg("c", "1.2", "x"))
	ctx := context.Background()
	require.NoError(t, b.WithTx(ctx, func(tx store.Tx) error {
		n, err := tx.Count(ctx, queryir.FlowEquals{Flow: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = tx.Count(ctx, queryir.DepthEquals{Depth: 2})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		return nil
	}))
}

// testUpdateManySnapshot increments a run of siblings. If a backend
// re-evaluated matches after each write it would loop or double-shift.
func testUpdateManySnapshot(t *testing.T, b store.Backend) {
	Seed(t, b,
		Msg("a", "1.1.1", "A"),
		Msg("b", "1.1.2", "B"),
		Msg("c", "1.1.2.1", "C"),
		Msg("d", "1.1.3", "D"),
	)
	ctx := context.Background()
	var n int
	require.NoError(t, b.WithTx(ctx, func(tx store.Tx) error {
		var err error
		n, err = tx.UpdateMany(ctx, queryir.Siblings(1, ir.MustParsePath("1.1"), queryir.OpGte, 2),
			func(m ir.Message) ir.Message {
				m.Identifier = m.Identifier.WithSegment(2, m.Identifier.Segment(2)+1)
				return m
			})
		return err
	}))
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"1.1.1", "1.1.3", "1.1.3.1", "1.1.4"}, Paths(t, b))
}

func testUpdateManyRejectsIDChange(t *testing.T, b store.Backend) {
	Seed(t, b, Msg("a", "1.1", "x"))
	ctx := context.Background()
	err := b.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.UpdateMany(ctx, nil, func(m ir.Message) ir.Message {
			m.ID = "other"
			return m
		})
		return err
	})
	assert.ErrorIs(t, err, store.ErrIDChanged)
	assert.Equal(t, []string{"1.1"}, Paths(t, b))
}

func testDeleteOne(t *testing.T, b store.Backend) {
	Seed(t, b, Msg("a", "1.1.1", "x"), Msg("b", "1.1.1", "y"))
	ctx := context.Background()
	require.NoError(t, b.WithTx(ctx, func(tx store.Tx) error {
		n, err := tx.DeleteOne(ctx, queryir.IdentifierEquals{Path: ir.MustParsePath("1.1.1")})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = tx.DeleteOne(ctx, queryir.IdentifierEquals{Path: ir.MustParsePath("1.9")})
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		return nil
	}))
	msgs, err := store.ReadAll(ctx, b)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "b", msgs[0].ID)
}

func testDeleteMany(t *testing.T, b store.Backend) {
	Seed(t, b, Msg("a", "1.1", "x"), Msg("b", "1.1.1", "x"), Msg("c", "1.2", "x"))
	ctx := context.Background()
	require.NoError(t, b.WithTx(ctx, func(tx store.Tx) error {
		n, err := tx.DeleteMany(ctx, queryir.FlowEquals{Flow: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		return nil
	}))
	assert.Equal(t, []string{"1.2"}, Paths(t, b))
}

func testRollbackOnError(t *testing.T, b store.Backend) {
	Seed(t, b, Msg("a", "1.1", "x"))
	ctx := context.Background()
	boom := errors.New("boom")
	err := b.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertOne(ctx, Msg("b", "1.2", "y")); err != nil {
			return err
		}
		if _, err := tx.DeleteMany(ctx, queryir.IDEquals{ID: "a"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"1.1"}, Paths(t, b))
}

func testTransientDuplicates(t *testing.T, b store.Backend) {
	Seed(t, b, Msg("a", "1.1.1", "x"))
	ctx := context.Background()
	require.NoError(t, b.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertOne(ctx, Msg("b", "1.1.1", "y")); err != nil {
			return err
		}
		n, err := tx.Count(ctx, queryir.IdentifierEquals{Path: ir.MustParsePath("1.1.1")})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		_, err = tx.UpdateMany(ctx, queryir.IDEquals{ID: "a"}, func(m ir.Message) ir.Message {
			m.Identifier = ir.MustParsePath("1.1.2")
			return m
		})
		return err
	}))
	assert.Equal(t, []string{"1.1.1", "1.1.2"}, Paths(t, b))
}

func testMatches(t *testing.T, b store.Backend) {
	Seed(t, b, Msg("a", "1.1.1", "x"), Msg("b", "1.12.1", "x"), Msg("c", "1.1", "x"))
	ctx := context.Background()
	require.NoError(t, b.WithTx(ctx, func(tx store.Tx) error {
		msgs, err := tx.Find(ctx, queryir.Matches{Pattern: `^1\.1\.`})
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "a", msgs[0].ID)
		return nil
	}))
}

func testContentRoundTrip(t *testing.T, b store.Backend) {
	structured, err := ir.ParseContent([]byte(`{"body":"hi","n":12345678901234567890,"tags":["x",null]}`))
	require.NoError(t, err)
	m := Msg("a", "1.1", "")
	m.Content = structured
	Seed(t, b, m)

	msgs, err := store.ReadAll(context.Background(), b)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, structured.Equal(msgs[0].Content), fmt.Sprintf("got %s", msgs[0].Content))
}
