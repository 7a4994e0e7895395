// Package memstore is an in-process store.Backend.
//
// It is used by the scenario harness and by tests that do not need a
// database file. Transactions are serialized and operate on a private
// copy of the collection that replaces the committed state on success.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/roach88/flowtree/internal/ir"
	"github.com/roach88/flowtree/internal/queryir"
	"github.com/roach88/flowtree/internal/store"
)

// Store holds messages keyed by document ID.
type Store struct {
	mu   sync.Mutex
	docs map[string]ir.Message
}

var _ store.Backend = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{docs: make(map[string]ir.Message)}
}

// WithTx implements store.Backend.
func (s *Store) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	tx := &memTx{docs: maps.Clone(s.docs)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	s.docs = tx.docs
	return nil
}

// Close implements store.Backend.
func (s *Store) Close() error {
	return nil
}

// Len returns the number of committed messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

type memTx struct {
	docs map[string]ir.Message
}

func (t *memTx) Find(_ context.Context, p queryir.Predicate) ([]ir.Message, error) {
	msgs := []ir.Message{}
	for _, m := range t.docs {
		ok, err := queryir.Eval(p, m)
		if err != nil {
			return nil, fmt.Errorf("find: %w", err)
		}
		if ok {
			msgs = append(msgs, m)
		}
	}
	ir.SortMessages(msgs)
	return msgs, nil
}

func (t *memTx) FindOne(ctx context.Context, p queryir.Predicate) (ir.Message, bool, error) {
	msgs, err := t.Find(ctx, p)
	if err != nil || len(msgs) == 0 {
		return ir.Message{}, false, err
	}
	return msgs[0], true, nil
}

func (t *memTx) Count(ctx context.Context, p queryir.Predicate) (int, error) {
	msgs, err := t.Find(ctx, p)
	return len(msgs), err
}

func (t *memTx) InsertOne(_ context.Context, msg ir.Message) error {
	if _, err := store.EncodeRecord(msg); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if _, exists := t.docs[msg.ID]; exists {
		return fmt.Errorf("insert message %s: %w", msg.ID, store.ErrDuplicateID)
	}
	t.docs[msg.ID] = msg
	return nil
}

func (t *memTx) UpdateMany(ctx context.Context, p queryir.Predicate, fn store.Transform) (int, error) {
	matches, err := t.Find(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("update many: %w", err)
	}
	for _, msg := range matches {
		updated, err := store.ApplyTransform(fn, msg)
		if err != nil {
			return 0, err
		}
		if _, err := store.EncodeRecord(updated); err != nil {
			return 0, fmt.Errorf("update many: %w", err)
		}
		t.docs[updated.ID] = updated
	}
	return len(matches), nil
}

func (t *memTx) DeleteOne(ctx context.Context, p queryir.Predicate) (int, error) {
	msg, ok, err := t.FindOne(ctx, p)
	if err != nil || !ok {
		return 0, err
	}
	delete(t.docs, msg.ID)
	return 1, nil
}

func (t *memTx) DeleteMany(ctx context.Context, p queryir.Predicate) (int, error) {
	matches, err := t.Find(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	for _, m := range matches {
		delete(t.docs, m.ID)
	}
	return len(matches), nil
}
