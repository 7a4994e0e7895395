// Package pebblestore is a store.Backend on a Pebble key-value database.
//
// Each message is one key, msg/<id>, holding its JSON record. A
// transaction is an indexed batch: reads see the batch's own writes, and
// the batch is applied with a synced commit or discarded.
package pebblestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	pebble "github.com/cockroachdb/pebble"

	"github.com/roach88/flowtree/internal/ir"
	"github.com/roach88/flowtree/internal/queryir"
	"github.com/roach88/flowtree/internal/store"
)

var (
	keyPrefix = []byte("msg/")
	keyUpper  = []byte("msg0") // '0' follows '/'
)

func messageKey(id string) []byte {
	return append(append([]byte{}, keyPrefix...), id...)
}

// Store is the Pebble message backend.
type Store struct {
	db *pebble.DB

	// writeMu serializes transactions; Pebble batches do not detect
	// conflicting concurrent writers.
	writeMu sync.Mutex
}

var _ store.Backend = (*Store)(nil)

// Open opens or creates a Pebble database in dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create pebble dir: %w", err)
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	return &Store{db: db}, nil
}

// Close implements store.Backend.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WithTx implements store.Backend.
func (s *Store) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	batch := s.db.NewIndexedBatch()
	defer batch.Close()

	if err := fn(&pebbleTx{batch: batch}); err != nil {
		return err
	}
	if batch.Empty() {
		return nil
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pebbleTx struct {
	batch *pebble.Batch
}

// scan decodes every record visible to the batch.
func (t *pebbleTx) scan(ctx context.Context) ([]ir.Message, error) {
	it, err := t.batch.NewIter(&pebble.IterOptions{LowerBound: keyPrefix, UpperBound: keyUpper})
	if err != nil {
		return nil, fmt.Errorf("open iterator: %w", err)
	}
	defer it.Close()

	var msgs []ir.Message
	for ok := it.First(); ok; ok = it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Value is only valid until the next step; DecodeRecord copies.
		msg, err := store.DecodeRecord(it.Value())
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", it.Key(), err)
		}
		msgs = append(msgs, msg)
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return msgs, nil
}

func (t *pebbleTx) Find(ctx context.Context, p queryir.Predicate) ([]ir.Message, error) {
	all, err := t.scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	msgs, err := queryir.Filter(p, all)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	ir.SortMessages(msgs)
	return msgs, nil
}

func (t *pebbleTx) FindOne(ctx context.Context, p queryir.Predicate) (ir.Message, bool, error) {
	msgs, err := t.Find(ctx, p)
	if err != nil || len(msgs) == 0 {
		return ir.Message{}, false, err
	}
	return msgs[0], true, nil
}

func (t *pebbleTx) Count(ctx context.Context, p queryir.Predicate) (int, error) {
	msgs, err := t.Find(ctx, p)
	return len(msgs), err
}

func (t *pebbleTx) exists(id string) (bool, error) {
	_, closer, err := t.batch.Get(messageKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	closer.Close()
	return true, nil
}

func (t *pebbleTx) put(msg ir.Message) error {
	data, err := store.EncodeRecord(msg)
	if err != nil {
		return err
	}
	return t.batch.Set(messageKey(msg.ID), data, nil)
}

func (t *pebbleTx) InsertOne(_ context.Context, msg ir.Message) error {
	found, err := t.exists(msg.ID)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if found {
		return fmt.Errorf("insert message %s: %w", msg.ID, store.ErrDuplicateID)
	}
	if err := t.put(msg); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (t *pebbleTx) UpdateMany(ctx context.Context, p queryir.Predicate, fn store.Transform) (int, error) {
	matches, err := t.Find(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("update many: %w", err)
	}
	for _, msg := range matches {
		updated, err := store.ApplyTransform(fn, msg)
		if err != nil {
			return 0, err
		}
		if err := t.put(updated); err != nil {
			return 0, fmt.Errorf("update message %s: %w", msg.ID, err)
		}
	}
	return len(matches), nil
}

func (t *pebbleTx) DeleteOne(ctx context.Context, p queryir.Predicate) (int, error) {
	msg, ok, err := t.FindOne(ctx, p)
	if err != nil || !ok {
		return 0, err
	}
	if err := t.batch.Delete(messageKey(msg.ID), nil); err != nil {
		return 0, fmt.Errorf("delete message %s: %w", msg.ID, err)
	}
	return 1, nil
}

func (t *pebbleTx) DeleteMany(ctx context.Context, p queryir.Predicate) (int, error) {
	matches, err := t.Find(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	for _, m := range matches {
		if err := t.batch.Delete(messageKey(m.ID), nil); err != nil {
			return 0, fmt.Errorf("delete message %s: %w", m.ID, err)
		}
	}
	return len(matches), nil
}
