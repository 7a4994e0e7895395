// Package boltstore is a store.Backend on a single bbolt file.
//
// Messages live in the "messages" bucket keyed by id, each value a JSON
// record. A transaction is one read-write bolt transaction, so reads see
// the transaction's own writes and a failed callback rolls everything back.
package boltstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/roach88/flowtree/internal/ir"
	"github.com/roach88/flowtree/internal/queryir"
	"github.com/roach88/flowtree/internal/store"
)

var messagesBucket = []byte("messages")

// Store is the bbolt message backend.
type Store struct {
	db *bolt.DB
}

var _ store.Backend = (*Store)(nil)

// Open opens or creates the bolt file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create bolt dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(messagesBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
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

// WithTx implements store.Backend. bolt allows one writer at a time, so
// transactions are serialized by the database itself.
func (s *Store) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&boltTx{bucket: tx.Bucket(messagesBucket)})
	})
}

type boltTx struct {
	bucket *bolt.Bucket
}

func (t *boltTx) scan(ctx context.Context) ([]ir.Message, error) {
	var msgs []ir.Message
	err := t.bucket.ForEach(func(k, v []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := store.DecodeRecord(v)
		if err != nil {
			return fmt.Errorf("key %s: %w", k, err)
		}
		msgs = append(msgs, msg)
		return nil
	})
	return msgs, err
}

func (t *boltTx) Find(ctx context.Context, p queryir.Predicate) ([]ir.Message, error) {
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

func (t *boltTx) FindOne(ctx context.Context, p queryir.Predicate) (ir.Message, bool, error) {
	msgs, err := t.Find(ctx, p)
	if err != nil || len(msgs) == 0 {
		return ir.Message{}, false, err
	}
	return msgs[0], true, nil
}

func (t *boltTx) Count(ctx context.Context, p queryir.Predicate) (int, error) {
	msgs, err := t.Find(ctx, p)
	return len(msgs), err
}

func (t *boltTx) put(msg ir.Message) error {
	data, err := store.EncodeRecord(msg)
	if err != nil {
		return err
	}
	return t.bucket.Put([]byte(msg.ID), data)
}

func (t *boltTx) InsertOne(_ context.Context, msg ir.Message) error {
	if t.bucket.Get([]byte(msg.ID)) != nil {
		return fmt.Errorf("insert message %s: %w", msg.ID, store.ErrDuplicateID)
	}
	if err := t.put(msg); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (t *boltTx) UpdateMany(ctx context.Context, p queryir.Predicate, fn store.Transform) (int, error) {
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

func (t *boltTx) DeleteOne(ctx context.Context, p queryir.Predicate) (int, error) {
	msg, ok, err := t.FindOne(ctx, p)
	if err != nil || !ok {
		return 0, err
	}
	if err := t.bucket.Delete([]byte(msg.ID)); err != nil {
		return 0, fmt.Errorf("delete message %s: %w", msg.ID, err)
	}
	return 1, nil
}

func (t *boltTx) DeleteMany(ctx context.Context, p queryir.Predicate) (int, error) {
	matches, err := t.Find(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	for _, m := range matches {
		if err := t.bucket.Delete([]byte(m.ID)); err != nil {
			return 0, fmt.Errorf("delete message %s: %w", m.ID, err)
		}
	}
	return len(matches), nil
}
