package store

import (
	"context"
	"errors"

	"github.com/roach88/flowtree/internal/ir"
	"github.com/roach88/flowtree/internal/queryir"
)

// ErrDuplicateID is returned by InsertOne when a document with the same ID
// already exists.
var ErrDuplicateID = errors.New("duplicate document id")

// ErrIDChanged is returned by UpdateMany when a Transform alters a
// document's ID. Document identity is stable across rewrites.
var ErrIDChanged = errors.New("transform changed document id")

// Transform rewrites one matched message during UpdateMany.
type Transform func(ir.Message) ir.Message

// Backend is a durable collection of messages.
//
// Every engine mutation runs inside exactly one WithTx call: either all of
// its reads and writes commit together or none do.
type Backend interface {
	// WithTx runs fn in a transaction. A non-nil error from fn (or from
	// commit) rolls back every write made through the Tx.
	WithTx(ctx context.Context, fn func(Tx) error) error

	// Close releases the backend's resources.
	Close() error
}

// Tx is the unit of work handed to WithTx callbacks.
//
// Uniqueness of identifiers is not enforced here: a renumbering
// transaction may pass through states with duplicates. The engine is
// responsible for leaving the collection consistent at commit.
type Tx interface {
	// Find returns every message matching p, ordered by identifier then ID.
	// An empty result is an empty, non-nil slice.
	Find(ctx context.Context, p queryir.Predicate) ([]ir.Message, error)

	// FindOne returns the first message (in Find order) matching p.
	FindOne(ctx context.Context, p queryir.Predicate) (ir.Message, bool, error)

	// Count returns the number of messages matching p.
	Count(ctx context.Context, p queryir.Predicate) (int, error)

	// InsertOne adds a message. Returns ErrDuplicateID if msg.ID exists.
	InsertOne(ctx context.Context, msg ir.Message) error

	// UpdateMany reads the full match set of p once, applies fn to each
	// message and writes the results. Matches are never re-evaluated
	// against rewritten values. Returns the number of rewritten messages.
	UpdateMany(ctx context.Context, p queryir.Predicate, fn Transform) (int, error)

	// DeleteOne removes the first message (in Find order) matching p.
	DeleteOne(ctx context.Context, p queryir.Predicate) (int, error)

	// DeleteMany removes every message matching p.
	DeleteMany(ctx context.Context, p queryir.Predicate) (int, error)
}

// ReadAll returns every message in b, ordered by identifier then ID.
func ReadAll(ctx context.Context, b Backend) ([]ir.Message, error) {
	var out []ir.Message
	err := b.WithTx(ctx, func(tx Tx) error {
		msgs, err := tx.Find(ctx, nil)
		out = msgs
		return err
	})
	return out, err
}
