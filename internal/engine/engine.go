package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/flowtree/internal/flowlog"
	"github.com/roach88/flowtree/internal/ir"
	"github.com/roach88/flowtree/internal/lock"
	"github.com/roach88/flowtree/internal/store"
)

// Engine applies the message-tree mutations against a store backend.
//
// Every mutation is one store transaction held under one lock lease:
//   - flow-scoped ops (insert, update, nested delete, bulk flow delete)
//     lock their flow only
//   - registry ops (insert/delete main flow, exchange, root delete) lock
//     the registry and exclude everything else
//
// Thread-safety: all methods are safe for concurrent use.
type Engine struct {
	backend store.Backend
	locker  lock.Locker
	ids     IDGenerator
	logger  *slog.Logger
	metrics *metrics
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	locker     lock.Locker
	ids        IDGenerator
	logger     *slog.Logger
	registerer prometheus.Registerer
}

// WithLocker sets the lock implementation (default: lock.NewLocal()).
// Engines sharing a database across processes need a shared locker.
func WithLocker(l lock.Locker) Option {
	return func(o *options) { o.locker = l }
}

// WithIDGenerator sets the document ID source (default: UUIDv7Generator).
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers engine metrics on reg. Without it the metrics
// are collected but not exported.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// New creates an Engine over backend.
func New(backend store.Backend, opts ...Option) *Engine {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.locker == nil {
		o.locker = lock.NewLocal()
	}
	if o.ids == nil {
		o.ids = UUIDv7Generator{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	return &Engine{
		backend: backend,
		locker:  o.locker,
		ids:     o.ids,
		logger:  o.logger,
		metrics: newMetrics(o.registerer),
	}
}

// Backend returns the store the engine writes to.
func (e *Engine) Backend() store.Backend {
	return e.backend
}

// mutation is the body of one locked transaction. It returns the number
// of existing messages it renumbered.
type mutation func(ctx context.Context, tx store.Tx) (renumbered int, err error)

// mutate runs fn inside scope's lease and a single transaction, then
// records metrics and logs the outcome. Engine errors returned by fn roll
// the transaction back and pass through unchanged; anything else is
// reported as PERSISTENCE_FAILURE.
func (e *Engine) mutate(ctx context.Context, op string, scope lock.Scope, fn mutation) (int, error) {
	started := time.Now()

	renumbered, err := e.runLocked(ctx, op, scope, fn)

	outcome := outcomeOK
	switch {
	case err == nil:
	case CodeOf(err) == CodePersistence:
		outcome = outcomeError
		e.logger.Error("mutation failed", flowlog.Op(op), flowlog.Error(err))
	default:
		outcome = outcomeRejected
	}
	if err != nil {
		renumbered = 0
	}
	e.metrics.observe(op, outcome, renumbered, started)

	if err == nil {
		e.logger.Debug("mutation committed", flowlog.Op(op), flowlog.Count(renumbered))
	}
	return renumbered, err
}

func (e *Engine) runLocked(ctx context.Context, op string, scope lock.Scope, fn mutation) (int, error) {
	release, err := e.locker.Acquire(ctx, scope)
	if err != nil {
		return 0, persistenceFailure(op, firstFlow(scope), err)
	}
	defer func() {
		if rerr := release(); rerr != nil {
			e.logger.Warn("lock release failed", flowlog.Op(op), flowlog.Error(rerr))
		}
	}()

	var renumbered int
	err = e.backend.WithTx(ctx, func(tx store.Tx) error {
		n, err := fn(ctx, tx)
		renumbered = n
		return err
	})
	if err != nil {
		var engineErr *Error
		if errors.As(err, &engineErr) {
			return 0, err
		}
		return 0, persistenceFailure(op, firstFlow(scope), err)
	}
	return renumbered, nil
}

// read runs fn in a transaction without taking a lock.
func (e *Engine) read(ctx context.Context, op string, fn func(ctx context.Context, tx store.Tx) error) error {
	err := e.backend.WithTx(ctx, func(tx store.Tx) error {
		return fn(ctx, tx)
	})
	if err != nil {
		return persistenceFailure(op, 0, err)
	}
	return nil
}

func firstFlow(scope lock.Scope) ir.FlowID {
	if len(scope.Flows) > 0 {
		return scope.Flows[0]
	}
	return 0
}
