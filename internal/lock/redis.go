package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/roach88/flowtree/internal/ir"
)

// RedisOptions configures a Redis locker.
type RedisOptions struct {
	// Prefix namespaces every lease key (default "flowtree:lock:").
	Prefix string

	// TTL bounds how long a crashed holder can block others (default 30s).
	// Live holders extend their leases, so TTL need not cover the longest
	// transaction.
	TTL time.Duration

	// RenewInterval is how often a held lease is extended back to TTL
	// (default TTL/3).
	RenewInterval time.Duration

	// WaitTimeout bounds how long Acquire retries (default 10s).
	WaitTimeout time.Duration
}

const (
	defaultPrefix      = "flowtree:lock:"
	defaultTTL         = 30 * time.Second
	defaultWaitTimeout = 10 * time.Second
)

// acquireFlowScript takes a flow lease unless a registry lease is held.
// KEYS[1] = flow key, KEYS[2] = registry key, ARGV[1] = token, ARGV[2] = ttl ms
var acquireFlowScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 1 then
	return 0
end
if redis.call("SET", KEYS[1], ARGV[1], "NX", "PX", ARGV[2]) then
	return 1
end
return 0
`)

// releaseScript deletes a key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends a lease only if it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// errBusy marks a retryable contention failure.
var errBusy = errors.New("lease busy")

// Redis is a Locker backed by Redis leases.
//
// Flow leases are taken with a script that refuses while a registry lease
// exists. A registry lease is claimed first and then waits for in-flight
// flow leases to drain, so no new flow holder can slip in.
type Redis struct {
	client redis.UniversalClient
	opts   RedisOptions
}

var _ Locker = (*Redis)(nil)

// NewRedis creates a Redis locker on client.
func NewRedis(client redis.UniversalClient, opts RedisOptions) *Redis {
	if opts.Prefix == "" {
		opts.Prefix = defaultPrefix
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = defaultWaitTimeout
	}
	if opts.RenewInterval <= 0 || opts.RenewInterval >= opts.TTL {
		opts.RenewInterval = opts.TTL / 3
	}
	return &Redis{client: client, opts: opts}
}

func (r *Redis) registryKey() string {
	return r.opts.Prefix + "registry"
}

func (r *Redis) flowKey(f ir.FlowID) string {
	return r.opts.Prefix + "flow:" + f.String()
}

func (r *Redis) newBackoff(ctx context.Context) backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Millisecond
	bo.MaxInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = r.opts.WaitTimeout
	return backoff.WithContext(bo, ctx)
}

// retry runs op until it succeeds, fails permanently, or the wait budget
// is spent. Only errBusy is retried.
func (r *Redis) retry(ctx context.Context, what string, op func() error) error {
	err := backoff.Retry(func() error {
		err := op()
		if err != nil && !errors.Is(err, errBusy) {
			return backoff.Permanent(err)
		}
		return err
	}, r.newBackoff(ctx))

	switch {
	case err == nil:
		return nil
	case errors.Is(err, errBusy):
		return fmt.Errorf("%w: %s", ErrTimeout, what)
	case ctx.Err() != nil:
		return waitErr(what, ctx.Err())
	default:
		return fmt.Errorf("acquire %s: %w", what, err)
	}
}

// Acquire implements Locker.
func (r *Redis) Acquire(ctx context.Context, scope Scope) (Release, error) {
	token := uuid.NewString()

	if scope.Registry {
		return r.acquireRegistry(ctx, token)
	}

	var held []string
	releaseAll := func() error {
		var errs []error
		for i := len(held) - 1; i >= 0; i-- {
			errs = append(errs, r.release(held[i], token))
		}
		return errors.Join(errs...)
	}

	for _, f := range scope.sortedFlows() {
		key := r.flowKey(f)
		err := r.retry(ctx, "flow "+f.String(), func() error {
			ok, err := acquireFlowScript.Run(ctx, r.client,
				[]string{key, r.registryKey()}, token, r.opts.TTL.Milliseconds()).Int()
			if err != nil {
				return err
			}
			if ok == 0 {
				return errBusy
			}
			return nil
		})
		if err != nil {
			_ = releaseAll()
			return nil, err
		}
		held = append(held, key)
	}

	stop := r.keepAlive(held, token)
	return onceRelease(func() error {
		stop()
		return releaseAll()
	}), nil
}

func (r *Redis) acquireRegistry(ctx context.Context, token string) (Release, error) {
	key := r.registryKey()

	err := r.retry(ctx, "registry", func() error {
		ok, err := r.client.SetNX(ctx, key, token, r.opts.TTL).Result()
		if err != nil {
			return err
		}
		if !ok {
			return errBusy
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = r.retry(ctx, "registry drain", func() error {
		iter := r.client.Scan(ctx, 0, r.opts.Prefix+"flow:*", 100).Iterator()
		if iter.Next(ctx) {
			return errBusy
		}
		return iter.Err()
	})
	if err != nil {
		_ = r.release(key, token)
		return nil, err
	}

	stop := r.keepAlive([]string{key}, token)
	return onceRelease(func() error {
		stop()
		return r.release(key, token)
	}), nil
}

// keepAlive extends keys every RenewInterval until stop is called. A failed
// renewal is retried on the next tick; if Redis stays unreachable the
// lease lapses after TTL.
func (r *Redis) keepAlive(keys []string, token string) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(r.opts.RenewInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, key := range keys {
					_ = r.renew(ctx, key, token)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (r *Redis) renew(ctx context.Context, key, token string) error {
	return renewScript.Run(ctx, r.client, []string{key}, token, r.opts.TTL.Milliseconds()).Err()
}

func (r *Redis) release(key, token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}
