package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/roach88/flowtree/internal/config"
	"github.com/roach88/flowtree/internal/engine"
	"github.com/roach88/flowtree/internal/flowlog"
	"github.com/roach88/flowtree/internal/lock"
	"github.com/roach88/flowtree/internal/store"
	"github.com/roach88/flowtree/internal/store/boltstore"
	"github.com/roach88/flowtree/internal/store/memstore"
	"github.com/roach88/flowtree/internal/store/pebblestore"
)

// App is the wired process: configuration, store, locker and engine.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Backend  store.Backend
	Engine   *engine.Engine
	Registry *prometheus.Registry

	closers []func() error
}

// loadConfig resolves the configuration and applies flag overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath, config.Options{EnvFile: opts.EnvFile, SkipEnvFile: opts.SkipEnvFile})
	if err != nil {
		return config.Config{}, err
	}
	if opts.Backend != "" {
		cfg.Backend = opts.Backend
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// openApp wires an App for cmd. The caller must Close it.
func openApp(ctx context.Context, cmd *cobra.Command, opts *RootOptions) (*App, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	level, err := flowlog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid log level", err)
	}
	logger := flowlog.New(cmd.ErrOrStderr(), level, flowlog.Format(cfg.Log.Format))

	app := &App{Config: cfg, Logger: logger, Registry: prometheus.NewRegistry()}
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	backend, err := openBackend(cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	app.Backend = backend
	app.closers = append(app.closers, backend.Close)

	locker, err := app.newLocker(ctx)
	if err != nil {
		_ = app.Close()
		return nil, WrapExitError(ExitCommandError, "failed to set up locking", err)
	}

	app.Engine = engine.New(backend,
		engine.WithLocker(locker),
		engine.WithLogger(logger),
		engine.WithRegisterer(app.Registry),
	)
	logger.Debug("app ready",
		slog.String("backend", cfg.Backend),
		slog.String("database", cfg.Database),
		slog.String("lock", cfg.Lock.Mode))
	return app, nil
}

// openBackend opens the configured store.
func openBackend(cfg config.Config) (store.Backend, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return store.Open(cfg.Database)
	case config.BackendPebble:
		return pebblestore.Open(cfg.Database)
	case config.BackendBolt:
		return boltstore.Open(cfg.Database)
	case config.BackendMemory:
		return memstore.New(), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func (a *App) newLocker(ctx context.Context) (lock.Locker, error) {
	if a.Config.Lock.Mode != config.LockRedis {
		return lock.NewLocal(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr: a.Config.Lock.RedisAddr,
		DB:   a.Config.Lock.RedisDB,
	})
	a.closers = append(a.closers, client.Close)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis %s: %w", a.Config.Lock.RedisAddr, err)
	}
	return lock.NewRedis(client, lock.RedisOptions{
		Prefix:      a.Config.Lock.Prefix,
		TTL:         a.Config.Lock.TTL,
		WaitTimeout: a.Config.Lock.Wait,
	}), nil
}

// Close releases everything openApp acquired, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// withApp runs fn against a freshly wired App and closes it afterwards.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, app *App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := openApp(ctx, cmd, opts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := app.Close(); closeErr != nil {
			app.Logger.Error("error closing app", flowlog.Error(closeErr))
		}
	}()
	return fn(ctx, app)
}
