// Package app wires weft's services from configuration. A Container is built
// once by the command that needs it and passed down explicitly.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/weft/internal/config"
	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/adapters/file"
	weftHTTP "github.com/aretw0/weft/pkg/adapters/http"
	weftMCP "github.com/aretw0/weft/pkg/adapters/mcp"
	"github.com/aretw0/weft/pkg/adapters/memory"
	"github.com/aretw0/weft/pkg/adapters/redis"
	"github.com/aretw0/weft/pkg/event"
	persistence "github.com/aretw0/weft/pkg/persistence/middleware"
	"github.com/aretw0/weft/pkg/ports"
	"github.com/aretw0/weft/pkg/query"
	"github.com/aretw0/weft/pkg/store"
	"github.com/aretw0/weft/pkg/task"
	"github.com/aretw0/weft/pkg/transient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	backend "github.com/redis/go-redis/v9"
)

// Container owns every long-lived service.
type Container struct {
	Config    config.Config
	Logger    *slog.Logger
	Registry  *prometheus.Registry
	Tasks     *task.Manager
	Snapshots ports.SnapshotStore
	Locker    ports.DistributedLocker
	Transient *transient.Service

	redis       *backend.Client
	ownsRedis   bool
	autoPersist bool
	observables map[string]store.Observable
	disposer    *event.Disposer
}

// Option configures a Container.
type Option func(*Container)

// WithLogger overrides the logger built from Config.LogLevel.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Container) {
		c.Logger = logger
	}
}

// WithRedisClient uses client for the redis backend instead of dialing
// Config.Redis. The caller keeps ownership of the client.
func WithRedisClient(client *backend.Client) Option {
	return func(c *Container) {
		c.redis = client
	}
}

// WithAutoPersist persists transient data after every change.
func WithAutoPersist() Option {
	return func(c *Container) {
		c.autoPersist = true
	}
}

// New builds the container. Nothing is read from storage until Bootstrap.
func New(cfg config.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{
		Config:      cfg,
		Registry:    prometheus.NewRegistry(),
		observables: map[string]store.Observable{},
		disposer:    event.NewDisposer(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		level, _ := logging.ParseLevel(cfg.LogLevel)
		c.Logger = logging.New(level)
	}

	c.Registry.MustRegister(collectors.NewGoCollector())
	c.Tasks = task.NewManager(task.WithLogger(c.Logger), task.WithMetrics(c.Registry))
	// Abandon in-flight work before the services it touches are torn down.
	c.disposer.AddFunc(c.Tasks.CancelAll)

	snapshots, err := c.buildSnapshots()
	if err != nil {
		c.Dispose()
		return nil, err
	}
	c.Snapshots = snapshots

	transientOpts := []transient.Option{
		transient.WithSnapshotStore(c.Snapshots),
		transient.WithLocker(c.Locker, 0),
		transient.WithKey(cfg.Transient.Key),
		transient.WithLogger(c.Logger),
	}
	if c.autoPersist {
		transientOpts = append(transientOpts, transient.WithAutoPersist(c.Tasks))
	}
	c.Transient = transient.New(transientOpts...)
	c.disposer.AddFunc(c.Transient.Close)
	c.Register("transient", c.Transient.Store())

	return c, nil
}

func (c *Container) buildSnapshots() (ports.SnapshotStore, error) {
	cfg := c.Config
	var base ports.SnapshotStore

	switch cfg.Transient.Backend {
	case config.BackendMemory:
		base = memory.NewStore()
		c.Locker = memory.NewLocker()
	case config.BackendFile:
		base = file.New(cfg.Transient.Dir)
		c.Locker = memory.NewLocker()
	case config.BackendRedis:
		if c.redis == nil {
			c.redis = backend.NewClient(&backend.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			c.ownsRedis = true
		}
		base = redis.NewFromClient(c.redis, redis.WithPrefix(cfg.Redis.Prefix), redis.WithTTL(cfg.Redis.TTL))
		c.Locker = redis.NewLocker(c.redis, cfg.Redis.Prefix)
	}

	var mws []persistence.Middleware
	if len(cfg.Transient.Redact) > 0 {
		pii, err := persistence.NewPIIMiddleware(cfg.Transient.Redact)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}
	if cfg.Encryption.Key != "" {
		enc, err := encryptionFromConfig(cfg.Encryption)
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	return persistence.Chain(base, mws...), nil
}

func encryptionFromConfig(cfg config.EncryptionConfig) (persistence.Middleware, error) {
	active, err := persistence.ParseKey(cfg.Key)
	if err != nil {
		return nil, err
	}
	ec := persistence.EncryptionConfig{ActiveKey: active}
	for i, k := range cfg.FallbackKeys {
		key, err := persistence.ParseKey(k)
		if err != nil {
			return nil, fmt.Errorf("fallback key %d: %w", i, err)
		}
		ec.FallbackKeys = append(ec.FallbackKeys, key)
	}
	return persistence.NewEncryptionMiddleware(ec)
}

// Bootstrap restores persisted state and checks backend connectivity.
func (c *Container) Bootstrap(ctx context.Context) error {
	if c.redis != nil {
		if err := c.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis unreachable at %s: %w", c.Config.Redis.Addr, err)
		}
	}
	if err := c.Transient.Restore(ctx); err != nil {
		return err
	}
	c.Logger.Debug("Container bootstrapped",
		"backend", c.Config.Transient.Backend,
		"messages", c.Transient.Len(),
	)
	return nil
}

// Register exposes o to the inspection server under name.
func (c *Container) Register(name string, o store.Observable) {
	c.observables[name] = o
}

// Own adds a cleanup run by Dispose, after the ones registered before it.
func (c *Container) Own(d event.Disposable) {
	c.disposer.Add(d)
}

// Server builds the inspection server over every registered observable.
// It is closed with the container.
func (c *Container) Server() *weftHTTP.Server {
	opts := []weftHTTP.Option{
		weftHTTP.WithTasks(c.Tasks),
		weftHTTP.WithGatherer(c.Registry),
		weftHTTP.WithLogger(c.Logger),
	}
	for name, o := range c.observables {
		opts = append(opts, weftHTTP.WithObservable(name, o))
	}
	srv := weftHTTP.NewServer(opts...)
	c.disposer.AddFunc(srv.Close)
	return srv
}

// MCPServer builds the MCP server over every registered observable, the task
// manager and the transient service.
func (c *Container) MCPServer() *weftMCP.Server {
	opts := []weftMCP.Option{
		weftMCP.WithTasks(c.Tasks),
		weftMCP.WithTransient(c.Transient),
		weftMCP.WithLogger(c.Logger),
	}
	for name, o := range c.observables {
		opts = append(opts, weftMCP.WithObservable(name, o))
	}
	return weftMCP.NewServer(opts...)
}

// Dispose cancels tasks, closes services and finally releases the redis
// connection if the container dialed it.
func (c *Container) Dispose() {
	c.disposer.Dispose()
	if c.ownsRedis {
		c.ownsRedis = false
		if err := c.redis.Close(); err != nil {
			c.Logger.Warn("Failed to close redis client", "err", err)
		}
	}
}

// NewQuery creates a query manager configured from the container, registers
// its state under name and disposes it with the container.
func NewQuery[A, T any](c *Container, name string, fn query.Func[A, T]) *query.Manager[A, T] {
	q := query.New(fn,
		query.WithDebounce(c.Config.Query.Debounce),
		query.WithLogger(c.Logger),
	)
	c.Register(name, q.Store())
	c.disposer.AddFunc(q.Dispose)
	return q
}
