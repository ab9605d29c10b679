package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cas-inventory/backend/internal/domain/shared"
	"github.com/cas-inventory/backend/internal/infrastructure/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// factoryOptions configures NewStoreFromConfig
type factoryOptions struct {
	logger   *zap.Logger
	dbOpts   []DatabaseOption
	dbHooks  []func(*gorm.DB) error
	fallback []FallbackOption
}

// FactoryOption configures NewStoreFromConfig
type FactoryOption func(*factoryOptions)

// WithFactoryLogger sets the logger passed to every store
func WithFactoryLogger(logger *zap.Logger) FactoryOption {
	return func(o *factoryOptions) {
		o.logger = logger
	}
}

// WithDatabaseOptions configures the gorm connection of the sqlite and postgres drivers
func WithDatabaseOptions(opts ...DatabaseOption) FactoryOption {
	return func(o *factoryOptions) {
		o.dbOpts = append(o.dbOpts, opts...)
	}
}

// WithDatabaseHook runs fn on the gorm connection once it is open (e.g. tracing plugins)
func WithDatabaseHook(fn func(*gorm.DB) error) FactoryOption {
	return func(o *factoryOptions) {
		o.dbHooks = append(o.dbHooks, fn)
	}
}

// WithFallbackOptions passes options to the FallbackStore wrapping a remote driver
func WithFallbackOptions(opts ...FallbackOption) FactoryOption {
	return func(o *factoryOptions) {
		o.fallback = append(o.fallback, opts...)
	}
}

// NewStoreFromConfig builds the store selected by cfg.Store.Driver. Local drivers
// are returned as is; remote drivers are wrapped in a FallbackStore over the
// configured local driver. A remote backend that cannot even be constructed
// (bad DSN, refused connection) is replaced by an unreachable stub so the server
// starts degraded and the resync job keeps retrying it.
func NewStoreFromConfig(ctx context.Context, cfg *config.Config, opts ...FactoryOption) (Store, error) {
	o := &factoryOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	if !cfg.Store.IsRemote() {
		return newLocalStore(cfg.Store.Driver, cfg, o)
	}

	local, err := newLocalStore(cfg.Store.LocalDriver, cfg, o)
	if err != nil {
		return nil, err
	}

	remote, err := newRemoteStore(ctx, cfg, o)
	if err != nil {
		o.logger.Warn("Remote store could not be opened, starting in degraded mode",
			zap.String("driver", cfg.Store.Driver),
			zap.Error(err),
		)
		remote = &reconnectingStore{
			driver: cfg.Store.Driver,
			open:   func(ctx context.Context) (Store, error) { return newRemoteStore(ctx, cfg, o) },
			err:    err,
		}
	}

	fallbackOpts := append([]FallbackOption{
		WithFallbackLogger(o.logger),
		WithOpTimeout(cfg.Store.OpTimeout),
	}, o.fallback...)
	store, err := NewFallbackStore(ctx, remote, local, fallbackOpts...)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Syncer is implemented by stores that mirror a remote backend
type Syncer interface {
	Resync(ctx context.Context) error
	Status() SyncStatus
}

func newLocalStore(driver string, cfg *config.Config, o *factoryOptions) (Store, error) {
	switch driver {
	case config.DriverMemory:
		return NewMemoryStore(), nil
	case config.DriverFile:
		store, err := NewFileStore(cfg.Store.FilePath, WithSnapshotLogger(o.logger))
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported local store driver %q", driver)
	}
}

func newRemoteStore(ctx context.Context, cfg *config.Config, o *factoryOptions) (Store, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		db, err := NewSQLiteDatabase(&cfg.SQLite, o.dbOpts...)
		if err != nil {
			return nil, err
		}
		return newGormStore(db, o)
	case config.DriverPostgres:
		db, err := NewPostgresDatabase(&cfg.Database, o.dbOpts...)
		if err != nil {
			return nil, err
		}
		return newGormStore(db, o)
	case config.DriverMongo:
		store, err := NewMongoStore(ctx, &cfg.Mongo, o.logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverS3:
		blob, err := NewS3Blob(ctx, &cfg.S3, o.logger)
		if err != nil {
			return nil, err
		}
		if err := blob.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return NewSnapshotStore(blob, WithSnapshotLogger(o.logger)), nil
	default:
		return nil, fmt.Errorf("unsupported remote store driver %q", cfg.Store.Driver)
	}
}

func newGormStore(db *Database, o *factoryOptions) (Store, error) {
	for _, hook := range o.dbHooks {
		if err := hook(db.DB); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configure database: %w", err)
		}
	}
	return NewGormStore(db), nil
}

// errNotConnected is returned by reconnectingStore until the backend opens
var errNotConnected = errors.New("remote store not connected")

// reconnectingStore stands in for a remote backend that failed to open at
// startup. Ping retries opening it; once open every call is delegated.
type reconnectingStore struct {
	driver string
	open   func(ctx context.Context) (Store, error)

	mu    sync.Mutex
	err   error
	store Store
}

func (r *reconnectingStore) current() (Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.store == nil {
		return nil, fmt.Errorf("%w: %w", errNotConnected, r.err)
	}
	return r.store, nil
}

func (r *reconnectingStore) Load(ctx context.Context, collection shared.Collection) ([]json.RawMessage, error) {
	store, err := r.current()
	if err != nil {
		return nil, err
	}
	return store.Load(ctx, collection)
}

func (r *reconnectingStore) Save(ctx context.Context, collection shared.Collection, records []json.RawMessage) error {
	return r.SaveBatch(ctx, shared.Batch{collection: records})
}

func (r *reconnectingStore) SaveBatch(ctx context.Context, batch shared.Batch) error {
	store, err := r.current()
	if err != nil {
		return err
	}
	return store.SaveBatch(ctx, batch)
}

// Ping tries to open the backend until it succeeds once
func (r *reconnectingStore) Ping(ctx context.Context) error {
	r.mu.Lock()
	if r.store == nil {
		store, err := r.open(ctx)
		if err != nil {
			r.err = err
			r.mu.Unlock()
			return fmt.Errorf("open %s store: %w", r.driver, err)
		}
		r.store = store
	}
	store := r.store
	r.mu.Unlock()
	return store.Ping(ctx)
}

func (r *reconnectingStore) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.store.(Closer); ok {
		return c.Close(ctx)
	}
	return nil
}
