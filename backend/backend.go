// Package backend opens the counter store and notification channel a deployment type needs and
// hands back a semaphore.Client bound to them.
package backend

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"

	"github.com/sethvargo/go-retry"

	"github.com/sharedcode/dsync"
	"github.com/sharedcode/dsync/adapters/cassandra"
	"github.com/sharedcode/dsync/adapters/redis"
	"github.com/sharedcode/dsync/inmemory"
	"github.com/sharedcode/dsync/semaphore"
)

// Backend is an opened store and notification channel pair.
type Backend struct {
	Type   dsync.DeploymentType
	Store  dsync.CounterStore
	PubSub dsync.PubSub
	closer func() error
}

// Close releases the connections opened for the backend.
func (b *Backend) Close() error {
	if b == nil || b.closer == nil {
		return nil
	}
	return b.closer()
}

// Opener opens the backend of one deployment type.
type Opener func(ctx context.Context, opts dsync.Options) (*Backend, error)

var openers = make(map[dsync.DeploymentType]Opener)

// Register sets the Opener of a deployment type, replacing any previous one.
func Register(t dsync.DeploymentType, o Opener) {
	openers[t] = o
}

func init() {
	Register(dsync.Standalone, openStandalone)
	Register(dsync.Clustered, openClustered)
	Register(dsync.ClusteredCassandra, openClusteredCassandra)
}

// Open validates opts and opens the backend registered for opts.Type.
func Open(ctx context.Context, opts dsync.Options) (*Backend, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	o, ok := openers[opts.Type]
	if !ok {
		return nil, dsync.Error{
			Code: dsync.Unsupported,
			Err:  fmt.Errorf("no backend registered for %s", opts.Type),
		}
	}
	b, err := o(ctx, opts)
	if err != nil {
		return nil, err
	}
	log.Info("dsync backend opened", "type", opts.Type.String())
	return b, nil
}

// NewClient opens the backend for opts and returns a client bound to it. Close the Backend
// when the client is no longer used.
func NewClient(ctx context.Context, opts dsync.Options, clientOpts ...semaphore.Option) (*semaphore.Client, *Backend, error) {
	b, err := Open(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	return semaphore.NewClient(b.Store, b.PubSub, clientOpts...), b, nil
}

func openStandalone(ctx context.Context, opts dsync.Options) (*Backend, error) {
	store := inmemory.NewStore(nil)
	return &Backend{
		Type:   opts.Type,
		Store:  store,
		PubSub: store.Broker(),
	}, nil
}

// openRedis opens the shared Redis connection and waits for it to answer.
func openRedis(ctx context.Context, cfg dsync.RedisConfig) (*redis.Store, error) {
	if _, err := redis.OpenConnectionWithConfig(cfg); err != nil {
		return nil, dsync.NewError(dsync.StoreCommunicationFailure, err, cfg.Address)
	}
	store := redis.NewStore()
	if err := dsync.Retry(ctx, func(ctx context.Context) error {
		if err := store.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	}, func(ctx context.Context) {
		redis.CloseConnection()
	}); err != nil {
		return nil, dsync.NewError(dsync.StoreCommunicationFailure, err, cfg.Address)
	}
	return store, nil
}

func openClustered(ctx context.Context, opts dsync.Options) (*Backend, error) {
	store, err := openRedis(ctx, *opts.RedisConfig)
	if err != nil {
		return nil, err
	}
	ps := store.PubSub()
	return &Backend{
		Type:   opts.Type,
		Store:  store,
		PubSub: ps,
		closer: func() error {
			return errors.Join(ps.Close(), redis.CloseConnection())
		},
	}, nil
}

func openClusteredCassandra(ctx context.Context, opts dsync.Options) (*Backend, error) {
	rs, err := openRedis(ctx, *opts.RedisConfig)
	if err != nil {
		return nil, err
	}
	conn, err := cassandra.OpenConnection(cassandra.ConfigFromOptions(*opts.CassandraConfig))
	if err != nil {
		redis.CloseConnection()
		return nil, dsync.NewError(dsync.StoreCommunicationFailure, err, opts.CassandraConfig.ClusterHosts)
	}
	ps := rs.PubSub()
	return &Backend{
		Type:   opts.Type,
		Store:  cassandra.NewStore(conn, rs),
		PubSub: ps,
		closer: func() error {
			conn.Close()
			return errors.Join(ps.Close(), redis.CloseConnection())
		},
	}, nil
}
