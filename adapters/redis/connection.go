// Package redis implements the dsync counter store and notification channel on Redis:
// Lua scripts give TryTake and Give their atomicity and one shared Pub/Sub connection carries
// the wake-up channels of every semaphore used by the process.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	log "log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/sharedcode/dsync"
)

// Options holds configuration for connecting to a Redis server or cluster.
type Options struct {
	// Address is the host:port of the Redis server/cluster.
	Address string
	// Password is the password used to authenticate.
	Password string
	// DB is the database index to select.
	DB int
	// TLSConfig contains TLS configuration for secure connections.
	TLSConfig *tls.Config
}

// Connection wraps a redis.Client and the Options used to create it.
type Connection struct {
	Client  *redis.Client
	Options Options
}

// DefaultOptions returns an Options with localhost defaults (no password, DB 0).
func DefaultOptions() Options {
	return Options{
		Address:  "localhost:6379",
		Password: "", // no password set
		DB:       0,  // use default DB
	}
}

// OptionsFromConfig converts the deployment level Redis configuration.
func OptionsFromConfig(cfg dsync.RedisConfig) Options {
	return Options{
		Address:  cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

var connection *Connection
var mux sync.Mutex

// IsConnectionInstantiated reports whether the package-level singleton connection exists.
func IsConnectionInstantiated() bool {
	mux.Lock()
	defer mux.Unlock()
	return connection != nil
}

// OpenConnection initializes and returns the package-level singleton connection.
// Subsequent calls return the same connection.
func OpenConnection(options Options) (*Connection, error) {
	mux.Lock()
	defer mux.Unlock()

	if connection != nil {
		return connection, nil
	}

	log.Info("Opening Redis connection", "address", options.Address, "db", options.DB)
	connection = openConnection(options)
	return connection, nil
}

// OpenConnectionWithURL initializes and returns the package-level singleton connection using a Redis URI.
func OpenConnectionWithURL(url string) (*Connection, error) {
	mux.Lock()
	defer mux.Unlock()

	if connection != nil {
		return connection, nil
	}

	log.Info("Opening Redis connection with URL")
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	connection = openConnectionFromRedisOptions(opts)
	log.Info("Redis connection established", "address", connection.Options.Address, "db", connection.Options.DB)
	return connection, nil
}

// OpenConnectionWithConfig opens the singleton connection from a deployment RedisConfig,
// preferring its URL when set.
func OpenConnectionWithConfig(cfg dsync.RedisConfig) (*Connection, error) {
	if cfg.URL != "" {
		return OpenConnectionWithURL(cfg.URL)
	}
	return OpenConnection(OptionsFromConfig(cfg))
}

// GetConnection returns the package-level singleton connection.
func GetConnection() (*Connection, error) {
	mux.Lock()
	defer mux.Unlock()
	if connection == nil {
		return nil, fmt.Errorf("redis connection is not open; call OpenConnection(options) to open it")
	}
	return connection, nil
}

// CloseConnection closes the package-level singleton connection, if present.
func CloseConnection() error {
	mux.Lock()
	defer mux.Unlock()
	if connection == nil {
		return nil
	}
	log.Info("Closing Redis connection")
	err := closeConnection(connection)
	connection = nil
	return err
}

var lastSeenRunID atomic.Value
var hasRestarted int64

// IsRestarted reports, once, that the Redis server run_id changed since a previous connect.
// Counters kept without persistence and all store-side subscriptions are gone after a restart.
func IsRestarted() bool {
	return atomic.SwapInt64(&hasRestarted, 0) == 1
}

// openConnection creates a new redis client connection from options.
func openConnection(options Options) *Connection {
	return openConnectionFromRedisOptions(&redis.Options{
		TLSConfig: options.TLSConfig,
		Addr:      options.Address,
		Password:  options.Password,
		DB:        options.DB,
	})
}

func openConnectionFromRedisOptions(opts *redis.Options) *Connection {
	opts.OnConnect = func(ctx context.Context, cn *redis.Conn) error {
		log.Debug("Redis connected")
		// INFO server carries run_id, which changes on restart.
		info, err := cn.Info(ctx, "server").Result()
		if err != nil {
			return err
		}
		trackRunID(parseRunID(info))
		return nil
	}

	client := redis.NewClient(opts)

	c := Connection{
		Client: client,
		Options: Options{
			Address:   opts.Addr,
			Password:  opts.Password,
			DB:        opts.DB,
			TLSConfig: opts.TLSConfig,
		},
	}
	return &c
}

// parseRunID extracts run_id from an INFO reply; lines are of the form key:value.
func parseRunID(info string) string {
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, "run_id:") {
			return strings.TrimPrefix(line, "run_id:")
		}
	}
	return ""
}

func trackRunID(runID string) {
	if runID == "" {
		return
	}
	var lastID string
	if val := lastSeenRunID.Load(); val != nil {
		lastID = val.(string)
	}
	if lastID != "" && runID != lastID {
		log.Warn("Redis server restarted", "old_run_id", lastID, "new_run_id", runID)
		atomic.StoreInt64(&hasRestarted, 1)
	}
	lastSeenRunID.Store(runID)
}

// closeConnection closes the given connection, if not already closed.
func closeConnection(c *Connection) error {
	if c == nil || c.Client == nil {
		return nil
	}
	log.Debug("Closing underlying Redis client")
	err := c.Client.Close()
	c.Client = nil
	return err
}
