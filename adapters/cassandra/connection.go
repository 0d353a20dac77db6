// Package cassandra provides a Cassandra-backed dsync.CounterStore. Counter updates are
// lightweight transactions (compare-and-set), wake-up notifications go through a separate
// dsync.Publisher since Cassandra has no publish/subscribe.
package cassandra

import (
	"fmt"
	"sync"
	"time"

	log "log/slog"

	"github.com/gocql/gocql"

	"github.com/sharedcode/dsync"
)

// Config contains configuration for connecting to a Cassandra cluster and the dsync keyspace.
type Config struct {
	// ClusterHosts lists contact points for the Cassandra cluster.
	ClusterHosts []string
	// Keyspace is the keyspace holding the permits table.
	Keyspace string
	// Consistency is the default consistency level for queries.
	Consistency gocql.Consistency
	// ConnectionTimeout is the session connection timeout.
	ConnectionTimeout time.Duration
	// Authenticator is used when the cluster requires authentication.
	Authenticator gocql.Authenticator
	// ReplicationClause defines the keyspace replication (e.g., SimpleStrategy).
	ReplicationClause string

	// ConsistencyBook allows overriding per-API consistency levels.
	ConsistencyBook ConsistencyBook
}

// ConsistencyBook enumerates per-API consistency levels used by this package.
type ConsistencyBook struct {
	TryTake gocql.Consistency
	Give    gocql.Consistency
	Read    gocql.Consistency
}

// ConfigFromOptions converts the deployment level Cassandra configuration.
func ConfigFromOptions(cfg dsync.CassandraConfig) Config {
	return Config{
		ClusterHosts:      cfg.ClusterHosts,
		Keyspace:          cfg.Keyspace,
		ConnectionTimeout: cfg.ConnectionTimeout,
	}
}

// Connection wraps a Cassandra session and its configuration.
type Connection struct {
	Session *gocql.Session
	Config
}

const defaultKeyspace = "dsync"

var session *gocql.Session
var config Config
var refCount int
var mux sync.Mutex

// IsConnectionInstantiated reports whether a global Connection has been created.
func IsConnectionInstantiated() bool {
	mux.Lock()
	defer mux.Unlock()
	return session != nil
}

// OpenConnection returns the existing global Connection or opens a new one using the provided config.
func OpenConnection(cfg Config) (*Connection, error) {
	mux.Lock()
	defer mux.Unlock()

	cfg = withDefaults(cfg)
	if session == nil {
		log.Info("Opening Cassandra connection", "hosts", cfg.ClusterHosts, "keyspace", cfg.Keyspace)
		cluster := gocql.NewCluster(cfg.ClusterHosts...)
		cluster.Consistency = cfg.Consistency
		if cfg.ConnectionTimeout > 0 {
			cluster.ConnectTimeout = cfg.ConnectionTimeout
		}
		if cfg.Authenticator != nil {
			cluster.Authenticator = cfg.Authenticator
			// Don't keep the credentials hanging around.
			cfg.Authenticator = nil
		}
		s, err := cluster.CreateSession()
		if err != nil {
			return nil, fmt.Errorf("failed to create cassandra session: %w", err)
		}
		session = s
		config = cfg
	}

	if err := initKeyspace(session, cfg); err != nil {
		return nil, err
	}

	refCount++
	return &Connection{
		Session: session,
		Config:  cfg,
	}, nil
}

// GetGlobalConnection returns the global connection using the global configuration.
func GetGlobalConnection() (*Connection, error) {
	mux.Lock()
	defer mux.Unlock()

	if session == nil {
		return nil, fmt.Errorf("cassandra connection is closed; call OpenConnection(config) to open it")
	}

	return &Connection{
		Session: session,
		Config:  config,
	}, nil
}

func withDefaults(cfg Config) Config {
	if cfg.Keyspace == "" {
		cfg.Keyspace = defaultKeyspace
	}
	if cfg.Consistency == gocql.Any {
		// Defaults to LocalQuorum consistency. You should set it to an appropriate level.
		cfg.Consistency = gocql.LocalQuorum
	}
	if cfg.ReplicationClause == "" {
		// Specify an appropriate replication feature.
		cfg.ReplicationClause = "{'class':'SimpleStrategy', 'replication_factor':1}"
	}
	return cfg
}

func initKeyspace(s *gocql.Session, config Config) error {
	if err := s.Query(fmt.Sprintf("CREATE KEYSPACE IF NOT EXISTS %s WITH REPLICATION = %s;", config.Keyspace, config.ReplicationClause)).Exec(); err != nil {
		return fmt.Errorf("failed to create keyspace %s: %w", config.Keyspace, err)
	}
	if err := s.Query(fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s (name text PRIMARY KEY, permits bigint);", config.Keyspace, permitsTable)).Exec(); err != nil {
		return fmt.Errorf("failed to create %s table: %w", permitsTable, err)
	}
	return nil
}

// CloseConnection closes and clears the global connection, if it exists.
func CloseConnection() {
	mux.Lock()
	defer mux.Unlock()
	if session != nil {
		log.Info("Closing Cassandra connection")
		session.Close()
		session = nil
		refCount = 0
	}
}

// Close releases the connection; the shared session closes with the last one.
func (c *Connection) Close() {
	mux.Lock()
	defer mux.Unlock()
	refCount--
	if refCount <= 0 && session != nil {
		log.Info("Closing Cassandra connection")
		session.Close()
		session = nil
		refCount = 0
	}
}
