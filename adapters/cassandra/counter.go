package cassandra

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "log/slog"

	"github.com/gocql/gocql"
	"github.com/sethvargo/go-retry"

	"github.com/sharedcode/dsync"
)

const permitsTable = "semaphore_permits"

var errContention = errors.New("permit counter changed concurrently")

// Store keeps permit counters in Cassandra. Every change is a conditional update on the
// previously read value, re-read and re-tried while other writers race on the same name.
type Store struct {
	connection *Connection
	publisher  dsync.Publisher
	// retryPublish runs the release notification; the increment is never re-run.
	retryPublish func(ctx context.Context, task func(ctx context.Context) error) error
}

// NewStore returns a Store on customConnection (the global connection when nil) that publishes
// release notifications through publisher.
func NewStore(customConnection *Connection, publisher dsync.Publisher) *Store {
	return &Store{
		connection:   customConnection,
		publisher:    publisher,
		retryPublish: dsync.RetryIfTransient,
	}
}

func (s *Store) getConnection() (*Connection, error) {
	if s.connection != nil {
		return s.connection, nil
	}
	return GetGlobalConnection()
}

// contentionBackoff spaces out compare-and-set retries; the caller's ctx bounds the total.
func contentionBackoff() retry.Backoff {
	b := retry.NewExponential(2 * time.Millisecond)
	b = retry.WithJitterPercent(50, b)
	return retry.WithCappedDuration(100*time.Millisecond, b)
}

// TryTake decrements the counter by permits if it holds at least that many.
func (s *Store) TryTake(ctx context.Context, name string, permits int64) (bool, error) {
	conn, err := s.getConnection()
	if err != nil {
		return false, err
	}
	taken := false
	err = retry.Do(ctx, contentionBackoff(), func(ctx context.Context) error {
		cur, found, err := s.read(ctx, conn, name, conn.ConsistencyBook.TryTake)
		if err != nil {
			return err
		}
		if !found || cur < permits {
			taken = false
			return nil
		}
		applied, err := s.compareAndSet(ctx, conn, name, cur, cur-permits, conn.ConsistencyBook.TryTake)
		if err != nil {
			return err
		}
		if !applied {
			log.Debug("try take contention, will retry", "name", name)
			return retry.RetryableError(errContention)
		}
		taken = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("cassandra try take failed for %s: %w", name, err)
	}
	return taken, nil
}

// Give increments the counter by permits, then publishes the unlock message.
// Once the increment is applied Give succeeds: a notification that still fails after retries
// is only logged, waiters pick the permits up on their next check.
func (s *Store) Give(ctx context.Context, name string, permits int64) error {
	conn, err := s.getConnection()
	if err != nil {
		return err
	}
	err = retry.Do(ctx, contentionBackoff(), func(ctx context.Context) error {
		cur, found, err := s.read(ctx, conn, name, conn.ConsistencyBook.Give)
		if err != nil {
			return err
		}
		var applied bool
		if found {
			applied, err = s.compareAndSet(ctx, conn, name, cur, cur+permits, conn.ConsistencyBook.Give)
		} else {
			applied, err = s.insertIfNotExists(ctx, conn, name, permits, conn.ConsistencyBook.Give)
		}
		if err != nil {
			return err
		}
		if !applied {
			log.Debug("give contention, will retry", "name", name)
			return retry.RetryableError(errContention)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cassandra give failed for %s: %w", name, err)
	}
	s.notify(ctx, name)
	return nil
}

// notify publishes the unlock message. Repeating it is harmless, an extra wake-up costs one check.
func (s *Store) notify(ctx context.Context, name string) {
	if s.publisher == nil {
		return
	}
	channel := dsync.ChannelName(name)
	if err := s.retryPublish(ctx, func(ctx context.Context) error {
		return s.publisher.Publish(ctx, channel, dsync.UnlockMessage)
	}); err != nil {
		log.Warn("release applied but notification failed", "name", name, "channel", channel, "error", err)
	}
}

// Read returns the counter value, zero when the row is missing.
func (s *Store) Read(ctx context.Context, name string) (int64, error) {
	conn, err := s.getConnection()
	if err != nil {
		return 0, err
	}
	v, _, err := s.read(ctx, conn, name, conn.ConsistencyBook.Read)
	if err != nil {
		return 0, fmt.Errorf("cassandra read failed for %s: %w", name, err)
	}
	return v, nil
}

func (s *Store) read(ctx context.Context, conn *Connection, name string, consistency gocql.Consistency) (int64, bool, error) {
	selectStatement := fmt.Sprintf("SELECT permits FROM %s.%s WHERE name = ?;", conn.Config.Keyspace, permitsTable)
	qry := conn.Session.Query(selectStatement, name).WithContext(ctx)
	if consistency > gocql.Any {
		qry.Consistency(consistency)
	}
	var v int64
	if err := qry.Scan(&v); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return v, true, nil
}

func (s *Store) compareAndSet(ctx context.Context, conn *Connection, name string, expected, value int64, consistency gocql.Consistency) (bool, error) {
	updateStatement := fmt.Sprintf("UPDATE %s.%s SET permits = ? WHERE name = ? IF permits = ?;", conn.Config.Keyspace, permitsTable)
	qry := conn.Session.Query(updateStatement, value, name, expected).WithContext(ctx).SerialConsistency(gocql.Serial)
	if consistency > gocql.Any {
		qry.Consistency(consistency)
	}
	var current int64
	return qry.ScanCAS(&current)
}

func (s *Store) insertIfNotExists(ctx context.Context, conn *Connection, name string, value int64, consistency gocql.Consistency) (bool, error) {
	insertStatement := fmt.Sprintf("INSERT INTO %s.%s (name, permits) VALUES (?, ?) IF NOT EXISTS;", conn.Config.Keyspace, permitsTable)
	qry := conn.Session.Query(insertStatement, name, value).WithContext(ctx).SerialConsistency(gocql.Serial)
	if consistency > gocql.Any {
		qry.Consistency(consistency)
	}
	return qry.MapScanCAS(make(map[string]interface{}))
}

var _ dsync.CounterStore = (*Store)(nil)
