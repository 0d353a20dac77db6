package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/sharedcode/dsync"
)

// tryTakeScript decrements KEYS[1] by ARGV[1] only when it holds at least that much.
var tryTakeScript = redis.NewScript(`
local value = redis.call('get', KEYS[1]);
if (value ~= false and tonumber(value) >= tonumber(ARGV[1])) then
    redis.call('decrby', KEYS[1], ARGV[1]);
    return 1;
end;
return 0;
`)

// giveScript increments KEYS[1] by ARGV[1], then publishes ARGV[2] on channel KEYS[2].
var giveScript = redis.NewScript(`
redis.call('incrby', KEYS[1], ARGV[1]);
redis.call('publish', KEYS[2], ARGV[2]);
return 1;
`)

// Store is the Redis backed dsync.CounterStore. It also implements dsync.Expirable and
// dsync.Publisher.
type Store struct {
	conn    *Connection
	isOwner bool
}

// NewStore returns a Store backed by the default shared Redis connection.
// The underlying connection must have been initialized via OpenConnection.
func NewStore() *Store {
	return &Store{}
}

// NewConnectionStore opens a new Redis connection with the given options and returns a Store owning it.
// Call Close on the returned store when no longer needed.
func NewConnectionStore(options Options) *Store {
	log.Info("NewConnectionStore called", "address", options.Address, "db", options.DB)
	return &Store{
		conn:    openConnection(options),
		isOwner: true,
	}
}

// Close closes the owned Redis connection, if any.
func (s *Store) Close() error {
	if !s.isOwner || s.conn == nil {
		return nil
	}
	log.Info("Closing Redis store connection")
	err := closeConnection(s.conn)
	s.conn = nil
	return err
}

func (s *Store) getConnection() (*Connection, error) {
	if s.isOwner {
		if s.conn == nil {
			return nil, fmt.Errorf("redis connection is not open; can't use store")
		}
		return s.conn, nil
	}
	return GetConnection()
}

// PubSub returns a notification channel multiplexer on the store's connection.
func (s *Store) PubSub() *PubSub {
	return newPubSub(s.getConnection)
}

// keyNotFound reports whether the provided error corresponds to a missing key in Redis.
func keyNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}

// Ping tests connectivity to Redis.
func (s *Store) Ping(ctx context.Context) error {
	conn, err := s.getConnection()
	if err != nil {
		return err
	}
	pong, err := conn.Client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	log.Debug("Redis Ping success", "response", pong)
	return nil
}

// TryTake runs the conditional decrement script.
func (s *Store) TryTake(ctx context.Context, name string, permits int64) (bool, error) {
	conn, err := s.getConnection()
	if err != nil {
		return false, err
	}
	raw, err := tryTakeScript.Run(ctx, conn.Client, []string{name}, permits).Result()
	if err != nil {
		return false, fmt.Errorf("redis try take failed for key %s: %w", name, err)
	}
	return BoolReplyDecoder{}.Decode(raw)
}

// Give runs the increment and publish script.
func (s *Store) Give(ctx context.Context, name string, permits int64) error {
	conn, err := s.getConnection()
	if err != nil {
		return err
	}
	err = giveScript.Run(ctx, conn.Client, []string{name, dsync.ChannelName(name)}, permits, dsync.UnlockMessage).Err()
	if err != nil {
		return fmt.Errorf("redis give failed for key %s: %w", name, err)
	}
	return nil
}

// Read returns the counter value, zero when the key is missing.
func (s *Store) Read(ctx context.Context, name string) (int64, error) {
	conn, err := s.getConnection()
	if err != nil {
		return 0, err
	}
	v, err := conn.Client.Get(ctx, name).Result()
	if keyNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get failed for key %s: %w", name, err)
	}
	return Int64ReplyDecoder{}.Decode(v)
}

// Publish posts message on channel.
func (s *Store) Publish(ctx context.Context, channel string, message string) error {
	conn, err := s.getConnection()
	if err != nil {
		return err
	}
	if err := conn.Client.Publish(ctx, channel, message).Err(); err != nil {
		return fmt.Errorf("redis publish failed for channel %s: %w", channel, err)
	}
	return nil
}

// Expire sets a time to live on the counter key.
func (s *Store) Expire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	conn, err := s.getConnection()
	if err != nil {
		return false, err
	}
	ok, err := conn.Client.PExpire(ctx, name, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis pexpire failed for key %s: %w", name, err)
	}
	return ok, nil
}

// ExpireAt sets an absolute expiry on the counter key.
func (s *Store) ExpireAt(ctx context.Context, name string, at time.Time) (bool, error) {
	conn, err := s.getConnection()
	if err != nil {
		return false, err
	}
	ok, err := conn.Client.PExpireAt(ctx, name, at).Result()
	if err != nil {
		return false, fmt.Errorf("redis pexpireat failed for key %s: %w", name, err)
	}
	return ok, nil
}

// ClearExpire removes the expiry of the counter key.
func (s *Store) ClearExpire(ctx context.Context, name string) (bool, error) {
	conn, err := s.getConnection()
	if err != nil {
		return false, err
	}
	ok, err := conn.Client.Persist(ctx, name).Result()
	if err != nil {
		return false, fmt.Errorf("redis persist failed for key %s: %w", name, err)
	}
	return ok, nil
}

// RemainTimeToLive returns the key's time to live; -1ms without expiry, -2ms when missing.
func (s *Store) RemainTimeToLive(ctx context.Context, name string) (time.Duration, error) {
	conn, err := s.getConnection()
	if err != nil {
		return 0, err
	}
	ttl, err := conn.Client.PTTL(ctx, name).Result()
	if err != nil {
		return 0, fmt.Errorf("redis pttl failed for key %s: %w", name, err)
	}
	// go-redis reports the -1/-2 markers unscaled.
	if ttl < 0 {
		ttl *= time.Millisecond
	}
	return ttl, nil
}

var (
	_ dsync.CounterStore = (*Store)(nil)
	_ dsync.Expirable    = (*Store)(nil)
	_ dsync.Publisher    = (*Store)(nil)
)
