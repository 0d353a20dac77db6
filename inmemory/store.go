// Package inmemory provides a single-process CounterStore and PubSub pair, used in Standalone
// deployments and as the backend of unit tests.
package inmemory

import (
	"context"
	"time"

	"github.com/sharedcode/dsync"
)

// Store keeps semaphore counters in process memory and notifies through its own Broker.
type Store struct {
	counters *shardedMap
	broker   *Broker
}

// NewStore returns an empty Store publishing releases on broker. A nil broker gets a private one.
func NewStore(broker *Broker) *Store {
	if broker == nil {
		broker = NewBroker()
	}
	return &Store{
		counters: newShardedMap(),
		broker:   broker,
	}
}

// Broker returns the notification broker the store publishes to.
func (s *Store) Broker() *Broker {
	return s.broker
}

// TryTake decrements the counter by permits when it holds at least that many.
func (s *Store) TryTake(ctx context.Context, name string, permits int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	taken := false
	s.counters.update(name, dsync.Now(), func(c counter, found bool) (counter, bool) {
		if found && c.value >= permits {
			c.value -= permits
			taken = true
		}
		return c, found
	})
	return taken, nil
}

// Give increments the counter by permits, then publishes the unlock message.
func (s *Store) Give(ctx context.Context, name string, permits int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.counters.update(name, dsync.Now(), func(c counter, _ bool) (counter, bool) {
		c.value += permits
		return c, true
	})
	return s.broker.Publish(ctx, dsync.ChannelName(name), dsync.UnlockMessage)
}

// Read returns the counter value, zero when missing.
func (s *Store) Read(ctx context.Context, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var v int64
	s.counters.update(name, dsync.Now(), func(c counter, found bool) (counter, bool) {
		v = c.value
		return c, found
	})
	return v, nil
}

// Expire sets a time to live on the counter. Returns false when the counter does not exist.
func (s *Store) Expire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	return s.ExpireAt(ctx, name, dsync.Now().Add(ttl))
}

// ExpireAt sets an absolute expiry on the counter. Returns false when the counter does not exist.
func (s *Store) ExpireAt(ctx context.Context, name string, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok := false
	s.counters.update(name, dsync.Now(), func(c counter, found bool) (counter, bool) {
		if found {
			c.expiration = at
			ok = true
		}
		return c, found
	})
	return ok, nil
}

// ClearExpire removes the expiry. Returns false when there was none.
func (s *Store) ClearExpire(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok := false
	s.counters.update(name, dsync.Now(), func(c counter, found bool) (counter, bool) {
		if found && !c.expiration.IsZero() {
			c.expiration = time.Time{}
			ok = true
		}
		return c, found
	})
	return ok, nil
}

// RemainTimeToLive mirrors Redis PTTL: -2ms when missing, -1ms when there is no expiry.
func (s *Store) RemainTimeToLive(ctx context.Context, name string) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	now := dsync.Now()
	ttl := -2 * time.Millisecond
	s.counters.update(name, now, func(c counter, found bool) (counter, bool) {
		switch {
		case !found:
		case c.expiration.IsZero():
			ttl = -1 * time.Millisecond
		default:
			ttl = c.expiration.Sub(now)
		}
		return c, found
	})
	return ttl, nil
}
