// Package semaphore implements a distributed counting semaphore. Permits live in a remote
// counter shared by every process using the same name; blocked callers wait on a local
// wake-up counter fed by release notifications instead of polling the store.
//
// Acquisition is not fair: any waiter, in any process, may win a given release.
package semaphore

import (
	"context"
	"fmt"
	log "log/slog"
	"time"

	"github.com/sharedcode/dsync"
	"github.com/sharedcode/dsync/pubsub"
)

// Semaphore is a named distributed counting semaphore. It holds no local permit state and is
// safe for concurrent use.
type Semaphore struct {
	name   string
	client *Client
}

// Name returns the semaphore name, also the counter key in the store.
func (s *Semaphore) Name() string {
	return s.name
}

func (s *Semaphore) entryName() string {
	return dsync.EntryName(s.client.id, s.name)
}

func (s *Semaphore) channelName() string {
	return dsync.ChannelName(s.name)
}

// Acquire blocks until permits are taken or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context, permits int64) error {
	if err := dsync.ValidatePermits(permits); err != nil {
		return err
	}
	ok, err := s.tryTake(ctx, permits)
	if err != nil || ok {
		return err
	}

	e := s.attach(ctx)
	defer s.client.registry.Detach(ctx, e)

	if err := e.Await(ctx); err != nil {
		return s.waitError(err)
	}
	for {
		ok, err := s.tryTake(ctx, permits)
		if err != nil || ok {
			return err
		}
		if err := e.Wait(ctx); err != nil {
			return s.waitError(err)
		}
	}
}

// AcquireOne is Acquire(ctx, 1).
func (s *Semaphore) AcquireOne(ctx context.Context) error {
	return s.Acquire(ctx, 1)
}

// TryAcquire makes a single attempt to take permits, it never blocks nor subscribes.
func (s *Semaphore) TryAcquire(ctx context.Context, permits int64) (bool, error) {
	if err := dsync.ValidatePermits(permits); err != nil {
		return false, err
	}
	return s.tryTake(ctx, permits)
}

// TryAcquireOne is TryAcquire(ctx, 1).
func (s *Semaphore) TryAcquireOne(ctx context.Context) (bool, error) {
	return s.TryAcquire(ctx, 1)
}

// TryAcquireTimeout waits up to timeout for permits. Running out of time is not an error,
// it returns false. Errors are store failures or the end of ctx.
func (s *Semaphore) TryAcquireTimeout(ctx context.Context, permits int64, timeout time.Duration) (bool, error) {
	if err := dsync.ValidatePermits(permits); err != nil {
		return false, err
	}
	ok, err := s.tryTake(ctx, permits)
	if err != nil || ok {
		return ok, err
	}

	remaining := timeout
	start := dsync.Now()
	e := s.attach(ctx)
	defer s.client.registry.Detach(ctx, e)

	subscribed, err := e.AwaitTimeout(ctx, remaining)
	if err != nil {
		return false, s.waitError(err)
	}
	if !subscribed {
		log.Debug("subscription not confirmed in time", "semaphore", s.name, "timeout", timeout)
		return false, nil
	}
	remaining -= dsync.Since(start)

	for {
		ok, err := s.tryTake(ctx, permits)
		if err != nil || ok {
			return ok, err
		}
		if remaining <= 0 {
			return false, nil
		}
		current := dsync.Now()
		if _, err := e.WaitTimeout(ctx, remaining); err != nil {
			return false, s.waitError(err)
		}
		remaining -= dsync.Since(current)
	}
}

// TryAcquireOneTimeout is TryAcquireTimeout(ctx, 1, timeout).
func (s *Semaphore) TryAcquireOneTimeout(ctx context.Context, timeout time.Duration) (bool, error) {
	return s.TryAcquireTimeout(ctx, 1, timeout)
}

// Release returns permits to the semaphore and wakes waiters. It does not check that the
// caller holds them.
func (s *Semaphore) Release(ctx context.Context, permits int64) error {
	if err := dsync.ValidatePermits(permits); err != nil {
		return err
	}
	if err := s.client.store.Give(ctx, s.name, permits); err != nil {
		return s.storeError("release", err)
	}
	return nil
}

// ReleaseOne is Release(ctx, 1).
func (s *Semaphore) ReleaseOne(ctx context.Context) error {
	return s.Release(ctx, 1)
}

// AvailablePermits returns a snapshot of the counter, zero when it does not exist.
func (s *Semaphore) AvailablePermits(ctx context.Context) (int64, error) {
	v, err := s.client.store.Read(ctx, s.name)
	if err != nil {
		return 0, s.storeError("available permits", err)
	}
	return v, nil
}

// Expire sets a time to live on the semaphore's counter.
func (s *Semaphore) Expire(ctx context.Context, ttl time.Duration) (bool, error) {
	x, err := s.expirable()
	if err != nil {
		return false, err
	}
	ok, err := x.Expire(ctx, s.name, ttl)
	return ok, s.storeError("expire", err)
}

// ExpireAt sets an absolute expiry on the semaphore's counter.
func (s *Semaphore) ExpireAt(ctx context.Context, at time.Time) (bool, error) {
	x, err := s.expirable()
	if err != nil {
		return false, err
	}
	ok, err := x.ExpireAt(ctx, s.name, at)
	return ok, s.storeError("expire at", err)
}

// ClearExpire removes the expiry of the semaphore's counter.
func (s *Semaphore) ClearExpire(ctx context.Context) (bool, error) {
	x, err := s.expirable()
	if err != nil {
		return false, err
	}
	ok, err := x.ClearExpire(ctx, s.name)
	return ok, s.storeError("clear expire", err)
}

// RemainTimeToLive returns the counter's time to live, -1ms without expiry, -2ms when missing.
func (s *Semaphore) RemainTimeToLive(ctx context.Context) (time.Duration, error) {
	x, err := s.expirable()
	if err != nil {
		return 0, err
	}
	ttl, err := x.RemainTimeToLive(ctx, s.name)
	return ttl, s.storeError("remain time to live", err)
}

func (s *Semaphore) expirable() (dsync.Expirable, error) {
	x, ok := s.client.store.(dsync.Expirable)
	if !ok {
		return nil, dsync.Error{
			Code:     dsync.Unsupported,
			Err:      fmt.Errorf("store %T does not support expiry", s.client.store),
			UserData: s.name,
		}
	}
	return x, nil
}

func (s *Semaphore) attach(ctx context.Context) *pubsub.Entry {
	return s.client.registry.Attach(ctx, s.entryName(), s.channelName())
}

func (s *Semaphore) tryTake(ctx context.Context, permits int64) (bool, error) {
	ok, err := s.client.store.TryTake(ctx, s.name, permits)
	if err != nil {
		return false, s.storeError("try acquire", err)
	}
	return ok, nil
}

func (s *Semaphore) storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if dsync.CodeOf(err) != dsync.Unknown {
		return err
	}
	return dsync.Error{
		Code:     dsync.StoreCommunicationFailure,
		Err:      fmt.Errorf("semaphore %s %s failed: %w", s.name, op, err),
		UserData: s.name,
	}
}

// waitError maps the end of a wait to a Cancelled error, leaving subscription failures as is.
func (s *Semaphore) waitError(err error) error {
	if dsync.CodeOf(err) != dsync.Unknown {
		return err
	}
	return dsync.Error{
		Code:     dsync.Cancelled,
		Err:      err,
		UserData: s.name,
	}
}
