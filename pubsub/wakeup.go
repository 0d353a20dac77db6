package pubsub

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// wakeupCapacity bounds the number of undelivered wake-ups an entry can hold.
const wakeupCapacity = int64(1) << 62

// wakeup is a local counting semaphore: every signal adds one unit and every wait consumes one,
// so K signals wake at most K waiters, one each.
//
// It is a semaphore.Weighted that starts fully acquired; signal releases a unit and wait acquires it.
type wakeup struct {
	w *semaphore.Weighted
}

func newWakeup() *wakeup {
	w := semaphore.NewWeighted(wakeupCapacity)
	// Can't block, nothing else holds the semaphore yet.
	_ = w.Acquire(context.Background(), wakeupCapacity)
	return &wakeup{w: w}
}

func (u *wakeup) signal() {
	u.w.Release(1)
}

// wait blocks until a unit is available or ctx is done.
func (u *wakeup) wait(ctx context.Context) error {
	return u.w.Acquire(ctx, 1)
}

// waitTimeout blocks for at most d. It returns true when a unit was consumed, false on timeout,
// and an error only when the parent ctx itself ended.
func (u *wakeup) waitTimeout(ctx context.Context, d time.Duration) (bool, error) {
	if d <= 0 {
		return u.w.TryAcquire(1), nil
	}
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	if err := u.w.Acquire(tctx, 1); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}
	return true, nil
}

// tryWait consumes a unit if one is available without blocking.
func (u *wakeup) tryWait() bool {
	return u.w.TryAcquire(1)
}
