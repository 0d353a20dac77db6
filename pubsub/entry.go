package pubsub

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sharedcode/dsync"
)

// State is the lifecycle state of an entry's subscription.
type State int32

const (
	Unsubscribed State = iota
	Subscribing
	Subscribed
	Unsubscribing
)

func (s State) String() string {
	switch s {
	case Unsubscribed:
		return "unsubscribed"
	case Subscribing:
		return "subscribing"
	case Subscribed:
		return "subscribed"
	case Unsubscribing:
		return "unsubscribing"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Entry is the process-local wait handle shared by every goroutine of this process waiting
// on the same semaphore. It owns one channel subscription and one local wake-up counter.
type Entry struct {
	name    string
	channel string

	mu      sync.Mutex
	refs    int
	removed bool

	state  atomic.Int32
	wakeup *wakeup

	// ready is closed once the subscribe attempt finished; sub and err are set before that.
	ready chan struct{}
	sub   dsync.Subscription
	err   error
}

func newEntry(name, channel string) *Entry {
	e := &Entry{
		name:    name,
		channel: channel,
		refs:    1,
		wakeup:  newWakeup(),
		ready:   make(chan struct{}),
	}
	e.state.Store(int32(Subscribing))
	return e
}

// Name returns the registry key of the entry.
func (e *Entry) Name() string {
	return e.name
}

// Channel returns the notification channel the entry listens on.
func (e *Entry) Channel() string {
	return e.channel
}

// RefCount returns the number of attached waiters.
func (e *Entry) RefCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.refs
}

// State returns the subscription lifecycle state.
func (e *Entry) State() State {
	return State(e.state.Load())
}

// Ready is closed when the subscribe attempt completed, successfully or not.
func (e *Entry) Ready() <-chan struct{} {
	return e.ready
}

// Err reports the subscribe failure, if any. Only meaningful after Ready is closed.
func (e *Entry) Err() error {
	select {
	case <-e.ready:
		return e.err
	default:
		return nil
	}
}

// Await blocks until the subscription is confirmed, failed, or ctx is done.
func (e *Entry) Await(ctx context.Context) error {
	select {
	case <-e.ready:
		return e.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AwaitTimeout is Await bounded by d. It returns false, nil when d elapsed first.
func (e *Entry) AwaitTimeout(ctx context.Context, d time.Duration) (bool, error) {
	select {
	case <-e.ready:
		return e.err == nil, e.err
	default:
	}
	if d <= 0 {
		return false, nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-e.ready:
		return e.err == nil, e.err
	case <-t.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Wait blocks until a notification wake-up is available or ctx is done.
func (e *Entry) Wait(ctx context.Context) error {
	return e.wakeup.wait(ctx)
}

// WaitTimeout blocks for a wake-up for at most d. Returns false, nil on timeout.
func (e *Entry) WaitTimeout(ctx context.Context, d time.Duration) (bool, error) {
	return e.wakeup.waitTimeout(ctx, d)
}

func (e *Entry) onMessage(channel, message string) {
	if message != dsync.UnlockMessage {
		log.Warn("ignoring unexpected notification", "channel", channel, "message", message)
		return
	}
	e.wakeup.signal()
}

// retain adds a reference unless the entry is already being torn down.
func (e *Entry) retain() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return false
	}
	e.refs++
	return true
}

// release drops a reference and reports whether it was the last one.
func (e *Entry) release() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.refs <= 0 {
		return false
	}
	e.refs--
	if e.refs == 0 {
		e.removed = true
		return true
	}
	return false
}
