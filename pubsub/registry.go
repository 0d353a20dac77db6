// Package pubsub implements the process-local waiter registry: one shared, reference counted
// subscription per (process, semaphore) pair so many goroutines waiting on the same semaphore
// cost one channel subscription and share one local wake-up counter.
package pubsub

import (
	"context"
	log "log/slog"
	"sync"

	"github.com/sharedcode/dsync"
)

// Registry maps entry names to live entries. Creation and teardown are synchronized per entry,
// unrelated names never contend on a common lock.
type Registry struct {
	ps      dsync.PubSub
	entries sync.Map
}

// NewRegistry returns a Registry subscribing through ps.
func NewRegistry(ps dsync.PubSub) *Registry {
	return &Registry{
		ps: ps,
	}
}

// Attach returns the live entry for entryName, taking a reference on it. The first Attach for a
// name creates the entry and starts subscribing to channel; use Entry.Await to wait for it.
// Every Attach must be paired with exactly one Detach.
func (r *Registry) Attach(ctx context.Context, entryName, channel string) *Entry {
	for {
		if v, ok := r.entries.Load(entryName); ok {
			e := v.(*Entry)
			if e.retain() {
				return e
			}
			// Torn down concurrently, make room for a fresh one.
			r.entries.CompareAndDelete(entryName, e)
			continue
		}
		e := newEntry(entryName, channel)
		v, loaded := r.entries.LoadOrStore(entryName, e)
		if loaded {
			existing := v.(*Entry)
			if existing.retain() {
				return existing
			}
			r.entries.CompareAndDelete(entryName, existing)
			continue
		}
		log.Debug("waiter entry created", "entry", entryName, "channel", channel)
		// The subscription outlives the creating caller, other waiters may attach to it.
		go r.subscribe(context.WithoutCancel(ctx), e)
		return e
	}
}

// Detach drops a reference taken by Attach. The last Detach removes the entry and unsubscribes,
// once the in-flight subscribe attempt (if any) has finished.
func (r *Registry) Detach(ctx context.Context, e *Entry) {
	if e == nil || !e.release() {
		return
	}
	r.entries.CompareAndDelete(e.name, e)
	ctx = context.WithoutCancel(ctx)
	select {
	case <-e.ready:
		r.unsubscribe(ctx, e)
	default:
		go func() {
			<-e.ready
			r.unsubscribe(ctx, e)
		}()
	}
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	n := 0
	r.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Get returns the live entry for entryName without taking a reference.
func (r *Registry) Get(entryName string) (*Entry, bool) {
	v, ok := r.entries.Load(entryName)
	if !ok {
		return nil, false
	}
	return v.(*Entry), true
}

func (r *Registry) subscribe(ctx context.Context, e *Entry) {
	defer close(e.ready)
	sub, err := r.ps.Subscribe(ctx, e.channel, e.onMessage)
	if err != nil {
		log.Warn("subscribe failed", "entry", e.name, "channel", e.channel, "error", err)
		e.err = dsync.Error{
			Code:     dsync.SubscriptionFailure,
			Err:      err,
			UserData: e.channel,
		}
		e.state.Store(int32(Unsubscribed))
		// Later waiters get a fresh entry and a fresh attempt.
		r.entries.CompareAndDelete(e.name, e)
		return
	}
	e.sub = sub
	e.state.Store(int32(Subscribed))
	log.Debug("waiter entry subscribed", "entry", e.name, "channel", e.channel)
}

func (r *Registry) unsubscribe(ctx context.Context, e *Entry) {
	if e.sub == nil {
		return
	}
	e.state.Store(int32(Unsubscribing))
	if err := e.sub.Unsubscribe(ctx); err != nil {
		log.Warn("unsubscribe failed", "entry", e.name, "channel", e.channel, "error", err)
	}
	e.state.Store(int32(Unsubscribed))
	log.Debug("waiter entry removed", "entry", e.name, "channel", e.channel)
}
