package semaphore

import (
	log "log/slog"

	"github.com/sharedcode/dsync"
	"github.com/sharedcode/dsync/pubsub"
)

// Client binds a process identity, a waiter registry and a backend. Create one per process
// (per backend) and derive semaphores from it; semaphores of one Client share subscriptions.
type Client struct {
	id       dsync.UUID
	store    dsync.CounterStore
	registry *pubsub.Registry
}

// Option customizes a Client.
type Option func(*Client)

// WithID overrides the randomly generated process identity.
func WithID(id dsync.UUID) Option {
	return func(c *Client) {
		c.id = id
	}
}

// NewClient returns a Client using store for permits and ps for wake-up notifications.
func NewClient(store dsync.CounterStore, ps dsync.PubSub, opts ...Option) *Client {
	c := &Client{
		store:    store,
		registry: pubsub.NewRegistry(ps),
	}
	for _, o := range opts {
		o(c)
	}
	if c.id.IsNil() {
		c.id = dsync.NewUUID()
	}
	log.Debug("semaphore client created", "id", c.id.String())
	return c
}

// ID returns the process identity of the client.
func (c *Client) ID() dsync.UUID {
	return c.id
}

// Registry returns the waiter registry shared by the client's semaphores.
func (c *Client) Registry() *pubsub.Registry {
	return c.registry
}

// NewSemaphore returns the semaphore called name. It is cheap, no remote call is made.
func (c *Client) NewSemaphore(name string) *Semaphore {
	return &Semaphore{
		name:   name,
		client: c,
	}
}

// Waiters returns the number of goroutines of this client currently waiting on the named semaphore.
func (c *Client) Waiters(name string) int {
	e, ok := c.registry.Get(dsync.EntryName(c.id, name))
	if !ok {
		return 0
	}
	return e.RefCount()
}
