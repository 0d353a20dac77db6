package inmemory

import (
	"context"
	"sync"

	"github.com/sharedcode/dsync"
)

// Broker is an in-process publish/subscribe hub. Delivery is synchronous and fire-and-forget:
// listeners registered after a Publish never see that message.
type Broker struct {
	mu       sync.RWMutex
	nextID   uint64
	channels map[string]map[uint64]dsync.MessageListener
}

// NewBroker returns an empty Broker.
func NewBroker() *Broker {
	return &Broker{
		channels: make(map[string]map[uint64]dsync.MessageListener),
	}
}

type subscription struct {
	broker  *Broker
	channel string
	id      uint64
	once    sync.Once
}

func (s *subscription) Channel() string {
	return s.channel
}

func (s *subscription) Unsubscribe(ctx context.Context) error {
	s.once.Do(func() {
		s.broker.remove(s.channel, s.id)
	})
	return nil
}

// Subscribe registers listener on channel. The subscription is active on return.
func (b *Broker) Subscribe(ctx context.Context, channel string, listener dsync.MessageListener) (dsync.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	listeners, ok := b.channels[channel]
	if !ok {
		listeners = make(map[uint64]dsync.MessageListener)
		b.channels[channel] = listeners
	}
	listeners[b.nextID] = listener
	return &subscription{
		broker:  b,
		channel: channel,
		id:      b.nextID,
	}, nil
}

// Publish delivers message to every listener currently subscribed to channel.
func (b *Broker) Publish(ctx context.Context, channel string, message string) error {
	b.mu.RLock()
	listeners := make([]dsync.MessageListener, 0, len(b.channels[channel]))
	for _, l := range b.channels[channel] {
		listeners = append(listeners, l)
	}
	b.mu.RUnlock()

	for _, l := range listeners {
		l(channel, message)
	}
	return nil
}

// Subscribers returns the number of listeners on channel.
func (b *Broker) Subscribers(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels[channel])
}

func (b *Broker) remove(channel string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	listeners, ok := b.channels[channel]
	if !ok {
		return
	}
	delete(listeners, id)
	if len(listeners) == 0 {
		delete(b.channels, channel)
	}
}
