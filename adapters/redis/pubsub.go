package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/sharedcode/dsync"
)

// DefaultSubscribeTimeout bounds the wait for a SUBSCRIBE acknowledgement.
const DefaultSubscribeTimeout = 10 * time.Second

type channelState struct {
	listeners map[uint64]dsync.MessageListener
	// want is the acknowledgement count at which this state's SUBSCRIBE is confirmed.
	want      uint64
	confirmed chan struct{}
	isActive  bool
}

// PubSub multiplexes every subscribed channel of the process over one Redis Pub/Sub connection.
// Listeners of the same channel share one store-side subscription: the first Subscribe issues
// SUBSCRIBE, the last Unsubscribe issues UNSUBSCRIBE.
type PubSub struct {
	getConnection func() (*Connection, error)

	// SubscribeTimeout bounds the wait for a SUBSCRIBE acknowledgement.
	SubscribeTimeout time.Duration

	mu       sync.Mutex
	ps       *redis.PubSub
	nextID   uint64
	channels map[string]*channelState
	// Per channel SUBSCRIBE commands sent and acknowledgements received.
	sent  map[string]uint64
	acked map[string]uint64
}

// NewPubSub returns a PubSub on the default shared Redis connection.
func NewPubSub() *PubSub {
	return newPubSub(GetConnection)
}

func newPubSub(getConnection func() (*Connection, error)) *PubSub {
	return &PubSub{
		getConnection:    getConnection,
		SubscribeTimeout: DefaultSubscribeTimeout,
		channels:         make(map[string]*channelState),
		sent:             make(map[string]uint64),
		acked:            make(map[string]uint64),
	}
}

type subscription struct {
	owner   *PubSub
	channel string
	id      uint64
	once    sync.Once
}

func (s *subscription) Channel() string {
	return s.channel
}

func (s *subscription) Unsubscribe(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		err = s.owner.remove(ctx, s.channel, s.id)
	})
	return err
}

// Subscribe registers listener on channel and returns once Redis acknowledged the subscription.
func (p *PubSub) Subscribe(ctx context.Context, channel string, listener dsync.MessageListener) (dsync.Subscription, error) {
	if p.SubscribeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.SubscribeTimeout)
		defer cancel()
	}

	p.mu.Lock()
	if err := p.ensurePubSub(ctx); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	st, ok := p.channels[channel]
	if !ok {
		if err := p.ps.Subscribe(ctx, channel); err != nil {
			p.mu.Unlock()
			return nil, fmt.Errorf("redis subscribe failed for channel %s: %w", channel, err)
		}
		// Re-subscriptions after reconnects may have pushed acks past the sent count.
		if p.acked[channel] > p.sent[channel] {
			p.sent[channel] = p.acked[channel]
		}
		p.sent[channel]++
		st = &channelState{
			listeners: make(map[uint64]dsync.MessageListener),
			want:      p.sent[channel],
			confirmed: make(chan struct{}),
		}
		p.channels[channel] = st
		log.Debug("Redis channel subscribe sent", "channel", channel)
	}
	p.nextID++
	id := p.nextID
	st.listeners[id] = listener
	confirmed := st.confirmed
	p.mu.Unlock()

	sub := &subscription{
		owner:   p,
		channel: channel,
		id:      id,
	}
	select {
	case <-confirmed:
		return sub, nil
	case <-ctx.Done():
		_ = sub.Unsubscribe(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("redis subscribe not acknowledged for channel %s: %w", channel, ctx.Err())
	}
}

// Close drops every subscription and the Pub/Sub connection.
func (p *PubSub) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ps == nil {
		return nil
	}
	err := p.ps.Close()
	p.ps = nil
	p.channels = make(map[string]*channelState)
	p.sent = make(map[string]uint64)
	p.acked = make(map[string]uint64)
	return err
}

// Channels returns the number of channels subscribed on Redis.
func (p *PubSub) Channels() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.channels)
}

// ensurePubSub lazily opens the shared Pub/Sub connection. Caller holds p.mu.
func (p *PubSub) ensurePubSub(ctx context.Context) error {
	if p.ps != nil {
		return nil
	}
	conn, err := p.getConnection()
	if err != nil {
		return err
	}
	ps := conn.Client.Subscribe(context.WithoutCancel(ctx))
	p.ps = ps
	go p.dispatch(ps.ChannelWithSubscriptions())
	log.Info("Redis Pub/Sub connection opened")
	return nil
}

func (p *PubSub) remove(ctx context.Context, channel string, id uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.channels[channel]
	if !ok {
		return nil
	}
	delete(st.listeners, id)
	if len(st.listeners) > 0 {
		return nil
	}
	delete(p.channels, channel)
	if p.ps == nil {
		return nil
	}
	log.Debug("Redis channel unsubscribe sent", "channel", channel)
	if err := p.ps.Unsubscribe(ctx, channel); err != nil {
		return fmt.Errorf("redis unsubscribe failed for channel %s: %w", channel, err)
	}
	return nil
}

func (p *PubSub) dispatch(msgs <-chan interface{}) {
	for m := range msgs {
		switch v := m.(type) {
		case *redis.Subscription:
			if v.Kind == "subscribe" {
				p.onSubscribed(v.Channel)
			}
		case *redis.Message:
			p.deliver(v.Channel, v.Payload)
		}
	}
	log.Debug("Redis Pub/Sub dispatch loop ended")
}

func (p *PubSub) onSubscribed(channel string) {
	p.mu.Lock()
	p.acked[channel]++
	st, ok := p.channels[channel]
	if !ok {
		if p.acked[channel] >= p.sent[channel] {
			delete(p.acked, channel)
			delete(p.sent, channel)
		}
		p.mu.Unlock()
		return
	}
	if !st.isActive {
		if p.acked[channel] >= st.want {
			st.isActive = true
			close(st.confirmed)
		}
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	// An extra acknowledgement on an active channel means go-redis re-subscribed after a
	// reconnect; releases published meanwhile were lost, so make every waiter re-check.
	if IsRestarted() {
		log.Warn("Redis server restarted, counters kept without persistence are lost", "channel", channel)
	}
	log.Warn("Redis channel re-subscribed, waking listeners", "channel", channel)
	p.deliver(channel, dsync.UnlockMessage)
}

func (p *PubSub) deliver(channel, payload string) {
	p.mu.Lock()
	st, ok := p.channels[channel]
	if !ok {
		p.mu.Unlock()
		return
	}
	listeners := make([]dsync.MessageListener, 0, len(st.listeners))
	for _, l := range st.listeners {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()

	for _, l := range listeners {
		l(channel, payload)
	}
}

var _ dsync.PubSub = (*PubSub)(nil)
