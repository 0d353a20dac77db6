package dsync

import (
	"context"
	"time"
)

// CounterStore is the atomic permit counter kept in the shared remote store.
// Only TryTake and Give may change a counter's value.
type CounterStore interface {
	// TryTake decrements the counter by permits if, and only if, it holds at least that many.
	// A missing counter reads as zero. Returns false, with no change, otherwise.
	TryTake(ctx context.Context, name string, permits int64) (bool, error)
	// Give increments the counter by permits and then publishes UnlockMessage on ChannelName(name).
	// The increment is visible to TryTake before the message is observable by subscribers.
	Give(ctx context.Context, name string, permits int64) error
	// Read returns the counter value, zero when missing. Not consistent with concurrent takes.
	Read(ctx context.Context, name string) (int64, error)
}

// Expirable is implemented by stores that can put a time-to-live on a counter key.
// It only touches key expiry metadata, never the counter value.
type Expirable interface {
	Expire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	ExpireAt(ctx context.Context, name string, at time.Time) (bool, error)
	ClearExpire(ctx context.Context, name string) (bool, error)
	// RemainTimeToLive returns -1 when the key has no expiry and -2 when it does not exist,
	// both expressed in milliseconds.
	RemainTimeToLive(ctx context.Context, name string) (time.Duration, error)
}

// MessageListener receives messages delivered on a subscribed channel.
type MessageListener func(channel string, message string)

// Subscription is a live, confirmed listener registration on a channel.
type Subscription interface {
	Channel() string
	// Unsubscribe removes the listener; the store-side subscription is dropped with the last listener.
	Unsubscribe(ctx context.Context) error
}

// PubSub is the notification channel used to wake blocked waiters.
type PubSub interface {
	// Subscribe registers listener on channel and returns once the subscription is active.
	// Listeners on the same channel within a process share one store-side subscription.
	Subscribe(ctx context.Context, channel string, listener MessageListener) (Subscription, error)
}

// Publisher posts a message to every current subscriber of a channel. Fire and forget.
type Publisher interface {
	Publish(ctx context.Context, channel string, message string) error
}

// Decoder turns a raw store reply into a typed value.
type Decoder[T any] interface {
	Decode(raw any) (T, error)
}

// MultiDecoder is implemented by decoders of multi-field replies that only apply to some positions.
type MultiDecoder interface {
	IsApplicable(fieldIndex int) bool
}
