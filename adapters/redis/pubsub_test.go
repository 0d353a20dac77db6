package redis

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sharedcode/dsync"
)

// addChannel installs channel state as if SUBSCRIBE had been sent, without Redis.
func addChannel(p *PubSub, channel string) *channelState {
	p.sent[channel]++
	st := &channelState{
		listeners: make(map[uint64]dsync.MessageListener),
		want:      p.sent[channel],
		confirmed: make(chan struct{}),
	}
	p.channels[channel] = st
	return st
}

func TestPubSub_ConfirmationAndReconnectWake(t *testing.T) {
	p := newPubSub(GetConnection)
	st := addChannel(p, "c")
	var got []string
	st.listeners[1] = func(_ string, m string) { got = append(got, m) }

	p.onSubscribed("c")
	select {
	case <-st.confirmed:
	default:
		t.Fatalf("channel not confirmed after its acknowledgement")
	}

	p.deliver("c", dsync.UnlockMessage)
	if len(got) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(got))
	}

	// A second acknowledgement means go-redis re-subscribed after a reconnect.
	p.onSubscribed("c")
	if len(got) != 2 || got[1] != dsync.UnlockMessage {
		t.Fatalf("expected a synthetic wake-up after re-subscribe, got %v", got)
	}
}

func TestPubSub_StaleAckDoesNotConfirmNewState(t *testing.T) {
	p := newPubSub(GetConnection)
	// First subscription sent, then dropped before its ack arrived.
	addChannel(p, "c")
	delete(p.channels, "c")
	// Re-subscribed: this state needs the second ack.
	st := addChannel(p, "c")

	p.onSubscribed("c")
	select {
	case <-st.confirmed:
		t.Fatalf("stale acknowledgement confirmed the new subscription")
	default:
	}
	p.onSubscribed("c")
	select {
	case <-st.confirmed:
	default:
		t.Fatalf("new subscription not confirmed by its own acknowledgement")
	}
}

func TestPubSub_DeliverUnknownChannel(t *testing.T) {
	p := newPubSub(GetConnection)
	// No panic, nothing subscribed.
	p.deliver("nobody", dsync.UnlockMessage)
	p.onSubscribed("nobody")
	if len(p.acked) != 0 || len(p.sent) != 0 {
		t.Fatalf("acknowledgements of unknown channels must not accumulate")
	}
}

func TestPubSub_SubscribeWithoutConnection(t *testing.T) {
	CloseConnection()
	p := NewPubSub()
	p.SubscribeTimeout = 100 * time.Millisecond
	if _, err := p.Subscribe(context.Background(), "c", func(string, string) {}); err == nil {
		t.Fatalf("expected an error when no connection is open")
	}
}

func TestPubSub_ResubscribeAfterRestartConsumesFlag(t *testing.T) {
	p := newPubSub(GetConnection)
	st := addChannel(p, "c")
	woken := 0
	st.listeners[1] = func(string, string) { woken++ }
	p.onSubscribed("c")

	atomic.StoreInt64(&hasRestarted, 1)
	p.onSubscribed("c")
	if woken != 1 {
		t.Fatalf("expected listeners woken after the restart, got %d", woken)
	}
	if IsRestarted() {
		t.Fatalf("restart flag must be consumed by the re-subscribe")
	}
}
