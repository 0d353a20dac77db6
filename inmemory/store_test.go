package inmemory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sharedcode/dsync"
)

func TestStore_TryTakeAndGive(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil)

	if ok, err := s.TryTake(ctx, "sem", 1); err != nil || ok {
		t.Fatalf("missing counter must read as zero, got %v, %v", ok, err)
	}
	if err := s.Give(ctx, "sem", 3); err != nil {
		t.Fatalf("give failed: %v", err)
	}
	if ok, _ := s.TryTake(ctx, "sem", 4); ok {
		t.Fatalf("took more permits than available")
	}
	if v, _ := s.Read(ctx, "sem"); v != 3 {
		t.Fatalf("failed take must not change the counter, got %d", v)
	}
	if ok, _ := s.TryTake(ctx, "sem", 2); !ok {
		t.Fatalf("expected take of 2 to succeed")
	}
	if v, _ := s.Read(ctx, "sem"); v != 1 {
		t.Fatalf("expected 1 permit left, got %d", v)
	}
}

func TestStore_NoOverGrantUnderContention(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil)
	const permits = 10
	if err := s.Give(ctx, "sem", permits); err != nil {
		t.Fatalf("give failed: %v", err)
	}

	var granted atomic.Int64
	var eg errgroup.Group
	for i := 0; i < 100; i++ {
		eg.Go(func() error {
			ok, err := s.TryTake(ctx, "sem", 1)
			if ok {
				granted.Add(1)
			}
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatalf("try take failed: %v", err)
	}
	if granted.Load() != permits {
		t.Fatalf("expected %d grants, got %d", permits, granted.Load())
	}
	if v, _ := s.Read(ctx, "sem"); v != 0 {
		t.Fatalf("expected empty counter, got %d", v)
	}
}

func TestStore_Conservation(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil)
	if err := s.Give(ctx, "sem", 5); err != nil {
		t.Fatalf("give failed: %v", err)
	}

	var eg errgroup.Group
	for i := 0; i < 20; i++ {
		eg.Go(func() error {
			for j := 0; j < 50; j++ {
				ok, err := s.TryTake(ctx, "sem", 2)
				if err != nil {
					return err
				}
				if ok {
					if err := s.Give(ctx, "sem", 2); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatalf("worker failed: %v", err)
	}
	if v, _ := s.Read(ctx, "sem"); v != 5 {
		t.Fatalf("expected initial + released - acquired = 5, got %d", v)
	}
}

func TestStore_GivePublishesUnlock(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil)

	var mu sync.Mutex
	var got []string
	sub, err := s.Broker().Subscribe(ctx, dsync.ChannelName("sem"), func(channel, message string) {
		// The increment is visible by the time the message arrives.
		if v, _ := s.Read(ctx, "sem"); v < 1 {
			t.Errorf("notification observed before increment")
		}
		mu.Lock()
		got = append(got, message)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer sub.Unsubscribe(ctx)

	s.Give(ctx, "sem", 1)
	s.Give(ctx, "other", 1)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != dsync.UnlockMessage {
		t.Fatalf("expected one unlock message, got %v", got)
	}
}

func TestStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dsync.Now = func() time.Time { return now }
	defer func() { dsync.Now = time.Now }()

	s := NewStore(nil)
	if ok, _ := s.Expire(ctx, "sem", time.Minute); ok {
		t.Fatalf("expire on a missing counter must fail")
	}
	if ttl, _ := s.RemainTimeToLive(ctx, "sem"); ttl != -2*time.Millisecond {
		t.Fatalf("expected -2ms for a missing counter, got %v", ttl)
	}

	s.Give(ctx, "sem", 2)
	if ttl, _ := s.RemainTimeToLive(ctx, "sem"); ttl != -1*time.Millisecond {
		t.Fatalf("expected -1ms without expiry, got %v", ttl)
	}
	if ok, _ := s.ClearExpire(ctx, "sem"); ok {
		t.Fatalf("clear expire without an expiry must report false")
	}
	if ok, _ := s.Expire(ctx, "sem", time.Minute); !ok {
		t.Fatalf("expire failed")
	}
	if ttl, _ := s.RemainTimeToLive(ctx, "sem"); ttl != time.Minute {
		t.Fatalf("expected 1m ttl, got %v", ttl)
	}
	if v, _ := s.Read(ctx, "sem"); v != 2 {
		t.Fatalf("expiry must not change the value, got %d", v)
	}

	now = now.Add(time.Minute)
	if v, _ := s.Read(ctx, "sem"); v != 0 {
		t.Fatalf("expired counter must read as zero, got %d", v)
	}
	if ttl, _ := s.RemainTimeToLive(ctx, "sem"); ttl != -2*time.Millisecond {
		t.Fatalf("expired counter must be missing, got %v", ttl)
	}

	s.Give(ctx, "sem", 1)
	if ok, _ := s.ExpireAt(ctx, "sem", now.Add(time.Hour)); !ok {
		t.Fatalf("expire at failed")
	}
	if ok, _ := s.ClearExpire(ctx, "sem"); !ok {
		t.Fatalf("clear expire failed")
	}
	if ttl, _ := s.RemainTimeToLive(ctx, "sem"); ttl != -1*time.Millisecond {
		t.Fatalf("expected -1ms after clear, got %v", ttl)
	}
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewStore(nil)
	if _, err := s.TryTake(ctx, "sem", 1); err == nil {
		t.Fatalf("expected error on cancelled context")
	}
	if err := s.Give(ctx, "sem", 1); err == nil {
		t.Fatalf("expected error on cancelled context")
	}
}

func TestBroker_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	b := NewBroker()
	var calls atomic.Int32
	l := func(string, string) { calls.Add(1) }

	s1, _ := b.Subscribe(ctx, "ch", l)
	s2, _ := b.Subscribe(ctx, "ch", l)
	if b.Subscribers("ch") != 2 {
		t.Fatalf("expected 2 subscribers, got %d", b.Subscribers("ch"))
	}
	b.Publish(ctx, "ch", dsync.UnlockMessage)
	if calls.Load() != 2 {
		t.Fatalf("expected 2 deliveries, got %d", calls.Load())
	}

	s1.Unsubscribe(ctx)
	s1.Unsubscribe(ctx)
	if b.Subscribers("ch") != 1 {
		t.Fatalf("double unsubscribe must only remove once, got %d", b.Subscribers("ch"))
	}
	s2.Unsubscribe(ctx)
	if b.Subscribers("ch") != 0 {
		t.Fatalf("expected no subscribers")
	}
	b.Publish(ctx, "ch", dsync.UnlockMessage)
	if calls.Load() != 2 {
		t.Fatalf("publish with no subscribers must be dropped")
	}
}
