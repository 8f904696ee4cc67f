package coordination_test

import (
	"context"
	"testing"
	"time"

	"github.com/gridwire/meshcore/internal/coordination"
	"github.com/gridwire/meshcore/internal/coordination/faketest"
)

// TestSemaphore_RendezvousBlocksUntilReleased exercises the reply
// semaphore the way Sender.doSend actually uses it: armed empty (0
// permits, mirroring arm's CreateSemaphore(key, 0)) and acquired for
// the subscriber count, so the acquire can only succeed once that many
// ReleaseSemaphore calls have landed — never because creation itself
// handed out permits.
func TestSemaphore_RendezvousBlocksUntilReleased(t *testing.T) {
	store := faketest.New()
	ctx := context.Background()
	key := "device:reply:msg-1"

	if err := store.CreateSemaphore(ctx, key, 0); err != nil {
		t.Fatalf("CreateSemaphore: %v", err)
	}

	if err := store.TryAcquireSemaphore(ctx, key, 2, 50*time.Millisecond); !coordination.IsNotAcquired(err) {
		t.Fatalf("expected ErrSemaphoreNotAcquired with no releases yet, got %v", err)
	}

	if err := store.ReleaseSemaphore(ctx, key, 1); err != nil {
		t.Fatalf("ReleaseSemaphore: %v", err)
	}
	if err := store.TryAcquireSemaphore(ctx, key, 2, 50*time.Millisecond); !coordination.IsNotAcquired(err) {
		t.Fatalf("expected ErrSemaphoreNotAcquired after only 1 of 2 releases, got %v", err)
	}

	if err := store.ReleaseSemaphore(ctx, key, 1); err != nil {
		t.Fatalf("ReleaseSemaphore: %v", err)
	}
	if err := store.TryAcquireSemaphore(ctx, key, 2, time.Second); err != nil {
		t.Fatalf("TryAcquireSemaphore after 2 releases: %v", err)
	}
}

// TestSemaphore_AcquireWaitsForReleaseAfterStart asserts the rendezvous
// case the bug in sender.go's arm masked: the acquire begins polling
// before any release has happened, exactly as it does against a real,
// asynchronously-delivered gateway reply, and only returns once the
// release arrives.
func TestSemaphore_AcquireWaitsForReleaseAfterStart(t *testing.T) {
	store := faketest.New()
	ctx := context.Background()
	key := "device:reply:msg-2"

	if err := store.CreateSemaphore(ctx, key, 0); err != nil {
		t.Fatalf("CreateSemaphore: %v", err)
	}

	const releaseDelay = 100 * time.Millisecond
	released := make(chan time.Time, 1)
	go func() {
		time.Sleep(releaseDelay)
		_ = store.ReleaseSemaphore(ctx, key, 1)
		released <- time.Now()
	}()

	start := time.Now()
	if err := store.TryAcquireSemaphore(ctx, key, 1, time.Second); err != nil {
		t.Fatalf("TryAcquireSemaphore: %v", err)
	}
	acquiredAt := time.Now()

	if acquiredAt.Sub(start) < releaseDelay {
		t.Fatalf("acquire returned after %v, before the %v release delay had elapsed", acquiredAt.Sub(start), releaseDelay)
	}
	releasedAt := <-released
	if acquiredAt.Before(releasedAt) {
		t.Fatalf("acquire resolved at %v, before the release at %v", acquiredAt, releasedAt)
	}
}

func TestSemaphore_CreateIsNoOpIfExists(t *testing.T) {
	store := faketest.New()
	ctx := context.Background()
	key := "device:reply:msg-2"

	if err := store.CreateSemaphore(ctx, key, 1); err != nil {
		t.Fatalf("CreateSemaphore: %v", err)
	}
	if err := store.TryAcquireSemaphore(ctx, key, 1, time.Second); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	// Re-creating must not reset the counter back to 1.
	if err := store.CreateSemaphore(ctx, key, 1); err != nil {
		t.Fatalf("CreateSemaphore (second call): %v", err)
	}
	if err := store.TryAcquireSemaphore(ctx, key, 1, 50*time.Millisecond); !coordination.IsNotAcquired(err) {
		t.Fatalf("expected semaphore to remain exhausted, got %v", err)
	}
}

func TestBuckets_GetAndDelete(t *testing.T) {
	store := faketest.New()
	ctx := context.Background()
	key := "device:message:reply:msg-1"

	if err := store.Set(ctx, key, []byte(`{"success":true}`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v, found, err := store.GetAndDelete(ctx, key)
	if err != nil || !found {
		t.Fatalf("GetAndDelete: found=%v err=%v", found, err)
	}
	if string(v) != `{"success":true}` {
		t.Fatalf("unexpected value: %s", v)
	}

	if _, found, _ := store.GetAndDelete(ctx, key); found {
		t.Fatalf("expected key to be gone after GetAndDelete")
	}
}

func TestPubSub_SubscriberCountAndDelivery(t *testing.T) {
	store := faketest.New()
	ctx := context.Background()
	topic := "device:message:accept:node-1"

	received := make(chan []byte, 1)
	sub, err := store.Subscribe(ctx, topic, func(_ context.Context, payload []byte) {
		received <- payload
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	n, err := store.Publish(ctx, topic, []byte("hello"))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if n != 1 {
		t.Fatalf("subscriber count = %d, want 1", n)
	}

	select {
	case payload := <-received:
		if string(payload) != "hello" {
			t.Fatalf("payload = %q, want %q", payload, "hello")
		}
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}

	sub.Close()
	n, _ = store.Publish(ctx, topic, []byte("again"))
	if n != 0 {
		t.Fatalf("subscriber count after close = %d, want 0", n)
	}
}

func TestHash_InheritancePrimitives(t *testing.T) {
	store := faketest.New()
	ctx := context.Background()
	key := "product:cfg:acme-thermostat"

	if err := store.HSet(ctx, key, "poll_interval", "30"); err != nil {
		t.Fatalf("HSet: %v", err)
	}
	if err := store.HSet(ctx, key, "unit", "celsius"); err != nil {
		t.Fatalf("HSet: %v", err)
	}

	v, found, err := store.HGet(ctx, key, "unit")
	if err != nil || !found || v != "celsius" {
		t.Fatalf("HGet = %q found=%v err=%v", v, found, err)
	}

	all, err := store.HGetAll(ctx, key)
	if err != nil {
		t.Fatalf("HGetAll: %v", err)
	}
	if all["poll_interval"] != "30" || all["unit"] != "celsius" {
		t.Fatalf("unexpected HGetAll result: %v", all)
	}

	if err := store.HDel(ctx, key, "unit"); err != nil {
		t.Fatalf("HDel: %v", err)
	}
	if _, found, _ := store.HGet(ctx, key, "unit"); found {
		t.Fatalf("expected field to be gone after HDel")
	}
}
