package dispatch_test

import (
	"context"
	"testing"

	"github.com/gridwire/meshcore/internal/coordination/faketest"
	"github.com/gridwire/meshcore/internal/dispatch"
)

// TestHandler_ReplyWritesBucketAndReleasesSemaphore checks Reply's two
// effects directly against the store, independent of a Sender.
func TestHandler_ReplyWritesBucketAndReleasesSemaphore(t *testing.T) {
	ctx := context.Background()
	store := faketest.New()
	handler := dispatch.NewHandler(store, testConfig())

	if err := handler.Reply(ctx, "msg-1", &dispatch.Reply{Success: true, Output: 42}); err != nil {
		t.Fatalf("Reply: %v", err)
	}

	reply, err := dispatch.NewSender(store, nil, nil, testConfig(), nil).RetrieveReply(ctx, "msg-1")
	if err != nil {
		t.Fatalf("RetrieveReply: %v", err)
	}
	if !reply.Success {
		t.Fatalf("reply.Success = false, want true")
	}
	if reply.MessageID != "msg-1" {
		t.Fatalf("reply.MessageID = %q, want msg-1", reply.MessageID)
	}
}

// TestHandler_SubscribeDecodesMessages verifies Subscribe drops
// undecodable payloads instead of invoking fn.
func TestHandler_SubscribeDecodesMessages(t *testing.T) {
	ctx := context.Background()
	store := faketest.New()
	handler := dispatch.NewHandler(store, testConfig())

	var received int
	sub, err := handler.Subscribe(ctx, "server-01", func(context.Context, dispatch.Message) {
		received++
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	if _, err := store.Publish(ctx, "device:message:accept:server-01", []byte("not json")); err != nil {
		t.Fatalf("Publish garbage: %v", err)
	}
	if received != 0 {
		t.Fatalf("received = %d after garbage payload, want 0", received)
	}

	if _, err := store.Publish(ctx, "device:message:accept:server-01", []byte(`{"id":"m-1","device_id":"d-1"}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if received != 1 {
		t.Fatalf("received = %d after valid payload, want 1", received)
	}
}
