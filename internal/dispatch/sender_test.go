package dispatch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gridwire/meshcore/internal/configstore"
	"github.com/gridwire/meshcore/internal/coordination"
	"github.com/gridwire/meshcore/internal/coordination/faketest"
	"github.com/gridwire/meshcore/internal/device"
	"github.com/gridwire/meshcore/internal/dispatch"
)

// newTestOperation wires a registered, online device.Operation over a
// fake store, the fixture every test in this file starts from.
func newTestOperation(t *testing.T, serverID, sessionID string) (*device.Operation, *faketest.Store) {
	t.Helper()
	ctx := context.Background()
	store := faketest.New()
	repo := device.NewCoordinationRepository(store)
	registry := device.NewRegistry(repo, store)

	if _, err := registry.RegisterDevice(ctx, device.Info{ID: "test", ProductID: "prod-1"}); err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}
	productConfig := configstore.NewHandle(store, configstore.ScopeProduct, "prod-1")
	op := registry.Operation("test", productConfig)

	if serverID != "" {
		if err := op.Online(ctx, serverID, sessionID); err != nil {
			t.Fatalf("Online: %v", err)
		}
	}
	return op, store
}

func testConfig() dispatch.Config {
	return dispatch.Config{
		MaxAwait:          200 * time.Millisecond,
		SemaphoreGrace:    50 * time.Millisecond,
		AliveCheckTimeout: 50 * time.Millisecond,
	}
}

// TestSender_RoundTrip mirrors the original's testSendMessage: a
// gateway subscribed to the device's accept topic replies success to
// every invocation, including a batch of sequential sends.
func TestSender_RoundTrip(t *testing.T) {
	ctx := context.Background()
	op, store := newTestOperation(t, "server-01", "session-01")

	handler := dispatch.NewHandler(store, testConfig())
	sub, err := handler.Subscribe(ctx, "server-01", func(ctx context.Context, msg dispatch.Message) {
		_ = handler.Reply(ctx, msg.ID, &dispatch.Reply{Success: true, Output: "done"})
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	sender := dispatch.NewSender(store, op, nil, testConfig(), nil)

	reply, err := sender.InvokeFunction("test").Send(ctx)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !reply.Success {
		t.Fatalf("reply.Success = false, want true")
	}

	const rounds = 100
	for i := 0; i < rounds; i++ {
		reply, err = sender.InvokeFunction("test").Send(ctx)
		if err != nil {
			t.Fatalf("Send round %d: %v", i, err)
		}
		if !reply.Success {
			t.Fatalf("round %d: reply.Success = false, want true", i)
		}
	}
}

// TestSender_Offline covers a device with no owning server: Send must
// fail fast with ErrClientOffline and never publish.
func TestSender_Offline(t *testing.T) {
	ctx := context.Background()
	op, store := newTestOperation(t, "", "")

	sender := dispatch.NewSender(store, op, nil, testConfig(), nil)

	_, err := sender.ReadProperty().Send(ctx)
	if !errors.Is(err, dispatch.NewReplyError(dispatch.ErrClientOffline, "")) {
		t.Fatalf("Send error = %v, want ErrClientOffline", err)
	}
}

// TestSender_NoReply covers a device whose gateway accepts the message
// (subscribed) but never replies: Send must time out with ErrNoReply.
func TestSender_NoReply(t *testing.T) {
	ctx := context.Background()
	op, store := newTestOperation(t, "server-01", "session-01")

	sub, err := store.Subscribe(ctx, coordination.Keys{}.MessageAccept("server-01"), func(context.Context, []byte) {})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	sender := dispatch.NewSender(store, op, nil, testConfig(), nil)

	_, err = sender.InvokeFunction("test").Send(ctx)
	if !errors.Is(err, dispatch.NewReplyError(dispatch.ErrNoReply, "")) {
		t.Fatalf("Send error = %v, want ErrNoReply", err)
	}
}

// TestSender_MultipleSubscribers ensures a second subscriber doesn't
// break the rendezvous: the semaphore starts empty and the waiter
// acquires one permit per subscriber, so both subscribers reply here,
// each releasing one permit.
func TestSender_MultipleSubscribers(t *testing.T) {
	ctx := context.Background()
	op, store := newTestOperation(t, "server-01", "session-01")

	handler := dispatch.NewHandler(store, testConfig())
	reply := func(ctx context.Context, msg dispatch.Message) {
		_ = handler.Reply(ctx, msg.ID, &dispatch.Reply{Success: true})
	}
	sub1, err := handler.Subscribe(ctx, "server-01", reply)
	if err != nil {
		t.Fatalf("Subscribe 1: %v", err)
	}
	defer sub1.Close()
	sub2, err := handler.Subscribe(ctx, "server-01", reply)
	if err != nil {
		t.Fatalf("Subscribe 2: %v", err)
	}
	defer sub2.Close()

	sender := dispatch.NewSender(store, op, nil, testConfig(), nil)
	got, err := sender.InvokeFunction("test").Send(ctx)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !got.Success {
		t.Fatalf("reply.Success = false, want true")
	}
}

// TestSender_AsyncRetrieveReply exercises the Async fire-and-forget path
// followed by a later RetrieveReply, the pattern a gateway that defers
// its reply depends on.
func TestSender_AsyncRetrieveReply(t *testing.T) {
	ctx := context.Background()
	op, store := newTestOperation(t, "server-01", "session-01")

	handler := dispatch.NewHandler(store, testConfig())
	var pendingID string
	sub, err := handler.Subscribe(ctx, "server-01", func(ctx context.Context, msg dispatch.Message) {
		pendingID = msg.ID
		_ = handler.MarkMessageAsync(ctx, msg.ID)
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	sender := dispatch.NewSender(store, op, nil, testConfig(), nil)
	messageID, err := sender.WriteProperty().Write("power", "on").Async(ctx)
	if err != nil {
		t.Fatalf("Async: %v", err)
	}
	if messageID != pendingID {
		t.Fatalf("Async message ID = %q, handler saw %q", messageID, pendingID)
	}

	if err := handler.Reply(ctx, messageID, &dispatch.Reply{Success: true, Output: "ok"}); err != nil {
		t.Fatalf("Reply: %v", err)
	}

	got, err := sender.RetrieveReply(ctx, messageID)
	if err != nil {
		t.Fatalf("RetrieveReply: %v", err)
	}
	if !got.Success {
		t.Fatalf("reply.Success = false, want true")
	}
}

// TestSender_MarkMessageAsyncUnblocksBlockingSend covers §4.G's
// markMessageAsync contract: a gateway that calls it while handling a
// blocking Send must release the waiter well before MaxAwait elapses,
// with ErrNoReply rather than a real reply, since no reply was ever
// written to the bucket.
func TestSender_MarkMessageAsyncUnblocksBlockingSend(t *testing.T) {
	ctx := context.Background()
	op, store := newTestOperation(t, "server-01", "session-01")

	handler := dispatch.NewHandler(store, testConfig())
	sub, err := handler.Subscribe(ctx, "server-01", func(ctx context.Context, msg dispatch.Message) {
		_ = handler.MarkMessageAsync(ctx, msg.ID)
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	sender := dispatch.NewSender(store, op, nil, testConfig(), nil)

	start := time.Now()
	_, err = sender.InvokeFunction("test").Send(ctx)
	elapsed := time.Since(start)

	if !errors.Is(err, dispatch.NewReplyError(dispatch.ErrNoReply, "")) {
		t.Fatalf("Send error = %v, want ErrNoReply", err)
	}
	if elapsed >= testConfig().MaxAwait {
		t.Fatalf("Send took %v, want well under MaxAwait (%v) — MarkMessageAsync should release immediately", elapsed, testConfig().MaxAwait)
	}
}

// recordingInterceptor records every message and reply it observes,
// grounded on the original's anonymous DeviceMessageSenderInterceptor.
type recordingInterceptor struct {
	preSent    []dispatch.Message
	afterReply []string
}

func (r *recordingInterceptor) PreSend(_ context.Context, _ dispatch.Device, msg dispatch.Message) (dispatch.Message, error) {
	r.preSent = append(r.preSent, msg)
	msg.Headers = map[string]any{"intercepted": true}
	return msg, nil
}

func (r *recordingInterceptor) AfterReply(_ context.Context, _ dispatch.Device, msg dispatch.Message, reply *dispatch.Reply) (*dispatch.Reply, error) {
	r.afterReply = append(r.afterReply, msg.ID)
	return reply, nil
}

// TestSender_InterceptorChain verifies PreSend mutations reach the
// published message and AfterReply observes the final reply.
func TestSender_InterceptorChain(t *testing.T) {
	ctx := context.Background()
	op, store := newTestOperation(t, "server-01", "session-01")

	handler := dispatch.NewHandler(store, testConfig())
	var sawIntercepted bool
	sub, err := handler.Subscribe(ctx, "server-01", func(ctx context.Context, msg dispatch.Message) {
		_, sawIntercepted = msg.Headers["intercepted"]
		_ = handler.Reply(ctx, msg.ID, &dispatch.Reply{Success: true})
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	in := &recordingInterceptor{}
	sender := dispatch.NewSender(store, op, nil, testConfig(), []dispatch.Interceptor{in})

	reply, err := sender.InvokeFunction("test").Send(ctx)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !sawIntercepted {
		t.Fatalf("handler did not observe PreSend's header mutation")
	}
	if len(in.preSent) != 1 {
		t.Fatalf("PreSend called %d times, want 1", len(in.preSent))
	}
	if len(in.afterReply) != 1 {
		t.Fatalf("AfterReply called %d times, want 1", len(in.afterReply))
	}
	if !reply.Success {
		t.Fatalf("reply.Success = false, want true")
	}
}
