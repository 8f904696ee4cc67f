package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gridwire/meshcore/internal/coordination"
)

// Handler is the gateway-facing half of the rendezvous: it subscribes
// to a server's accept topic, decodes the messages published by
// Senders, and writes replies back to the bucket a Sender's semaphore
// wait is pending on.
type Handler struct {
	store  coordination.Store
	config Config
	logger Logger
}

// NewHandler returns a Handler over store.
func NewHandler(store coordination.Store, cfg Config) *Handler {
	return &Handler{store: store, config: cfg, logger: noopLogger{}}
}

// SetLogger installs a logger.
func (h *Handler) SetLogger(l Logger) {
	if l == nil {
		l = noopLogger{}
	}
	h.logger = l
}

// Subscribe opens a subscription on serverID's accept topic and invokes
// fn for every decoded Message, until ctx is cancelled or the returned
// Subscription is closed. A message that fails to decode is logged and
// dropped rather than propagated to fn.
func (h *Handler) Subscribe(ctx context.Context, serverID string, fn func(context.Context, Message)) (coordination.Subscription, error) {
	topic := coordination.Keys{}.MessageAccept(serverID)
	return h.store.Subscribe(ctx, topic, func(ctx context.Context, payload []byte) {
		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Error("decoding accepted message", "server_id", serverID, "error", err)
			return
		}
		fn(ctx, msg)
	})
}

// Reply writes reply to its message's reply bucket and releases one
// permit on the reply semaphore — the publish side of the rendezvous a
// Sender's TryAcquireSemaphore call is waiting on.
func (h *Handler) Reply(ctx context.Context, messageID string, reply *Reply) error {
	reply.MessageID = messageID
	encoded, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("encoding reply %s: %w", messageID, err)
	}
	if err := h.store.Set(ctx, coordination.Keys{}.MessageReply(messageID), encoded, h.config.MaxAwait+h.config.SemaphoreGrace); err != nil {
		return fmt.Errorf("writing reply %s: %w", messageID, err)
	}
	if err := h.store.ReleaseSemaphore(ctx, coordination.Keys{}.ReplySemaphore(messageID), 1); err != nil {
		return fmt.Errorf("releasing reply semaphore %s: %w", messageID, err)
	}
	return nil
}

// MarkMessageAsync releases the reply semaphore without writing
// anything to the reply bucket, unblocking a sender's Send call before
// the real reply is ready rather than leaving it waiting out the full
// MaxAwait — supplementing a gateway-side feature present on the
// original's builders but dropped by the distillation. The unblocked
// Send returns ErrNoReply immediately; the eventual reply, once the
// device responds, is delivered the ordinary way through Reply.
func (h *Handler) MarkMessageAsync(ctx context.Context, messageID string) error {
	key := coordination.Keys{}.ReplySemaphore(messageID)
	if err := h.store.ReleaseSemaphore(ctx, key, 1); err != nil {
		return fmt.Errorf("marking message %s async: %w", messageID, err)
	}
	return nil
}
